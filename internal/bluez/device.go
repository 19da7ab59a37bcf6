package bluez

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbus "github.com/godbus/dbus/v5"
)

// PropertyResolver resolves devices with Properties.GetAll on Device1.
type PropertyResolver struct {
	objects ObjectFunc
}

// NewPropertyResolver creates a resolver that talks to bluetoothd via objects.
func NewPropertyResolver(objects ObjectFunc) *PropertyResolver {
	return &PropertyResolver{objects: objects}
}

// Resolve fetches the current Device1 properties of path.
// Bus errors are returned wrapped so that FromError can pass them through.
func (r *PropertyResolver) Resolve(ctx context.Context, path dbus.ObjectPath) (Device, error) {
	if !path.IsValid() {
		return Device{}, fmt.Errorf("bluez: resolve %q: %w", path, InvalidArguments("invalid object path"))
	}

	var props map[string]dbus.Variant
	call := r.objects(path).CallWithContext(ctx, propsIface+".GetAll", 0, DeviceInterface)
	if call.Err != nil {
		return Device{}, fmt.Errorf("bluez: resolve %s: %w", path, call.Err)
	}
	if err := call.Store(&props); err != nil {
		return Device{}, fmt.Errorf("bluez: decode %s properties: %w", path, err)
	}

	dev := deviceFromProps(path, props)
	if dev.Address == "" {
		return Device{}, fmt.Errorf("bluez: resolve %s: %w", path, errors.New("device has no address"))
	}
	return dev, nil
}

func deviceFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) Device {
	dev := Device{Path: path}
	if v, ok := props["Address"]; ok {
		dev.Address, _ = v.Value().(string)
	}
	if v, ok := props["AddressType"]; ok {
		dev.AddressType, _ = v.Value().(string)
	}
	if v, ok := props["Name"]; ok {
		dev.Name, _ = v.Value().(string)
	}
	if v, ok := props["Alias"]; ok {
		dev.Alias, _ = v.Value().(string)
	}
	if v, ok := props["Adapter"]; ok {
		dev.Adapter, _ = v.Value().(dbus.ObjectPath)
	}
	if v, ok := props["LegacyPairing"]; ok {
		dev.LegacyPairing, _ = v.Value().(bool)
	}
	if v, ok := props["Paired"]; ok {
		dev.Paired, _ = v.Value().(bool)
	}
	if v, ok := props["Trusted"]; ok {
		dev.Trusted, _ = v.Value().(bool)
	}
	if dev.Address == "" {
		dev.Address = AddressFromPath(path)
	}
	return dev
}

// AddressFromPath extracts the MAC from a device path such as
// /org/bluez/hci0/dev_XX_XX_XX_XX_XX_XX. It returns "" for other paths.
func AddressFromPath(p dbus.ObjectPath) string {
	s := string(p)
	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return ""
	}
	mac := s[idx+5:]
	if strings.Contains(mac, "/") {
		// a child object of the device, e.g. .../dev_XX/sep1
		mac = mac[:strings.Index(mac, "/")]
	}
	return strings.ReplaceAll(mac, "_", ":")
}
