// Package bluez holds the BlueZ D-Bus plumbing the pairing agent needs:
// the Agent1 error taxonomy, read-only Device1 metadata, the
// AgentManager1 proxy and the system-bus session that ties them together.
//
// Thread-safety: Device resolution and the AgentManager proxy are safe for
// concurrent use. Session.Close is safe to call concurrently and is
// idempotent.
package bluez

import (
	"context"

	dbus "github.com/godbus/dbus/v5"
)

const (
	Service = "org.bluez"

	AgentInterface        = "org.bluez.Agent1"
	AgentManagerInterface = "org.bluez.AgentManager1"
	DeviceInterface       = "org.bluez.Device1"

	propsIface = "org.freedesktop.DBus.Properties"

	// ManagerPath is where bluetoothd exposes AgentManager1.
	ManagerPath dbus.ObjectPath = "/org/bluez"

	// CapabilityNoInputNoOutput tells bluetoothd the agent can neither show
	// nor read anything, which keeps it to PIN and authorization requests.
	CapabilityNoInputNoOutput = "NoInputNoOutput"
)

// Device is the metadata of a remote device as seen through Device1.
//
// Path and Address are always set on a successfully resolved Device. Other
// fields may be empty depending on what bluetoothd knows about the peer.
type Device struct {
	Path          dbus.ObjectPath
	Address       string
	AddressType   string // "public" or "random"
	Name          string
	Alias         string
	Adapter       dbus.ObjectPath
	LegacyPairing bool
	Paired        bool
	Trusted       bool
}

// DisplayName returns the best human-readable label for the device.
func (d Device) DisplayName() string {
	switch {
	case d.Name != "":
		return d.Name
	case d.Alias != "":
		return d.Alias
	default:
		return d.Address
	}
}

// DeviceResolver looks up Device1 metadata for an object path.
// Implementations must not cache: every call reflects bluetoothd's current view.
type DeviceResolver interface {
	Resolve(ctx context.Context, path dbus.ObjectPath) (Device, error)
}

// Caller is the subset of dbus.BusObject used by the proxies here.
type Caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// ObjectFunc returns a Caller for the given object on the org.bluez service.
type ObjectFunc func(path dbus.ObjectPath) Caller

// ConnObjects adapts a bus connection into an ObjectFunc.
func ConnObjects(conn *dbus.Conn) ObjectFunc {
	return func(path dbus.ObjectPath) Caller {
		return conn.Object(Service, path)
	}
}
