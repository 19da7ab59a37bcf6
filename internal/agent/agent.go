// Package agent implements org.bluez.Agent1 for unattended operation.
//
// The agent answers PIN-code requests with a fixed PIN, authorizes
// services against a fixed allow list and refuses every Simple Secure
// Pairing flow (passkey entry, passkey display, numeric comparison), since
// nobody is there to read or confirm a number.
//
// bluetoothd calls into the agent through godbus, which runs each method
// call on its own goroutine; all methods are safe for concurrent use.
package agent

import (
	"context"
	"time"

	dbus "github.com/godbus/dbus/v5"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"bluegent/internal/bluez"
)

// Policy is the static decision data the agent consults.
type Policy interface {
	PinCode() string
	Authorizes(uuid string) bool
}

// Agent is the Agent1 handler. Export it with bluez.Session.Publish.
//
// Only methods ending in *dbus.Error are visible on the bus.
type Agent struct {
	ctx     context.Context
	policy  Policy
	devices bluez.DeviceResolver
	log     *zap.Logger
	now     func() time.Time

	pairing pairingSlot

	released   atomic.Bool
	releasedCh chan struct{}
}

// New creates an agent. ctx bounds device lookups and should be cancelled
// on shutdown; the agent adds no timeouts of its own.
func New(ctx context.Context, policy Policy, devices bluez.DeviceResolver, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{
		ctx:        ctx,
		policy:     policy,
		devices:    devices,
		log:        log,
		now:        time.Now,
		releasedCh: make(chan struct{}),
	}
}

// Released is closed once bluetoothd has called Release.
func (a *Agent) Released() <-chan struct{} { return a.releasedCh }

// PendingDevice returns the device currently mid-pairing, if any.
func (a *Agent) PendingDevice() (dbus.ObjectPath, bool) { return a.pairing.current() }

// Release is called when bluetoothd unregisters the agent, typically
// because it is shutting down. Calls after the first are ignored.
func (a *Agent) Release() *dbus.Error {
	if !a.released.CompareAndSwap(false, true) {
		a.log.Debug("duplicate release, ignoring")
		return nil
	}
	a.log.Info("agent released by bluetoothd")
	close(a.releasedCh)
	return nil
}

func (a *Agent) RequestPinCode(device dbus.ObjectPath) (string, *dbus.Error) {
	if prev := a.pairing.begin(device, a.now()); prev != "" && prev != device {
		a.log.Warn("new PIN code request while another pairing was pending",
			zap.String("device", string(device)), zap.String("previous", string(prev)))
	}

	dev, err := a.devices.Resolve(a.ctx, device)
	if err != nil {
		a.log.Error("cannot resolve device for PIN code request", zap.String("device", string(device)), zap.Error(err))
		return "", bluez.FromError(err)
	}

	pin := a.policy.PinCode()
	if pin == "" {
		a.log.Error("no PIN code configured, canceling pairing", deviceFields(dev)...)
		return "", bluez.Canceled("no PIN code configured")
	}

	a.log.Info("received PIN code request, answering with configured PIN", deviceFields(dev)...)
	return pin, nil
}

func (a *Agent) DisplayPinCode(device dbus.ObjectPath, _ string) *dbus.Error {
	a.log.Error("received PIN code display request; displaying is unsupported and the "+
		"agent capability is probably misconfigured. Canceling pairing", a.describe(device)...)
	return bluez.Canceled("cannot display PIN code")
}

func (a *Agent) RequestPasskey(device dbus.ObjectPath) (uint32, *dbus.Error) {
	a.sspUnsupported("passkey request", device)
	return 0, bluez.Canceled("passkey entry unsupported")
}

// DisplayPasskey has no reply that could stop pairing, so it only logs and
// never fails, even when the device cannot be resolved.
func (a *Agent) DisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	fields := append(a.describe(device), zap.Uint32("passkey", passkey), zap.Uint16("entered", entered))
	a.log.Error("received passkey display request; Simple Secure Pairing is unsupported, ignoring", fields...)
	return nil
}

func (a *Agent) RequestConfirmation(device dbus.ObjectPath, passkey uint32) *dbus.Error {
	a.sspUnsupported("confirmation request", device, zap.Uint32("passkey", passkey))
	return bluez.Canceled("numeric comparison unsupported")
}

// RequestAuthorization accepts any device bluetoothd asks about, once it
// can be identified.
func (a *Agent) RequestAuthorization(device dbus.ObjectPath) *dbus.Error {
	dev, err := a.devices.Resolve(a.ctx, device)
	if err != nil {
		a.log.Error("cannot resolve device for authorization request", zap.String("device", string(device)), zap.Error(err))
		return bluez.FromError(err)
	}
	a.log.Info("authorizing device", deviceFields(dev)...)
	return nil
}

func (a *Agent) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	dev, err := a.devices.Resolve(a.ctx, device)
	if err != nil {
		a.log.Error("cannot resolve device for service authorization",
			zap.String("device", string(device)), zap.String("service", uuid), zap.Error(err))
		return bluez.FromError(err)
	}

	fields := append(deviceFields(dev), zap.String("service", uuid))
	if name := bluez.ServiceName(uuid); name != "" {
		fields = append(fields, zap.String("service_name", name))
	}

	if !a.policy.Authorizes(uuid) {
		a.log.Info("device wants to use service, denied", fields...)
		return bluez.Rejected("service not authorized")
	}
	a.log.Info("device wants to use service, permitted", fields...)
	return nil
}

func (a *Agent) Cancel() *dbus.Error {
	device, since, ok := a.pairing.clear()
	if !ok {
		a.log.Debug("spurious cancel with no pairing in progress, ignoring")
		return nil
	}
	fields := append(a.describe(device), zap.Duration("pending", a.now().Sub(since)))
	a.log.Info("device canceled pairing", fields...)
	return nil
}

func (a *Agent) sspUnsupported(what string, device dbus.ObjectPath, extra ...zap.Field) {
	fields := append(a.describe(device), extra...)
	a.log.Error("received "+what+" related to Simple Secure Pairing; this is unsupported. Canceling pairing", fields...)
}

// describe resolves device for a log line. Failures end up in the fields
// instead of the reply, for branches whose outcome does not depend on the
// device.
func (a *Agent) describe(device dbus.ObjectPath) []zap.Field {
	dev, err := a.devices.Resolve(a.ctx, device)
	if err != nil {
		return []zap.Field{zap.String("device", string(device)), zap.NamedError("resolve_error", err)}
	}
	return deviceFields(dev)
}

func deviceFields(dev bluez.Device) []zap.Field {
	fields := []zap.Field{
		zap.String("device", string(dev.Path)),
		zap.String("address", dev.Address),
	}
	if name := dev.DisplayName(); name != dev.Address {
		fields = append(fields, zap.String("name", name))
	}
	return fields
}
