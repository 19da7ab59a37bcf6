package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	dbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bluegent/internal/bluez"
	"bluegent/internal/policy"
)

const (
	deviceA dbus.ObjectPath = "/org/bluez/hci0/dev_AA_AA_AA_AA_AA_AA"
	deviceB dbus.ObjectPath = "/org/bluez/hci0/dev_BB_BB_BB_BB_BB_BB"
	unknown dbus.ObjectPath = "/org/bluez/hci0/dev_00_00_00_00_00_00"

	audioSource = "0000110a-0000-1000-8000-00805f9b34fb"
	audioSink   = "0000110b-0000-1000-8000-00805f9b34fb"
)

var errUnknownObject = dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownObject", Body: []interface{}{"no such device"}}

// fakeDevices resolves the devices it knows and fails the rest like
// bluetoothd does for a stale path.
type fakeDevices struct {
	mu      sync.Mutex
	devices map[dbus.ObjectPath]bluez.Device
	calls   int
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{devices: map[dbus.ObjectPath]bluez.Device{
		deviceA: {Path: deviceA, Address: "AA:AA:AA:AA:AA:AA", Name: "Phone A"},
		deviceB: {Path: deviceB, Address: "BB:BB:BB:BB:BB:BB"},
	}}
}

func (f *fakeDevices) Resolve(ctx context.Context, path dbus.ObjectPath) (bluez.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return bluez.Device{}, err
	}
	dev, ok := f.devices[path]
	if !ok {
		return bluez.Device{}, fmt.Errorf("bluez: resolve %s: %w", path, errUnknownObject)
	}
	return dev, nil
}

func newTestAgent(t *testing.T, pin string, services ...string) (*Agent, *observer.ObservedLogs) {
	t.Helper()
	pol, err := policy.New(pin, services)
	require.NoError(t, err)
	core, logs := observer.New(zapcore.DebugLevel)
	return New(context.Background(), pol, newFakeDevices(), zap.New(core)), logs
}

func requireDBusError(t *testing.T, want string, got *dbus.Error) {
	t.Helper()
	require.NotNil(t, got, "expected %s", want)
	assert.Equal(t, want, got.Name)
}

func TestRequestPinCode(t *testing.T) {
	a, logs := newTestAgent(t, "0000")

	for _, dev := range []dbus.ObjectPath{deviceA, deviceB} {
		pin, derr := a.RequestPinCode(dev)
		require.Nil(t, derr)
		assert.Equal(t, "0000", pin)
	}

	entries := logs.FilterMessage("received PIN code request, answering with configured PIN").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "AA:AA:AA:AA:AA:AA", entries[0].ContextMap()["address"])
	assert.Equal(t, "Phone A", entries[0].ContextMap()["name"])
}

func TestRequestPinCodeVerbatim(t *testing.T) {
	for _, pin := range []string{"0000", "  spaced  ", "Ωmega", "1234567890abcdef"} {
		a, _ := newTestAgent(t, pin)
		got, derr := a.RequestPinCode(deviceA)
		require.Nil(t, derr)
		assert.Equal(t, pin, got)
	}
}

func TestRequestPinCodeResolveFailure(t *testing.T) {
	a, logs := newTestAgent(t, "0000")

	pin, derr := a.RequestPinCode(unknown)
	requireDBusError(t, errUnknownObject.Name, derr)
	assert.Empty(t, pin)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())

	// the attempt is still tracked for a later Cancel
	pending, ok := a.PendingDevice()
	assert.True(t, ok)
	assert.Equal(t, unknown, pending)
}

type emptyPolicy struct{}

func (emptyPolicy) PinCode() string        { return "" }
func (emptyPolicy) Authorizes(string) bool { return false }

func TestRequestPinCodeNeverEmpty(t *testing.T) {
	a := New(context.Background(), emptyPolicy{}, newFakeDevices(), nil)
	pin, derr := a.RequestPinCode(deviceA)
	requireDBusError(t, bluez.ErrNameCanceled, derr)
	assert.Empty(t, pin)
}

func TestInteractiveFlowsAlwaysCanceled(t *testing.T) {
	a, logs := newTestAgent(t, "0000", audioSource)

	for _, dev := range []dbus.ObjectPath{deviceA, deviceB, unknown, ""} {
		requireDBusError(t, bluez.ErrNameCanceled, a.DisplayPinCode(dev, "1234"))
		requireDBusError(t, bluez.ErrNameCanceled, a.DisplayPinCode(dev, ""))

		passkey, derr := a.RequestPasskey(dev)
		requireDBusError(t, bluez.ErrNameCanceled, derr)
		assert.Zero(t, passkey)

		for _, pk := range []uint32{0, 123456, 999999, ^uint32(0)} {
			requireDBusError(t, bluez.ErrNameCanceled, a.RequestConfirmation(dev, pk))
		}
	}

	assert.Equal(t, logs.Len(), logs.FilterLevelExact(zapcore.ErrorLevel).Len(),
		"unsupported flows log at error")
}

func TestDisplayPasskeyNeverFails(t *testing.T) {
	a, logs := newTestAgent(t, "0000")

	for _, dev := range []dbus.ObjectPath{deviceA, unknown, "garbage"} {
		for _, entered := range []uint16{0, 6, 7, ^uint16(0)} {
			assert.Nil(t, a.DisplayPasskey(dev, 123456, entered))
		}
	}

	withErr := logs.Filter(func(e observer.LoggedEntry) bool {
		_, ok := e.ContextMap()["resolve_error"]
		return ok
	})
	assert.Equal(t, 8, withErr.Len())
	_, pending := a.PendingDevice()
	assert.False(t, pending)
}

func TestRequestAuthorization(t *testing.T) {
	a, logs := newTestAgent(t, "0000")

	assert.Nil(t, a.RequestAuthorization(deviceA))
	assert.Equal(t, 1, logs.FilterMessage("authorizing device").Len())

	requireDBusError(t, errUnknownObject.Name, a.RequestAuthorization(unknown))
}

func TestAuthorizeService(t *testing.T) {
	a, logs := newTestAgent(t, "0000", audioSource, "abc")

	assert.Nil(t, a.AuthorizeService(deviceA, audioSource))
	assert.Nil(t, a.AuthorizeService(deviceB, "abc"))

	for _, u := range []string{audioSink, "ABC", "0000110A-0000-1000-8000-00805F9B34FB", "", "*"} {
		requireDBusError(t, bluez.ErrNameRejected, a.AuthorizeService(deviceA, u))
	}

	denied := logs.FilterMessage("device wants to use service, denied")
	assert.Equal(t, 5, denied.Len())
	assert.Equal(t, 5, denied.FilterLevelExact(zapcore.InfoLevel).Len())

	permitted := logs.FilterMessage("device wants to use service, permitted").All()
	require.Len(t, permitted, 2)
	assert.Equal(t, "Audio Source", permitted[0].ContextMap()["service_name"])
}

func TestAuthorizeServiceEmptyPolicy(t *testing.T) {
	a, _ := newTestAgent(t, "0000")
	for _, u := range []string{audioSource, audioSink, ""} {
		requireDBusError(t, bluez.ErrNameRejected, a.AuthorizeService(deviceA, u))
	}
}

func TestAuthorizeServiceResolveFailure(t *testing.T) {
	a, _ := newTestAgent(t, "0000", audioSource)
	requireDBusError(t, errUnknownObject.Name, a.AuthorizeService(unknown, audioSource))
}

func TestCancel(t *testing.T) {
	a, logs := newTestAgent(t, "0000")

	t.Run("idle", func(t *testing.T) {
		assert.Nil(t, a.Cancel())
		spurious := logs.FilterMessage("spurious cancel with no pairing in progress, ignoring")
		require.Equal(t, 1, spurious.Len())
		assert.Equal(t, zapcore.DebugLevel, spurious.All()[0].Level)
	})

	t.Run("after pin request", func(t *testing.T) {
		_, derr := a.RequestPinCode(deviceA)
		require.Nil(t, derr)
		pending, ok := a.PendingDevice()
		require.True(t, ok)
		assert.Equal(t, deviceA, pending)

		assert.Nil(t, a.Cancel())
		_, ok = a.PendingDevice()
		assert.False(t, ok)

		canceled := logs.FilterMessage("device canceled pairing").All()
		require.Len(t, canceled, 1)
		assert.Equal(t, string(deviceA), canceled[0].ContextMap()["device"])
		assert.Equal(t, zapcore.InfoLevel, canceled[0].Level)
	})

	t.Run("second cancel is spurious", func(t *testing.T) {
		assert.Nil(t, a.Cancel())
		assert.Equal(t, 2, logs.FilterMessage("spurious cancel with no pairing in progress, ignoring").Len())
	})
}

func TestCancelUnresolvableDevice(t *testing.T) {
	a, logs := newTestAgent(t, "0000")
	_, _ = a.RequestPinCode(unknown)
	assert.Nil(t, a.Cancel())
	assert.Equal(t, 1, logs.FilterMessage("device canceled pairing").Len())
}

func TestOnlyPinCodeChangesPairingState(t *testing.T) {
	a, _ := newTestAgent(t, "0000", audioSource)
	_, _ = a.RequestPinCode(deviceA)

	_ = a.DisplayPinCode(deviceB, "1234")
	_, _ = a.RequestPasskey(deviceB)
	_ = a.DisplayPasskey(deviceB, 1, 1)
	_ = a.RequestConfirmation(deviceB, 1)
	_ = a.RequestAuthorization(deviceB)
	_ = a.AuthorizeService(deviceB, audioSource)

	pending, ok := a.PendingDevice()
	require.True(t, ok)
	assert.Equal(t, deviceA, pending)

	// a new request replaces the slot
	_, _ = a.RequestPinCode(deviceB)
	pending, _ = a.PendingDevice()
	assert.Equal(t, deviceB, pending)
}

func TestCancelReportsPendingDuration(t *testing.T) {
	a, logs := newTestAgent(t, "0000")
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a.now = func() time.Time { return start }
	_, _ = a.RequestPinCode(deviceA)

	a.now = func() time.Time { return start.Add(3 * time.Second) }
	require.Nil(t, a.Cancel())

	canceled := logs.FilterMessage("device canceled pairing").All()
	require.Len(t, canceled, 1)
	assert.Equal(t, 3*time.Second, canceled[0].ContextMap()["pending"])
}

func TestRelease(t *testing.T) {
	a, logs := newTestAgent(t, "0000")

	select {
	case <-a.Released():
		t.Fatal("released before Release")
	default:
	}

	assert.Nil(t, a.Release())
	assert.Nil(t, a.Release())

	select {
	case <-a.Released():
	default:
		t.Fatal("Released not closed")
	}
	assert.Equal(t, 1, logs.FilterMessage("agent released by bluetoothd").Len())
}

func TestCanceledContextFailsResolution(t *testing.T) {
	pol, err := policy.New("0000", []string{audioSource})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := New(ctx, pol, newFakeDevices(), nil)

	_, derr := a.RequestPinCode(deviceA)
	requireDBusError(t, "org.freedesktop.DBus.Error.Failed", derr)
	assert.True(t, errors.Is(ctx.Err(), context.Canceled))
}

func TestEndToEnd(t *testing.T) {
	a, _ := newTestAgent(t, "0000", audioSource)

	pin, derr := a.RequestPinCode(deviceA)
	require.Nil(t, derr)
	assert.Equal(t, "0000", pin)

	assert.Nil(t, a.AuthorizeService(deviceA, audioSource))
	requireDBusError(t, bluez.ErrNameRejected, a.AuthorizeService(deviceA, audioSink))
	requireDBusError(t, bluez.ErrNameCanceled, a.DisplayPinCode(deviceA, "1234"))
}

func TestConcurrentCalls(t *testing.T) {
	a, _ := newTestAgent(t, "0000", audioSource)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dev := deviceA
			if i%2 == 1 {
				dev = deviceB
			}
			pin, derr := a.RequestPinCode(dev)
			assert.Nil(t, derr)
			assert.Equal(t, "0000", pin)
			assert.Nil(t, a.AuthorizeService(dev, audioSource))
			assert.NotNil(t, a.AuthorizeService(dev, audioSink))
			assert.Nil(t, a.Cancel())
		}(i)
	}
	wg.Wait()

	_, ok := a.PendingDevice()
	assert.False(t, ok)
}
