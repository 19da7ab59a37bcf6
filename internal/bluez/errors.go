package bluez

import (
	"errors"

	dbus "github.com/godbus/dbus/v5"
)

// Error names returned to bluetoothd over the Agent1 interface.
const (
	errPrefix = "org.bluez.Error."

	ErrNameRejected         = errPrefix + "Rejected"
	ErrNameCanceled         = errPrefix + "Canceled"
	ErrNameInvalidArguments = errPrefix + "InvalidArguments"
	ErrNameAlreadyExists    = errPrefix + "AlreadyExists"
	ErrNameDoesNotExist     = errPrefix + "DoesNotExist"
)

func newError(name, msg string) *dbus.Error {
	return &dbus.Error{Name: name, Body: []interface{}{msg}}
}

// Rejected reports a policy denial.
func Rejected(msg string) *dbus.Error { return newError(ErrNameRejected, msg) }

// Canceled reports a flow this agent refuses to take part in.
func Canceled(msg string) *dbus.Error { return newError(ErrNameCanceled, msg) }

func InvalidArguments(msg string) *dbus.Error { return newError(ErrNameInvalidArguments, msg) }

func AlreadyExists(msg string) *dbus.Error { return newError(ErrNameAlreadyExists, msg) }

func DoesNotExist(msg string) *dbus.Error { return newError(ErrNameDoesNotExist, msg) }

// FromError converts err into a reply for the bus. A dbus.Error anywhere in
// the chain is passed through unchanged; anything else becomes
// org.freedesktop.DBus.Error.Failed.
func FromError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	var de *dbus.Error
	if errors.As(err, &de) {
		return de
	}
	var dv dbus.Error
	if errors.As(err, &dv) {
		return &dv
	}
	return dbus.MakeFailedError(err)
}
