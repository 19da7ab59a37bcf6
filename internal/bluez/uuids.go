package bluez

import "strings"

// Well-known profile UUIDs, keyed in canonical lowercase form.
var serviceNames = map[string]string{
	"00001101-0000-1000-8000-00805f9b34fb": "Serial Port",
	"00001103-0000-1000-8000-00805f9b34fb": "Dialup Networking",
	"00001105-0000-1000-8000-00805f9b34fb": "OBEX Object Push",
	"00001106-0000-1000-8000-00805f9b34fb": "OBEX File Transfer",
	"00001108-0000-1000-8000-00805f9b34fb": "Headset",
	"0000110a-0000-1000-8000-00805f9b34fb": "Audio Source",
	"0000110b-0000-1000-8000-00805f9b34fb": "Audio Sink",
	"0000110c-0000-1000-8000-00805f9b34fb": "A/V Remote Control Target",
	"0000110d-0000-1000-8000-00805f9b34fb": "Advanced Audio Distribution",
	"0000110e-0000-1000-8000-00805f9b34fb": "A/V Remote Control",
	"00001112-0000-1000-8000-00805f9b34fb": "Headset Audio Gateway",
	"00001115-0000-1000-8000-00805f9b34fb": "PANU",
	"00001116-0000-1000-8000-00805f9b34fb": "NAP",
	"0000111e-0000-1000-8000-00805f9b34fb": "Handsfree",
	"0000111f-0000-1000-8000-00805f9b34fb": "Handsfree Audio Gateway",
	"00001124-0000-1000-8000-00805f9b34fb": "Human Interface Device",
	"0000112f-0000-1000-8000-00805f9b34fb": "Phonebook Access Server",
	"00001132-0000-1000-8000-00805f9b34fb": "Message Access Server",
	"00001200-0000-1000-8000-00805f9b34fb": "PnP Information",
	"00001800-0000-1000-8000-00805f9b34fb": "Generic Access",
	"00001801-0000-1000-8000-00805f9b34fb": "Generic Attribute",
	"0000180a-0000-1000-8000-00805f9b34fb": "Device Information",
	"0000180f-0000-1000-8000-00805f9b34fb": "Battery Service",
	"00001812-0000-1000-8000-00805f9b34fb": "Human Interface Device (GATT)",
}

// ServiceName returns a display name for a profile UUID, or "" when unknown.
// Lookup ignores case; it is for log lines only and never for policy.
func ServiceName(uuid string) string {
	return serviceNames[strings.ToLower(uuid)]
}
