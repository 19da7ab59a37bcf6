// Command bluegent is an unattended BlueZ pairing agent.
//
// It registers itself as the default org.bluez.Agent1 on the system bus,
// answers PIN-code requests with a fixed PIN and authorizes only the
// services listed in its policy file. Every pairing mode that would need a
// human to read or confirm a number is refused.
//
// Policy file (TOML, or YAML when the name ends in .yaml/.yml):
//
//	pin_code = "0000"
//	authorized_services = ["0000110a-0000-1000-8000-00805f9b34fb"]
//
// The path comes from --config, then $BLUEGENT_CONFIG, then /etc/bluegent.conf.
//
// Usage:
//
//	bluegent [--config PATH] [--log-level LEVEL] [--log-format console|json]
//	bluegent check-config [--config PATH]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bluegent: %v\n", err)
		os.Exit(1)
	}
}
