package main

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"bluegent/internal/bluez"
	"bluegent/internal/policy"
)

func newCheckConfigCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:           "check-config",
		Short:         "Validate the policy file and print what it authorizes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := policy.ResolvePath(opts.configPath)
			pol, err := policy.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: %s\n", path)
			fmt.Fprintf(out, "pin_code: set (%d characters)\n", utf8.RuneCountInString(pol.PinCode()))

			services := pol.Services()
			if len(services) == 0 {
				fmt.Fprintln(out, "authorized_services: none, every service request will be rejected")
			} else {
				fmt.Fprintln(out, "authorized_services:")
				for _, s := range services {
					if name := bluez.ServiceName(s); name != "" {
						fmt.Fprintf(out, "  %s (%s)\n", s, name)
					} else {
						fmt.Fprintf(out, "  %s\n", s)
					}
				}
			}
			for _, w := range pol.Lint() {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
}
