package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"

	dbus "github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"bluegent/internal/agent"
	"bluegent/internal/bluez"
	"bluegent/internal/logging"
	"bluegent/internal/policy"
)

const defaultObjectPath = "/org/bluegent/agent"

type options struct {
	configPath string
	logLevel   string
	logFormat  string
	objectPath string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	def := logging.Defaults()

	cmd := &cobra.Command{
		Use:           "bluegent",
		Short:         "Unattended BlueZ pairing agent",
		Long:          "bluegent registers as the default BlueZ pairing agent and answers pairing requests from a static policy.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(cmd.Context(), opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "policy file (default $"+policy.EnvPath+" or "+policy.DefaultPath+")")
	flags.StringVar(&opts.logLevel, "log-level", def.Level, "log level (debug|info|warn|error)")
	flags.StringVar(&opts.logFormat, "log-format", def.Format, "log format (console|json)")
	cmd.Flags().StringVar(&opts.objectPath, "object-path", defaultObjectPath, "D-Bus object path to export the agent at")

	cmd.AddCommand(newCheckConfigCommand(opts))
	return cmd
}

func runAgent(ctx context.Context, opts *options) error {
	log, err := logging.New(logging.Config{Level: opts.logLevel, Format: opts.logFormat})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	path := policy.ResolvePath(opts.configPath)
	pol, err := policy.Load(path)
	if err != nil {
		return err
	}
	for _, w := range pol.Lint() {
		log.Warn(w, zap.String("config", path))
	}
	log.Info("policy loaded", zap.String("config", path), zap.Int("authorized_services", len(pol.Services())))

	ctx, stop := signal.NotifyContext(ctx, unix.SIGINT, unix.SIGTERM)
	defer stop()

	sess, err := bluez.Connect(log.Named("bluez"))
	if err != nil {
		return err
	}
	defer sess.Close()

	ag := agent.New(ctx, pol, bluez.NewPropertyResolver(bluez.ConnObjects(sess.Conn())), log.Named("agent"))

	objectPath := dbus.ObjectPath(opts.objectPath)
	if err := sess.Publish(ctx, ag, bluez.SessionOptions{Path: objectPath}); err != nil {
		return fmt.Errorf("register agent: %w", err)
	}
	log.Info("ready", zap.String("path", string(objectPath)))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case <-ag.Released():
		// bluetoothd dropped us; exit so the supervisor can start a fresh registration.
		return errors.New("agent released by bluetoothd")
	case <-sess.Done():
		return errors.New("system bus connection lost")
	}
}
