package bluez

import (
	"context"
	"errors"
	"fmt"
	"sync"

	dbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"go.uber.org/zap"
)

// SessionOptions controls how the agent is published.
type SessionOptions struct {
	// Path is the object path the agent is exported at. Required.
	Path dbus.ObjectPath
	// Capability is passed to RegisterAgent. Defaults to NoInputNoOutput.
	Capability string
}

// Session owns the system bus connection that serves an Agent1 handler.
// The agent stays registered until Close.
type Session struct {
	mu     sync.Mutex
	closed bool

	bus  *dbus.Conn
	path dbus.ObjectPath
	log  *zap.Logger

	// cleanup functions to release resources in Close (executed once, in reverse order).
	cleanup []func()
}

// Connect opens a private connection to the system bus.
func Connect(log *zap.Logger) (*Session, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: connect system bus: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{bus: conn, log: log}
	// Close the bus last during cleanup.
	s.cleanup = append(s.cleanup, func() { _ = conn.Close() })
	return s, nil
}

// Publish exports handler at opts.Path, registers it with bluetoothd and
// requests default-agent status. Both registration steps are fatal: the
// caller is expected to Close the session and exit on error.
func (s *Session) Publish(ctx context.Context, handler interface{}, opts SessionOptions) error {
	if opts.Path == "" || !opts.Path.IsValid() {
		return fmt.Errorf("bluez: invalid agent object path %q", opts.Path)
	}
	if opts.Capability == "" {
		opts.Capability = CapabilityNoInputNoOutput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("bluez: session closed")
	}
	if s.path != "" {
		return fmt.Errorf("bluez: agent already published at %s", s.path)
	}
	s.path = opts.Path

	if err := s.exportLocked(handler); err != nil {
		return err
	}

	mgr := NewAgentManager(ConnObjects(s.bus))

	s.log.Debug("registering agent", zap.String("path", string(opts.Path)), zap.String("capability", opts.Capability))
	if err := mgr.RegisterAgent(ctx, opts.Path, opts.Capability); err != nil {
		return err
	}
	log := s.log
	s.cleanup = append(s.cleanup, func() {
		if err := mgr.UnregisterAgent(context.Background(), opts.Path); err != nil {
			log.Warn("unregister agent failed", zap.Error(err))
		}
	})

	s.log.Debug("requesting default agent", zap.String("path", string(opts.Path)))
	return mgr.RequestDefaultAgent(ctx, opts.Path)
}

func (s *Session) exportLocked(handler interface{}) error {
	if err := s.bus.Export(handler, s.path, AgentInterface); err != nil {
		return fmt.Errorf("bluez: export agent: %w", err)
	}
	node := &introspect.Node{
		Name: string(s.path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{Name: AgentInterface, Methods: introspect.Methods(handler)},
		},
	}
	if err := s.bus.Export(introspect.NewIntrospectable(node), s.path, "org.freedesktop.DBus.Introspectable"); err != nil {
		_ = s.bus.Export(nil, s.path, AgentInterface)
		return fmt.Errorf("bluez: export introspection: %w", err)
	}
	s.cleanup = append(s.cleanup, func() {
		_ = s.bus.Export(nil, s.path, "org.freedesktop.DBus.Introspectable")
		_ = s.bus.Export(nil, s.path, AgentInterface)
	})
	return nil
}

// Conn returns the underlying bus connection, e.g. for building a resolver.
func (s *Session) Conn() *dbus.Conn { return s.bus }

// Path returns the object path the agent is exported at.
func (s *Session) Path() dbus.ObjectPath { return s.path }

// Done is closed when the bus connection is lost.
func (s *Session) Done() <-chan struct{} { return s.bus.Context().Done() }

// Close unregisters the agent and closes the bus. Safe for concurrent and
// redundant calls.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cleanup := s.cleanup
	s.cleanup = nil
	s.mu.Unlock()

	for i := len(cleanup) - 1; i >= 0; i-- {
		if cleanup[i] != nil {
			cleanup[i]()
		}
	}
	return nil
}
