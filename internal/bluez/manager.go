package bluez

import (
	"context"
	"fmt"

	dbus "github.com/godbus/dbus/v5"
)

// AgentManager is a thin proxy for org.bluez.AgentManager1.
type AgentManager struct {
	obj Caller
}

// NewAgentManager returns a proxy bound to the manager object at /org/bluez.
func NewAgentManager(objects ObjectFunc) *AgentManager {
	return &AgentManager{obj: objects(ManagerPath)}
}

// RegisterAgent registers the agent exported at path with the given capability.
func (m *AgentManager) RegisterAgent(ctx context.Context, path dbus.ObjectPath, capability string) error {
	if call := m.obj.CallWithContext(ctx, AgentManagerInterface+".RegisterAgent", 0, path, capability); call.Err != nil {
		return fmt.Errorf("bluez: RegisterAgent(%s, %s): %w", path, capability, call.Err)
	}
	return nil
}

// UnregisterAgent removes a previously registered agent.
func (m *AgentManager) UnregisterAgent(ctx context.Context, path dbus.ObjectPath) error {
	if call := m.obj.CallWithContext(ctx, AgentManagerInterface+".UnregisterAgent", 0, path); call.Err != nil {
		return fmt.Errorf("bluez: UnregisterAgent(%s): %w", path, call.Err)
	}
	return nil
}

// RequestDefaultAgent asks bluetoothd to route system-wide pairing requests to path.
func (m *AgentManager) RequestDefaultAgent(ctx context.Context, path dbus.ObjectPath) error {
	if call := m.obj.CallWithContext(ctx, AgentManagerInterface+".RequestDefaultAgent", 0, path); call.Err != nil {
		return fmt.Errorf("bluez: RequestDefaultAgent(%s): %w", path, call.Err)
	}
	return nil
}
