package supervisor

import (
	"context"

	"github.com/squadops/squadops/internal/rcon"
	"github.com/squadops/squadops/internal/registry"
	"github.com/squadops/squadops/internal/status"
)

// InstanceStatus merges the configured record with the live half of an
// instance's state. Live is only populated while the session is
// connected; individual live fields degrade independently.
type InstanceStatus struct {
	Instance   registry.Instance `json:"instance"`
	Running    bool              `json:"running"`
	PID        int               `json:"pid,omitempty"`
	Connection rcon.State        `json:"connection"`
	Live       *status.Live      `json:"live,omitempty"`
}

// Status reports the combined state of one instance.
func (m *Manager) Status(ctx context.Context, id int64) (InstanceStatus, error) {
	inst, err := m.registry.Instance(ctx, id)
	if err != nil {
		return InstanceStatus{}, err
	}

	st := InstanceStatus{
		Instance:   inst,
		Connection: rcon.StateDisconnected,
	}

	handle := m.handle(id)
	if handle == nil {
		return st, nil
	}

	st.Running = true
	st.PID = handle.PID()
	session := handle.sessionRef()
	if session != nil {
		st.Connection = session.State()
	}
	if st.Connection == rcon.StateConnected {
		live := status.Collect(id, session)
		st.Live = &live
	}
	return st, nil
}
