package session

import "github.com/parcelxfer/parcel/scheduler"

// Default control and data ports, per spec §6.
const (
	DefaultControlPort = 7878
	DefaultDataPort    = 7879
)

// SendOptions configures a Send call. A zero value is valid: every
// field falls back to the plan/limits package defaults.
type SendOptions struct {
	BlockSize   uint32
	Concurrency uint8
	ControlPort int
	DataPort    int
}

func (o SendOptions) controlPort() int {
	if o.ControlPort != 0 {
		return o.ControlPort
	}
	return DefaultControlPort
}

func (o SendOptions) dataPort() int {
	if o.DataPort != 0 {
		return o.DataPort
	}
	return DefaultDataPort
}

// ReceiveOptions configures a Receive call.
type ReceiveOptions struct {
	Concurrency uint8
	ControlPort int
	DataPort    int

	// OnProgress, when set, is invoked once the Transfer Plan is known
	// and the Block Scheduler's Progress Counters exist, before Receive
	// blocks on completion. The CLI's progress renderer uses this hook
	// to start ticking against live counters, per spec §3's Progress
	// Counters being Receiver-local.
	OnProgress func(total uint64, prog *scheduler.Progress)
}

func (o ReceiveOptions) controlPort() int {
	if o.ControlPort != 0 {
		return o.ControlPort
	}
	return DefaultControlPort
}

func (o ReceiveOptions) dataPort() int {
	if o.DataPort != 0 {
		return o.DataPort
	}
	return DefaultDataPort
}
