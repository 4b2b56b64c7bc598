package connectors

import "context"

// Unconfigured is the stand-in for any integration without credentials.
// Every operation succeeds and does nothing, so cycle code can call
// connectors unconditionally.
type Unconfigured struct {
	name string
}

// NewUnconfigured returns a no-op connector with the given name.
func NewUnconfigured(name string) *Unconfigured {
	return &Unconfigured{name: name}
}

func (u *Unconfigured) Name() string     { return u.name }
func (u *Unconfigured) Configured() bool { return false }

func (u *Unconfigured) CheckNew(context.Context) (int, error)      { return 0, nil }
func (u *Unconfigured) Sync(context.Context) (SyncStats, error)    { return SyncStats{}, nil }
func (u *Unconfigured) ProcessQueue(context.Context) (int, error)  { return 0, nil }
func (u *Unconfigured) SendAlert(context.Context, string, string) error { return nil }

var (
	_ Inbound   = (*Unconfigured)(nil)
	_ Outbound  = (*Unconfigured)(nil)
	_ Publisher = (*Unconfigured)(nil)
	_ Notifier  = (*Unconfigured)(nil)
)
