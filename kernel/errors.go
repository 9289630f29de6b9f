package kernel

import "github.com/kolkov/kernsync/internal/synch"

// Fatal conditions raised by the primitives. Errors returned by Run wrap
// one of these.
var (
	ErrReentrant      = synch.ErrReentrant
	ErrNotHeld        = synch.ErrNotHeld
	ErrNotOwner       = synch.ErrNotOwner
	ErrWaitNotHeld    = synch.ErrWaitNotHeld
	ErrWaitersPending = synch.ErrWaitersPending
	ErrLockHeld       = synch.ErrLockHeld
	ErrNegativeValue  = synch.ErrNegativeValue
	ErrNoThread       = synch.ErrNoThread
	ErrInconsistent   = synch.ErrInconsistent
)

// SyncError describes a fatal misuse of a primitive.
type SyncError = synch.SyncError
