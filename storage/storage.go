package storage

import (
	"errors"
	"time"

	"git.sr.ht/~mariusor/metis/plan"
)

// ErrNotFound is returned when an id matches no stored record.
var ErrNotFound = errors.New("record not found")

// DateCursor selects sessions relative to an anchor date: a positive
// duration looks forward, a negative one backward. Bounds are day
// granular and inclusive.
type DateCursor struct {
	T time.Time
	D time.Duration
}

func Cursor(st time.Time, d time.Duration) DateCursor {
	return DateCursor{
		T: st,
		D: d,
	}
}

// Bounds resolves the cursor into its first and last day.
func (c DateCursor) Bounds() (time.Time, time.Time) {
	lo, hi := plan.DateOf(c.T), plan.DateOf(c.T.Add(c.D))
	if hi.Before(lo) {
		lo, hi = hi, lo
	}
	return lo, hi
}

type TaskStore interface {
	SaveTasks(...plan.Task) error
	LoadTasks() (plan.Tasks, error)
	LoadTask(string) (plan.Task, error)
	RemoveTasks(...string) error
}

type CommitmentStore interface {
	SaveCommitments(...plan.Commitment) error
	LoadCommitments() (plan.Commitments, error)
	LoadCommitment(string) (plan.Commitment, error)
	RemoveCommitments(...string) error
}

type SessionStore interface {
	SaveSessions(...plan.Session) error
	LoadSessions(DateCursor) (plan.Sessions, error)
	RemovePendingSessions(time.Time) (int, error)
}

type Store interface {
	TaskStore
	CommitmentStore
	SessionStore
}
