package boltdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage"
	bolt "go.etcd.io/bbolt"
)

type LoggerFn func(string, ...interface{})

// DefaultFile is the database file name inside the application path.
const DefaultFile = "metis.bdb"

var (
	rootBucket        = []byte("metis")
	bucketTasks       = []byte("tasks")
	bucketCommitments = []byte("commitments")
	bucketSessions    = []byte("sessions")
)

// Config
type Config struct {
	Path  string
	LogFn LoggerFn
	ErrFn LoggerFn
}

type repo struct {
	d    *bolt.DB
	root []byte
	path string
	log  LoggerFn
	err  LoggerFn
}

// New returns a bolt backed repository.
func New(c Config) *repo {
	b := repo{
		root: rootBucket,
		path: c.Path,
		log:  func(string, ...interface{}) {},
		err:  func(string, ...interface{}) {},
	}
	if c.ErrFn != nil {
		b.err = c.ErrFn
	}
	if c.LogFn != nil {
		b.log = c.LogFn
	}
	return &b
}

func (r *repo) open() error {
	var err error
	r.d, err = bolt.Open(r.path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("could not open db %s: %w", r.path, err)
	}
	err = r.d.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(r.root)
		if err != nil {
			return fmt.Errorf("unable to create root bucket %s: %w", r.root, err)
		}
		if !root.Writable() {
			return fmt.Errorf("non writeable root bucket %s", r.root)
		}
		for _, name := range [][]byte{bucketTasks, bucketCommitments, bucketSessions} {
			if _, err := root.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("unable to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	return err
}

// close closes the boltdb database if possible.
func (r *repo) close() error {
	if r.d == nil {
		return nil
	}
	return r.d.Close()
}

func (r *repo) flat(tx *bolt.Tx, name []byte) (*bolt.Bucket, error) {
	root := tx.Bucket(r.root)
	if root == nil {
		return nil, fmt.Errorf("invalid root bucket %s", r.root)
	}
	b := root.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("invalid bucket %s", name)
	}
	return b, nil
}

// SaveTasks
func (r *repo) SaveTasks(tasks ...plan.Task) error {
	if err := r.open(); err != nil {
		return err
	}
	defer r.close()

	return r.d.Update(func(tx *bolt.Tx) error {
		b, err := r.flat(tx, bucketTasks)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if t.ID == "" {
				return fmt.Errorf("refusing to save task %q without an id", t.Title)
			}
			raw, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("could not marshal task %s: %w", t.ID, err)
			}
			if err = b.Put([]byte(t.ID), raw); err != nil {
				return fmt.Errorf("could not store task %s: %w", t.ID, err)
			}
			r.log("saved task %s", t.ID)
		}
		return nil
	})
}

// LoadTasks
func (r *repo) LoadTasks() (plan.Tasks, error) {
	if err := r.open(); err != nil {
		return nil, err
	}
	defer r.close()

	tasks := make(plan.Tasks, 0)
	err := r.d.View(func(tx *bolt.Tx) error {
		b, err := r.flat(tx, bucketTasks)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, raw []byte) error {
			t := plan.Task{}
			if err := json.Unmarshal(raw, &t); err != nil {
				r.err("undecodable task %s: %s", k, err)
				return nil
			}
			tasks = append(tasks, t)
			return nil
		})
	})
	tasks.Sort()
	return tasks, err
}

// LoadTask
func (r *repo) LoadTask(id string) (plan.Task, error) {
	t := plan.Task{}
	if err := r.open(); err != nil {
		return t, err
	}
	defer r.close()

	err := r.d.View(func(tx *bolt.Tx) error {
		b, err := r.flat(tx, bucketTasks)
		if err != nil {
			return err
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
		}
		return json.Unmarshal(raw, &t)
	})
	return t, err
}

// RemoveTasks
func (r *repo) RemoveTasks(ids ...string) error {
	if err := r.open(); err != nil {
		return err
	}
	defer r.close()

	return r.d.Update(func(tx *bolt.Tx) error {
		b, err := r.flat(tx, bucketTasks)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if b.Get([]byte(id)) == nil {
				return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
			}
			if err = b.Delete([]byte(id)); err != nil {
				return fmt.Errorf("could not remove task %s: %w", id, err)
			}
		}
		return nil
	})
}

// SaveCommitments
func (r *repo) SaveCommitments(commitments ...plan.Commitment) error {
	if err := r.open(); err != nil {
		return err
	}
	defer r.close()

	return r.d.Update(func(tx *bolt.Tx) error {
		b, err := r.flat(tx, bucketCommitments)
		if err != nil {
			return err
		}
		for _, c := range commitments {
			if c.ID == "" {
				return fmt.Errorf("refusing to save commitment %q without an id", c.Label)
			}
			raw, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("could not marshal commitment %s: %w", c.ID, err)
			}
			if err = b.Put([]byte(c.ID), raw); err != nil {
				return fmt.Errorf("could not store commitment %s: %w", c.ID, err)
			}
			r.log("saved commitment %s", c.ID)
		}
		return nil
	})
}

// LoadCommitments
func (r *repo) LoadCommitments() (plan.Commitments, error) {
	if err := r.open(); err != nil {
		return nil, err
	}
	defer r.close()

	commitments := make(plan.Commitments, 0)
	err := r.d.View(func(tx *bolt.Tx) error {
		b, err := r.flat(tx, bucketCommitments)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, raw []byte) error {
			c := plan.Commitment{}
			if err := json.Unmarshal(raw, &c); err != nil {
				r.err("undecodable commitment %s: %s", k, err)
				return nil
			}
			commitments = append(commitments, c)
			return nil
		})
	})
	commitments.Sort()
	return commitments, err
}

// LoadCommitment
func (r *repo) LoadCommitment(id string) (plan.Commitment, error) {
	c := plan.Commitment{}
	if err := r.open(); err != nil {
		return c, err
	}
	defer r.close()

	err := r.d.View(func(tx *bolt.Tx) error {
		b, err := r.flat(tx, bucketCommitments)
		if err != nil {
			return err
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("commitment %s: %w", id, storage.ErrNotFound)
		}
		return json.Unmarshal(raw, &c)
	})
	return c, err
}

// RemoveCommitments
func (r *repo) RemoveCommitments(ids ...string) error {
	if err := r.open(); err != nil {
		return err
	}
	defer r.close()

	return r.d.Update(func(tx *bolt.Tx) error {
		b, err := r.flat(tx, bucketCommitments)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if b.Get([]byte(id)) == nil {
				return fmt.Errorf("commitment %s: %w", id, storage.ErrNotFound)
			}
			if err = b.Delete([]byte(id)); err != nil {
				return fmt.Errorf("could not remove commitment %s: %w", id, err)
			}
		}
		return nil
	})
}

// sessions live in a yy/mm/dd bucket tree so date ranges turn into
// partial tree walks
func sessionPath(date time.Time) [][]byte {
	return [][]byte{
		[]byte(date.Format("06")),
		[]byte(date.Format("01")),
		[]byte(date.Format("02")),
	}
}

// descendInBucket walks down the path segments, optionally creating the
// buckets along the way.
func descendInBucket(root *bolt.Bucket, path [][]byte, create bool) (*bolt.Bucket, error) {
	if root == nil {
		return nil, fmt.Errorf("trying to descend into nil bucket")
	}
	b := root
	for _, name := range path {
		var cb *bolt.Bucket
		var err error
		if create {
			if cb, err = b.CreateBucketIfNotExists(name); err != nil {
				return nil, fmt.Errorf("unable to create bucket %s: %w", name, err)
			}
		} else {
			cb = b.Bucket(name)
		}
		if cb == nil {
			return nil, nil
		}
		b = cb
	}
	return b, nil
}

// descendToLastCommonBucket follows the shared prefix of the two bounds,
// leaving only the segments where they diverge.
func descendToLastCommonBucket(root *bolt.Bucket, min, max [][]byte) (*bolt.Bucket, [][]byte, [][]byte) {
	b := root
	for len(min) > 0 && len(max) > 0 && bytes.Equal(min[0], max[0]) {
		cb := b.Bucket(min[0])
		if cb == nil {
			return nil, min, max
		}
		b = cb
		min, max = min[1:], max[1:]
	}
	return b, min, max
}

// loadFromBucketRecursive walks the subtree in key order. The bounds
// only constrain the levels where they apply: inside a boundary bucket
// the remaining segments are passed down, everywhere else the walk is
// unbounded.
func (r *repo) loadFromBucketRecursive(b *bolt.Bucket, min, max [][]byte, sessions *plan.Sessions) {
	var lo, hi []byte
	if len(min) > 0 {
		lo = min[0]
	}
	if len(max) > 0 {
		hi = max[0]
	}
	c := b.Cursor()
	first := func() ([]byte, []byte) {
		if lo != nil {
			return c.Seek(lo)
		}
		return c.First()
	}
	for key, raw := first(); key != nil; key, raw = c.Next() {
		if hi != nil && bytes.Compare(key, hi) > 0 {
			break
		}
		if raw == nil {
			child := b.Bucket(key)
			if child == nil {
				continue
			}
			var cmin, cmax [][]byte
			if lo != nil && bytes.Equal(key, lo) {
				cmin = min[1:]
			}
			if hi != nil && bytes.Equal(key, hi) {
				cmax = max[1:]
			}
			r.loadFromBucketRecursive(child, cmin, cmax, sessions)
			continue
		}
		s := plan.Session{}
		if err := json.Unmarshal(raw, &s); err != nil {
			r.err("undecodable session %s: %s", key, err)
			continue
		}
		if s.IsValid() {
			*sessions = append(*sessions, s)
		}
	}
}

// SaveSessions
func (r *repo) SaveSessions(sessions ...plan.Session) error {
	if err := r.open(); err != nil {
		return err
	}
	defer r.close()

	return r.d.Update(func(tx *bolt.Tx) error {
		root, err := r.flat(tx, bucketSessions)
		if err != nil {
			return err
		}
		for _, s := range sessions {
			if s.ID == "" || !s.IsValid() {
				return fmt.Errorf("refusing to save invalid session %q", s.Label)
			}
			b, err := descendInBucket(root, sessionPath(s.Date), true)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("could not marshal session %s: %w", s.ID, err)
			}
			if err = b.Put([]byte(s.ID), raw); err != nil {
				return fmt.Errorf("could not store session %s: %w", s.ID, err)
			}
			r.log("saved session %s on %s", s.ID, s.Date.Format("2006-01-02"))
		}
		return nil
	})
}

// LoadSessions
func (r *repo) LoadSessions(cursor storage.DateCursor) (plan.Sessions, error) {
	if err := r.open(); err != nil {
		return nil, err
	}
	defer r.close()

	lo, hi := cursor.Bounds()
	sessions := make(plan.Sessions, 0)
	err := r.d.View(func(tx *bolt.Tx) error {
		root, err := r.flat(tx, bucketSessions)
		if err != nil {
			return err
		}
		b, min, max := descendToLastCommonBucket(root, sessionPath(lo), sessionPath(hi))
		if b == nil {
			return nil
		}
		r.loadFromBucketRecursive(b, min, max, &sessions)
		return nil
	})
	sessions.Sort()
	return sessions, err
}

// RemovePendingSessions drops every pending session dated on or after
// the given day, leaving completed and missed ones as history. It
// reports how many entries went away.
func (r *repo) RemovePendingSessions(from time.Time) (int, error) {
	if err := r.open(); err != nil {
		return 0, err
	}
	defer r.close()

	lo := plan.DateOf(from)
	removed := 0
	err := r.d.Update(func(tx *bolt.Tx) error {
		root, err := r.flat(tx, bucketSessions)
		if err != nil {
			return err
		}
		return r.removePendingRecursive(root, sessionPath(lo), &removed)
	})
	return removed, err
}

func (r *repo) removePendingRecursive(b *bolt.Bucket, min [][]byte, removed *int) error {
	var lo []byte
	if len(min) > 0 {
		lo = min[0]
	}
	c := b.Cursor()
	first := func() ([]byte, []byte) {
		if lo != nil {
			return c.Seek(lo)
		}
		return c.First()
	}
	for key, raw := first(); key != nil; key, raw = c.Next() {
		if raw == nil {
			child := b.Bucket(key)
			if child == nil {
				continue
			}
			var cmin [][]byte
			if lo != nil && bytes.Equal(key, lo) {
				cmin = min[1:]
			}
			if err := r.removePendingRecursive(child, cmin, removed); err != nil {
				return err
			}
			continue
		}
		s := plan.Session{}
		if err := json.Unmarshal(raw, &s); err != nil {
			r.err("undecodable session %s: %s", key, err)
			continue
		}
		if s.Status != plan.StatusPending {
			continue
		}
		if err := c.Delete(); err != nil {
			return fmt.Errorf("could not remove session %s: %w", key, err)
		}
		*removed++
	}
	return nil
}
