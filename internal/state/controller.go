// Package state holds the client-side application state: the bug list, a
// loading flag and the last error, kept in sync with the server by reloading
// after every successful mutation.
package state

import (
	"context"
	"slices"
	"sync"

	"github.com/joescharf/bugs/internal/models"
)

// BugAPI is the subset of the client data layer the controller drives.
type BugAPI interface {
	ListBugs(ctx context.Context) ([]*models.Bug, error)
	CreateBug(ctx context.Context, in models.BugInput) (*models.Bug, error)
	UpdateBug(ctx context.Context, id string, in models.BugInput) (*models.Bug, error)
	DeleteBug(ctx context.Context, id string) error
}

// State is a point-in-time view of the controller.
type State struct {
	Bugs    []*models.Bug
	Loading bool
	Err     string
}

// Controller owns State. All methods are safe for concurrent use.
type Controller struct {
	api BugAPI

	mu       sync.Mutex
	state    State
	seq      uint64
	onChange func(State)
}

// NewController returns a controller in the initial loading state. Call Load
// to populate it.
func NewController(api BugAPI) *Controller {
	return &Controller{
		api:   api,
		state: State{Bugs: []*models.Bug{}, Loading: true},
	}
}

// OnChange registers fn to receive a snapshot after every state transition.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Bugs = slices.Clone(c.state.Bugs)
	return s
}

// update applies fn under the lock and notifies the change callback.
func (c *Controller) update(fn func(s *State) bool) {
	c.mu.Lock()
	if !fn(&c.state) {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(snap)
	}
}

// Load fetches the full list. Each call takes a new sequence number and only
// the most recently issued load may write its result; responses from older
// loads are dropped. On failure the previous list is kept.
func (c *Controller) Load(ctx context.Context) error {
	var token uint64
	c.update(func(s *State) bool {
		c.seq++
		token = c.seq
		s.Loading = true
		s.Err = ""
		return true
	})

	bugs, err := c.api.ListBugs(ctx)

	c.update(func(s *State) bool {
		if token != c.seq {
			return false
		}
		if err != nil {
			s.Err = err.Error()
		} else {
			s.Bugs = bugs
		}
		s.Loading = false
		return true
	})
	return err
}

// Create submits a new bug and reloads on success.
func (c *Controller) Create(ctx context.Context, in models.BugInput) error {
	if _, err := c.api.CreateBug(ctx, in); err != nil {
		c.fail(err)
		return err
	}
	return c.Load(ctx)
}

// Update replaces a bug and reloads on success.
func (c *Controller) Update(ctx context.Context, id string, in models.BugInput) error {
	if _, err := c.api.UpdateBug(ctx, id, in); err != nil {
		c.fail(err)
		return err
	}
	return c.Load(ctx)
}

// Delete removes a bug and reloads on success.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.api.DeleteBug(ctx, id); err != nil {
		c.fail(err)
		return err
	}
	return c.Load(ctx)
}

func (c *Controller) fail(err error) {
	c.update(func(s *State) bool {
		s.Err = err.Error()
		return true
	})
}
