package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/bugs/internal/models"
)

// fakeAPI is an in-memory BugAPI. listFn, when set, overrides ListBugs.
type fakeAPI struct {
	mu     sync.Mutex
	bugs   []*models.Bug
	nextID int
	calls  []string

	listFn   func(ctx context.Context) ([]*models.Bug, error)
	failWith error
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) ListBugs(ctx context.Context) ([]*models.Bug, error) {
	f.record("list")
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Bug, len(f.bugs))
	copy(out, f.bugs)
	return out, nil
}

func (f *fakeAPI) CreateBug(ctx context.Context, in models.BugInput) (*models.Bug, error) {
	f.record("create")
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	status := in.Status
	if status == "" {
		status = models.BugStatusOpen
	}
	b := &models.Bug{ID: fmt.Sprint(f.nextID), Title: in.Title, Description: in.Description, Status: status}
	f.bugs = append([]*models.Bug{b}, f.bugs...)
	return b, nil
}

func (f *fakeAPI) UpdateBug(ctx context.Context, id string, in models.BugInput) (*models.Bug, error) {
	f.record("update")
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bugs {
		if b.ID == id {
			b.Title, b.Description, b.Status = in.Title, in.Description, in.Status
			return b, nil
		}
	}
	return nil, errors.New("Bug not found")
}

func (f *fakeAPI) DeleteBug(ctx context.Context, id string) error {
	f.record("delete")
	if f.failWith != nil {
		return f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.bugs {
		if b.ID == id {
			f.bugs = append(f.bugs[:i], f.bugs[i+1:]...)
			return nil
		}
	}
	return errors.New("Bug not found")
}

func TestNewController_InitialState(t *testing.T) {
	c := NewController(&fakeAPI{})
	s := c.Snapshot()
	assert.True(t, s.Loading)
	assert.Empty(t, s.Err)
	assert.Empty(t, s.Bugs)
}

func TestLoad(t *testing.T) {
	api := &fakeAPI{}
	c := NewController(api)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx))
	s := c.Snapshot()
	assert.False(t, s.Loading)
	assert.Empty(t, s.Bugs)

	_, _ = api.CreateBug(ctx, models.BugInput{Title: "t", Description: "d"})
	require.NoError(t, c.Load(ctx))
	assert.Len(t, c.Snapshot().Bugs, 1)
}

func TestLoad_FailureKeepsList(t *testing.T) {
	api := &fakeAPI{}
	c := NewController(api)
	ctx := context.Background()

	require.NoError(t, c.Create(ctx, models.BugInput{Title: "t", Description: "d"}))
	require.Len(t, c.Snapshot().Bugs, 1)

	api.listFn = func(context.Context) ([]*models.Bug, error) {
		return nil, errors.New("API error")
	}
	err := c.Load(ctx)
	require.Error(t, err)

	s := c.Snapshot()
	assert.Equal(t, "API error", s.Err)
	assert.False(t, s.Loading)
	assert.Len(t, s.Bugs, 1, "previous list is kept")

	// A later successful load clears the error.
	api.listFn = nil
	require.NoError(t, c.Load(ctx))
	assert.Empty(t, c.Snapshot().Err)
}

func TestMutations_ReloadOnSuccess(t *testing.T) {
	api := &fakeAPI{}
	c := NewController(api)
	ctx := context.Background()

	require.NoError(t, c.Create(ctx, models.BugInput{Title: "t", Description: "d"}))
	id := c.Snapshot().Bugs[0].ID

	require.NoError(t, c.Update(ctx, id, models.BugInput{Title: "t2", Description: "d", Status: models.BugStatusResolved}))
	s := c.Snapshot()
	assert.Equal(t, "t2", s.Bugs[0].Title)
	assert.Equal(t, models.BugStatusResolved, s.Bugs[0].Status)

	require.NoError(t, c.Delete(ctx, id))
	assert.Empty(t, c.Snapshot().Bugs)

	assert.Equal(t, []string{"create", "list", "update", "list", "delete", "list"}, api.calls)
}

func TestMutations_FailureSetsErrorWithoutReload(t *testing.T) {
	api := &fakeAPI{failWith: errors.New("Title is required.")}
	c := NewController(api)
	ctx := context.Background()

	assert.Error(t, c.Create(ctx, models.BugInput{}))
	assert.Equal(t, "Title is required.", c.Snapshot().Err)

	api.failWith = errors.New("Bug not found")
	assert.Error(t, c.Update(ctx, "x", models.BugInput{}))
	assert.Equal(t, "Bug not found", c.Snapshot().Err)
	assert.Error(t, c.Delete(ctx, "x"))

	assert.Equal(t, []string{"create", "update", "delete"}, api.calls, "no reload after a failed mutation")
}

func TestLoad_StaleResponseDiscarded(t *testing.T) {
	stale := []*models.Bug{{ID: "old", Title: "stale"}}
	fresh := []*models.Bug{{ID: "new", Title: "fresh"}}

	release := make(chan struct{})
	started := make(chan struct{})
	var n int
	var mu sync.Mutex

	api := &fakeAPI{}
	api.listFn = func(context.Context) ([]*models.Bug, error) {
		mu.Lock()
		n++
		call := n
		mu.Unlock()
		if call == 1 {
			close(started)
			<-release
			return stale, nil
		}
		return fresh, nil
	}

	c := NewController(api)
	ctx := context.Background()

	done := make(chan error)
	go func() { done <- c.Load(ctx) }()
	<-started

	require.NoError(t, c.Load(ctx))
	close(release)
	require.NoError(t, <-done)

	s := c.Snapshot()
	require.Len(t, s.Bugs, 1)
	assert.Equal(t, "fresh", s.Bugs[0].Title)
	assert.False(t, s.Loading)
}

func TestOnChange(t *testing.T) {
	c := NewController(&fakeAPI{})

	var states []State
	c.OnChange(func(s State) { states = append(states, s) })

	require.NoError(t, c.Load(context.Background()))
	require.Len(t, states, 2)
	assert.True(t, states[0].Loading)
	assert.False(t, states[1].Loading)
}

func TestSnapshot_IsCopy(t *testing.T) {
	c := NewController(&fakeAPI{})
	ctx := context.Background()
	require.NoError(t, c.Create(ctx, models.BugInput{Title: "t", Description: "d"}))

	s := c.Snapshot()
	s.Bugs[0] = nil
	assert.NotNil(t, c.Snapshot().Bugs[0])
}
