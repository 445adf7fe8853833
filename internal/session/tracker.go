package session

import (
	"context"
	"sync"

	"reviewdesk/internal/access"
	"reviewdesk/internal/models"
)

// Resolver maps an identity to its profile, creating it on first sign-in.
type Resolver interface {
	ResolveOrCreate(ctx context.Context, identity models.Identity) (*models.Profile, error)
}

// ProfileState is the committed result of the latest identity change.
type ProfileState struct {
	Identity   *models.Identity
	Profile    *models.Profile
	Err        error
	Resolving  bool
	Generation uint64
}

// GuardInput feeds this state to the route guard.
func (s ProfileState) GuardInput(location string, required models.Role, publicEntry string, tenantSuspended bool) access.GuardInput {
	return access.GuardInput{
		Location:        location,
		Required:        required,
		Resolving:       s.Resolving,
		Authenticated:   s.Identity != nil,
		Profile:         s.Profile,
		TenantSuspended: tenantSuspended,
		PublicEntry:     publicEntry,
	}
}

// ProfileTracker resolves the profile for the current identity. Every
// identity change starts a new generation and cancels the lookup of the
// previous one; a lookup result is committed only while its generation is
// still the latest.
type ProfileTracker struct {
	resolver Resolver

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	state    ProfileState
	onCommit []func(ProfileState)
	wg       sync.WaitGroup
}

func NewProfileTracker(resolver Resolver) *ProfileTracker {
	return &ProfileTracker{resolver: resolver}
}

// OnCommit registers fn to run after each committed state change.
func (t *ProfileTracker) OnCommit(fn func(ProfileState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCommit = append(t.onCommit, fn)
}

// Track switches to identity (nil for signed out) and returns the new generation.
func (t *ProfileTracker) Track(ctx context.Context, identity *models.Identity) uint64 {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}

	if identity == nil {
		t.state = ProfileState{Generation: gen}
		state, hooks := t.state, t.hooks()
		t.mu.Unlock()
		notify(hooks, state)
		return gen
	}

	id := *identity
	lookupCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.state = ProfileState{Identity: &id, Resolving: true, Generation: gen}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer cancel()
		profile, err := t.resolver.ResolveOrCreate(lookupCtx, id)
		t.commit(gen, profile, err)
	}()
	return gen
}

func (t *ProfileTracker) commit(gen uint64, profile *models.Profile, err error) bool {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return false
	}
	t.state = ProfileState{
		Identity:   t.state.Identity,
		Profile:    profile,
		Err:        err,
		Generation: gen,
	}
	t.cancel = nil
	state, hooks := t.state, t.hooks()
	t.mu.Unlock()

	notify(hooks, state)
	return true
}

func (t *ProfileTracker) hooks() []func(ProfileState) {
	return append([]func(ProfileState){}, t.onCommit...)
}

func notify(hooks []func(ProfileState), state ProfileState) {
	for _, fn := range hooks {
		fn(state)
	}
}

// State returns the latest committed state.
func (t *ProfileTracker) State() ProfileState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until no lookup is in flight.
func (t *ProfileTracker) Wait() {
	t.wg.Wait()
}

// Follow tracks every identity change of store until the returned function is called.
func (t *ProfileTracker) Follow(ctx context.Context, store *Store) (stop func()) {
	unsubscribe := store.OnChange(func(e Event) {
		t.Track(ctx, e.Identity())
	})
	return func() {
		unsubscribe()
		t.Stop()
	}
}

// Stop abandons the lookup in flight. Its result is never committed, even
// when the resolver ignores cancellation.
func (t *ProfileTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.state.Resolving = false
}
