package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedResolver answers each email only after its gate is released and
// ignores cancellation, so results can arrive late and out of order.
type gatedResolver struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls map[string]int
}

func newGatedResolver(emails ...string) *gatedResolver {
	r := &gatedResolver{gates: make(map[string]chan struct{}), calls: make(map[string]int)}
	for _, e := range emails {
		r.gates[e] = make(chan struct{})
	}
	return r
}

func (r *gatedResolver) release(email string) {
	close(r.gates[email])
}

func (r *gatedResolver) ResolveOrCreate(_ context.Context, identity models.Identity) (*models.Profile, error) {
	r.mu.Lock()
	gate := r.gates[identity.Email]
	r.calls[identity.Email]++
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if identity.Email == "missing@example.com" {
		return nil, common.ErrProfileNotFound
	}
	return &models.Profile{ID: identity.ID, Email: identity.Email, Role: models.RoleUser, Status: models.ProfileStatusActive}, nil
}

func identityFor(email string) *models.Identity {
	return &models.Identity{ID: uuid.NewSHA1(uuid.NameSpaceURL, []byte(email)), Email: email}
}

func TestProfileTracker_StaleResolutionsAreDiscarded(t *testing.T) {
	ctx := context.Background()
	resolver := newGatedResolver("a@example.com", "b@example.com", "c@example.com")
	tracker := NewProfileTracker(resolver)

	var mu sync.Mutex
	var committed []string
	tracker.OnCommit(func(s ProfileState) {
		mu.Lock()
		defer mu.Unlock()
		if s.Profile != nil {
			committed = append(committed, s.Profile.Email)
		}
	})

	tracker.Track(ctx, identityFor("a@example.com"))
	tracker.Track(ctx, identityFor("b@example.com"))
	genC := tracker.Track(ctx, identityFor("c@example.com"))

	resolver.release("c@example.com")
	require.Eventually(t, func() bool { return !tracker.State().Resolving }, time.Second, 5*time.Millisecond)

	// A and B finish after C and must not overwrite it.
	resolver.release("b@example.com")
	resolver.release("a@example.com")
	tracker.Wait()

	state := tracker.State()
	require.NotNil(t, state.Profile)
	assert.Equal(t, "c@example.com", state.Profile.Email)
	assert.Equal(t, genC, state.Generation)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"c@example.com"}, committed)
}

func TestProfileTracker_SignOutDiscardsInFlightLookup(t *testing.T) {
	ctx := context.Background()
	resolver := newGatedResolver("a@example.com")
	tracker := NewProfileTracker(resolver)

	tracker.Track(ctx, identityFor("a@example.com"))
	assert.True(t, tracker.State().Resolving)

	tracker.Track(ctx, nil)
	resolver.release("a@example.com")
	tracker.Wait()

	state := tracker.State()
	assert.Nil(t, state.Identity)
	assert.Nil(t, state.Profile)
	assert.False(t, state.Resolving)
}

func TestProfileTracker_CommitsErrors(t *testing.T) {
	tracker := NewProfileTracker(newGatedResolver())
	tracker.Track(context.Background(), identityFor("missing@example.com"))
	tracker.Wait()

	state := tracker.State()
	assert.True(t, errors.Is(state.Err, common.ErrProfileNotFound))
	assert.NotNil(t, state.Identity)
	assert.Nil(t, state.Profile)
}

func TestProfileTracker_FollowsStore(t *testing.T) {
	ctx := context.Background()
	store := NewStore(&fakeAuth{})
	require.NoError(t, store.Init(ctx, nil))
	resolver := newGatedResolver()
	tracker := NewProfileTracker(resolver)
	stop := tracker.Follow(ctx, store)

	require.NoError(t, store.Adopt(newSession("a@example.com")))
	require.NoError(t, store.Adopt(newSession("b@example.com")))
	require.NoError(t, store.Adopt(newSession("c@example.com")))
	store.Teardown()
	tracker.Wait()
	stop()

	state := tracker.State()
	require.NotNil(t, state.Profile)
	assert.Equal(t, "c@example.com", state.Profile.Email)
	assert.Equal(t, uint64(3), state.Generation)
}

func TestProfileTracker_StopDiscardsLateResult(t *testing.T) {
	ctx := context.Background()
	store := NewStore(&fakeAuth{})
	require.NoError(t, store.Init(ctx, nil))
	resolver := newGatedResolver("a@example.com")
	tracker := NewProfileTracker(resolver)

	commits := 0
	var mu sync.Mutex
	tracker.OnCommit(func(s ProfileState) {
		if s.Resolving || s.Identity == nil {
			return
		}
		mu.Lock()
		commits++
		mu.Unlock()
	})
	stop := tracker.Follow(ctx, store)

	require.NoError(t, store.Adopt(newSession("a@example.com")))
	store.Teardown()
	require.True(t, tracker.State().Resolving)

	stop()
	resolver.release("a@example.com")
	tracker.Wait()

	state := tracker.State()
	assert.Nil(t, state.Profile)
	assert.False(t, state.Resolving)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, commits)
}
