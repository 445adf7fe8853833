package background

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu     sync.Mutex
	before time.Time
	calls  int
}

func (f *fakePurger) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.before = before
	f.calls++
	return 3, nil
}

func (f *fakePurger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTenants []uuid.UUID

func (f fakeTenants) ListActiveIDs(context.Context) ([]uuid.UUID, error) {
	return f, nil
}

type fakeInvoices struct {
	mu     sync.Mutex
	scopes []access.Scope
	failOn uuid.UUID
}

func (f *fakeInvoices) MarkOverdue(_ context.Context, scope access.Scope, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes = append(f.scopes, scope)
	if scope.TenantID() == f.failOn {
		return 0, errors.New("deadlock detected")
	}
	return 1, nil
}

func newTestScheduler(t *testing.T, invoices *fakeInvoices, tenants fakeTenants, purger *fakePurger) *JobScheduler {
	t.Helper()
	js, err := NewJobScheduler(purger, tenants, invoices, config.Default().Jobs, 30*24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = js.Stop() })
	return js
}

func TestJobScheduler_RegistersJobs(t *testing.T) {
	js := newTestScheduler(t, &fakeInvoices{}, nil, &fakePurger{})
	js.Start()

	for _, name := range []string{jobInvitationPurge, jobOverdueInvoices} {
		next, err := js.NextRun(name)
		require.NoError(t, err, name)
		assert.True(t, next.After(time.Now()), name)
	}
	_, err := js.NextRun("nope")
	assert.Error(t, err)
}

func TestJobScheduler_RejectsBadCron(t *testing.T) {
	_, err := NewJobScheduler(&fakePurger{}, nil, &fakeInvoices{}, config.JobsConfig{InvitationPurgeCron: "every now and then"}, time.Hour)
	assert.Error(t, err)
}

func TestPurgeExpiredInvitations_UsesRetentionCutoff(t *testing.T) {
	purger := &fakePurger{}
	js := newTestScheduler(t, &fakeInvoices{}, nil, purger)
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	js.now = func() time.Time { return now }

	require.NoError(t, js.PurgeExpiredInvitations(context.Background()))
	assert.Equal(t, now.Add(-30*24*time.Hour), purger.before)
}

func TestMarkOverdueInvoices_ScopesEachTenant(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	invoices := &fakeInvoices{failOn: b}
	js := newTestScheduler(t, invoices, fakeTenants{a, b, c}, &fakePurger{})

	err := js.MarkOverdueInvoices(context.Background())
	assert.Error(t, err)

	seen := map[uuid.UUID]bool{}
	for _, s := range invoices.scopes {
		assert.False(t, s.IsEmpty())
		assert.False(t, s.IsPublic())
		seen[s.TenantID()] = true
	}
	assert.Equal(t, map[uuid.UUID]bool{a: true, b: true, c: true}, seen)
}

func TestJobScheduler_ListsAndRunsJobsOnDemand(t *testing.T) {
	purger := &fakePurger{}
	js := newTestScheduler(t, &fakeInvoices{}, nil, purger)
	js.Start()

	jobs := js.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "invitation-purge", jobs[0].Name)
	assert.Equal(t, "overdue-invoices", jobs[1].Name)
	assert.NotNil(t, jobs[0].NextRun)

	require.NoError(t, js.RunNow("invitation-purge"))
	assert.Eventually(t, func() bool { return purger.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, js.RunNow("reindex"), ErrUnknownJob)
}
