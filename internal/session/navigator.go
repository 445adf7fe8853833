package session

import (
	"sync"

	"reviewdesk/internal/access"
	"reviewdesk/internal/models"
)

// Navigator runs the route guard for client-side navigation and remembers
// the last location it decided on, so following its own redirect does not
// evaluate the same location again.
type Navigator struct {
	PublicEntry string

	mu       sync.Mutex
	last     string
	lastGen  uint64
	decision access.Decision
	decided  bool
}

func NewNavigator(publicEntry string) *Navigator {
	return &Navigator{PublicEntry: publicEntry}
}

// Visit returns the guard decision for location under state. evaluated is
// false when the remembered decision for the same location and profile
// generation was returned instead. Loading decisions are never remembered.
func (n *Navigator) Visit(location string, required models.Role, state ProfileState, tenantSuspended bool) (decision access.Decision, evaluated bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.decided && n.lastGen == state.Generation && access.SameLocation(n.last, location) {
		return n.decision, false
	}

	decision = access.Evaluate(state.GuardInput(location, required, n.PublicEntry, tenantSuspended))
	if decision.Outcome == access.OutcomeLoading {
		n.decided = false
		return decision, true
	}
	n.last = location
	n.lastGen = state.Generation
	n.decision = decision
	n.decided = true
	return decision, true
}

// Reset forgets the remembered location.
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decided = false
	n.last = ""
}
