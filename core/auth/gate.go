// Package auth decides which portal a session may reach.
//
// Resolving a session takes two checks that complete independently: the identity provider reporting
// whether a session exists, then the "admin" claim of that session. A Gate holds both results and
// derives a single State from them, so no routing decision is ever made on half an answer.
package auth

import "sync"

// Routing destinations
const (
	SignInPath           = "/auth"
	StudentDashboardPath = "/student/dashboard"
	AdminDashboardPath   = "/admin/dashboard"
)

type State int

const (
	StateLoading State = iota
	StateDenied
	StateGrantedUser
	StateGrantedAdmin
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateDenied:
		return "denied"
	case StateGrantedUser:
		return "granted_user"
	case StateGrantedAdmin:
		return "granted_admin"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Decision is the outcome of a guarded route.
// While Loading, neither Allow nor Redirect is set.
type Decision struct {
	State    State  `json:"state"`
	Loading  bool   `json:"loading"`
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

// Ticket identifies one identity resolution. Claims resolved for a stale ticket are dropped.
type Ticket uint64

// Gate is safe for concurrent use.
type Gate struct {
	mu sync.Mutex

	generation     Ticket
	identityLoaded bool
	hasIdentity    bool
	claimResolved  bool
	isAdmin        bool
}

// IdentityLoaded records whether a session exists and resets any claim.
// The returned ticket must accompany the claim of that session.
func (g *Gate) IdentityLoaded(present bool) Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.generation++
	g.identityLoaded = true
	g.hasIdentity = present
	g.claimResolved = false
	g.isAdmin = false
	return g.generation
}

// ClaimResolved records the admin claim of the session identified by ticket.
// It reports false and changes nothing when the ticket is stale or no session exists.
func (g *Gate) ClaimResolved(ticket Ticket, isAdmin bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ticket != g.generation || !g.identityLoaded || !g.hasIdentity {
		return false
	}
	g.claimResolved = true
	g.isAdmin = isAdmin
	return true
}

// SignedOut returns the gate to the anonymous state.
func (g *Gate) SignedOut() {
	g.IdentityLoaded(false)
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case !g.identityLoaded:
		return StateLoading
	case !g.hasIdentity:
		return StateDenied
	case !g.claimResolved:
		return StateLoading
	case g.isAdmin:
		return StateGrantedAdmin
	default:
		return StateGrantedUser
	}
}

// AdminRoute decides access to an administrative destination.
// A valid session without the claim goes to the student dashboard, not to sign-in.
func (g *Gate) AdminRoute() Decision {
	st := g.State()
	switch st {
	case StateLoading:
		return Decision{State: st, Loading: true}
	case StateDenied:
		return Decision{State: st, Redirect: SignInPath}
	case StateGrantedUser:
		return Decision{State: st, Redirect: StudentDashboardPath}
	default:
		return Decision{State: st, Allow: true}
	}
}

// StudentRoute decides access to a destination open to any session.
func (g *Gate) StudentRoute() Decision {
	st := g.State()
	switch st {
	case StateLoading:
		return Decision{State: st, Loading: true}
	case StateDenied:
		return Decision{State: st, Redirect: SignInPath}
	default:
		return Decision{State: st, Allow: true}
	}
}
