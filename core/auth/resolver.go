package auth

import "context"

type (
	// IdentitySource reports whether a session exists, blocking until the provider knows.
	IdentitySource interface {
		Identity(ctx context.Context) (uid string, ok bool, err error)
	}

	// ClaimSource reads the admin claim of a session.
	// forceRefresh bypasses any cached token.
	ClaimSource interface {
		AdminClaim(ctx context.Context, uid string, forceRefresh bool) (bool, error)
	}
)

// ResolveAdminRoute runs both checks in order and returns the decision for an administrative destination.
// The claim is always read with a forced refresh. A failed claim read counts as "not admin".
// When ctx ends before both checks complete the decision stays Loading.
func ResolveAdminRoute(ctx context.Context, ids IdentitySource, claims ClaimSource) Decision {
	return resolve(ctx, ids, claims).AdminRoute()
}

// ResolveStudentRoute is ResolveAdminRoute for destinations open to any session.
func ResolveStudentRoute(ctx context.Context, ids IdentitySource, claims ClaimSource) Decision {
	return resolve(ctx, ids, claims).StudentRoute()
}

func resolve(ctx context.Context, ids IdentitySource, claims ClaimSource) *Gate {
	gate := new(Gate)

	uid, ok, err := ids.Identity(ctx)
	if ctx.Err() != nil {
		return gate
	}
	if err != nil {
		ok = false
	}
	ticket := gate.IdentityLoaded(ok)
	if !ok {
		return gate
	}

	isAdmin, err := claims.AdminClaim(ctx, uid, true /* forceRefresh */)
	if ctx.Err() != nil {
		return gate
	}
	gate.ClaimResolved(ticket, err == nil && isAdmin)
	return gate
}

// CosmeticIsAdmin reads the admin claim without forcing a refresh.
// Only for decisions that grant nothing, such as which dashboard link to show.
func CosmeticIsAdmin(ctx context.Context, ids IdentitySource, claims ClaimSource) bool {
	uid, ok, err := ids.Identity(ctx)
	if err != nil || !ok {
		return false
	}
	isAdmin, err := claims.AdminClaim(ctx, uid, false /* forceRefresh */)
	return err == nil && isAdmin
}

// DashboardPath is the portal a session lands on.
func DashboardPath(isAdmin bool) string {
	if isAdmin {
		return AdminDashboardPath
	}
	return StudentDashboardPath
}
