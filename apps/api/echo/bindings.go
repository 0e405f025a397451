package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Mabu007/czane-beauty-academy/apps"
	"github.com/Mabu007/czane-beauty-academy/core"
)

const orderingParam = "ordering"

// bindOrdering parses ?ordering=field,-field into orderings over the fields accepted by the listing.
// A "-" prefix sorts descending. Unknown or empty fields are an *apps.ArgumentError.
func bindOrdering(ctx echo.Context, accepted map[string]string) ([]core.DBOrdering, error) {
	raw := strings.TrimSpace(ctx.QueryParam(orderingParam))
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	orderings := make([]core.DBOrdering, 0, len(parts))
	for _, part := range parts {
		field := strings.TrimSpace(part)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		canonical, ok := accepted[field]
		if !ok {
			return nil, apps.InvalidArgument(orderingParam, "cannot order by %q", field)
		}
		orderings = append(orderings, core.DBOrdering{Field: canonical, Ascending: !descending})
	}
	return orderings, nil
}
