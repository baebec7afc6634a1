package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core"
)

const orderingParam = "ordering"

// updateMethods serve partial updates: blank fields keep their value, so PUT and PATCH behave alike.
var updateMethods = []string{http.MethodPut, http.MethodPatch}

// bindOrdering reads the "ordering" query param: comma-separated fields, "-" prefixed for descending.
// A field outside allowed, or given twice, is a validation error on "ordering".
func bindOrdering(ctx echo.Context, allowed ...string) ([]core.DBOrdering, error) {
	raw := strings.TrimSpace(ctx.QueryParam(orderingParam))
	if raw == "" {
		return nil, nil
	}

	seen := make(map[string]bool)
	orderings := make([]core.DBOrdering, 0)
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		ord := core.DBOrdering{Field: strings.TrimPrefix(field, "-"), Ascending: !strings.HasPrefix(field, "-")}
		if !isOneOf(ord.Field, allowed) {
			return nil, core.NewValidationError(nil, core.FieldError{
				Field: orderingParam,
				Error: "cannot order by " + strconv.Quote(ord.Field) + "; use one of " + strings.Join(allowed, ", "),
			})
		}
		if seen[ord.Field] {
			return nil, core.NewValidationError(nil, core.FieldError{
				Field: orderingParam,
				Error: strconv.Quote(ord.Field) + " is given twice",
			})
		}
		seen[ord.Field] = true
		orderings = append(orderings, ord)
	}
	return orderings, nil
}

func isOneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
