package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/academia/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=field1,-field2`. Only the fields found in allowed are kept,
// renamed to their column name; e.g. {"startedAt": "started_at"}.
func (ord *Ordering) Bind(ctx echo.Context, allowed map[string]string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	seen := make([]string, 0, len(allowed))
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		col, ok := allowed[field]
		if !ok || strmangle.SetInclude(col, seen) {
			continue
		}
		seen = append(seen, col)
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: col, Ascending: !descending})
	}
}
