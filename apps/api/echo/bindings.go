package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/mahudhurio/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses the "ordering" query param ("field,-other") into DB orderings.
// fields maps the exposed names to their columns; anything not in it is
// dropped, so raw user input never reaches an ORDER BY clause.
func (ord *Ordering) Bind(ctx echo.Context, fields map[string]string) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		col, ok := fields[field]
		if !ok {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: col, Ascending: !descending})
	}
}
