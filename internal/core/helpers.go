package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// WhereBuilder accumulates AND-ed predicates with positional arguments.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "col = $n". Nil values and empty strings are skipped.
func (wb *WhereBuilder) Add(col string, val any) {
	switch v := val.(type) {
	case nil:
		return
	case string:
		if v == "" {
			return
		}
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", col, wb.argIndex))
	wb.args = append(wb.args, val)
	wb.argIndex++
}

// AddTimeRange appends the half-open interval from <= col < to.
func (wb *WhereBuilder) AddTimeRange(col string, from, to time.Time) {
	wb.conditions = append(wb.conditions,
		fmt.Sprintf("%s >= $%d AND %s < $%d", col, wb.argIndex, col, wb.argIndex+1))
	wb.args = append(wb.args, from, to)
	wb.argIndex += 2
}

// AddPrefix appends "expr LIKE $n" matching values that start with prefix.
// LIKE metacharacters in prefix match literally. Empty prefixes are skipped.
func (wb *WhereBuilder) AddPrefix(expr, prefix string) {
	if prefix == "" {
		return
	}
	wb.conditions = append(wb.conditions,
		fmt.Sprintf(`%s LIKE $%d ESCAPE '\'`, expr, wb.argIndex))
	wb.args = append(wb.args, escapeLike(prefix)+"%")
	wb.argIndex++
}

// Build returns the WHERE clause (with a leading space) and its arguments.
// With no conditions it returns "" and nil.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex returns the placeholder number the next argument will use.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// quoteIdentifier quotes a Postgres identifier, doubling embedded quotes.
func quoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
