package tenancy

import (
	"fmt"
	"strings"
)

// Query is a SELECT under construction. Conditions use ? placeholders which
// SQL renumbers to $n in order. Each condition is rendered in its own
// parentheses so that an OR inside it cannot reach the tenant predicate.
type Query struct {
	base    string
	scope   string
	conds   []string
	args    []interface{}
	orderBy string
	limit   int
	offset  int
	paged   bool
}

// Select starts a query from a base statement without WHERE clause
func Select(base string) *Query {
	return &Query{base: base}
}

// Where adds a condition joined with AND
func (q *Query) Where(cond string, args ...interface{}) *Query {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, args...)
	return q
}

// OrderBy sets the ORDER BY clause
func (q *Query) OrderBy(clause string) *Query {
	q.orderBy = clause
	return q
}

// Page adds LIMIT and OFFSET
func (q *Query) Page(limit, offset int) *Query {
	q.limit, q.offset, q.paged = limit, offset, true
	return q
}

// SQL renders the statement and its positional arguments
func (q *Query) SQL() (string, []interface{}) {
	var b strings.Builder
	b.WriteString(q.base)
	args := append([]interface{}(nil), q.args...)

	var parts []string
	if q.scope != "" {
		parts = append(parts, q.scope)
	}
	for _, cond := range q.conds {
		parts = append(parts, "("+cond+")")
	}
	if len(parts) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(parts, " AND "))
	}
	if q.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.orderBy)
	}
	if q.paged {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.limit, q.offset)
	}
	return renumber(b.String()), args
}

func renumber(stmt string) string {
	var b strings.Builder
	n := 0
	for _, r := range stmt {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// scoped returns a copy of q led by the tenant predicate pred
func (q *Query) scoped(pred string, args ...interface{}) *Query {
	return &Query{
		base:    q.base,
		scope:   pred,
		conds:   append([]string(nil), q.conds...),
		args:    append(append([]interface{}(nil), args...), q.args...),
		orderBy: q.orderBy,
		limit:   q.limit,
		offset:  q.offset,
		paged:   q.paged,
	}
}
