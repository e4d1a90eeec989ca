package query

import (
	"fmt"
	"strings"
)

// Predicate is a node of a WHERE expression. Rendering binds every value
// through the binder so SQL text and arguments stay in lockstep.
type Predicate interface {
	render(b *binder) string
}

type binder struct {
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// Eq matches column = value.
func Eq(column string, value any) Predicate { return comparison{column, "=", value} }

// NotEq matches column <> value.
func NotEq(column string, value any) Predicate { return comparison{column, "<>", value} }

type comparison struct {
	column string
	op     string
	value  any
}

func (c comparison) render(b *binder) string {
	return fmt.Sprintf("%s %s %s", c.column, c.op, b.bind(c.value))
}

// ContainsAny matches rows where any column contains term, case-insensitively.
// LIKE wildcards in term are escaped and the pattern is bound once.
func ContainsAny(term string, columns ...string) Predicate {
	return containsAny{term: term, columns: columns}
}

type containsAny struct {
	term    string
	columns []string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (c containsAny) render(b *binder) string {
	placeholder := b.bind("%" + likeEscaper.Replace(c.term) + "%")
	parts := make([]string, len(c.columns))
	for i, col := range c.columns {
		parts[i] = fmt.Sprintf("%s ILIKE %s", col, placeholder)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// And joins predicates; an empty And renders as TRUE.
func And(preds ...Predicate) Predicate { return junction{op: " AND ", empty: "TRUE", preds: preds} }

// Or joins predicates; an empty Or renders as FALSE.
func Or(preds ...Predicate) Predicate { return junction{op: " OR ", empty: "FALSE", preds: preds} }

type junction struct {
	op    string
	empty string
	preds []Predicate
}

func (j junction) render(b *binder) string {
	if len(j.preds) == 0 {
		return j.empty
	}
	if len(j.preds) == 1 {
		return j.preds[0].render(b)
	}
	parts := make([]string, len(j.preds))
	for i, p := range j.preds {
		parts[i] = p.render(b)
	}
	return "(" + strings.Join(parts, j.op) + ")"
}

// Render produces the SQL text and bound arguments for p.
func Render(p Predicate) (string, []any) {
	b := &binder{}
	sql := p.render(b)
	return sql, b.args
}
