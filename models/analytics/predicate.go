package analytics

import (
	"strings"
)

// Predicate is one independent parameterized condition. Queries are built
// from ordered predicate lists, never from interpolated strings, so the
// planner can add or drop joins without re-parsing anything and all caller
// data stays in Args.
type Predicate struct {
	Expr string
	Args []any
}

// andPredicates renders a predicate list as a single AND'd clause.
func andPredicates(preds []Predicate) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	exprs := make([]string, 0, len(preds))
	var args []any
	for _, p := range preds {
		exprs = append(exprs, p.Expr)
		args = append(args, p.Args...)
	}
	return strings.Join(exprs, " AND "), args
}

// escapeLike escapes user input used inside a LIKE pattern.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// prefixDisjunction compiles "starts-with any of prefixes" for a column.
func prefixDisjunction(column string, prefixes []string) Predicate {
	exprs := make([]string, 0, len(prefixes))
	args := make([]any, 0, len(prefixes))
	for _, p := range prefixes {
		exprs = append(exprs, column+" LIKE ?")
		args = append(args, escapeLike(p)+"%")
	}
	return Predicate{Expr: "(" + strings.Join(exprs, " OR ") + ")", Args: args}
}

// nullSafeExclusion compiles "column is not the excluded value", keeping
// rows whose column is unset: an unset classification cannot be positively
// known to be the excluded one.
func nullSafeExclusion(column string, value any) Predicate {
	return Predicate{
		Expr: "(" + column + " IS NULL OR " + column + " <> ?)",
		Args: []any{value},
	}
}

// nullSafePrefixExclusion is the LIKE form of nullSafeExclusion.
func nullSafePrefixExclusion(column string, prefix string) Predicate {
	return Predicate{
		Expr: "(" + column + " IS NULL OR " + column + " NOT LIKE ?)",
		Args: []any{escapeLike(prefix) + "%"},
	}
}
