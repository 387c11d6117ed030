// Package query builds filter strings for the web features search endpoint.
//
// The endpoint accepts a boolean filter expression in its q parameter:
// terms joined by AND/OR, each term either field:value, field:start..end,
// or a negated -field:value. Values containing whitespace, quotes, colons,
// or parentheses are wrapped in double quotes with embedded quotes doubled.
//
// Example usage:
//
//	q := query.NewBuilder().
//		ByStatus(query.StatusNewly).
//		ByGroup("css")
//	filter := q.String()
//	// baseline_status:newly AND group:css
//
// Callers that already hold a rendered expression, or prefer a plain
// struct over chained calls, can pass a query.Raw or query.Predicates
// value anywhere a query.Input is accepted. Normalize renders all three
// shapes to the same canonical string; an empty query renders to "" and
// the server treats it as "match all".
package query
