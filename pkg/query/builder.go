package query

import (
	"fmt"
	"strings"
)

// Status is a baseline_status filter value.
// The endpoint recognizes a closed set of values; anything else is
// passed through and rejected server-side.
type Status string

const (
	// StatusLimited matches features available in some but not all browsers.
	StatusLimited Status = "limited"

	// StatusNewly matches features that recently became baseline.
	StatusNewly Status = "newly"

	// StatusWidely matches features that have been baseline for long enough
	// to be considered safe everywhere.
	StatusWidely Status = "widely"
)

// Filter fields recognized by the search endpoint.
const (
	fieldBaselineStatus = "baseline_status"
	fieldBaselineDate   = "baseline_date"
	fieldID             = "id"
	fieldGroup          = "group"
	fieldSnapshot       = "snapshot"
)

// quoteTriggers are the characters that force a value into quoted form.
const quoteTriggers = " \t\n\r\"():"

// Builder accumulates typed filter predicates and renders them into the
// filter-string syntax of the search endpoint. Predicates are appended
// in call order and joined with " AND "; the builder performs no
// validation beyond value quoting, so malformed values travel to the
// server and fail there.
//
// A Builder holds no network state and is not safe for concurrent
// mutation; build the query, then share the rendered string.
type Builder struct {
	terms []string
}

// NewBuilder returns an empty Builder. An empty Builder renders to the
// empty string, which the endpoint treats as "match all".
func NewBuilder() *Builder {
	return &Builder{}
}

// ByStatus appends a baseline_status predicate. Status values are bare
// identifiers and are never quoted.
func (b *Builder) ByStatus(status Status) *Builder {
	return b.appendTerm(fmt.Sprintf("%s:%s", fieldBaselineStatus, status))
}

// ByDateRange appends a baseline_date range predicate covering start..end.
// Both bounds are ISO dates (YYYY-MM-DD); no calendar validation happens
// here, the server rejects malformed dates.
func (b *Builder) ByDateRange(start, end string) *Builder {
	return b.appendTerm(fmt.Sprintf("%s:%s..%s", fieldBaselineDate, start, end))
}

// ByID appends an id predicate, quoting the value when required.
func (b *Builder) ByID(id string) *Builder {
	return b.appendTerm(fmt.Sprintf("%s:%s", fieldID, quoteValue(id)))
}

// ByGroup appends a group predicate, quoting the value when required.
func (b *Builder) ByGroup(group string) *Builder {
	return b.appendTerm(fmt.Sprintf("%s:%s", fieldGroup, quoteValue(group)))
}

// BySnapshot appends a snapshot predicate, quoting the value when required.
func (b *Builder) BySnapshot(name string) *Builder {
	return b.appendTerm(fmt.Sprintf("%s:%s", fieldSnapshot, quoteValue(name)))
}

// Raw appends an already-formatted boolean term verbatim. Use it for
// expressions the typed methods do not model, such as negation
// ("-baseline_status:limited") or disjunction ("group:css OR group:html").
// The caller is responsible for quoting inside raw terms.
func (b *Builder) Raw(term string) *Builder {
	return b.appendTerm(term)
}

// String renders the accumulated predicates joined with " AND ".
// It is idempotent and reflects every term appended so far.
// A nil Builder renders to the empty string.
func (b *Builder) String() string {
	if b == nil {
		return ""
	}
	return strings.Join(b.terms, " AND ")
}

// Clone returns an independent copy of the builder. Appending to the
// clone does not affect the original.
func (b *Builder) Clone() *Builder {
	if b == nil {
		return NewBuilder()
	}
	terms := make([]string, len(b.terms))
	copy(terms, b.terms)
	return &Builder{terms: terms}
}

// Len reports the number of predicates appended so far.
func (b *Builder) Len() int {
	if b == nil {
		return 0
	}
	return len(b.terms)
}

func (b *Builder) appendTerm(term string) *Builder {
	b.terms = append(b.terms, term)
	return b
}

// quoteValue wraps v in double quotes when it contains whitespace,
// quotes, colons, or parentheses, doubling any embedded quote.
// Values without trigger characters pass through unchanged.
func quoteValue(v string) string {
	if !strings.ContainsAny(v, quoteTriggers) {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
