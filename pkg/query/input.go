package query

// Input is a caller-supplied query in any of its three accepted shapes:
// a pre-rendered Raw expression, a declarative Predicates struct, or a
// *Builder. The interface is sealed so Normalize handles every shape.
type Input interface {
	filterString() string
}

// Raw is a pre-rendered filter expression passed through verbatim.
// The caller owns quoting and operator placement.
type Raw string

func (r Raw) filterString() string { return string(r) }

// Predicates is the declarative form of a query: set the fields you need
// and leave the rest at their zero value. Typed fields render in struct
// order through the same rules as the Builder methods; RawTerms follow.
type Predicates struct {
	// Status filters by baseline_status when non-empty.
	Status Status

	// DateStart and DateEnd bound baseline_date as start..end.
	// The range term is emitted when either bound is set; an open bound
	// renders empty and the server decides whether to accept it.
	DateStart string
	DateEnd   string

	// ID filters by feature identifier when non-empty.
	ID string

	// Group filters by technology group when non-empty.
	Group string

	// Snapshot filters by snapshot name when non-empty.
	Snapshot string

	// RawTerms are appended verbatim after the typed predicates.
	RawTerms []string
}

func (p Predicates) filterString() string {
	b := NewBuilder()
	if p.Status != "" {
		b.ByStatus(p.Status)
	}
	if p.DateStart != "" || p.DateEnd != "" {
		b.ByDateRange(p.DateStart, p.DateEnd)
	}
	if p.ID != "" {
		b.ByID(p.ID)
	}
	if p.Group != "" {
		b.ByGroup(p.Group)
	}
	if p.Snapshot != "" {
		b.BySnapshot(p.Snapshot)
	}
	for _, term := range p.RawTerms {
		b.Raw(term)
	}
	return b.String()
}

func (b *Builder) filterString() string { return b.String() }

// Normalize renders any accepted Input shape into the canonical filter
// string sent as the q parameter. A nil Input, an empty Raw, a zero
// Predicates, and an empty Builder all normalize to the empty string.
func Normalize(in Input) string {
	if in == nil {
		return ""
	}
	return in.filterString()
}
