package query

import (
	"testing"
)

func TestBuilder_String(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
		want  string
	}{
		{
			name:  "empty builder",
			build: func() *Builder { return NewBuilder() },
			want:  "",
		},
		{
			name:  "status is never quoted",
			build: func() *Builder { return NewBuilder().ByStatus(StatusNewly) },
			want:  "baseline_status:newly",
		},
		{
			name:  "date range",
			build: func() *Builder { return NewBuilder().ByDateRange("2023-01-01", "2024-06-30") },
			want:  "baseline_date:2023-01-01..2024-06-30",
		},
		{
			name:  "plain value stays unquoted",
			build: func() *Builder { return NewBuilder().ByID("css-grid") },
			want:  "id:css-grid",
		},
		{
			name:  "value with space is quoted",
			build: func() *Builder { return NewBuilder().ByGroup("layout tools") },
			want:  `group:"layout tools"`,
		},
		{
			name:  "value with colon is quoted",
			build: func() *Builder { return NewBuilder().ByID("feature:odd") },
			want:  `id:"feature:odd"`,
		},
		{
			name:  "value with parentheses is quoted",
			build: func() *Builder { return NewBuilder().ByGroup("grid (level 2)") },
			want:  `group:"grid (level 2)"`,
		},
		{
			name:  "embedded quotes are doubled",
			build: func() *Builder { return NewBuilder().BySnapshot(`the "big" one`) },
			want:  `snapshot:"the ""big"" one"`,
		},
		{
			name: "terms join with AND in call order",
			build: func() *Builder {
				return NewBuilder().
					ByStatus(StatusWidely).
					ByGroup("css").
					ByDateRange("2020-01-01", "2024-01-01")
			},
			want: "baseline_status:widely AND group:css AND baseline_date:2020-01-01..2024-01-01",
		},
		{
			name:  "raw negation term passes through",
			build: func() *Builder { return NewBuilder().Raw("-baseline_status:limited") },
			want:  "-baseline_status:limited",
		},
		{
			name: "raw OR expression passes through",
			build: func() *Builder {
				return NewBuilder().ByStatus(StatusNewly).Raw("group:css OR group:html")
			},
			want: "baseline_status:newly AND group:css OR group:html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.build().String()
			if got != tt.want {
				t.Errorf("Builder.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestBuilder_Determinism ensures the same predicates in the same order
// always render identically.
func TestBuilder_Determinism(t *testing.T) {
	build := func() *Builder {
		return NewBuilder().
			ByStatus(StatusLimited).
			ByGroup("layout tools").
			ByID("css-grid")
	}

	first := build().String()
	for i := 0; i < 10; i++ {
		if got := build().String(); got != first {
			t.Errorf("render %d = %q, want %q (not deterministic)", i, got, first)
		}
	}
}

func TestBuilder_StringIsIdempotent(t *testing.T) {
	b := NewBuilder().ByStatus(StatusNewly).ByGroup("css")

	first := b.String()
	second := b.String()
	if first != second {
		t.Errorf("second String() = %q, want %q", second, first)
	}

	// Appending after a render is reflected in the next render.
	b.ByID("flexbox")
	want := "baseline_status:newly AND group:css AND id:flexbox"
	if got := b.String(); got != want {
		t.Errorf("String() after append = %q, want %q", got, want)
	}
}

func TestBuilder_Clone(t *testing.T) {
	original := NewBuilder().ByStatus(StatusNewly)
	clone := original.Clone()

	clone.ByGroup("css")

	if got, want := original.String(), "baseline_status:newly"; got != want {
		t.Errorf("original after clone mutation = %q, want %q", got, want)
	}
	if got, want := clone.String(), "baseline_status:newly AND group:css"; got != want {
		t.Errorf("clone = %q, want %q", got, want)
	}
}

func TestBuilder_CloneOriginalMutationDoesNotLeak(t *testing.T) {
	original := NewBuilder().ByStatus(StatusWidely)
	clone := original.Clone()

	original.ByGroup("html")

	if got, want := clone.String(), "baseline_status:widely"; got != want {
		t.Errorf("clone after original mutation = %q, want %q", got, want)
	}
}

func TestBuilder_NilReceiver(t *testing.T) {
	var b *Builder

	if got := b.String(); got != "" {
		t.Errorf("nil Builder.String() = %q, want empty", got)
	}
	if got := b.Len(); got != 0 {
		t.Errorf("nil Builder.Len() = %d, want 0", got)
	}
	if clone := b.Clone(); clone == nil || clone.String() != "" {
		t.Errorf("nil Builder.Clone() = %v, want usable empty builder", clone)
	}
}

func TestQuoteValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "empty value", value: "", want: ""},
		{name: "plain identifier", value: "css-grid", want: "css-grid"},
		{name: "space", value: "grid layout", want: `"grid layout"`},
		{name: "tab", value: "a\tb", want: "\"a\tb\""},
		{name: "colon", value: "a:b", want: `"a:b"`},
		{name: "open paren", value: "f(x", want: `"f(x"`},
		{name: "close paren", value: "x)", want: `"x)"`},
		{name: "quote is doubled", value: `say "hi"`, want: `"say ""hi"""`},
		{name: "only a quote", value: `"`, want: `""""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quoteValue(tt.value); got != tt.want {
				t.Errorf("quoteValue(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
