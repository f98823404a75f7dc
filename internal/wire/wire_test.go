package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(s string) *string { return &s }

func TestArrayLiteral(t *testing.T) {
	tests := []struct {
		name  string
		elems []*string
		typ   string
		want  string
	}{
		{
			name:  "ints with null",
			elems: []*string{p("1"), p("2"), p("3"), nil},
			typ:   "int4",
			want:  "ARRAY[int4 '1',int4 '2',int4 '3',NULL::int4]::int4[]",
		},
		{
			name:  "empty",
			elems: nil,
			typ:   "text",
			want:  "ARRAY[]::text[]",
		},
		{
			name:  "quote escaping",
			elems: []*string{p("it's")},
			typ:   "text",
			want:  "ARRAY[text 'it''s']::text[]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ArrayLiteral(tt.elems, tt.typ))
		})
	}
}

func TestParseArray(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []*string
	}{
		{"ints with null", "{1,2,3,NULL}", []*string{p("1"), p("2"), p("3"), nil}},
		{"empty", "{}", []*string{}},
		{"quoted comma", `{"a,b",c}`, []*string{p("a,b"), p("c")}},
		{"escaped quote", `{"say \"hi\""}`, []*string{p(`say "hi"`)}},
		{"escaped backslash", `{"a\\b"}`, []*string{p(`a\b`)}},
		{"quoted NULL is a value", `{"NULL"}`, []*string{p("NULL")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArray(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArrayRejectsMalformedInput(t *testing.T) {
	for _, in := range []string{"", "1,2,3", "{1,2", `{"open}`, `{a,}`, `{"a"b}`, `{"a\`} {
		_, err := ParseArray(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrMalformedArray))
	}
}

func TestArrayRoundTrip(t *testing.T) {
	elems := []*string{p("1"), p("2"), p("3"), nil}

	literal := ArrayLiteral(elems, "int4")
	assert.Equal(t, "ARRAY[int4 '1',int4 '2',int4 '3',NULL::int4]::int4[]", literal)

	// The server's textual output for that array.
	back, err := ParseArray("{1,2,3,NULL}")
	require.NoError(t, err)
	assert.Equal(t, elems, back, "order and null position survive the round trip")
}
