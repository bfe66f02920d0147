package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyReplacement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		spec  ReplacementSpec
		input string
		want  string
	}{
		{
			name:  "literal case sensitive",
			spec:  ReplacementSpec{Find: "Hello", Replace: "hi", CaseSensitive: true},
			input: "hello Hello HELLO",
			want:  "hello hi HELLO",
		},
		{
			name:  "literal case insensitive",
			spec:  ReplacementSpec{Find: "Hello", Replace: "hi"},
			input: "hello HELLO world",
			want:  "hi hi world",
		},
		{
			name:  "literal mode never interprets metacharacters",
			spec:  ReplacementSpec{Find: "a.b", Replace: "x"},
			input: "a.b axb A.B",
			want:  "x axb x",
		},
		{
			name:  "regex case sensitive",
			spec:  ReplacementSpec{Find: `\bum+\b`, Replace: "", Regex: true, CaseSensitive: true},
			input: "um so umm Um yes",
			want:  " so  Um yes",
		},
		{
			name:  "regex case insensitive",
			spec:  ReplacementSpec{Find: `\bum\b`, Replace: "", Regex: true},
			input: "Um so um",
			want:  " so ",
		},
		{
			name:  "regex with capture group references",
			spec:  ReplacementSpec{Find: `(\w+)@example\.com`, Replace: "$1@corp.test", Regex: true, CaseSensitive: true},
			input: "mail bob@example.com now",
			want:  "mail bob@corp.test now",
		},
		{
			name:  "no match leaves input unchanged",
			spec:  ReplacementSpec{Find: "absent", Replace: "x", CaseSensitive: true},
			input: "nothing here",
			want:  "nothing here",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := applyReplacement(tt.input, replacementUnit(tt.name, tt.spec))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestApplyReplacementMalformedPattern(t *testing.T) {
	t.Parallel()

	unit := replacementUnit("broken", ReplacementSpec{Find: "[unclosed", Replace: "x", Regex: true})

	_, err := applyReplacement("input", unit)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "broken", cfgErr.Unit)
}

func TestApplyReplacementMissingSpec(t *testing.T) {
	t.Parallel()

	unit := Unit{Name: "empty", Kind: KindReplacement}

	_, err := applyReplacement("input", unit)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
