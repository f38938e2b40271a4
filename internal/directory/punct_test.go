package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimTrailingPunct(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no punctuation", "Alice", "Alice"},
		{"single comma", "Alice,", "Alice"},
		{"punctuation run", `Alice!?'"`, "Alice"},
		{"cjk period", "小明。", "小明"},
		{"cjk exclamation", "小明！！", "小明"},
		{"curly quote", "Alice”", "Alice"},
		{"interior punctuation kept", "a.b", "a.b"},
		{"interior and trailing", "a.b,", "a.b"},
		{"all punctuation", "!?.", ""},
		{"empty", "", ""},
		{"underscore not trimmed", "bob_2", "bob_2"},
		{"hyphen not trimmed", "bob-", "bob-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimTrailingPunct(tt.input))
		})
	}
}
