package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/treehole/backend/internal/models"
)

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"no mentions", "hello world", nil},
		{"single", "hello @Alice how are you", []string{"Alice"}},
		{"at end of text", "ping @Bob", []string{"Bob"}},
		{"multiple", "@Alice and @Bob should see this", []string{"Alice", "Bob"}},
		{"adjacent tokens", "@Alice@Bob", []string{"Alice", "Bob"}},
		{"trailing punctuation kept", "thanks @Alice, and @bob_2!", []string{"Alice,", "bob_2!"}},
		{"duplicates collapsed", "@Alice hi @Alice", []string{"Alice"}},
		{"punctuation variants stay distinct", "@Alice and @Alice,", []string{"Alice", "Alice,"}},
		{"bare at sign", "email me @ home", []string{""}},
		{"trailing at sign", "@Alice, hi @bob_2! @", []string{"Alice,", "bob_2!", ""}},
		{"cjk name", "你好 @小明 再见", []string{"小明"}},
		{"newline terminates", "@Alice\nhello", []string{"Alice"}},
		{"tab terminates", "@Alice\tBob", []string{"Alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMentions(tt.text))
		})
	}
}

func TestMentionBody(t *testing.T) {
	assert.Equal(t, "Alice mentioned you in a post", mentionBody("Alice", models.KindPost))
	assert.Equal(t, "Alice mentioned you in a comment", mentionBody("Alice", models.KindReply))
	assert.Equal(t, "Alice mentioned you in a comment", mentionBody("Alice", models.KindCapsule))
}

func TestMentionExcerpt(t *testing.T) {
	assert.Equal(t, "short text", mentionExcerpt("short text"))
	assert.Equal(t, "trimmed", mentionExcerpt("  trimmed  "))

	long := strings.Repeat("a", 80)
	assert.Equal(t, strings.Repeat("a", 50), mentionExcerpt(long))

	// Multibyte text is cut on rune boundaries.
	cjk := strings.Repeat("树", 60)
	assert.Equal(t, strings.Repeat("树", 50), mentionExcerpt(cjk))
}
