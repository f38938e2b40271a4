package notify

import (
	"strings"

	"github.com/treehole/backend/internal/models"
)

// mentionExcerptLen bounds detail.mentionedIn, measured in runes so
// multibyte text never splits mid-character.
const mentionExcerptLen = 50

// ExtractMentions scans free text for @name candidates. A candidate starts
// after an '@' and runs until whitespace or the next '@'. Candidates are
// deduplicated by exact string equality; trailing-punctuation variants of
// the same name are NOT merged here: each goes through the directory
// lookup independently, which performs its own punctuation-trim fallback.
// Order follows first appearance.
func ExtractMentions(text string) []string {
	var candidates []string
	seen := make(map[string]struct{})

	for i := 0; i < len(text); i++ {
		if text[i] != '@' {
			continue
		}

		end := i + 1
		for end < len(text) && text[end] != '@' && !isSpace(text[end]) {
			end++
		}

		name := text[i+1 : end]
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			candidates = append(candidates, name)
		}

		// A directly following '@' starts a new candidate.
		i = end - 1
	}

	return candidates
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// mentionBody renders the notification text for a resolved mention.
// contextKind distinguishes where the mention happened; anything that is
// not a post is treated as a comment.
func mentionBody(senderName string, contextKind models.NotificationKind) string {
	where := "comment"
	if contextKind == models.KindPost {
		where = "post"
	}
	return senderName + " mentioned you in a " + where
}

// mentionExcerpt returns the leading slice of text stored in
// detail.mentionedIn for client rendering.
func mentionExcerpt(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > mentionExcerptLen {
		runes = runes[:mentionExcerptLen]
	}
	return string(runes)
}
