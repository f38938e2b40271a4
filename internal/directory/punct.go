package directory

import "strings"

// trailingPunct is the allow list of characters stripped from the end of a
// mention candidate before the second lookup attempt: ASCII sentence
// punctuation plus the CJK full-width equivalents and curly quotes that
// commonly trail a nickname in forum text.
const trailingPunct = `.,!?:;"'` + "，。！？：；" + "“”‘’"

// TrimTrailingPunct removes a trailing run of punctuation characters from
// name. It never touches punctuation in the middle of a name, so nicknames
// like "bob_2" or "a.b.c" survive as long as they don't end in punctuation.
func TrimTrailingPunct(name string) string {
	return strings.TrimRight(name, trailingPunct)
}
