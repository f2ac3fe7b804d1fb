package cleaner

import "unicode/utf8"

// EstimateTokens approximates an LLM token count as runes / 3, which sits
// between English (~4 chars/token) and CJK (~1.5 chars/token) text.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := n / 3
	if est < 1 {
		return 1
	}
	return est
}
