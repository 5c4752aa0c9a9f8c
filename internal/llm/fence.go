package llm

import "strings"

const fence = "```"

// ExtractJSON returns the JSON candidate from free-form model output.
// If the text contains a code fence, only the text between the first fence
// (after an optional language tag) and the next fence is returned. Otherwise
// the whole text is returned. The result is not validated here.
func ExtractJSON(text string) string {
	start := strings.Index(text, fence)
	if start < 0 {
		return strings.TrimSpace(text)
	}

	rest := skipLanguageTag(text[start+len(fence):])
	if end := strings.Index(rest, fence); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// skipLanguageTag drops a tag such as "json" that directly follows an opening fence.
func skipLanguageTag(s string) string {
	if len(s) == 0 || !isLetter(s[0]) {
		return s
	}
	i := 0
	for i < len(s) && isTagChar(s[i]) {
		i++
	}
	if i == len(s) || s[i] == '\n' || s[i] == '\r' || s[i] == ' ' || s[i] == '\t' {
		return s[i:]
	}
	// "```json{...}" with no separator
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		return s[4:]
	}
	return s
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isTagChar(b byte) bool {
	return isLetter(b) || (b >= '0' && b <= '9') || b == '_' || b == '-' || b == '+'
}
