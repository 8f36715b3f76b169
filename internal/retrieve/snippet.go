package retrieve

import "strings"

// snippetMaxLength bounds the extracted snippet; the window around a match is
// 80 characters before and the remainder after.
const snippetMaxLength = 200

// ExtractSnippet returns a short window of content around the first
// occurrence (case-insensitive) of any query token longer than 2 characters.
// Truncated boundaries are ellipsis-marked; when no token matches, the
// document's leading characters are returned instead.
func ExtractSnippet(content, query string) string {
	contentLower := strings.ToLower(content)

	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if len(t) > 2 {
			terms = append(terms, t)
		}
	}

	idx := -1
	for _, term := range terms {
		if pos := strings.Index(contentLower, term); pos >= 0 {
			idx = pos
			break
		}
	}

	if idx < 0 {
		return cleanSnippet(truncate(content, snippetMaxLength))
	}

	start := idx - 80
	if start < 0 {
		start = 0
	}
	end := idx + snippetMaxLength - 80
	if end > len(content) {
		end = len(content)
	}

	snippet := cleanSnippet(content[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet = snippet + "..."
	}
	return snippet
}

func cleanSnippet(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
