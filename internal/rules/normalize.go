package rules

import "strings"

// Normalize maps equivalent spellings of a rule to one string: lowercased,
// whitespace collapsed, with exception markers, anchors, modifiers, the
// separator and wildcard prefixes removed. Regex rules only get lowercased.
func Normalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	s = strings.TrimPrefix(s, "@@")

	if isRegexText(s) {
		return s
	}

	if after, ok := strings.CutPrefix(s, "||"); ok {
		s = after
	} else {
		s = strings.TrimPrefix(s, "|")
	}

	if i := strings.IndexByte(s, '$'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "^|")
	s = strings.TrimPrefix(s, "*.")

	return strings.Trim(s, ".")
}

func isRegexText(s string) bool {
	if len(s) < 2 || s[0] != '/' {
		return false
	}
	end := strings.LastIndexByte(s, '/')
	if end == 0 {
		return false
	}
	// /regex/ optionally followed by $modifiers
	return end == len(s)-1 || s[end+1] == '$'
}
