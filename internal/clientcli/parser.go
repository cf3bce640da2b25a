package clientcli

import "strings"

// parseArgs splits a shell line into words. Single or double quotes group
// blanks into one word; the quotes themselves are dropped.
func parseArgs(line string) []string {
	var (
		words []string
		word  strings.Builder
		quote rune
	)
	flush := func() {
		if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}

	for _, r := range line {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			word.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
		case r == ' ' || r == '\t':
			flush()
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return words
}

// extractFlag removes every occurrence of flag from args and reports whether
// there was one.
func extractFlag(args []string, flag string) (bool, []string) {
	found := false
	remaining := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == flag {
			found = true
			continue
		}
		remaining = append(remaining, arg)
	}
	return found, remaining
}
