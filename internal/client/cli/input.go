package cli

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// isInteractive reports whether r is a terminal. Prompts are only printed
// for interactive sessions, so piped scripts produce clean output.
func isInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && isTerminal(int(f.Fd()))
}

// splitN splits line into at most n whitespace-separated fields. The last
// field keeps the rest of the line verbatim, so JSON with spaces survives.
func splitN(line string, n int) []string {
	var out []string
	rest := strings.TrimSpace(line)
	for len(out) < n-1 && rest != "" {
		i := strings.IndexFunc(rest, isSpace)
		if i < 0 {
			break
		}
		out = append(out, rest[:i])
		rest = strings.TrimLeftFunc(rest[i:], isSpace)
	}
	if rest != "" {
		out = append(out, rest)
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
