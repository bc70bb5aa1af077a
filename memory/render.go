package memory

import (
	"fmt"
	"io"
	"strings"
)

const (
	ansiReset  = "\u001b[0m"
	ansiBold   = "\u001b[1m"
	ansiRed    = "\u001b[91m"
	ansiRedBG  = "\u001b[41m"
	ansiGreen  = "\u001b[92m"
	ansiBlue   = "\u001b[94m"
	ansiYellow = "\u001b[93m"
	ansiGray   = "\u001b[90m"
	ansiCyan   = "\u001b[96m"
)

// systemPreview caps how much of the system prompt is echoed.
const systemPreview = 80

// Render prints msgs as a transcript. Colours match the REPL prompt.
func Render(w io.Writer, msgs []Message) {
	fmt.Fprintf(w, "%s--- resumed conversation (%d messages) ---%s\n", ansiGray, len(msgs), ansiReset)
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			fmt.Fprintf(w, "%sSystem%s: %s\n", ansiGray, ansiReset, preview(m.Content, systemPreview))
		case RoleUser:
			fmt.Fprintf(w, "%sYou%s: %s\n", ansiBlue, ansiReset, m.Content)
		case RoleAssistant:
			fmt.Fprintf(w, "%sClaude%s: %s\n", ansiYellow, ansiReset, m.Content)
		case RoleTool:
			fmt.Fprintf(w, "%sTool%s: %s\n", ansiCyan, ansiReset, preview(m.Content, systemPreview))
		}
	}
	fmt.Fprintf(w, "%s--- end of history ---%s\n", ansiGray, ansiReset)
}

func preview(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
