// Package metrics derives cheap local text features. They are logged next to
// the window estimate and the API's reported input_tokens so the heuristic
// counter can be recalibrated from events.jsonl.
package metrics

import (
	"strings"
	"unicode/utf8"
)

// Features are raw size measures of some text.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

// CountFeatures measures s. Lines is 0 for "" and otherwise one more than the
// number of newlines.
func CountFeatures(s string) Features {
	f := Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
	}
	if s != "" {
		f.Lines = 1 + strings.Count(s, "\n")
	}
	return f
}

// CountAll sums the features of each text.
func CountAll(texts ...string) Features {
	var total Features
	for _, s := range texts {
		total = total.Add(CountFeatures(s))
	}
	return total
}

func (f Features) Add(o Features) Features {
	return Features{
		Bytes: f.Bytes + o.Bytes,
		Runes: f.Runes + o.Runes,
		Words: f.Words + o.Words,
		Lines: f.Lines + o.Lines,
	}
}

// Fields flattens f for an event payload, prefixing every key.
func (f Features) Fields(prefix string) map[string]any {
	return map[string]any{
		prefix + "bytes": f.Bytes,
		prefix + "runes": f.Runes,
		prefix + "words": f.Words,
		prefix + "lines": f.Lines,
	}
}
