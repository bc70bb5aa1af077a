package windowing

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
)

// TokenCounter estimates the input-token cost of messages.
type TokenCounter interface {
	CountText(s string) int
	CountMessage(m anthropic.MessageParam) int
	CountGroup(g Group, all []anthropic.MessageParam) int
}

// HeuristicCounter is a deterministic estimator: roughly four runes per token
// plus a fixed overhead per block. Blocks without plain text (tool_use input,
// thinking, images) are sized by their JSON encoding.
type HeuristicCounter struct{}

const (
	runesPerToken = 4
	blockOverhead = 4
)

// CountText estimates s on its own, without block overhead.
func (HeuristicCounter) CountText(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + runesPerToken - 1) / runesPerToken
}

func (h HeuristicCounter) CountMessage(m anthropic.MessageParam) int {
	total := 0
	for _, blk := range m.Content {
		total += h.countBlock(blk)
	}
	return total
}

func (h HeuristicCounter) CountGroup(g Group, all []anthropic.MessageParam) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountMessage(all[i])
	}
	return total
}

func (h HeuristicCounter) countBlock(blk anthropic.ContentBlockParamUnion) int {
	if tb := blk.OfText; tb != nil {
		return h.CountText(tb.Text) + blockOverhead
	}
	if tr := blk.OfToolResult; tr != nil {
		n := 0
		for _, c := range tr.Content {
			if c.OfText != nil {
				n += h.CountText(c.OfText.Text)
			} else if b, err := json.Marshal(c); err == nil {
				n += h.CountText(string(b))
			}
		}
		return n + blockOverhead
	}
	b, err := json.Marshal(blk)
	if err != nil {
		return blockOverhead
	}
	return h.CountText(string(b)) + blockOverhead
}
