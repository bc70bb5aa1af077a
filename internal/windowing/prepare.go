// Package windowing picks how much of a conversation is sent to the model.
//
// The persisted snapshot always keeps the full history; only the request is
// trimmed, oldest groups first, so a long-resumed session keeps working.
package windowing

import "github.com/anthropics/anthropic-sdk-go"

// Stats summarizes one window.
//
// Total counts included groups only. OverBudgetNewest is set when the newest
// group alone does not fit.
type Stats struct {
	Total            int
	Budget           int
	IncludedGroups   int
	SkippedGroups    int
	OverBudgetNewest bool
}

// PrepareSendWindow returns the longest suffix of msgs that fits within budget
// without splitting a group and that starts with a user message, as the
// Messages API requires.
//
// An empty window is returned when msgs is empty, when budget <= 0, or when
// the newest group alone exceeds budget (OverBudgetNewest).
func PrepareSendWindow(msgs []anthropic.MessageParam, budget int, c TokenCounter) ([]anthropic.MessageParam, Stats) {
	if len(msgs) == 0 {
		return nil, Stats{Budget: budget}
	}
	groups := GroupBlocks(msgs)
	empty := Stats{Budget: budget, SkippedGroups: len(groups)}
	if budget <= 0 {
		empty.OverBudgetNewest = true
		return nil, empty
	}

	costs := make([]int, len(groups))
	for i, g := range groups {
		costs[i] = c.CountGroup(g, msgs)
	}
	if costs[len(groups)-1] > budget {
		empty.OverBudgetNewest = true
		return nil, empty
	}

	start, total := len(groups), 0
	for gi := len(groups) - 1; gi >= 0 && total+costs[gi] <= budget; gi-- {
		total += costs[gi]
		start = gi
	}
	// Never open on an assistant turn.
	for start < len(groups) && msgs[groups[start].Start].Role != anthropic.MessageParamRoleUser {
		total -= costs[start]
		start++
	}
	if start == len(groups) {
		return nil, empty
	}

	included := len(groups) - start
	return msgs[groups[start].Start:], Stats{
		Total:          total,
		Budget:         budget,
		IncludedGroups: included,
		SkippedGroups:  len(groups) - included,
	}
}
