package windowing

import "github.com/anthropics/anthropic-sdk-go"

// GroupKind denotes the atomic unit kept or dropped as a whole.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupPair
)

// Group is the span [Start, End) of the message slice it was built from.
type Group struct {
	Kind  GroupKind
	Start int
	End   int
}

// GroupBlocks splits msgs into units that must not be separated.
//
// A pair is an assistant message carrying tool_use blocks directly followed by
// a user message whose leading blocks are tool_result blocks answering exactly
// those IDs. Resumed snapshots replay such blocks from Message.Extra, so the
// API would reject a window that cut between them. Everything else is a
// singleton.
func GroupBlocks(msgs []anthropic.MessageParam) []Group {
	groups := make([]Group, 0, len(msgs))
	for i := 0; i < len(msgs); {
		if i+1 < len(msgs) && answers(msgs[i], msgs[i+1]) {
			groups = append(groups, Group{Kind: GroupPair, Start: i, End: i + 2})
			i += 2
			continue
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

// answers reports whether next resolves every tool_use in m and nothing else.
func answers(m, next anthropic.MessageParam) bool {
	if m.Role != anthropic.MessageParamRoleAssistant || next.Role != anthropic.MessageParamRoleUser {
		return false
	}
	uses := toolUseIDs(m)
	if len(uses) == 0 {
		return false
	}
	results, ok := leadingResultIDs(next)
	if !ok || len(results) != len(uses) {
		return false
	}
	for id := range uses {
		if _, ok := results[id]; !ok {
			return false
		}
	}
	return true
}

func toolUseIDs(m anthropic.MessageParam) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, blk := range m.Content {
		if tu := blk.OfToolUse; tu != nil && tu.ID != "" {
			ids[tu.ID] = struct{}{}
		}
	}
	return ids
}

// leadingResultIDs collects tool_result IDs from the front of m. ok is false
// when a tool_result appears after any other block.
func leadingResultIDs(m anthropic.MessageParam) (ids map[string]struct{}, ok bool) {
	ids = make(map[string]struct{})
	pastResults := false
	for _, blk := range m.Content {
		tr := blk.OfToolResult
		if tr == nil {
			pastResults = true
			continue
		}
		if pastResults {
			return ids, false
		}
		if tr.ToolUseID != "" {
			ids[tr.ToolUseID] = struct{}{}
		}
	}
	return ids, true
}
