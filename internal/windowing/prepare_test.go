package windowing_test

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/bb-agent/internal/windowing"
)

// Every four-rune text block costs 1 + 4 overhead = 5.

func TestPrepareSendWindow_AllFit(t *testing.T) {
	msgs := []anthropic.MessageParam{User(T("aaaa")), Asst(T("bbbb")), User(T("cccc"))}

	window, stats := windowing.PrepareSendWindow(msgs, 15, windowing.HeuristicCounter{})

	if len(window) != 3 || stats.Total != 15 || stats.IncludedGroups != 3 || stats.SkippedGroups != 0 || stats.OverBudgetNewest {
		t.Fatalf("unexpected result: len=%d stats=%+v", len(window), stats)
	}
	for i := range msgs {
		if window[i].Role != msgs[i].Role {
			t.Fatalf("role mismatch at %d", i)
		}
	}
}

func TestPrepareSendWindow_DropsOldestGroups(t *testing.T) {
	msgs := []anthropic.MessageParam{
		User(T("aaaa")), Asst(T("bbbb")),
		User(T("cccc")), Asst(T("dddd")),
		User(T("eeee")),
	}

	window, stats := windowing.PrepareSendWindow(msgs, 15, windowing.HeuristicCounter{})

	if len(window) != 3 || stats.Total != 15 || stats.IncludedGroups != 3 || stats.SkippedGroups != 2 {
		t.Fatalf("unexpected result: len=%d stats=%+v", len(window), stats)
	}
	if window[0].Content[0].OfText.Text != "cccc" {
		t.Fatalf("window should start at the third message, got %+v", window[0])
	}
}

func TestPrepareSendWindow_StartsWithUser(t *testing.T) {
	// Budget 10 fits "dddd" and "eeee", but a window may not open on an
	// assistant turn, so only the newest user message is sent.
	msgs := []anthropic.MessageParam{User(T("cccc")), Asst(T("dddd")), User(T("eeee"))}

	window, stats := windowing.PrepareSendWindow(msgs, 10, windowing.HeuristicCounter{})

	if len(window) != 1 || window[0].Role != anthropic.MessageParamRoleUser {
		t.Fatalf("unexpected window: %+v", window)
	}
	if stats.Total != 5 || stats.IncludedGroups != 1 || stats.SkippedGroups != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPrepareSendWindow_KeepsToolPairWhole(t *testing.T) {
	c := windowing.HeuristicCounter{}
	msgs := []anthropic.MessageParam{
		User(T("list")),
		Asst(TU("t1")),
		User(TR("t1", "ok")),
		User(T("next")),
	}
	pairCost := c.CountMessage(msgs[1]) + c.CountMessage(msgs[2])
	lastCost := c.CountMessage(msgs[3])

	// Room for the result message but not the tool_use: the pair is dropped
	// whole rather than leaving an orphaned tool_result.
	window, _ := windowing.PrepareSendWindow(msgs, lastCost+c.CountMessage(msgs[2]), c)
	if len(window) != 1 || window[0].Content[0].OfText == nil {
		t.Fatalf("expected only the newest text message, got %+v", window)
	}

	// Room for everything but the first message: the pair leads with an
	// assistant turn, so it is dropped as well.
	window, _ = windowing.PrepareSendWindow(msgs, lastCost+pairCost, c)
	if len(window) != 1 {
		t.Fatalf("expected 1 message, got %d", len(window))
	}

	total := lastCost + pairCost + c.CountMessage(msgs[0])
	window, stats := windowing.PrepareSendWindow(msgs, total, c)
	if len(window) != 4 || stats.IncludedGroups != 3 || stats.Total != total {
		t.Fatalf("unexpected result: len=%d stats=%+v", len(window), stats)
	}
}

func TestPrepareSendWindow_NewestGroupOverBudget(t *testing.T) {
	msgs := []anthropic.MessageParam{
		User(T("old")),
		User(T("this message alone is far longer than the budget allows")),
	}

	window, stats := windowing.PrepareSendWindow(msgs, 10, windowing.HeuristicCounter{})

	if len(window) != 0 || !stats.OverBudgetNewest || stats.IncludedGroups != 0 || stats.SkippedGroups != 2 {
		t.Fatalf("unexpected result: window=%v stats=%+v", window, stats)
	}
}

func TestPrepareSendWindow_NoCapacityBudget(t *testing.T) {
	window, stats := windowing.PrepareSendWindow([]anthropic.MessageParam{User(T("x"))}, 0, windowing.HeuristicCounter{})
	if len(window) != 0 || !stats.OverBudgetNewest || stats.SkippedGroups != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPrepareSendWindow_EmptyMsgs(t *testing.T) {
	window, stats := windowing.PrepareSendWindow(nil, 123, windowing.HeuristicCounter{})
	if window != nil || stats.Budget != 123 || stats.Total != 0 || stats.OverBudgetNewest {
		t.Fatalf("unexpected result: window=%v stats=%+v", window, stats)
	}
}
