package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/bb-agent/internal/metrics"
	"github.com/petasbytes/bb-agent/internal/provider"
	"github.com/petasbytes/bb-agent/internal/telemetry"
	"github.com/petasbytes/bb-agent/internal/windowing"
	"github.com/petasbytes/bb-agent/memory"
)

// ErrQuotaExceeded wraps API errors that mean no further requests will
// succeed in this session.
var ErrQuotaExceeded = errors.New("quota exceeded")

// ErrOverBudget is returned, without calling the API, when the newest message
// alone does not fit in TokenBudget.
var ErrOverBudget = errors.New("newest message exceeds token budget")

// Extra keys the runner attaches to persisted messages.
const (
	ExtraBlocks     = "blocks"
	ExtraStopReason = "stop_reason"
)

// Runner sends conversation turns to the Messages API.
//
// TokenBudget bounds the estimated input tokens of each request, system prompt
// included; older turns are left out of the request but never out of the
// conversation. A zero budget sends the whole conversation.
type Runner struct {
	Client      *anthropic.Client
	Model       anthropic.Model
	MaxTokens   int64
	TokenBudget int
	Counter     windowing.TokenCounter
	Recorder    *telemetry.Recorder
	Out         io.Writer
}

// New returns a Runner printing to stdout with windowing disabled.
func New(client *anthropic.Client, model anthropic.Model, maxTokens int64, rec *telemetry.Recorder) *Runner {
	return &Runner{Client: client, Model: model, MaxTokens: maxTokens, Recorder: rec, Out: os.Stdout}
}

// RunTurn sends conv and prints the reply's text blocks. The returned message
// is ready to append to conv and persist.
func (r *Runner) RunTurn(ctx context.Context, conv []memory.Message) (memory.Message, error) {
	turnID, ok := telemetry.TurnIDFromContext(ctx)
	if !ok {
		turnID = telemetry.NewTurnID()
		ctx = telemetry.WithTurnID(ctx, turnID)
	}

	params, stats, err := r.params(conv)
	r.Recorder.Emit("window_prepared", windowFields(turnID, params, stats))
	if err != nil {
		return memory.Message{}, err
	}
	var reqArtifact string
	if body, err := params.MarshalJSON(); err == nil {
		reqArtifact = r.Recorder.PersistRequest(ctx, body)
	}

	start := time.Now()
	msg, err := r.Client.Messages.New(ctx, params)
	if err != nil {
		r.Recorder.Emit("turn_failed", map[string]any{
			"turn_id":     turnID,
			"model":       string(r.Model),
			"duration_ms": time.Since(start).Milliseconds(),
			"quota":       provider.IsQuotaExceeded(err),
		})
		if provider.IsQuotaExceeded(err) {
			return memory.Message{}, fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
		}
		return memory.Message{}, err
	}
	respArtifact := r.Recorder.PersistResponse(ctx, []byte(msg.RawJSON()))
	r.Recorder.RecordUsage(string(msg.Model), msg.Usage.InputTokens, msg.Usage.OutputTokens)

	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	var texts []string
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(anthropic.TextBlock); ok {
			fmt.Fprintf(out, "\u001b[93mClaude\u001b[0m: %s\n", v.Text)
			if v.Text != "" {
				texts = append(texts, v.Text)
			}
		}
	}

	reply := memory.Assistant(strings.Join(texts, "\n"))
	reply.Extra = assistantExtra(msg)

	fields := map[string]any{
		"turn_id":       turnID,
		"model":         string(msg.Model),
		"duration_ms":   time.Since(start).Milliseconds(),
		"input_tokens":  msg.Usage.InputTokens,
		"output_tokens": msg.Usage.OutputTokens,
		"stop_reason":   string(msg.StopReason),
	}
	if reqArtifact != "" {
		fields["req_artifact"] = filepath.Base(reqArtifact)
	}
	if respArtifact != "" {
		fields["resp_artifact"] = filepath.Base(respArtifact)
	}
	r.Recorder.Emit("turn_completed", fields)
	return reply, nil
}

// params converts conv into a request. System messages are joined into the
// system prompt; tool messages are sent as user turns. The message list is
// then cut to TokenBudget.
func (r *Runner) params(conv []memory.Message) (anthropic.MessageNewParams, windowing.Stats, error) {
	p := anthropic.MessageNewParams{
		Model:     r.Model,
		MaxTokens: r.MaxTokens,
	}
	for _, m := range conv {
		switch m.Role {
		case memory.RoleSystem:
			if m.Content != "" {
				p.System = append(p.System, anthropic.TextBlockParam{Text: m.Content})
			}
		case memory.RoleAssistant:
			if blocks := contentBlocks(m); len(blocks) > 0 {
				p.Messages = append(p.Messages, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			if blocks := contentBlocks(m); len(blocks) > 0 {
				p.Messages = append(p.Messages, anthropic.NewUserMessage(blocks...))
			}
		}
	}
	if r.TokenBudget <= 0 {
		return p, windowing.Stats{IncludedGroups: len(p.Messages)}, nil
	}

	counter := r.Counter
	if counter == nil {
		counter = windowing.HeuristicCounter{}
	}
	reserve := 0
	for _, s := range p.System {
		reserve += counter.CountText(s.Text)
	}
	window, stats := windowing.PrepareSendWindow(p.Messages, r.TokenBudget-reserve, counter)
	if len(window) == 0 {
		return p, stats, fmt.Errorf("%w: budget %d, system prompt ~%d", ErrOverBudget, r.TokenBudget, reserve)
	}
	p.Messages = window
	return p, stats, nil
}

func windowFields(turnID string, p anthropic.MessageNewParams, stats windowing.Stats) map[string]any {
	var texts []string
	for _, m := range p.Messages {
		for _, blk := range m.Content {
			if blk.OfText != nil {
				texts = append(texts, blk.OfText.Text)
			}
		}
	}
	fields := metrics.CountAll(texts...).Fields("window_")
	fields["turn_id"] = turnID
	fields["budget"] = stats.Budget
	fields["total_estimated"] = stats.Total
	fields["included_groups"] = stats.IncludedGroups
	fields["skipped_groups"] = stats.SkippedGroups
	fields["over_budget_newest"] = stats.OverBudgetNewest
	return fields
}

// contentBlocks prefers the raw blocks stored on m and falls back to its text.
func contentBlocks(m memory.Message) []anthropic.ContentBlockParamUnion {
	if raw, ok := m.Extra[ExtraBlocks]; ok {
		var blocks []anthropic.ContentBlockParamUnion
		if err := json.Unmarshal(raw, &blocks); err == nil && len(blocks) > 0 {
			return blocks
		}
	}
	if m.Content == "" {
		return nil
	}
	return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
}

func assistantExtra(msg *anthropic.Message) map[string]json.RawMessage {
	extra := map[string]json.RawMessage{}
	if msg.StopReason != "" {
		if b, err := json.Marshal(string(msg.StopReason)); err == nil {
			extra[ExtraStopReason] = b
		}
	}
	textOnly := true
	for _, block := range msg.Content {
		if block.Type != "text" {
			textOnly = false
			break
		}
	}
	if !textOnly {
		if b, err := json.Marshal(msg.ToParam().Content); err == nil {
			extra[ExtraBlocks] = b
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}
