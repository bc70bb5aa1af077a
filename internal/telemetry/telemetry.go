// Package telemetry records what happened during a session next to its
// conversation snapshots: an optional JSONL event stream, optional raw API
// payload dumps, and a final per-session report.
//
// Every method is nil-safe and best-effort; failures are logged and never
// returned to the REPL.
package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/sjson"

	"github.com/petasbytes/bb-agent/memory"
)

// EventsFile is the JSONL stream name. It deliberately falls outside the
// bb-*.json artifact pattern.
const EventsFile = "events.jsonl"

// metaKey is stamped into persisted payloads to correlate them with turns.
const metaKey = "_bb"

type Options struct {
	Observe         bool // append events to EventsFile
	PersistPayloads bool // write bb-req-*/bb-resp-* artifacts
	Logger          zerolog.Logger
}

// Recorder owns one session's telemetry.
type Recorder struct {
	store   *memory.Store
	observe bool
	persist bool
	log     zerolog.Logger
	now     func() time.Time
	report  SessionReport
}

// SessionReport is written once as bb-session-final-*.json.
type SessionReport struct {
	SessionID    string    `json:"session_id"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	ExitReason   string    `json:"exit_reason"`
	Turns        int       `json:"turns"`
	Requests     int       `json:"requests"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	Models       []string  `json:"models,omitempty"`
	Snapshots    int       `json:"snapshots"`
}

func New(store *memory.Store, opts Options) *Recorder {
	r := &Recorder{
		store:   store,
		observe: opts.Observe,
		persist: opts.PersistPayloads,
		log:     opts.Logger,
		now:     time.Now,
	}
	r.report = SessionReport{SessionID: uuid.NewString(), StartedAt: r.now().UTC()}
	return r
}

// SessionID identifies this process's session in every artifact it writes.
func (r *Recorder) SessionID() string {
	if r == nil {
		return ""
	}
	return r.report.SessionID
}

// Emit appends one JSON line to EventsFile when observation is on. fields is
// copied; time, event and session_id are added.
func (r *Recorder) Emit(name string, fields map[string]any) {
	if r == nil || !r.observe {
		return
	}
	m := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		m[k] = v
	}
	m["time"] = r.now().UTC().Format(time.RFC3339Nano)
	m["event"] = name
	m["session_id"] = r.report.SessionID

	b, err := json.Marshal(m)
	if err != nil {
		r.log.Warn().Err(err).Str("event", name).Msg("telemetry: marshal")
		return
	}

	dir := r.store.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.log.Warn().Err(err).Str("dir", dir).Msg("telemetry: mkdir")
		return
	}
	path := filepath.Join(dir, EventsFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		r.log.Warn().Err(err).Str("file", path).Msg("telemetry: open")
		return
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		r.log.Warn().Err(err).Str("file", path).Msg("telemetry: write")
	}
}

// PersistRequest stores an outgoing API payload.
func (r *Recorder) PersistRequest(ctx context.Context, payload []byte) string {
	return r.persistPayload(ctx, memory.KindRequest, payload)
}

// PersistResponse stores a raw API response body.
func (r *Recorder) PersistResponse(ctx context.Context, payload []byte) string {
	return r.persistPayload(ctx, memory.KindResponse, payload)
}

func (r *Recorder) persistPayload(ctx context.Context, kind memory.Kind, payload []byte) string {
	if r == nil || !r.persist || len(payload) == 0 {
		return ""
	}
	turnID, _ := TurnIDFromContext(ctx)
	meta := map[string]any{"session_id": r.report.SessionID, "turn_id": turnID}
	stamped, err := sjson.SetBytes(payload, metaKey, meta)
	if err != nil {
		// Not an object; keep the body as-is rather than lose it.
		stamped = payload
	}
	path, err := r.store.WriteArtifact(kind, stamped)
	if err != nil {
		r.log.Warn().Err(err).Str("kind", kind.String()).Msg("telemetry: persist payload")
		return ""
	}
	return path
}

// RecordUsage adds one API call's token counts to the session totals.
func (r *Recorder) RecordUsage(model string, inputTokens, outputTokens int64) {
	if r == nil {
		return
	}
	r.report.Requests++
	r.report.InputTokens += inputTokens
	r.report.OutputTokens += outputTokens
	for _, m := range r.report.Models {
		if m == model {
			return
		}
	}
	r.report.Models = append(r.report.Models, model)
}

// RecordTurn counts a completed turn and whether its snapshot was written.
func (r *Recorder) RecordTurn(saved bool) {
	if r == nil {
		return
	}
	r.report.Turns++
	if saved {
		r.report.Snapshots++
	}
}

// Report returns a copy of the running totals.
func (r *Recorder) Report() SessionReport {
	if r == nil {
		return SessionReport{}
	}
	rep := r.report
	rep.Models = append([]string(nil), r.report.Models...)
	return rep
}

// Finish writes the session report. It is meant to be called once, on the
// way out; reason is recorded verbatim.
func (r *Recorder) Finish(reason string) (string, error) {
	if r == nil {
		return "", nil
	}
	rep := r.Report()
	rep.EndedAt = r.now().UTC()
	rep.ExitReason = reason

	b, err := json.MarshalIndent(rep, "", " ")
	if err != nil {
		return "", err
	}
	path, err := r.store.WriteArtifact(memory.KindSessionReport, b)
	if err != nil {
		return "", err
	}
	r.Emit("session_finished", map[string]any{"exit_reason": reason, "report": filepath.Base(path)})
	return path, nil
}
