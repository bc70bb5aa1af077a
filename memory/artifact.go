package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a file in the storage directory.
type Kind int

const (
	KindConversation Kind = iota
	KindPreClear
	KindQuotaExceeded
	KindRequest
	KindResponse
	KindSessionReport
)

const (
	artifactPrefix = "bb-"
	artifactExt    = ".json"
)

// markers is checked in order; the first prefix match wins. Conversation
// has no marker of its own and is the fallback.
var markers = []struct {
	kind   Kind
	prefix string
}{
	{KindQuotaExceeded, "bb-quota-exceeded-"},
	{KindRequest, "bb-req-"},
	{KindResponse, "bb-resp-"},
	{KindSessionReport, "bb-session-final-"},
	{KindPreClear, "bb-pre-clear-"},
}

func (k Kind) String() string {
	switch k {
	case KindConversation:
		return "conversation"
	case KindPreClear:
		return "pre-clear"
	case KindQuotaExceeded:
		return "quota-exceeded"
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindSessionReport:
		return "session-final"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Diagnostic reports whether the kind is a log or dump rather than history.
func (k Kind) Diagnostic() bool {
	switch k {
	case KindQuotaExceeded, KindRequest, KindResponse, KindSessionReport:
		return true
	}
	return false
}

// Resumable reports whether an artifact of this kind may seed a new session.
func (k Kind) Resumable(allowPreClear bool) bool {
	switch k {
	case KindConversation:
		return true
	case KindPreClear:
		return allowPreClear
	}
	return false
}

func (k Kind) prefix() string {
	for _, m := range markers {
		if m.kind == k {
			return m.prefix
		}
	}
	return artifactPrefix
}

// Classify maps a bare filename to its Kind. ok is false for files outside
// the bb-*.json pattern, which callers ignore.
func Classify(name string) (kind Kind, ok bool) {
	lower := strings.ToLower(name)
	if !strings.HasPrefix(lower, artifactPrefix) || !strings.HasSuffix(lower, artifactExt) {
		return 0, false
	}
	for _, m := range markers {
		if strings.HasPrefix(lower, m.prefix) {
			return m.kind, true
		}
	}
	return KindConversation, true
}

// ArtifactName builds the filename for kind at t. seq > 0 appends a
// uniqueness suffix for writes landing in the same millisecond.
func ArtifactName(kind Kind, t time.Time, seq int) string {
	name := kind.prefix() + strconv.FormatInt(t.UnixMilli(), 10)
	if seq > 0 {
		name += "-" + strconv.Itoa(seq)
	}
	return name + artifactExt
}

// Artifact is one classified file in the storage directory.
type Artifact struct {
	Name      string
	Path      string
	Kind      Kind
	Timestamp time.Time // from the name; zero when the name carries none
	Seq       int       // same-millisecond uniqueness suffix
	ModTime   time.Time
}

// stampOf extracts the epoch-ms stamp (and optional -seq) from a name.
func stampOf(name string, kind Kind) (time.Time, int) {
	rest := name[len(kind.prefix()):]
	rest = rest[:len(rest)-len(artifactExt)]
	ms, seq, _ := strings.Cut(rest, "-")
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, 0
	}
	n, _ := strconv.Atoi(seq)
	return time.UnixMilli(v), n
}

// Scan lists dir once and returns every file matching the artifact pattern.
// Subdirectories and unrelated files are skipped.
func Scan(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]Artifact, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		kind, ok := Classify(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		ts, seq := stampOf(e.Name(), kind)
		out = append(out, Artifact{
			Name:      e.Name(),
			Path:      filepath.Join(dir, e.Name()),
			Kind:      kind,
			Timestamp: ts,
			Seq:       seq,
			ModTime:   info.ModTime(),
		})
	}
	return out, nil
}
