package memory

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// DirName is the hidden directory under the user's home that holds every
// session artifact.
const DirName = ".bb"

// DefaultDir returns <home>/.bb, or <cwd>/.bb when no home directory is
// known. It does not create the directory.
func DefaultDir() (string, error) {
	home, herr := os.UserHomeDir()
	if herr == nil {
		return filepath.Join(home, DirName), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve storage directory: %w", errors.Join(herr, err))
	}
	return filepath.Join(wd, DirName), nil
}

// Store reads and writes conversation snapshots in a single flat directory.
// It is not safe for concurrent use; the REPL drives it from one goroutine.
type Store struct {
	dir            string
	now            func() time.Time
	out            io.Writer
	log            zerolog.Logger
	resumePreClear bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for artifact naming.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithOutput sets where operator-facing text (transcripts, confirmations,
// alerts) is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option { return func(s *Store) { s.out = w } }

// WithLogger sets the diagnostic logger. Defaults to a disabled logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Store) { s.log = l } }

// WithPreClearResume controls whether pre-clear snapshots may be resumed.
// Defaults to true.
func WithPreClearResume(ok bool) Option { return func(s *Store) { s.resumePreClear = ok } }

// NewStore returns a Store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:            dir,
		now:            time.Now,
		out:            os.Stdout,
		log:            zerolog.Nop(),
		resumePreClear: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

var errEmptySnapshot = errors.New("snapshot holds no messages")

// Load returns the conversation to start the session with. It never fails:
// a missing directory, no resumable snapshot, an unreadable or undecodable
// file all yield a fresh [System(systemPrompt)] conversation.
//
// A restored conversation always carries systemPrompt at index 0, replacing
// whatever system prompt was saved.
func (s *Store) Load(systemPrompt string) []Message {
	fresh := []Message{System(systemPrompt)}

	if _, err := os.Stat(s.dir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Str("dir", s.dir).Msg("conversation directory unreadable; starting fresh")
		}
		return fresh
	}

	msgs, src, err := s.restore()
	if err != nil {
		s.log.Warn().Err(err).Str("file", src).Msg("could not restore conversation; starting fresh")
		return fresh
	}
	if src == "" {
		s.log.Debug().Str("dir", s.dir).Msg("no saved conversation")
		return fresh
	}

	msgs = reconcile(msgs, systemPrompt)
	s.log.Info().Str("file", src).Int("messages", len(msgs)).Msg("resumed conversation")
	Render(s.out, msgs)
	return msgs
}

// restore decodes the newest resumable snapshot. An empty src with a nil
// error means there was nothing to resume.
func (s *Store) restore() (msgs []Message, src string, err error) {
	cands, err := s.candidates()
	if err != nil {
		return nil, "", fmt.Errorf("scan %s: %w", s.dir, err)
	}
	if len(cands) == 0 {
		return nil, "", nil
	}
	latest := cands[0]
	data, err := os.ReadFile(latest.Path)
	if err != nil {
		return nil, latest.Path, err
	}
	msgs, err = Decode(data)
	if err != nil {
		return nil, latest.Path, err
	}
	if len(msgs) == 0 {
		return nil, latest.Path, errEmptySnapshot
	}
	return msgs, latest.Path, nil
}

// candidates returns resumable artifacts, newest first.
func (s *Store) candidates() ([]Artifact, error) {
	all, err := Scan(s.dir)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.Kind.Resumable(s.resumePreClear) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out, nil
}

func newer(a, b Artifact) bool {
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.After(b.ModTime)
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	if a.Seq != b.Seq {
		return a.Seq > b.Seq
	}
	return a.Name > b.Name
}

// reconcile puts prompt at index 0 without touching the input slice.
func reconcile(msgs []Message, prompt string) []Message {
	out := make([]Message, 0, len(msgs)+1)
	if len(msgs) == 0 || msgs[0].Role != RoleSystem {
		out = append(out, System(prompt))
		return append(out, msgs...)
	}
	head := msgs[0]
	head.Content = prompt
	out = append(out, head)
	return append(out, msgs[1:]...)
}
