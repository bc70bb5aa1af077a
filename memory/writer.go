package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// maxSeq bounds the uniqueness-suffix search for one millisecond.
const maxSeq = 1000

// writeData is swapped out in tests to simulate a full disk.
var writeData = (*os.File).Write

// ExitRequest is returned by SaveOnQuotaExceeded. The caller is expected to
// terminate the process with Code once it has unwound.
type ExitRequest struct {
	Code   int
	Reason string
	Path   string // snapshot written before exiting; empty if the write failed
	Err    error  // write failure, if any
}

func (e *ExitRequest) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exit %d: %s (snapshot failed: %v)", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("exit %d: %s (snapshot %s)", e.Code, e.Reason, e.Path)
}

func (e *ExitRequest) Unwrap() error { return e.Err }

// Save writes a turn snapshot and returns its path. Errors are returned to
// the caller unchanged in meaning.
func (s *Store) Save(msgs []Message) (string, error) {
	return s.write(KindConversation, msgs)
}

// SaveBeforeClear preserves msgs ahead of a /clear. Conversations holding at
// most the system prompt are not written and "" is returned.
func (s *Store) SaveBeforeClear(msgs []Message) (string, error) {
	if len(msgs) <= 1 {
		return "", nil
	}
	path, err := s.write(KindPreClear, msgs)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(s.out, "%sConversation saved to %s before clearing.%s\n", ansiGreen, path, ansiReset)
	return path, nil
}

// SaveOnQuotaExceeded writes msgs regardless of length, prints errMsg and
// always returns an *ExitRequest with a non-zero code.
func (s *Store) SaveOnQuotaExceeded(msgs []Message, errMsg string) error {
	req := &ExitRequest{Code: 1, Reason: "quota exceeded"}
	path, err := s.write(KindQuotaExceeded, msgs)
	if err != nil {
		req.Err = err
		s.log.Error().Err(err).Msg("could not save conversation after quota error")
	}
	req.Path = path

	fmt.Fprintf(s.out, "\n%s%s QUOTA EXCEEDED %s\n", ansiBold, ansiRedBG, ansiReset)
	fmt.Fprintf(s.out, "%s%s%s\n", ansiRed, errMsg, ansiReset)
	if path != "" {
		fmt.Fprintf(s.out, "%sConversation saved to %s%s\n", ansiRed, path, ansiReset)
	} else {
		fmt.Fprintf(s.out, "%sConversation could not be saved: %v%s\n", ansiRed, err, ansiReset)
	}
	return req
}

// WriteArtifact stores an already-encoded document under kind's naming
// convention. It is used for diagnostic artifacts owned by other packages.
func (s *Store) WriteArtifact(kind Kind, data []byte) (string, error) {
	if err := s.ensureDir(); err != nil {
		return "", err
	}
	return s.create(kind, data)
}

func (s *Store) write(kind Kind, msgs []Message) (string, error) {
	data, err := Encode(msgs)
	if err != nil {
		return "", fmt.Errorf("encode %s snapshot: %w", kind, err)
	}
	return s.WriteArtifact(kind, data)
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	return nil
}

// create picks the first free name for the current millisecond. O_EXCL
// keeps a second write in the same millisecond from replacing the first.
func (s *Store) create(kind Kind, data []byte) (string, error) {
	t := s.now()
	for seq := 0; seq < maxSeq; seq++ {
		path := filepath.Join(s.dir, ArtifactName(kind, t, seq))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		// A failed write leaves no truncated snapshot behind for Load to trip on.
		if _, err := writeData(f, data); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("close %s: %w", path, err)
		}
		s.log.Debug().Str("file", path).Str("kind", kind.String()).Msg("artifact written")
		return path, nil
	}
	return "", fmt.Errorf("no free %s name at %d", kind, t.UnixMilli())
}
