package memory_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/bb-agent/memory"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		kind memory.Kind
		ok   bool
	}{
		{"bb-1700000000000.json", memory.KindConversation, true},
		{"bb-1700000000000-2.json", memory.KindConversation, true},
		{"BB-1700000000000.JSON", memory.KindConversation, true},
		{"bb-pre-clear-1700000000000.json", memory.KindPreClear, true},
		{"bb-quota-exceeded-500.json", memory.KindQuotaExceeded, true},
		{"BB-Quota-Exceeded-500.json", memory.KindQuotaExceeded, true},
		{"bb-req-1.json", memory.KindRequest, true},
		{"bb-resp-1.json", memory.KindResponse, true},
		{"bb-session-final-1.json", memory.KindSessionReport, true},
		{"bb-request-notes.json", memory.KindConversation, true},
		{"events.jsonl", 0, false},
		{"bb-1700000000000.txt", 0, false},
		{"notes.json", 0, false},
		{"config.yaml", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, ok := memory.Classify(tc.name)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.kind, kind)
			}
		})
	}
}

func TestKind_Resumable(t *testing.T) {
	assert.True(t, memory.KindConversation.Resumable(false))
	assert.True(t, memory.KindPreClear.Resumable(true))
	assert.False(t, memory.KindPreClear.Resumable(false))
	for _, k := range []memory.Kind{memory.KindQuotaExceeded, memory.KindRequest, memory.KindResponse, memory.KindSessionReport} {
		assert.False(t, k.Resumable(true), k.String())
		assert.True(t, k.Diagnostic(), k.String())
	}
	assert.False(t, memory.KindPreClear.Diagnostic())
}

func TestArtifactName_ClassifiesBack(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	kinds := []memory.Kind{
		memory.KindConversation, memory.KindPreClear, memory.KindQuotaExceeded,
		memory.KindRequest, memory.KindResponse, memory.KindSessionReport,
	}
	for _, k := range kinds {
		for _, seq := range []int{0, 3} {
			name := memory.ArtifactName(k, at, seq)
			got, ok := memory.Classify(name)
			require.True(t, ok, name)
			assert.Equal(t, k, got, name)
		}
	}
	assert.Equal(t, "bb-1700000000123.json", memory.ArtifactName(memory.KindConversation, at, 0))
	assert.Equal(t, "bb-pre-clear-1700000000123-3.json", memory.ArtifactName(memory.KindPreClear, at, 3))
}

func TestScan_SkipsUnrelatedEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"bb-100.json", "bb-req-100.json", "events.jsonl", "notes.txt", "bb-100.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "bb-200.json"), 0o755))

	arts, err := memory.Scan(dir)
	require.NoError(t, err)

	got := map[string]memory.Kind{}
	for _, a := range arts {
		got[a.Name] = a.Kind
		assert.Equal(t, filepath.Join(dir, a.Name), a.Path)
	}
	assert.Equal(t, map[string]memory.Kind{
		"bb-100.json":     memory.KindConversation,
		"bb-req-100.json": memory.KindRequest,
	}, got)
}

func TestScan_ParsesStampAndSeq(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bb-quota-exceeded-1500-4.json"), []byte("[]"), 0o644))

	arts, err := memory.Scan(dir)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, time.UnixMilli(1500), arts[0].Timestamp)
	assert.Equal(t, 4, arts[0].Seq)
}

func TestScan_MissingDir(t *testing.T) {
	_, err := memory.Scan(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
