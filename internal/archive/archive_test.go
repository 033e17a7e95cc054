package archive

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

func sampleLog(id string) []settlement.Entry {
	return []settlement.Entry{
		{
			SessionID: id, Seq: 1, Tick: 1,
			Intent: intent.Intent{SessionID: id, ActorID: "A", Kind: intent.KindCreate, Seq: 1, Processed: true,
				Config: &intent.SessionConfig{Kind: world.KindRumble, Seed: 9}},
			Outcome: settlement.Apply(settlement.Event{Type: settlement.EventSessionNew, Actor: "A", Target: "rumble", Amount: 20}),
		},
		{
			SessionID: id, Seq: 2, Tick: 1,
			Intent:  intent.Intent{SessionID: id, ActorID: "A", Kind: intent.KindRumbleJoin, Seq: 2, Processed: true},
			Outcome: settlement.Reject("rumble closed"),
		},
	}
}

func TestExportImport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleLog("r1")))

	got, err := Import(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleLog("r1"), got)
}

func TestExport_IsCanonicalJSONLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleLog("r1")))

	dec, err := zstd.NewReader(&buf)
	require.NoError(t, err)
	defer dec.Close()
	var plain bytes.Buffer
	_, err = plain.ReadFrom(dec)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(plain.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.True(t, bytes.HasPrefix(lines[1], []byte(`{"intent":{"actor_id":"A","kind":"rumble.join"`)), string(lines[1]))
}

func TestImport_RejectsMixedSessions(t *testing.T) {
	var buf bytes.Buffer
	mixed := append(sampleLog("r1"), sampleLog("r2")...)
	require.NoError(t, Export(&buf, mixed))

	_, err := Import(&buf)
	assert.True(t, errors.Is(err, ErrMixedSessions))
}

func TestImport_NotZstd(t *testing.T) {
	_, err := Import(bytes.NewReader([]byte("{}\n")))
	assert.Error(t, err)
}

func TestFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "r1"+Extension)
	require.NoError(t, WriteFile(path, sampleLog("r1")))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing"+Extension))
	assert.Error(t, err)
}
