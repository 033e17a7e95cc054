// Package archive moves settlement logs in and out of the store as
// zstd-compressed JSON lines, one settlement per line.
package archive

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/roach88/intents/internal/canon"
	"github.com/roach88/intents/internal/settlement"
)

// Extension is the conventional file suffix.
const Extension = ".jsonl.zst"

// ErrMixedSessions is returned when an archive holds more than one session.
var ErrMixedSessions = errors.New("archive mixes sessions")

// Export writes entries as canonical JSON lines through a zstd encoder.
func Export(w io.Writer, entries []settlement.Entry) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 128*1024)

	for _, e := range entries {
		b, err := canon.Marshal(e)
		if err != nil {
			_ = enc.Close()
			return fmt.Errorf("export seq %d: %w", e.Seq, err)
		}
		if _, err := bw.Write(b); err != nil {
			_ = enc.Close()
			return fmt.Errorf("export seq %d: %w", e.Seq, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			_ = enc.Close()
			return fmt.Errorf("export seq %d: %w", e.Seq, err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// Import reads an archive written by Export. All entries must belong to
// one session; they are returned in file order.
func Import(r io.Reader) ([]settlement.Entry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var entries []settlement.Entry
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e settlement.Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("import line %d: %w", line, err)
		}
		if len(entries) > 0 && e.SessionID != entries[0].SessionID {
			return nil, fmt.Errorf("import line %d: %w: %s and %s", line, ErrMixedSessions, entries[0].SessionID, e.SessionID)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return entries, nil
}

// WriteFile exports entries to path, creating parent directories.
func WriteFile(path string, entries []settlement.Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Export(f, entries); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadFile imports the archive at path.
func ReadFile(path string) ([]settlement.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Import(f)
}
