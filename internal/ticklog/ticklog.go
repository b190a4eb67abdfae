// Package ticklog records simulation frames as zstd-compressed JSON lines
// and reads them back.
package ticklog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/roadagent/internal/sim"
)

const maxLine = 8 << 20

// Writer appends frames to one .jsonl.zst file. It satisfies sim.Observer.
type Writer struct {
	mu    sync.Mutex
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
	every uint64
	n     int
}

// Create opens path for writing, truncating any existing log. Only every
// Nth tick is kept; every <= 1 keeps them all.
func Create(path string, every int) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create tick log dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create tick log: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	if every < 1 {
		every = 1
	}
	return &Writer{f: f, enc: enc, w: bufio.NewWriterSize(enc, 128*1024), every: uint64(every)}, nil
}

// ObserveFrame writes f when its tick falls on the sampling interval.
func (w *Writer) ObserveFrame(_ context.Context, f sim.Frame) error {
	if f.Tick%w.every != 0 {
		return nil
	}
	return w.Write(f)
}

// Write appends one frame.
func (w *Writer) Write(f sim.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return os.ErrClosed
	}
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame %d: %w", f.Tick, err)
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.n++
	return nil
}

// Count returns how many frames have been written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Close flushes the buffer and the zstd stream and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	err := w.w.Flush()
	err = errors.Join(err, w.enc.Close(), w.f.Close())
	w.w, w.enc, w.f = nil, nil, nil
	return err
}

// Read decodes frames from r and calls fn for each in order. Returning
// io.EOF from fn stops early without error.
func Read(r io.Reader, fn func(sim.Frame) error) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		var f sim.Frame
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			return fmt.Errorf("line %d: unmarshal: %w", line, err)
		}
		if err := fn(f); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("line %d: %w", line+1, err)
	}
	return nil
}

// ReadFile is Read over a file on disk.
func ReadFile(path string, fn func(sim.Frame) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := Read(f, fn); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
