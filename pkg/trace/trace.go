// Package trace records one JSON line per tick into a zstd compressed file
// and reads such files back.
package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Record is the trace entry for one tick.
type Record struct {
	Tick      uint64             `json:"tick"`
	Time      time.Time          `json:"time"`
	Command   string             `json:"command,omitempty"`
	Status    []string           `json:"status,omitempty"`
	Positions map[string]float64 `json:"positions,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Writer appends records to a compressed JSONL stream.
type Writer struct {
	mu  sync.Mutex
	c   io.Closer // underlying file, nil when wrapping a caller's writer
	enc *zstd.Encoder
	w   *bufio.Writer
}

// Create opens path for writing, creating parent directories.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.c = f
	return w, nil
}

// NewWriter compresses records into dst. Closing the Writer does not close dst.
func NewWriter(dst io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &Writer{enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

// Write appends r as one line.
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return errors.New("trace writer closed")
	}

	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes buffered records and finishes the zstd frame.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return nil
	}

	err := w.w.Flush()
	err = errors.Join(err, w.enc.Close())
	w.enc = nil
	if w.c != nil {
		err = errors.Join(err, w.c.Close())
		w.c = nil
	}
	return err
}

// Reader decodes records from a compressed JSONL stream.
type Reader struct {
	c   io.Closer
	dec *zstd.Decoder
	sc  *bufio.Scanner
	n   int
}

// Open opens a trace file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.c = f
	return r, nil
}

// NewReader decodes records from src.
func NewReader(src io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &Reader{dec: dec, sc: sc}, nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return Record{}, err
		}
		return Record{}, io.EOF
	}
	r.n++

	var rec Record
	if err := json.Unmarshal(r.sc.Bytes(), &rec); err != nil {
		return Record{}, fmt.Errorf("line %d: unmarshal: %w", r.n, err)
	}
	return rec, nil
}

// ReadAll returns the remaining records.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Close releases the decoder and the file opened by Open.
func (r *Reader) Close() error {
	r.dec.Close()
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}
