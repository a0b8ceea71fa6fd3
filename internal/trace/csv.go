package trace

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultBufferSize is the write buffer used when none is configured.
const DefaultBufferSize = 1 << 20

// CSVWriter writes the membrane-potential trace as CSV and the spike raster
// as lines of space-separated 0/1 flags, one line per tick.
type CSVWriter struct {
	neurons int

	trace   *csv.Writer
	traceBW *bufio.Writer
	spikeBW *bufio.Writer
	closers []io.Closer

	record []string
	line   []byte
}

// NewCSVWriter writes to the given streams. The header is written immediately.
func NewCSVWriter(traceOut, spikesOut io.Writer, neurons, bufSize int) (*CSVWriter, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	w := &CSVWriter{
		neurons: neurons,
		traceBW: bufio.NewWriterSize(traceOut, bufSize),
		spikeBW: bufio.NewWriterSize(spikesOut, bufSize),
		record:  make([]string, neurons+1),
	}
	w.trace = csv.NewWriter(w.traceBW)

	w.record[0] = "time"
	for i := 0; i < neurons; i++ {
		w.record[i+1] = fmt.Sprintf("neuron %d membrane potential", i)
	}
	if err := w.trace.Write(w.record); err != nil {
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	return w, nil
}

// CreateCSV creates (truncating) the trace and spike files at the given
// paths, creating their parent directories.
func CreateCSV(tracePath, spikesPath string, neurons, bufSize int) (*CSVWriter, error) {
	tf, err := createFile(tracePath)
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	sf, err := createFile(spikesPath)
	if err != nil {
		tf.Close()
		return nil, fmt.Errorf("create spike file: %w", err)
	}

	w, err := NewCSVWriter(tf, sf, neurons, bufSize)
	if err != nil {
		tf.Close()
		sf.Close()
		return nil, err
	}
	w.closers = []io.Closer{tf, sf}
	return w, nil
}

// WriteTick appends one row to each file.
func (w *CSVWriter) WriteTick(s Sample) error {
	if err := checkWidth(s, w.neurons); err != nil {
		return err
	}

	w.record[0] = strconv.FormatUint(uint64(s.Tick), 10)
	for i, v := range s.Values {
		w.record[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	if err := w.trace.Write(w.record); err != nil {
		return fmt.Errorf("write trace row: %w", err)
	}

	w.line = w.line[:0]
	for i, fired := range s.Spikes {
		if i > 0 {
			w.line = append(w.line, ' ')
		}
		if fired {
			w.line = append(w.line, '1')
		} else {
			w.line = append(w.line, '0')
		}
	}
	w.line = append(w.line, '\n')
	if _, err := w.spikeBW.Write(w.line); err != nil {
		return fmt.Errorf("write spike row: %w", err)
	}
	return nil
}

// Flush writes buffered rows to the underlying streams.
func (w *CSVWriter) Flush() error {
	w.trace.Flush()
	if err := w.trace.Error(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	if err := w.traceBW.Flush(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	if err := w.spikeBW.Flush(); err != nil {
		return fmt.Errorf("flush spikes: %w", err)
	}
	return nil
}

// Close flushes and closes any files opened by CreateCSV.
func (w *CSVWriter) Close() error {
	errs := []error{w.Flush()}
	for _, c := range w.closers {
		errs = append(errs, c.Close())
	}
	w.closers = nil
	return errors.Join(errs...)
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.Create(path)
}
