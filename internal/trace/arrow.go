package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// DefaultBatchTicks is the number of ticks per Arrow record batch.
const DefaultBatchTicks = 1000

// Schema returns the wide trace schema for n neurons: a tick column, one
// v_<id> column per neuron and one s_<id> spike column per neuron.
func Schema(n int) *arrow.Schema {
	fields := make([]arrow.Field, 0, 1+2*n)
	fields = append(fields, arrow.Field{Name: "tick", Type: arrow.PrimitiveTypes.Uint64})
	for i := 0; i < n; i++ {
		fields = append(fields, arrow.Field{Name: fmt.Sprintf("v_%d", i), Type: arrow.PrimitiveTypes.Float64})
	}
	for i := 0; i < n; i++ {
		fields = append(fields, arrow.Field{Name: fmt.Sprintf("s_%d", i), Type: arrow.FixedWidthTypes.Boolean})
	}
	return arrow.NewSchema(fields, nil)
}

// ArrowWriter writes the trace as an Arrow IPC stream, one record batch per
// batchTicks ticks.
type ArrowWriter struct {
	neurons    int
	batchTicks int
	pending    int

	builder *array.RecordBuilder
	tick    *array.Uint64Builder
	values  []*array.Float64Builder
	spikes  []*array.BooleanBuilder
	writer  *ipc.Writer

	bw     *bufio.Writer
	closer io.Closer
}

// NewArrowWriter writes an IPC stream to out.
func NewArrowWriter(out io.Writer, neurons, batchTicks, bufSize int) *ArrowWriter {
	if batchTicks <= 0 {
		batchTicks = DefaultBatchTicks
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	mem := memory.NewGoAllocator()
	schema := Schema(neurons)

	w := &ArrowWriter{
		neurons:    neurons,
		batchTicks: batchTicks,
		builder:    array.NewRecordBuilder(mem, schema),
		values:     make([]*array.Float64Builder, neurons),
		spikes:     make([]*array.BooleanBuilder, neurons),
		bw:         bufio.NewWriterSize(out, bufSize),
	}
	w.tick = w.builder.Field(0).(*array.Uint64Builder)
	for i := 0; i < neurons; i++ {
		w.values[i] = w.builder.Field(1 + i).(*array.Float64Builder)
		w.spikes[i] = w.builder.Field(1 + neurons + i).(*array.BooleanBuilder)
	}
	w.writer = ipc.NewWriter(w.bw, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	return w
}

// CreateArrow creates (truncating) an Arrow IPC stream file at path.
func CreateArrow(path string, neurons, batchTicks, bufSize int) (*ArrowWriter, error) {
	f, err := createFile(path)
	if err != nil {
		return nil, fmt.Errorf("create arrow file: %w", err)
	}
	w := NewArrowWriter(f, neurons, batchTicks, bufSize)
	w.closer = f
	return w, nil
}

// WriteTick appends one row and flushes a record batch when it is full.
func (w *ArrowWriter) WriteTick(s Sample) error {
	if err := checkWidth(s, w.neurons); err != nil {
		return err
	}
	w.tick.Append(uint64(s.Tick))
	for i := 0; i < w.neurons; i++ {
		w.values[i].Append(s.Values[i])
		w.spikes[i].Append(s.Spikes[i])
	}
	w.pending++
	if w.pending >= w.batchTicks {
		return w.flushBatch()
	}
	return nil
}

func (w *ArrowWriter) flushBatch() error {
	if w.pending == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	w.pending = 0
	if err := w.writer.Write(rec); err != nil {
		return fmt.Errorf("write arrow batch: %w", err)
	}
	return nil
}

// Close writes the final partial batch, ends the stream and closes the
// file opened by CreateArrow.
func (w *ArrowWriter) Close() error {
	var errs []error
	errs = append(errs, w.flushBatch())
	if err := w.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close arrow stream: %w", err))
	}
	w.builder.Release()
	errs = append(errs, w.bw.Flush())
	if w.closer != nil {
		errs = append(errs, w.closer.Close())
		w.closer = nil
	}
	return errors.Join(errs...)
}
