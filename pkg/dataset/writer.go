package dataset

import (
	"bufio"
	"io"
	"os"

	"github.com/ajitpratap0/ctrflow/pkg/compression"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/models"
)

// Writer appends records to a line-delimited container.
type Writer[T any] struct {
	codec  Codec[T]
	file   io.Closer
	buf    *bufio.Writer
	zw     io.WriteCloser
	name   string
	count  int
	closed bool
}

// Create creates (or truncates) the file at path. Compression follows the
// file extension unless WithCompression is given.
func Create[T any](path string, codec Codec[T], opts ...Option) (*Writer[T], error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create dataset").
			WithDetail("path", path)
	}
	w, err := newWriter(f, path, codec, buildOptions(path, opts))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter writes records to w. Closing the Writer flushes the stream but
// leaves w open. Compression defaults to none.
func NewWriter[T any](w io.Writer, codec Codec[T], opts ...Option) (*Writer[T], error) {
	return newWriter(w, "stream", codec, buildOptions("", opts))
}

func newWriter[T any](w io.Writer, name string, codec Codec[T], o options) (*Writer[T], error) {
	buf := bufio.NewWriterSize(w, readAhead)
	zw, err := compression.NewWriter(buf, o.algorithm, o.level)
	if err != nil {
		return nil, err
	}
	return &Writer[T]{codec: codec, buf: buf, zw: zw, name: name}, nil
}

// Append encodes v as one line.
func (w *Writer[T]) Append(v T) error {
	if w.closed {
		return errors.New(errors.ErrorTypeState, "append to a closed writer")
	}
	line, err := w.codec.Encode(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode record").
			WithDetail("line", w.count+1)
	}
	if _, err := w.zw.Write(line); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record").WithDetail("path", w.name)
	}
	if _, err := w.zw.Write([]byte{'\n'}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record").WithDetail("path", w.name)
	}
	w.count++
	return nil
}

// Count returns the number of records appended so far.
func (w *Writer[T]) Count() int {
	return w.count
}

// Close flushes the compressor and the file. It is safe to call twice.
func (w *Writer[T]) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var first error
	if err := w.zw.Close(); err != nil {
		first = err
	}
	if err := w.buf.Flush(); err != nil && first == nil {
		first = err
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return errors.Wrap(first, errors.ErrorTypeFile, "failed to close dataset").WithDetail("path", w.name)
	}
	return nil
}

// CreateRaw creates a raw dataset file.
func CreateRaw(path string, opts ...Option) (*Writer[models.RawRecord], error) {
	return Create[models.RawRecord](path, RawCodec{}, opts...)
}

// CreateSparse creates an encoded dataset file.
func CreateSparse(path string, opts ...Option) (*Writer[models.Example], error) {
	return Create[models.Example](path, SparseCodec{}, opts...)
}
