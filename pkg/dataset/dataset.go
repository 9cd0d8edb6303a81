// Package dataset implements the line-oriented record containers used by
// every stage, and the sampling cursor that reads them.
//
// A Dataset never loads its records into memory. Each call to Iterate opens
// the source, streams through it once per requested cycle and closes it when
// the consumer stops ranging, whether the traversal completed, failed or was
// abandoned early:
//
//	ds := dataset.OpenSparse("train.sparse.jsonl.gz")
//	for ex, err := range ds.Iterate(dataset.Sampling{SkipNth: 5}) {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
//
// Sampling selects records by physical position, so disjoint train and test
// partitions of one file can be read without copying it.
package dataset

import (
	"bufio"
	"io"
	"iter"

	"github.com/ajitpratap0/ctrflow/pkg/compression"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
)

const (
	// DefaultBufferSize is the maximum line length accepted by default.
	DefaultBufferSize = 16 * 1024 * 1024
	readAhead         = 256 * 1024
)

// Codec converts between one line and one record.
type Codec[T any] interface {
	Decode(line []byte) (T, error)
	Encode(v T) ([]byte, error)
}

// Option configures a Dataset or a Writer.
type Option func(*options)

type options struct {
	algorithm  compression.Algorithm
	explicit   bool
	level      compression.Level
	bufferSize int
}

// WithCompression forces a compression algorithm instead of detecting it
// from the file extension.
func WithCompression(alg compression.Algorithm) Option {
	return func(o *options) {
		o.algorithm = alg
		o.explicit = true
	}
}

// WithCompressionLevel sets the level used by writers.
func WithCompressionLevel(level compression.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithBufferSize sets the maximum accepted line length.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

func buildOptions(path string, opts []Option) options {
	o := options{
		level:      compression.Default,
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.explicit {
		o.algorithm = compression.Detect(path)
	}
	return o
}

// Dataset is a restartable, read-only view over line-delimited records.
type Dataset[T any] struct {
	source     Source
	codec      Codec[T]
	algorithm  compression.Algorithm
	bufferSize int
}

// New creates a dataset over an arbitrary source. Compression is detected
// from the source name unless WithCompression is given.
func New[T any](src Source, codec Codec[T], opts ...Option) *Dataset[T] {
	o := buildOptions(src.String(), opts)
	return &Dataset[T]{
		source:     src,
		codec:      codec,
		algorithm:  o.algorithm,
		bufferSize: o.bufferSize,
	}
}

// Open creates a dataset over the file at path.
func Open[T any](path string, codec Codec[T], opts ...Option) *Dataset[T] {
	return New(FileSource(path), codec, opts...)
}

// Source returns the underlying source.
func (d *Dataset[T]) Source() Source {
	return d.source
}

// Restartable reports whether the dataset can be traversed more than once.
func (d *Dataset[T]) Restartable() bool {
	return d.source.Restartable()
}

func (d *Dataset[T]) String() string {
	return d.source.String()
}

// All iterates every record once.
func (d *Dataset[T]) All() iter.Seq2[T, error] {
	return d.Iterate(Sampling{})
}

// Iterate returns a lazy sequence of the records selected by s. A decode
// or read failure is yielded once as the error of the final element; the
// sequence ends after it.
func (d *Dataset[T]) Iterate(s Sampling) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		if err := s.Validate(); err != nil {
			yield(zero, err)
			return
		}

		cycles := s.cycles()
		if cycles > 1 && !d.source.Restartable() {
			yield(zero, errors.New(errors.ErrorTypeCapability, "source cannot be reset between cycles").
				WithDetail("source", d.source.String()).
				WithDetail("cycles", cycles))
			return
		}

		handle, err := d.source.Open()
		if err != nil {
			yield(zero, err)
			return
		}
		defer func() {
			if handle != nil {
				_ = handle.Close()
			}
		}()

		yielded := 0
		for c := 0; c < cycles; c++ {
			if c > 0 {
				if handle, err = d.rewind(handle); err != nil {
					yield(zero, err)
					return
				}
			}

			stopped, err := d.traverse(handle, s, &yielded, yield)
			if err != nil {
				yield(zero, err)
				return
			}
			if stopped || s.exhausted(yielded) {
				return
			}
		}
	}
}

// rewind puts the cursor back at the start of the source.
func (d *Dataset[T]) rewind(handle io.ReadCloser) (io.ReadCloser, error) {
	if seeker, ok := handle.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return handle, errors.Wrap(err, errors.ErrorTypeCapability, "failed to reset source").
				WithDetail("source", d.source.String())
		}
		return handle, nil
	}
	if !d.source.Restartable() {
		return handle, errors.New(errors.ErrorTypeCapability, "source cannot be reset").
			WithDetail("source", d.source.String())
	}
	_ = handle.Close()
	return d.source.Open()
}

// traverse makes one pass over the handle. stopped is true when the
// consumer asked to stop.
func (d *Dataset[T]) traverse(r io.Reader, s Sampling, yielded *int, yield func(T, error) bool) (stopped bool, err error) {
	zr, err := compression.NewReader(bufio.NewReaderSize(r, readAhead), d.algorithm)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeData, "failed to open dataset stream").
			WithDetail("source", d.source.String())
	}
	defer zr.Close()

	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 0, 64*1024), d.bufferSize)

	pos := -1
	for scanner.Scan() {
		pos++
		if pos < s.Offset {
			continue
		}
		if s.exhausted(*yielded) {
			return false, nil
		}
		if !s.Selects(pos) {
			continue
		}

		record, err := d.codec.Decode(scanner.Bytes())
		if err != nil {
			return false, errors.Wrap(err, errors.ErrorTypeData, "malformed record").
				WithDetail("source", d.source.String()).
				WithDetail("line", pos+1)
		}

		*yielded++
		if !yield(record, nil) {
			return true, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeData, "failed to read dataset").
			WithDetail("source", d.source.String()).
			WithDetail("line", pos+2)
	}
	return false, nil
}
