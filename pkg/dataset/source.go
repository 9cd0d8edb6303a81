package dataset

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
)

// Source hands out a fresh handle on the underlying records for every
// traversal. The handle is owned by the traversal and closed when it ends.
type Source interface {
	Open() (io.ReadCloser, error)
	// Restartable reports whether Open can be called more than once and
	// whether handles can be rewound.
	Restartable() bool
	String() string
}

// FileSource reads records from a file on disk.
type FileSource string

// Open opens the file for one traversal.
func (p FileSource) Open() (io.ReadCloser, error) {
	f, err := os.Open(string(p))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open dataset").
			WithDetail("path", string(p))
	}
	return f, nil
}

// Restartable is always true for files.
func (FileSource) Restartable() bool { return true }

func (p FileSource) String() string { return string(p) }

// BytesSource serves records from memory. It is mostly useful in tests and
// for small inline datasets.
func BytesSource(b []byte) Source {
	return bytesSource(b)
}

type bytesSource []byte

func (b bytesSource) Open() (io.ReadCloser, error) {
	return readSeekNopCloser{bytes.NewReader(b)}, nil
}

func (bytesSource) Restartable() bool { return true }

func (bytesSource) String() string { return "memory" }

type readSeekNopCloser struct {
	io.ReadSeeker
}

func (readSeekNopCloser) Close() error { return nil }

// ReaderSource wraps a one-shot stream such as stdin. It can be traversed
// exactly once; anything that needs a second pass fails with a capability
// error.
func ReaderSource(r io.Reader) Source {
	return &readerSource{r: r}
}

type readerSource struct {
	mu   sync.Mutex
	r    io.Reader
	used bool
}

func (s *readerSource) Open() (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used {
		return nil, errors.New(errors.ErrorTypeCapability, "stream source cannot be restarted")
	}
	s.used = true
	// Hide any Seek method so a stream is never rewound behind the caller's back.
	return io.NopCloser(struct{ io.Reader }{s.r}), nil
}

func (*readerSource) Restartable() bool { return false }

func (*readerSource) String() string { return "stream" }
