package trace

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"github.com/hyp3rd/ewrap"
	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Reader streams accesses from plain or gzip-compressed trace data.
type Reader struct {
	scanner *bufio.Scanner
	closers []io.Closer
	line    int
}

// NewReader wraps r, decompressing it when it starts with the gzip magic bytes.
func NewReader(r io.Reader) (*Reader, error) {
	buffered := bufio.NewReader(r)

	reader := &Reader{}

	head, err := buffered.Peek(len(gzipMagic))
	if err == nil && bytes.Equal(head, gzipMagic) {
		zr, zerr := gzip.NewReader(buffered)
		if zerr != nil {
			return nil, ewrap.Wrap(zerr, "failed to open gzip stream")
		}

		reader.closers = append(reader.closers, zr)
		reader.scanner = bufio.NewScanner(zr)
	} else {
		reader.scanner = bufio.NewScanner(buffered)
	}

	return reader, nil
}

// Open opens the trace file at path. The returned Reader must be closed.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ewrap.Wrapf(err, "failed to open trace %s", path)
	}

	reader, err := NewReader(f)
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	reader.closers = append(reader.closers, f)

	return reader, nil
}

// Next returns the next access, skipping blank lines. It returns io.EOF at the end of the trace.
func (r *Reader) Next() (Access, error) {
	for r.scanner.Scan() {
		r.line++

		text := r.scanner.Bytes()
		if len(bytes.TrimSpace(text)) == 0 {
			continue
		}

		access, err := ParseLine(string(text))
		if err != nil {
			return Access{}, ewrap.Wrapf(err, "line %d", r.line)
		}

		return access, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Access{}, ewrap.Wrap(err, "failed to read trace")
	}

	return Access{}, io.EOF
}

// Line returns the number of lines read so far.
func (r *Reader) Line() int { return r.line }

// Each calls fn for every remaining access until the trace ends, fn returns an
// error, or ctx is done.
func (r *Reader) Each(ctx context.Context, fn func(Access) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		access, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		err = fn(access)
		if err != nil {
			return err
		}
	}
}

// Close releases the underlying decompressor and file, if any.
func (r *Reader) Close() error {
	var errs []error

	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	r.closers = nil

	if len(errs) > 0 {
		return ewrap.Wrap(errs[0], "failed to close trace")
	}

	return nil
}
