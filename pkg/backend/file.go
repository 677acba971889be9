package backend

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyp3rd/ewrap"
	"github.com/klauspost/compress/gzip"

	"github.com/hyp3rd/pagetemp/internal/constants"
	"github.com/hyp3rd/pagetemp/internal/libs/serializer"
	"github.com/hyp3rd/pagetemp/internal/sentinel"
)

const (
	// FileExt is appended to the series name to form its file path.
	FileExt = ".bin.gz"
	// maxRecordSize bounds the length prefix of one encoded record.
	maxRecordSize = 1 << 16
)

type seriesWriter struct {
	file *os.File
	gz   *gzip.Writer
	buf  *bufio.Writer
}

// File is a sink writing every series to <root>/<series>.bin.gz as a gzip stream
// of uvarint length-prefixed encoded records.
type File struct {
	mu         sync.Mutex
	root       string
	serializer serializer.ISerializer
	writers    map[string]*seriesWriter
	closed     bool
}

// NewFile creates a file sink. The root directory is created if missing.
func NewFile(opts ...Option[File]) (*File, error) {
	f := &File{writers: make(map[string]*seriesWriter)}
	ApplyOptions(f, opts...)

	if f.root == "" {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "root dir")
	}

	if f.serializer == nil {
		var err error

		f.serializer, err = serializer.New(constants.DefaultSerializer)
		if err != nil {
			return nil, err
		}
	}

	err := os.MkdirAll(f.root, 0o750)
	if err != nil {
		return nil, ewrap.Wrapf(err, "failed to create %s", f.root)
	}

	return f, nil
}

// Path returns the file a series is written to.
func (f *File) Path(series string) string {
	return filepath.Join(f.root, filepath.FromSlash(series)+FileExt)
}

// Append encodes records at the end of the series file.
func (f *File) Append(ctx context.Context, series string, records ...Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ewrap.Wrap(sentinel.ErrSinkClosed, series)
	}

	w, err := f.writer(series)
	if err != nil {
		return err
	}

	var prefix [binary.MaxVarintLen64]byte

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, err.Error())
		}

		data, err := f.serializer.Marshal(rec)
		if err != nil {
			return err
		}

		n := binary.PutUvarint(prefix[:], uint64(len(data)))

		_, err = w.buf.Write(prefix[:n])
		if err == nil {
			_, err = w.buf.Write(data)
		}

		if err != nil {
			return ewrap.Wrapf(err, "failed to write series %s", series)
		}
	}

	return nil
}

func (f *File) writer(series string) (*seriesWriter, error) {
	if w, ok := f.writers[series]; ok {
		return w, nil
	}

	path := f.Path(series)

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return nil, ewrap.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, ewrap.Wrapf(err, "failed to open %s", path)
	}

	gz := gzip.NewWriter(file)
	w := &seriesWriter{file: file, gz: gz, buf: bufio.NewWriter(gz)}
	f.writers[series] = w

	return w, nil
}

// Series reads a series back. Pending writes of an open sink are flushed first.
func (f *File) Series(_ context.Context, series string) ([]Record, error) {
	f.mu.Lock()
	if w, ok := f.writers[series]; ok {
		err := w.close()
		delete(f.writers, series)

		if err != nil {
			f.mu.Unlock()

			return nil, err
		}
	}
	f.mu.Unlock()

	return ReadSeriesFile(f.Path(series), f.serializer)
}

// Close flushes and closes every series file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	var errs []error

	for series, w := range f.writers {
		if err := w.close(); err != nil {
			errs = append(errs, ewrap.Wrapf(err, "failed to close series %s", series))
		}
	}

	clear(f.writers)

	return errors.Join(errs...)
}

func (w *seriesWriter) close() error {
	return errors.Join(w.buf.Flush(), w.gz.Close(), w.file.Close())
}

// ReadSeriesFile decodes every record of a file written by File.
// Files appended to across several sessions hold one gzip member per session.
func ReadSeriesFile(path string, s serializer.ISerializer) ([]Record, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, ewrap.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}

	if err != nil {
		return nil, ewrap.Wrapf(err, "failed to open gzip stream %s", path)
	}
	defer gz.Close()

	reader := bufio.NewReader(gz)

	var records []Record

	for {
		size, err := binary.ReadUvarint(reader)
		if errors.Is(err, io.EOF) {
			return records, nil
		}

		if err != nil {
			return nil, ewrap.Wrapf(err, "failed to read record length in %s", path)
		}

		if size > maxRecordSize {
			return nil, ewrap.Wrapf(sentinel.ErrCorruptSeries, "record of %d bytes in %s", size, path)
		}

		data := make([]byte, size)

		_, err = io.ReadFull(reader, data)
		if err != nil {
			return nil, ewrap.Wrapf(err, "truncated record in %s", path)
		}

		var rec Record

		err = s.Unmarshal(data, &rec)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}
}
