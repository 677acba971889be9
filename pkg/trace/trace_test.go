package trace

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/pagetemp/internal/sentinel"
)

const sample = `R0x7fffffffd9a8
W0x7fffffffd9b0

R601040
W0x0
R0x1000
`

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want Access
	}{
		{"R0x7fffffffd9a8", Access{Load: true, Address: 0x7fffffffd9a8}},
		{"W0x10", Access{Load: false, Address: 0x10}},
		{"R601040", Access{Load: true, Address: 0x601040}},
		{"  W0XFF\r\n", Access{Load: false, Address: 0xff}},
	}

	for _, tt := range tests {
		got, err := ParseLine(tt.line)
		require.NoError(t, err, tt.line)
		require.Equal(t, tt.want, got, tt.line)
	}
}

func TestParseLine_Invalid(t *testing.T) {
	for _, line := range []string{"", "R", "Rxyz", "W0x", "R0x1ffffffffffffffff"} {
		_, err := ParseLine(line)
		require.Error(t, err, line)
		require.True(t, errors.Is(err, sentinel.ErrInvalidTraceLine), line)
	}
}

func readAll(t *testing.T, r *Reader) []Access {
	t.Helper()

	var out []Access

	err := r.Each(context.Background(), func(a Access) error {
		out = append(out, a)

		return nil
	})
	require.NoError(t, err)

	return out
}

func TestReader_Plain(t *testing.T) {
	r, err := NewReader(strings.NewReader(sample))
	require.NoError(t, err)

	got := readAll(t, r)
	require.Len(t, got, 5)
	require.Equal(t, Access{Load: true, Address: 0x601040}, got[2])
	require.Equal(t, 6, r.Line())
	require.NoError(t, r.Close())
}

func TestReader_Gzip(t *testing.T) {
	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)

	require.Len(t, readAll(t, r), 5)
	require.NoError(t, r.Close())
}

func TestReader_ReportsLineOfMalformedAccess(t *testing.T) {
	r, err := NewReader(strings.NewReader("R0x1\nbogus\n"))
	require.NoError(t, err)

	_, err = r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	require.Error(t, err)
	require.True(t, errors.Is(err, sentinel.ErrInvalidTraceLine))
	require.Contains(t, err.Error(), "line 2")

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReader_StopsOnCanceledContext(t *testing.T) {
	r, err := NewReader(strings.NewReader(sample))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = r.Each(ctx, func(Access) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestScan(t *testing.T) {
	r, err := NewReader(strings.NewReader(sample))
	require.NoError(t, err)

	stats, err := Scan(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, Stats{Loads: 3, Stores: 2, Ratio: 1.5, Count: 5}, stats)
}

func TestRatio(t *testing.T) {
	require.InDelta(t, 0.0, Ratio(10, 0), 0)
	require.InDelta(t, 0.3333, Ratio(1, 3), 1e-9)
	require.InDelta(t, 2.0, Ratio(4, 2), 1e-9)
}

func TestStatsDB_GetOrScan(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.txt")
	dbPath := filepath.Join(dir, "db.json")

	require.NoError(t, os.WriteFile(tracePath, []byte(sample), 0o600))

	db, err := OpenStatsDB(dbPath)
	require.NoError(t, err)

	_, ok, err := db.Get(tracePath)
	require.NoError(t, err)
	require.False(t, ok)

	stats, err := db.GetOrScan(context.Background(), tracePath)
	require.NoError(t, err)
	require.Equal(t, uint64(5), stats.Count)

	// The cached entry survives a reopen and is served without the trace.
	require.NoError(t, os.Remove(tracePath))

	reopened, err := OpenStatsDB(dbPath)
	require.NoError(t, err)

	cached, err := reopened.GetOrScan(context.Background(), tracePath)
	require.NoError(t, err)
	require.Equal(t, stats, cached)
}
