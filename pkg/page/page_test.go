package page

import (
	"errors"
	"testing"

	"github.com/hyp3rd/pagetemp/internal/sentinel"
)

func TestOf_AlignsDown(t *testing.T) {
	tests := []struct {
		address  uint64
		pageSize uint64
		want     Page
	}{
		{0x7fffffffd9a8, 4096, 0x7fffffffd000},
		{0x1000, 4096, 0x1000},
		{0xfff, 4096, 0},
		{0x12345, 1, 0x12345},
		{0x12345, 0x10000, 0x10000},
	}

	for _, tt := range tests {
		got, err := Of(tt.address, tt.pageSize)
		if err != nil {
			t.Fatalf("Of(%#x, %d) error: %v", tt.address, tt.pageSize, err)
		}

		if got != tt.want {
			t.Fatalf("Of(%#x, %d) = %s, want %s", tt.address, tt.pageSize, got, tt.want)
		}
	}
}

func TestOf_RejectsNonPowerOfTwo(t *testing.T) {
	for _, size := range []uint64{0, 3, 4095, 6000} {
		if _, err := Of(0x1000, size); !errors.Is(err, sentinel.ErrInvalidPageSize) {
			t.Fatalf("expected ErrInvalidPageSize for %d, got %v", size, err)
		}

		if _, err := NewTranslator(size); !errors.Is(err, sentinel.ErrInvalidPageSize) {
			t.Fatalf("expected ErrInvalidPageSize from NewTranslator(%d), got %v", size, err)
		}
	}
}

func TestTranslator_MatchesFromAddress(t *testing.T) {
	tr, err := NewTranslator(4096)
	if err != nil {
		t.Fatalf("NewTranslator error: %v", err)
	}

	for _, addr := range []uint64{0, 1, 4095, 4096, 0xdeadbeef, 0x7fffffffd9a8} {
		if tr.Page(addr) != FromAddress(addr) {
			t.Fatalf("translator and FromAddress disagree on %#x", addr)
		}
	}
}

func TestPage_String(t *testing.T) {
	if s := Page(0x7fffffffd000).String(); s != "0x7fffffffd000" {
		t.Fatalf("unexpected string %q", s)
	}
}
