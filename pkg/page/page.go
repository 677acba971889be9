// Package page maps raw memory addresses to the fixed-size pages eviction
// policies operate on.
package page

import (
	"math/bits"
	"strconv"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/pagetemp/internal/constants"
	"github.com/hyp3rd/pagetemp/internal/sentinel"
)

// Page is the base address of an aligned, fixed-size memory region.
type Page uint64

// String returns the page base address in hexadecimal.
func (p Page) String() string {
	return "0x" + strconv.FormatUint(uint64(p), 16)
}

// Of returns the page containing address for the given page size.
// The page size must be a power of two.
func Of(address, pageSize uint64) (Page, error) {
	if !IsPowerOfTwo(pageSize) {
		return 0, ewrap.Wrapf(sentinel.ErrInvalidPageSize, "page size %d", pageSize)
	}

	return Page(address &^ (pageSize - 1)), nil
}

// FromAddress returns the page containing address using the default 4 KiB page size.
func FromAddress(address uint64) Page {
	return Page(address &^ (constants.DefaultPageSize - 1))
}

// IsPowerOfTwo reports whether n is a power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && bits.OnesCount64(n) == 1
}

// Translator aligns addresses to a fixed page size validated at construction.
type Translator struct {
	mask uint64
}

// NewTranslator returns a translator for pageSize.
func NewTranslator(pageSize uint64) (Translator, error) {
	if !IsPowerOfTwo(pageSize) {
		return Translator{}, ewrap.Wrapf(sentinel.ErrInvalidPageSize, "page size %d", pageSize)
	}

	return Translator{mask: ^(pageSize - 1)}, nil
}

// Page returns the page containing address.
func (t Translator) Page(address uint64) Page {
	return Page(address & t.mask)
}
