// Package trace reads memory-access traces: one access per line, a direction
// letter followed by a hexadecimal address, e.g. "R0x7fffffffd9a8".
package trace

import (
	"strconv"
	"strings"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/pagetemp/internal/sentinel"
)

// Load marks a read access. Any other direction letter is a store.
const Load = 'R'

// Access is a single memory access.
type Access struct {
	Load    bool
	Address uint64
}

// ParseLine parses one trace line. Surrounding whitespace is ignored;
// the address may carry a 0x prefix.
func ParseLine(line string) (Access, error) {
	line = strings.TrimSpace(line)
	if len(line) < 2 {
		return Access{}, ewrap.Wrapf(sentinel.ErrInvalidTraceLine, "%q", line)
	}

	digits := line[1:]
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
	}

	address, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return Access{}, ewrap.Wrapf(sentinel.ErrInvalidTraceLine, "%q: %v", line, err)
	}

	return Access{Load: line[0] == Load, Address: address}, nil
}
