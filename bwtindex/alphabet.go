package bwtindex

import (
	"fmt"

	"github.com/dnaindex/maws/mawerr"
)

// Sharp is the string terminator symbol appended to every indexed text. It
// is lexicographically smaller than every other symbol and is never stored
// directly in the packed buffer — see Index for how it is folded into A.
const Sharp = '#'

// encodeTable maps an input byte to a packed symbol code in [0,5), or to
// 0xFF if the byte is not part of the indexed alphabet. Both cases of
// DNA and RNA are accepted; U is folded onto the T slot since a single
// index never mixes DNA and RNA.
var encodeTable = func() [256]uint8 {
	var t [256]uint8
	for i := range t {
		t[i] = 0xFF
	}
	t['A'], t['a'] = SymA, SymA
	t['C'], t['c'] = SymC, SymC
	t['G'], t['g'] = SymG, SymG
	t['T'], t['t'] = SymT, SymT
	t['U'], t['u'] = SymT, SymT
	t['N'], t['n'] = SymN, SymN
	return t
}()

// decodeTable is the inverse of encodeTable's four printable symbols; N is
// included because block-less callers (FASTA round-tripping, error
// messages) still want to print it even though it never appears in the
// MAW/MRW alphabet used by frequency bookkeeping.
var decodeTable = [5]byte{'A', 'C', 'G', 'T', 'N'}

// EncodeSymbol returns the packed code for an alphabet byte, or an error if
// c is not one of A/C/G/T/U/N (in either case).
func EncodeSymbol(c byte) (uint8, error) {
	code := encodeTable[c]
	if code == 0xFF {
		return 0, fmt.Errorf("bwtindex: %q is not a valid DNA/RNA symbol: %w", c, mawerr.ErrInputFormat)
	}
	return code, nil
}

// DecodeSymbol returns the uppercase alphabet byte for a packed code in
// [0,5).
func DecodeSymbol(code uint8) byte {
	return decodeTable[code]
}

// EncodeText converts text (without its terminator) into packed symbol
// codes, reporting the offset of the first invalid byte if any.
func EncodeText(text []byte) ([]uint8, error) {
	out := make([]uint8, len(text))
	for i, c := range text {
		code, err := EncodeSymbol(c)
		if err != nil {
			return nil, fmt.Errorf("bwtindex: invalid symbol at position %d: %w", i, err)
		}
		out[i] = code
	}
	return out, nil
}
