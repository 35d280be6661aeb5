package maws

import "github.com/dnaindex/maws/bitio"

// growableBits is a []uint64 bit buffer that doubles its capacity on
// demand, the same growth rule the original char/runs/compression stacks
// use (capacity doubles whenever a write would overflow it).
type growableBits struct {
	words    []uint64
	capBits  int
}

func newGrowableBits(initialBits int) *growableBits {
	if initialBits <= 0 {
		initialBits = 256
	}
	return &growableBits{
		words:   make([]uint64, bitio.WordsForBits(initialBits)),
		capBits: initialBits,
	}
}

func (g *growableBits) ensure(bits int) {
	if bits <= g.capBits {
		return
	}
	newCap := bits * 2
	newWords := make([]uint64, bitio.WordsForBits(newCap))
	copy(newWords, g.words)
	g.words = newWords
	g.capBits = newCap
}

func (g *growableBits) setBit(i int, v uint8) {
	g.ensure(i + 1)
	bitio.WriteBit(g.words, i, v)
}

func (g *growableBits) bit(i int) uint8 { return bitio.ReadBit(g.words, i) }

func (g *growableBits) setTwoBits(i int, v uint8) {
	g.ensure((i + 1) * 2)
	bitio.WriteTwoBits(g.words, i, v)
}

func (g *growableBits) twoBits(i int) uint8 { return bitio.ReadTwoBits(g.words, i) }

func (g *growableBits) hasOneBit(lastBit int) bool {
	if lastBit < 0 {
		return false
	}
	return bitio.HasOneBit(g.words, lastBit)
}

// clone returns an independent copy sized to hold at least capBits.
func (g *growableBits) clone() *growableBits {
	out := &growableBits{words: make([]uint64, len(g.words)), capBits: g.capBits}
	copy(out.words, g.words)
	return out
}

// orInto ORs every word of src into the receiver, growing first if src is
// wider, the same logic mergeCompressedOutput uses to fold a work
// package's compression buffer into the root's.
func (g *growableBits) orInto(src *growableBits, bits int) {
	g.ensure(bits)
	for i, w := range src.words {
		if i >= len(g.words) {
			break
		}
		g.words[i] |= w
	}
}
