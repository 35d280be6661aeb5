package bwtindex

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/dnaindex/maws/internal/sais"
	"github.com/dnaindex/maws/mawerr"
)

// Index is a rank-indexed Burrows-Wheeler transform of T#, where T is a
// DNA/RNA string over {A,C,G,T,U,N} and # is a terminator smaller than
// every other symbol. It supports:
//
//   - PrefixCounts: the A/C/G/T rank of any position, in O(block size)
//     worst case and O(1) block-header lookups otherwise;
//   - the C array used to convert a rank into an LF-mapped BWT interval;
//   - the empirical per-symbol probabilities of T, used by Scorer
//     implementations that rank findings by surprise.
type Index struct {
	buf *packedBuffer

	size          uint64 // len(T#)
	sharpPosition uint64
	textLength    uint64 // len(T)

	// C[i] is the number of characters of T (the terminator not counted)
	// smaller than the i-th symbol of {A,C,G,T,N}; C[0] is always 0.
	C [5]uint64

	probabilities    [4]float64
	logProbabilities [4]float64
}

// Build constructs an Index over text (which must not itself contain the
// terminator byte). The suffix array of text+# is computed via
// internal/sais, then folded into the packed rank structure.
func Build(text []byte) (*Index, error) {
	if len(text) == 0 {
		return nil, fmt.Errorf("bwtindex: cannot index an empty string: %w", mawerr.ErrInputFormat)
	}

	symbols, err := EncodeText(text)
	if err != nil {
		return nil, err
	}

	// sais.Build requires a sentinel strictly smaller than every other
	// symbol, so the 5-letter packed alphabet {A,C,G,T,N} is shifted up
	// by one here and # takes symbol 0.
	saInput := make([]int, len(text)+1)
	for i, s := range symbols {
		saInput[i] = int(s) + 1
	}
	saInput[len(text)] = 0

	sa, err := sais.Build(saInput, numPackedSymbols+1)
	if err != nil {
		return nil, fmt.Errorf("bwtindex: suffix array construction failed: %w", err)
	}

	n := len(sa)
	bwtSymbols := make([]uint8, n)
	sharpPosition := -1
	for i, textPos := range sa {
		if textPos == 0 {
			sharpPosition = i
			bwtSymbols[i] = SymA
			continue
		}
		bwtSymbols[i] = symbols[textPos-1]
	}
	if sharpPosition < 0 {
		return nil, fmt.Errorf("bwtindex: internal error, terminator not found in suffix array")
	}

	buf, total, err := buildPackedBuffer(bwtSymbols)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		buf:           buf,
		size:          uint64(n),
		sharpPosition: uint64(sharpPosition),
		textLength:    uint64(len(text)),
	}
	idx.C[0] = 0
	idx.C[1] = total[0] - 1 // one A is really the substituted '#'
	idx.C[2] = idx.C[1] + total[1]
	idx.C[3] = idx.C[2] + total[2]
	idx.C[4] = idx.C[3] + total[3]
	idx.computeProbabilities()

	return idx, nil
}

func (idx *Index) computeProbabilities() {
	for i := 0; i < 4; i++ {
		idx.probabilities[i] = float64(idx.C[i+1]-idx.C[i]) / float64(idx.textLength)
		idx.logProbabilities[i] = math.Log(idx.probabilities[i])
	}
}

// Len returns the length of T# (the indexed string including its terminator).
func (idx *Index) Len() uint64 { return idx.size }

// TextLength returns the length of T (excluding the terminator).
func (idx *Index) TextLength() uint64 { return idx.textLength }

// SharpPosition returns the row of the BWT matrix at which the terminator
// appears.
func (idx *Index) SharpPosition() uint64 { return idx.sharpPosition }

// CArray returns the boundary array C[0..4] for {A,C,G,T,N} (see Index.C).
func (idx *Index) CArray() [5]uint64 { return idx.C }

// Probabilities returns the empirical probability of A,C,G,T in T.
func (idx *Index) Probabilities() [4]float64 { return idx.probabilities }

// LogProbabilities returns the natural log of Probabilities(), precomputed
// once at build/load time for Scorer implementations.
func (idx *Index) LogProbabilities() [4]float64 { return idx.logProbabilities }

// PrefixCounts returns the number of A,C,G,T characters among BWT
// positions [0,pos).
func (idx *Index) PrefixCounts(pos uint64) [4]uint64 {
	raw := idx.buf.rankAt(int(pos))
	if pos > idx.sharpPosition {
		// One of the A's counted above is really the substituted '#'.
		raw[SymA]--
	}
	return raw
}

// MultiPrefixCounts batches PrefixCounts over positions, which must be
// sorted ascending; see packedBuffer.multiPrefixCounts.
func (idx *Index) MultiPrefixCounts(positions []int) [][4]uint64 {
	raw := idx.buf.multiPrefixCounts(positions)
	for i, pos := range positions {
		if uint64(pos) > idx.sharpPosition {
			raw[i][SymA]--
		}
	}
	return raw
}

const headerWords = 8

// Serialize writes the index in the byte-exact format: eight little-endian
// 64-bit words (size, sharpPosition, textLength, C[0..4]) followed by the
// raw block payloads (28 words/block, header words omitted — they are
// recomputed by Load via a forward scan, just as the block headers
// themselves are rebuilt from the packed bits rather than trusted blindly).
func (idx *Index) Serialize(w io.Writer) error {
	var header [headerWords]uint64
	header[0] = idx.size
	header[1] = idx.sharpPosition
	header[2] = idx.textLength
	copy(header[3:], idx.C[:])

	var headerBytes [headerWords * 8]byte
	for i, v := range header {
		binary.LittleEndian.PutUint64(headerBytes[i*8:], v)
	}
	if _, err := w.Write(headerBytes[:]); err != nil {
		return fmt.Errorf("bwtindex: writing header: %w", mawerr.IO(err))
	}

	payload := make([]byte, 0, idx.buf.numBlocks*payloadWordsPerBlock*4)
	var wordBytes [4]byte
	for block := 0; block < idx.buf.numBlocks; block++ {
		off := block * wordsPerBlock
		for w := 0; w < payloadWordsPerBlock; w++ {
			binary.LittleEndian.PutUint32(wordBytes[:], idx.buf.words[off+blockHeaderWords+w])
			payload = append(payload, wordBytes[:]...)
		}
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("bwtindex: writing payload: %w", mawerr.IO(err))
	}
	return nil
}

// Load reads an index previously written by Serialize.
func Load(r io.Reader) (*Index, error) {
	var headerBytes [headerWords * 8]byte
	if _, err := io.ReadFull(r, headerBytes[:]); err != nil {
		return nil, fmt.Errorf("bwtindex: reading header: %w", mawerr.IO(err))
	}

	idx := &Index{}
	idx.size = binary.LittleEndian.Uint64(headerBytes[0:8])
	idx.sharpPosition = binary.LittleEndian.Uint64(headerBytes[8:16])
	idx.textLength = binary.LittleEndian.Uint64(headerBytes[16:24])
	for i := 0; i < 5; i++ {
		idx.C[i] = binary.LittleEndian.Uint64(headerBytes[24+i*8 : 32+i*8])
	}
	idx.computeProbabilities()

	nChars := int(idx.size)
	buf := newPackedBuffer(nChars)
	payload := make([]byte, buf.numBlocks*payloadWordsPerBlock*4)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("bwtindex: reading payload: %w", mawerr.IO(err))
	}
	for block := 0; block < buf.numBlocks; block++ {
		off := block * wordsPerBlock
		for w := 0; w < payloadWordsPerBlock; w++ {
			b := payload[(block*payloadWordsPerBlock+w)*4:]
			buf.words[off+blockHeaderWords+w] = binary.LittleEndian.Uint32(b)
		}
	}

	recomputeBlockHeaders(buf, nChars)
	idx.buf = buf
	return idx, nil
}

// recomputeBlockHeaders rebuilds every block's cached A/C/G/T prefix
// counts by scanning the packed miniblocks in order, the same forward
// pass buildPackedBuffer uses while packing — deserialization trusts only
// the bits it just read, not any header that might have been written by a
// different (possibly stale) build.
func recomputeBlockHeaders(buf *packedBuffer, nChars int) {
	var running [4]uint64
	miniblockID := 0
	for pos := 0; pos < nChars; pos += charsPerMiniblock {
		if miniblockID%miniblocksPerBlock == 0 {
			buf.setBlockHeader(miniblockID/miniblocksPerBlock, running)
		}
		mb := buf.getMiniblock(miniblockID)
		chars := miniblockChars[mb]
		for k := 0; k < charsPerMiniblock && pos+k < nChars; k++ {
			if chars[k] < 4 {
				running[chars[k]]++
			}
		}
		miniblockID++
	}
}
