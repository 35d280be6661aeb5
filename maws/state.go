/*
Package maws implements the Minimal Absent Word and Minimal Rare Word
detector callback: it is handed one right-maximal substring at a time by
an enumerator.Enumerator and decides, for every flanking character pair,
whether a MAW/MRW should be reported.
*/
package maws

import (
	"math"
	"strconv"

	"github.com/dnaindex/maws/bwtindex"
	"github.com/dnaindex/maws/enumerator"
)

// Mode selects which family of words State reports.
type Mode uint8

const (
	// ModeMAW reports minimal absent words: aWb such that aWb never
	// occurs in the text but aW and Wb both do.
	ModeMAW Mode = iota
	// ModeMRW reports minimal rare words: aWb occurring in [LowFreq,
	// HighFreq) while aW and Wb both occur at least HighFreq times.
	ModeMRW
)

// Params configures a State.
type Params struct {
	Mode Mode

	// MinLength is the minimum length of an emitted word aWb (i.e.
	// len(W)+2).
	MinLength uint64

	// LowFreq and HighFreq bound the occurrence count of aWb under
	// ModeMRW; unused under ModeMAW.
	LowFreq  uint64
	HighFreq uint64

	// HistogramMin/HistogramMax bound a length histogram of emitted
	// words; HistogramMin == 0 disables the histogram entirely (no
	// emitted word ever has length 0, so this is an unambiguous sentinel).
	HistogramMin uint64
	HistogramMax uint64

	// OutputPath, if non-empty, causes every emitted word to be written
	// to a file at that path (or, for a cloned work package, at that
	// path suffixed with ".<id>").
	OutputPath string
	// Compress enables the run-length compressed encoding for words
	// whose repeated middle character forms a homopolymer run.
	Compress bool

	// Scorer optionally annotates and/or filters emitted words.
	Scorer Scorer
}

// State is an enumerator.Detector that implements the MAW/MRW callback.
type State struct {
	params Params
	id     int

	nMAWs             uint64
	minObservedLength uint64
	maxObservedLength uint64
	nMaxreps          uint64
	nMAWMaxreps       uint64

	histogram []uint64

	leftFreqs  [4]uint64
	rightFreqs [4]uint64

	charStack *growableBits
	runsStack *growableBits

	compressionBuffers [4][4][4]*growableBits
	compressionLengths [4][4][4]uint64

	output *outputWriter
	scorer Scorer
}

// New builds the root State for a traversal configured by params.
func New(params Params) (*State, error) {
	s := &State{
		params:            params,
		minObservedLength: math.MaxUint64,
	}
	if params.HistogramMin != 0 {
		s.histogram = make([]uint64, params.HistogramMax-params.HistogramMin+1)
	}
	if params.OutputPath != "" {
		s.charStack = newGrowableBits(256)
		if params.Compress {
			s.runsStack = newGrowableBits(256)
		}
		out, err := newOutputWriter(params.OutputPath)
		if err != nil {
			return nil, err
		}
		s.output = out
	}
	if params.Scorer != nil {
		s.scorer = params.Scorer
	}
	return s, nil
}

// NMAWs returns the number of words emitted so far.
func (s *State) NMAWs() uint64 { return s.nMAWs }

// NMaxreps returns the number of right-maximal strings visited with at
// least two distinct left extensions and length+2 >= MinLength.
func (s *State) NMaxreps() uint64 { return s.nMaxreps }

// NMAWMaxreps returns the number of those maximal repeats that emitted
// at least one word.
func (s *State) NMAWMaxreps() uint64 { return s.nMAWMaxreps }

// ObservedLengthRange returns the [min,max] length of emitted words, or
// (0,0) if none were emitted.
func (s *State) ObservedLengthRange() (uint64, uint64) {
	if s.nMAWs == 0 {
		return 0, 0
	}
	return s.minObservedLength, s.maxObservedLength
}

// Histogram returns the length histogram (nil if HistogramMin was 0).
func (s *State) Histogram() []uint64 { return s.histogram }

// Visit implements enumerator.Detector.
func (s *State) Visit(node enumerator.RightMaximalString) {
	if s.output != nil && node.Length != 0 {
		s.pushChar(node)
	}
	if node.NLeftExtensions < 2 || node.Length+2 < s.params.MinLength {
		return
	}
	s.nMaxreps++
	s.initLeftRightFreqs(node)

	found := 0
	for i := uint8(enumerator.ExtA); i <= enumerator.ExtT; i++ {
		if node.LeftExtensionBitmap&(1<<i) == 0 {
			continue
		}
		if s.params.Mode == ModeMRW && s.leftFreqs[i-1] < s.params.HighFreq {
			continue
		}
		for j := uint8(enumerator.ExtA); j <= enumerator.ExtT; j++ {
			if node.RightExtensionBitmap&(1<<j) == 0 {
				continue
			}
			freq := node.FrequencyLeftRight[i][j]
			switch s.params.Mode {
			case ModeMAW:
				if freq != 0 {
					continue
				}
			case ModeMRW:
				if s.rightFreqs[j-1] < s.params.HighFreq || freq >= s.params.HighFreq || freq < s.params.LowFreq {
					continue
				}
			}

			if s.scorer != nil {
				score := s.scorer.Score(i-1, j-1, s.leftFreqs[i-1], s.rightFreqs[j-1], node.Length+2)
				if !s.scorer.Select(score) {
					continue
				}
			}

			found++
			s.emit(node, i, j, found == 1)
		}
	}
	if found > 0 {
		s.nMAWMaxreps++
	}
}

func (s *State) initLeftRightFreqs(node enumerator.RightMaximalString) {
	for i := uint8(enumerator.ExtA); i <= enumerator.ExtT; i++ {
		if node.LeftExtensionBitmap&(1<<i) == 0 {
			continue
		}
		var freq uint64
		for j := 0; j <= enumerator.ExtN; j++ {
			freq += node.FrequencyLeftRight[i][j]
		}
		s.leftFreqs[i-1] = freq
	}
	for j := uint8(enumerator.ExtA); j <= enumerator.ExtT; j++ {
		if node.RightExtensionBitmap&(1<<j) == 0 {
			continue
		}
		var freq uint64
		for i := 0; i <= enumerator.ExtN; i++ {
			freq += node.FrequencyLeftRight[i][j]
		}
		s.rightFreqs[j-1] = freq
	}
}

// pushChar records the leftmost character of node (the right-maximal
// string W currently being visited) onto the character stack, keyed by
// W's own length, and — when run-length compression is enabled — tracks
// whether W is a homopolymer run of a single repeated character.
func (s *State) pushChar(node enumerator.RightMaximalString) {
	c := node.FirstCharacter - 1
	s.charStack.setTwoBits(int(node.Length-1), c)
	if s.runsStack == nil {
		return
	}
	var flag uint8
	switch {
	case node.Length <= 1:
		flag = 1
	case s.runsStack.bit(int(node.Length-2)) == 0:
		flag = 0
	case c == s.charStack.twoBits(int(node.Length-2)):
		flag = 1
	default:
		flag = 0
	}
	s.runsStack.setBit(int(node.Length-1), flag)
}

func (s *State) emit(node enumerator.RightMaximalString, i, j uint8, first bool) {
	s.nMAWs++
	length := node.Length + 2
	if length < s.minObservedLength {
		s.minObservedLength = length
	}
	if length > s.maxObservedLength {
		s.maxObservedLength = length
	}
	s.incrementHistogram(length)

	if s.output == nil {
		return
	}
	leftChar := bwtindex.DecodeSymbol(i - 1)
	rightChar := bwtindex.DecodeSymbol(j - 1)

	if s.params.Compress && node.Length >= 1 && i != node.FirstCharacter && j != node.FirstCharacter &&
		s.runsStack.bit(int(node.Length-1)) != 0 {
		s.compressWord(i-1, node.FirstCharacter-1, j-1, node.Length)
		return
	}
	s.printWord(node, leftChar, rightChar, first)
}

func (s *State) incrementHistogram(length uint64) {
	if s.histogram == nil {
		return
	}
	var pos uint64
	switch {
	case length >= s.params.HistogramMax:
		pos = uint64(len(s.histogram)) - 1
	case length <= s.params.HistogramMin:
		pos = 0
	default:
		pos = length - s.params.HistogramMin
	}
	s.histogram[pos]++
}

func (s *State) printWord(node enumerator.RightMaximalString, left, right byte, first bool) {
	if first && node.Length != 0 {
		s.writeInfixReversed(node)
		s.output.writeSeparatorPair()
	}
	s.output.w.WriteByte(left)
	s.output.writeSeparatorPair()
	s.output.w.WriteByte(right)
	s.output.writeSeparatorWord()
}

// writeInfixReversed writes W's characters left-to-right. The character
// stack holds, at slot k, the leftmost character of the ancestor node of
// length k+1 on the path from the root to the current node; since each
// step of the traversal prepends one character, reading slots
// len(W)-1..0 in descending order reconstructs W left-to-right.
func (s *State) writeInfixReversed(node enumerator.RightMaximalString) {
	for k := int(node.Length) - 1; k >= 0; k-- {
		c := s.charStack.twoBits(k)
		s.output.w.WriteByte(bwtindex.DecodeSymbol(c))
	}
}

func (s *State) compressWord(leftIdx, firstCharIdx, rightIdx uint8, n uint64) {
	buf := s.compressionBuffers[leftIdx][firstCharIdx][rightIdx]
	if buf == nil {
		buf = newGrowableBits(256)
		s.compressionBuffers[leftIdx][firstCharIdx][rightIdx] = buf
	}
	if n > s.compressionLengths[leftIdx][firstCharIdx][rightIdx] {
		s.compressionLengths[leftIdx][firstCharIdx][rightIdx] = n
	}
	buf.setBit(int(n-1), 1)
}

// Clone implements enumerator.Detector: it hands the new work package a
// copy of the character/runs stacks built so far (so that the subtree it
// owns can keep extending them correctly) but starts its own counters,
// compression buffers, and — if configured — its own numbered output
// file, from scratch.
func (s *State) Clone(id int) enumerator.Detector {
	clone := &State{
		params:            s.params,
		id:                id,
		minObservedLength: math.MaxUint64,
	}
	if s.params.HistogramMin != 0 {
		clone.histogram = make([]uint64, len(s.histogram))
	}
	if s.charStack != nil {
		clone.charStack = s.charStack.clone()
	}
	if s.runsStack != nil {
		clone.runsStack = s.runsStack.clone()
	}
	if s.params.OutputPath != "" {
		path := s.params.OutputPath + "." + strconv.Itoa(id)
		out, err := newOutputWriter(path)
		if err == nil {
			clone.output = out
		}
	}
	if s.scorer != nil {
		clone.scorer = s.scorer.Clone()
	}
	return clone
}

// Merge implements enumerator.Detector: it folds a work package's
// counters, histogram, and compression buffers into the receiver. Per-
// package output files are never merged — they remain separate numbered
// files on disk, same as the traversal this package is grounded on.
func (s *State) Merge(other enumerator.Detector) {
	o, ok := other.(*State)
	if !ok || o == nil {
		return
	}
	s.nMAWs += o.nMAWs
	s.nMaxreps += o.nMaxreps
	s.nMAWMaxreps += o.nMAWMaxreps
	if o.minObservedLength < s.minObservedLength {
		s.minObservedLength = o.minObservedLength
	}
	if o.maxObservedLength > s.maxObservedLength {
		s.maxObservedLength = o.maxObservedLength
	}
	if s.histogram != nil && o.histogram != nil {
		for i := range s.histogram {
			s.histogram[i] += o.histogram[i]
		}
	}
	if s.params.Compress {
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				for k := 0; k < 4; k++ {
					srcLen := o.compressionLengths[i][j][k]
					if srcLen == 0 {
						continue
					}
					if srcLen > s.compressionLengths[i][j][k] {
						s.compressionLengths[i][j][k] = srcLen
					}
					if s.compressionBuffers[i][j][k] == nil {
						s.compressionBuffers[i][j][k] = newGrowableBits(int(srcLen) * 2)
					}
					s.compressionBuffers[i][j][k].orInto(o.compressionBuffers[i][j][k], int(srcLen))
				}
			}
		}
	}
}

// Finalize implements enumerator.Detector: it flushes any compressed
// output and closes this State's output file, if any.
func (s *State) Finalize() {
	if s.output == nil {
		return
	}
	if s.params.Compress {
		s.printCompressedWords()
	}
	s.output.close()
}

// printCompressedWords writes out every nonempty compressed triple as
// `<left><firstChar>^L<right>,<bits>,`, where the trailing bitvector
// flags which run lengths in [1,L] actually occurred (the L-th bit,
// always set, is never printed).
func (s *State) printCompressedWords() {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				length := s.compressionLengths[i][j][k]
				if length == 0 {
					continue
				}
				buf := s.compressionBuffers[i][j][k]
				left := bwtindex.DecodeSymbol(uint8(i))
				mid := bwtindex.DecodeSymbol(uint8(j))
				right := bwtindex.DecodeSymbol(uint8(k))
				s.output.writeWord(left, mid, int(length), right)
				s.output.writeSeparatorPair()
				if length == 1 || buf.hasOneBit(int(length)-2) {
					writeBitsASCII(s.output, buf, int(length)-2)
				}
				s.output.writeSeparatorPair()
			}
		}
	}
}

func writeBitsASCII(out *outputWriter, buf *growableBits, lastBit int) {
	for i := 0; i <= lastBit; i++ {
		if buf.bit(i) == 0 {
			out.w.WriteByte('0')
		} else {
			out.w.WriteByte('1')
		}
	}
}
