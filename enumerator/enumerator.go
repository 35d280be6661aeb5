/*
Package enumerator walks the implicit suffix tree of a BWT-indexed string
without ever materializing it, visiting exactly once every right-maximal
substring made of A, C, G and T only (left extensions by N are never
pushed, so substrings that contain an N are not visited). It is the traversal engine beneath both the MAW and MRW
detectors: they differ only in what their Detector.Visit does with each
node, not in how nodes are found.

The traversal keeps an explicit stack of StackFrames rather than
recursing, both so that arbitrarily long strings don't blow the Go call
stack and so that a running traversal can be paused, cloned, and handed to
another goroutine as a work package (see scheduler.go).
*/
package enumerator

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/dnaindex/maws/bwtindex"
)

// StackFrame is the traversal's unit of deferred work: the BWT interval
// of some string W, plus enough bookkeeping to derive W's right-maximal
// extensions the next time this frame is popped.
type StackFrame struct {
	Length         uint64
	BwtStart       uint64
	Frequency      uint64
	FirstCharacter uint8
	FrequencyRight [6]uint64
}

// Params bounds and configures a traversal. MaxLength and MaxFrequency of
// 0 mean unbounded (no visited node has frequency 0, and only the root has
// length 0).
type Params struct {
	MinLength           uint64
	MaxLength           uint64
	MinFrequency        uint64
	MaxFrequency        uint64
	TraversalOrder      TraversalOrder
	TraversalMaximality Maximality
}

// Enumerator drives one sequential pass of the traversal (either the
// whole thing, or one work package of it).
type Enumerator struct {
	idx    *bwtindex.Index
	params Params

	detector Detector

	stack           []StackFrame
	minStackPointer int
	nTraversedNodes uint64

	// workpackageLength > 0 only during the first, sequential pass of a
	// parallel run: any frame popped at that exact string length is
	// split off into its own Enumerator rather than processed in place.
	workpackageLength int
	workpackages      []*Enumerator

	id      int
	nextID  *int
}

func rootFrame(idx *bwtindex.Index) StackFrame {
	var f StackFrame
	f.FirstCharacter = 0
	f.Length = 0
	f.BwtStart = 0
	f.FrequencyRight[ExtSharp] = 1
	c := idx.CArray()
	for i := 1; i <= 4; i++ {
		f.FrequencyRight[i] = c[i] - c[i-1]
	}
	f.FrequencyRight[ExtN] = idx.TextLength() - c[4]
	f.Frequency = idx.TextLength() + 1
	return f
}

// New creates an Enumerator ready to traverse the whole suffix tree of
// idx from its root, invoking detector.Visit for every qualifying node.
func New(idx *bwtindex.Index, params Params, detector Detector) *Enumerator {
	id := 0
	e := &Enumerator{
		idx:             idx,
		params:          params,
		detector:        detector,
		stack:           []StackFrame{rootFrame(idx)},
		minStackPointer: 1,
		nextID:          &id,
	}
	return e
}

// NTraversedNodes returns the number of suffix-tree nodes visited by this
// Enumerator itself. Nodes visited by the work packages it spawned are not
// included; RunParallel in scheduler.go adds those up.
func (e *Enumerator) NTraversedNodes() uint64 { return e.nTraversedNodes }

// clone produces an independent Enumerator over the same index and
// params, with its own copy of the current stack and a freshly cloned
// Detector, ready to become a work package.
func (e *Enumerator) clone() *Enumerator {
	*e.nextID++
	stackCopy := make([]StackFrame, len(e.stack))
	copy(stackCopy, e.stack)
	return &Enumerator{
		idx:             e.idx,
		params:          e.params,
		detector:        e.detector.Clone(*e.nextID),
		stack:           stackCopy,
		minStackPointer: 0, // set by the caller once it knows the split point
		id:              *e.nextID,
		nextID:          e.nextID,
	}
}

// Run executes this Enumerator's assigned portion of the traversal to
// completion. It is safe to call concurrently on distinct Enumerators
// returned by a work-package split (see scheduler.RunParallel); it is not
// safe to call Run concurrently on the same Enumerator.
func (e *Enumerator) Run() {
	for len(e.stack) >= e.minStackPointer {
		top := &e.stack[len(e.stack)-1]

		if e.workpackageLength > 0 && top.Length == uint64(e.workpackageLength) {
			wp := e.clone()
			wp.minStackPointer = len(e.stack)
			e.workpackages = append(e.workpackages, wp)
			e.stack = e.stack[:len(e.stack)-1]
			continue
		}

		e.nTraversedNodes++
		frame := e.stack[len(e.stack)-1]
		e.stack = e.stack[:len(e.stack)-1]

		bitmap, rankPoints, values, valuesN := e.ranksOfRightExtensions(&frame)
		rms, nRightExtOfLeft, intervalSizeOfLeft := e.buildCallbackState(&frame, bitmap, rankPoints, values, valuesN)

		if rms.Length >= e.params.MinLength && (e.params.MaxFrequency == 0 || rms.Frequency <= e.params.MaxFrequency) {
			e.detector.Visit(rms)
		}

		length := rms.Length + 1
		if e.params.MaxLength != 0 && length > e.params.MaxLength {
			continue
		}

		var maxIntervalSize uint64
		var maxIntervalID int
		nExplicit := 0

		if intervalSizeOfLeft[ExtA] >= e.params.MinFrequency {
			sz := e.pushA(&rms, length, rankPoints, values, nRightExtOfLeft, intervalSizeOfLeft)
			if sz > 0 {
				maxIntervalSize = sz
				maxIntervalID = 0
				nExplicit = 1
			}
		}
		for i := uint8(ExtC); i <= ExtT; i++ {
			if intervalSizeOfLeft[i] < e.params.MinFrequency {
				continue
			}
			sz := e.pushNonA(i, &rms, length, values, nRightExtOfLeft, intervalSizeOfLeft)
			if sz == 0 {
				continue
			}
			if sz > maxIntervalSize {
				maxIntervalSize = sz
				maxIntervalID = nExplicit
			}
			nExplicit++
		}
		if nExplicit == 0 {
			continue
		}

		e.reorderNewChildren(nExplicit, maxIntervalID)
	}
}

func (e *Enumerator) reorderNewChildren(nExplicit, maxIntervalID int) {
	switch e.params.TraversalOrder {
	case OrderStackTrick:
		if maxIntervalID != 0 {
			i1 := len(e.stack) - nExplicit
			i2 := i1 + maxIntervalID
			e.stack[i1], e.stack[i2] = e.stack[i2], e.stack[i1]
		}
	case OrderLexicographic:
		slices.Reverse(e.stack[len(e.stack)-nExplicit:])
	}
}

// ranksOfRightExtensions computes, for the string W encoded by frame, the
// bitmap of distinct one-character right extensions Wa that occur, the
// BWT-interval boundary points those extensions induce, and the batched
// A/C/G/T (and, derived, N) prefix counts at each boundary.
func (e *Enumerator) ranksOfRightExtensions(frame *StackFrame) (bitmap uint8, rankPoints []int64, values [][4]uint64, valuesN []uint64) {
	rankPoints = make([]int64, 1, 7)
	rankPoints[0] = int64(frame.BwtStart) - 1
	for i := 0; i <= ExtN; i++ {
		if frame.FrequencyRight[i] > 0 {
			bitmap |= 1 << uint(i)
			last := rankPoints[len(rankPoints)-1]
			rankPoints = append(rankPoints, last+int64(frame.FrequencyRight[i]))
		}
	}

	values = make([][4]uint64, len(rankPoints))
	if rankPoints[0] == -1 {
		if len(rankPoints) > 1 {
			queryPositions := make([]int, len(rankPoints)-1)
			for i := 1; i < len(rankPoints); i++ {
				queryPositions[i-1] = int(rankPoints[i] + 1)
			}
			queried := e.idx.MultiPrefixCounts(queryPositions)
			copy(values[1:], queried)
		}
	} else {
		queryPositions := make([]int, len(rankPoints))
		for i, p := range rankPoints {
			queryPositions[i] = int(p + 1)
		}
		values = e.idx.MultiPrefixCounts(queryPositions)
	}

	// MultiPrefixCounts leaves the '#' row out of the A counts; the code
	// below works on the packed counts, in which '#' is stored as an A.
	sharpPos := e.idx.SharpPosition()
	for i, p := range rankPoints {
		if p >= 0 && uint64(p) >= sharpPos {
			values[i][0]++
		}
	}

	valuesN = make([]uint64, len(rankPoints))
	for i, p := range rankPoints {
		total := uint64(p + 1)
		sum := values[i][0] + values[i][1] + values[i][2] + values[i][3]
		valuesN[i] = total - sum
	}
	return bitmap, rankPoints, values, valuesN
}

// buildCallbackState fills in a RightMaximalString from the rank-burst
// results computed by ranksOfRightExtensions, and additionally returns,
// for every left-extension character b in 0..5, how many distinct right
// extensions bW has (nRightExtensionsOfLeft) and the size of bW's BWT
// interval (intervalSizeOfLeft) — both needed to decide which left
// extensions are themselves right-maximal and worth pushing.
func (e *Enumerator) buildCallbackState(frame *StackFrame, bitmap uint8, rankPoints []int64, values [][4]uint64, valuesN []uint64) (RightMaximalString, [6]uint8, [6]uint64) {
	var rms RightMaximalString
	rms.Length = frame.Length
	rms.BwtStart = frame.BwtStart
	rms.Frequency = frame.Frequency
	rms.FirstCharacter = frame.FirstCharacter
	rms.NRightExtensions = uint8(len(rankPoints) - 1)
	rms.RightExtensionBitmap = bitmap

	c := e.idx.CArray()
	sharpPos := e.idx.SharpPosition()
	for i := 0; i < 4; i++ {
		rms.BwtStartLeft[i] = c[i] + values[0][i] + 1
	}
	if sharpPos < uint64(rankPoints[0]+1) {
		// Character A absorbs the single substituted '#' row, so the
		// left extension by the real A starts one row earlier.
		rms.BwtStartLeft[0]--
	}
	rms.BwtStartLeft[4] = c[4] + valuesN[0] + 1

	var nRightExtensionsOfLeft [6]uint8
	var intervalSizeOfLeft [6]uint64
	nRightExtensionsOfLeft[ExtSharp] = 1
	intervalSizeOfLeft[ExtSharp] = 1

	var leftExtensionBitmap uint8
	j := 0
	for i := 0; i <= ExtN; i++ {
		if bitmap&(1<<uint(i)) == 0 {
			continue
		}
		j++

		sharpTmp := uint64(0)
		if sharpPos >= uint64(rankPoints[j-1]+1) && sharpPos <= uint64(rankPoints[j]) {
			sharpTmp = 1
		}
		rms.FrequencyLeftRight[ExtSharp][i] = sharpTmp
		if sharpTmp != 0 {
			leftExtensionBitmap |= 1 << ExtSharp
		}

		aCount := values[j][0] - values[j-1][0] - sharpTmp
		rms.FrequencyLeftRight[ExtA][i] = aCount
		if aCount != 0 {
			leftExtensionBitmap |= 1 << ExtA
			nRightExtensionsOfLeft[ExtA]++
		}
		intervalSizeOfLeft[ExtA] += aCount

		for k := 1; k <= 3; k++ {
			v := values[j][k] - values[j-1][k]
			rms.FrequencyLeftRight[k+1][i] = v
			if v != 0 {
				leftExtensionBitmap |= 1 << uint(k+1)
				nRightExtensionsOfLeft[k+1]++
			}
			intervalSizeOfLeft[k+1] += v
		}

		nv := valuesN[j] - valuesN[j-1]
		rms.FrequencyLeftRight[ExtN][i] = nv
		if nv != 0 {
			leftExtensionBitmap |= 1 << ExtN
			nRightExtensionsOfLeft[ExtN]++
		}
		intervalSizeOfLeft[ExtN] += nv
	}

	rms.LeftExtensionBitmap = leftExtensionBitmap
	for i := 0; i <= ExtN; i++ {
		if leftExtensionBitmap&(1<<uint(i)) != 0 {
			rms.NLeftExtensions++
		}
	}
	return rms, nRightExtensionsOfLeft, intervalSizeOfLeft
}

func isLeftExtensionRightMaximal(b uint8, rms *RightMaximalString, nRightExtensionsOfLeft [6]uint8, maximality Maximality) bool {
	switch maximality {
	case MaximalityDistinctSymbols:
		return nRightExtensionsOfLeft[b] >= 2
	case MaximalityDistinctOrTwoNs:
		return nRightExtensionsOfLeft[b] >= 2 || rms.FrequencyLeftRight[b][ExtN] >= 2
	case MaximalityACGTOnly:
		n := 0
		for i := ExtA; i <= ExtT; i++ {
			if rms.FrequencyLeftRight[b][i] != 0 {
				n++
			}
		}
		return n >= 2
	default:
		panic(fmt.Sprintf("enumerator: unknown traversal maximality %d", maximality))
	}
}

// pushA tries to push the left extension AW onto the stack, returning the
// size of AW's BWT interval, or 0 if AW was not right-maximal enough to
// push (per params.TraversalMaximality).
func (e *Enumerator) pushA(rms *RightMaximalString, length uint64, rankPoints []int64, values [][4]uint64, nRightExtOfLeft [6]uint8, intervalSizeOfLeft [6]uint64) uint64 {
	if !isLeftExtensionRightMaximal(ExtA, rms, nRightExtOfLeft, e.params.TraversalMaximality) {
		return 0
	}
	c := e.idx.CArray()
	sharpPos := e.idx.SharpPosition()
	containsSharp := uint64(0)
	if sharpPos < uint64(rankPoints[0]+1) {
		containsSharp = 1
	}
	var frame StackFrame
	frame.FirstCharacter = ExtA
	frame.Length = length
	frame.BwtStart = c[0] + values[0][0] + 1 - containsSharp
	frame.Frequency = intervalSizeOfLeft[ExtA]
	frame.FrequencyRight = rms.FrequencyLeftRight[ExtA]
	e.stack = append(e.stack, frame)
	return intervalSizeOfLeft[ExtA]
}

// pushNonA tries to push the left extension bW onto the stack for
// b in {ExtC, ExtG, ExtT}, mirroring pushA.
func (e *Enumerator) pushNonA(b uint8, rms *RightMaximalString, length uint64, values [][4]uint64, nRightExtOfLeft [6]uint8, intervalSizeOfLeft [6]uint64) uint64 {
	if !isLeftExtensionRightMaximal(b, rms, nRightExtOfLeft, e.params.TraversalMaximality) {
		return 0
	}
	c := e.idx.CArray()
	var frame StackFrame
	frame.FirstCharacter = b
	frame.Length = length
	frame.BwtStart = c[b-1] + values[0][b-1] + 1
	frame.Frequency = intervalSizeOfLeft[b]
	frame.FrequencyRight = rms.FrequencyLeftRight[b]
	e.stack = append(e.stack, frame)
	return intervalSizeOfLeft[b]
}
