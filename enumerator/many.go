package enumerator

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/dnaindex/maws/bwtindex"
	"github.com/dnaindex/maws/mawerr"
)

// ManyStackFrame is the multi-index analogue of StackFrame: every
// per-string quantity becomes a slice indexed by string ID.
type ManyStackFrame struct {
	Length         uint64
	FirstCharacter uint8
	Frequency      []uint64
	BwtStart       []uint64
	FrequencyRight [][6]uint64
}

// ManyParams bounds and configures a generalized (multi-string)
// traversal. MinFrequency/MaxFrequency are indexed by string ID; a 0 in
// MaxFrequency[i] means unbounded for that string, same convention as
// Params.MaxFrequency.
type ManyParams struct {
	MinLength           uint64
	MaxLength           uint64
	MinFrequency        []uint64
	MaxFrequency        []uint64
	TraversalOrder      TraversalOrder
	TraversalMaximality Maximality
}

// ManyRightMaximalString is the multi-index analogue of
// RightMaximalString.
type ManyRightMaximalString struct {
	Length               uint64
	BwtStart             []uint64
	Frequency            []uint64
	FirstCharacter       uint8
	NRightExtensions     uint8
	RightExtensionBitmap uint8

	BwtStartLeft [][5]uint64

	LeftExtensionBitmap uint8
	NLeftExtensions     uint8

	FrequencyLeftRight [][6][6]uint64
}

// ManyDetector is the multi-index analogue of Detector.
type ManyDetector interface {
	Visit(node ManyRightMaximalString)
	Clone(id int) ManyDetector
	Merge(other ManyDetector)
	Finalize()
}

// ManyEnumerator drives a right-maximal-substring DFS simultaneously
// over N independent BWT indices, as if walking the generalized suffix
// tree of their concatenation — used to find words that are absent (or
// rare) with respect to one string while occurring with respect to
// another (e.g. a MAW of a genome that is present in a related species).
type ManyEnumerator struct {
	idxs   []*bwtindex.Index
	params ManyParams

	detector ManyDetector

	stack           []ManyStackFrame
	minStackPointer int
	nTraversedNodes uint64

	workpackageLength int
	workpackages      []*ManyEnumerator

	id     int
	nextID *int
}

func manyRootFrame(idxs []*bwtindex.Index) ManyStackFrame {
	n := len(idxs)
	f := ManyStackFrame{
		FirstCharacter: 0,
		Length:         0,
		Frequency:      make([]uint64, n),
		BwtStart:       make([]uint64, n),
		FrequencyRight: make([][6]uint64, n),
	}
	for s, idx := range idxs {
		c := idx.CArray()
		f.FrequencyRight[s][ExtSharp] = 1
		for i := 1; i <= 4; i++ {
			f.FrequencyRight[s][i] = c[i] - c[i-1]
		}
		f.FrequencyRight[s][ExtN] = idx.TextLength() - c[4]
		f.Frequency[s] = idx.TextLength() + 1
	}
	return f
}

// NewMany creates a ManyEnumerator ready to traverse the generalized
// suffix tree of idxs from its root.
func NewMany(idxs []*bwtindex.Index, params ManyParams, detector ManyDetector) (*ManyEnumerator, error) {
	if len(idxs) == 0 {
		return nil, fmt.Errorf("enumerator: NewMany requires at least one index: %w", mawerr.ErrInputFormat)
	}
	if len(params.MinFrequency) != len(idxs) || len(params.MaxFrequency) != len(idxs) {
		return nil, fmt.Errorf("enumerator: MinFrequency/MaxFrequency must have one entry per index (got %d/%d for %d indices): %w", len(params.MinFrequency), len(params.MaxFrequency), len(idxs), mawerr.ErrInputFormat)
	}
	id := 0
	return &ManyEnumerator{
		idxs:            idxs,
		params:          params,
		detector:        detector,
		stack:           []ManyStackFrame{manyRootFrame(idxs)},
		minStackPointer: 1,
		nextID:          &id,
	}, nil
}

// NTraversedNodes returns the number of nodes visited by this
// ManyEnumerator.
func (e *ManyEnumerator) NTraversedNodes() uint64 { return e.nTraversedNodes }

func (e *ManyEnumerator) clone() *ManyEnumerator {
	*e.nextID++
	stackCopy := make([]ManyStackFrame, len(e.stack))
	copy(stackCopy, e.stack)
	return &ManyEnumerator{
		idxs:            e.idxs,
		params:          e.params,
		detector:        e.detector.Clone(*e.nextID),
		stack:           stackCopy,
		minStackPointer: 0,
		id:              *e.nextID,
		nextID:          e.nextID,
	}
}

// Run executes this ManyEnumerator's assigned portion of the traversal
// to completion.
func (e *ManyEnumerator) Run() {
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

		rms, nRightExtOfLeft, intervalSizeOfLeft := e.buildCallbackState(&frame)

		if rms.Length >= e.params.MinLength && passesFrequencyWindow(rms.Frequency, e.params.MaxFrequency) {
			e.detector.Visit(rms)
		}

		length := rms.Length + 1
		if e.params.MaxLength != 0 && length > e.params.MaxLength {
			continue
		}

		var maxIntervalSize uint64
		var maxIntervalID, nExplicit int

		if passesMinFrequency(intervalSizeOfLeft[ExtA], e.params.MinFrequency) {
			sz := e.pushChild(ExtA, &rms, length, nRightExtOfLeft, intervalSizeOfLeft)
			if sz != nil {
				maxIntervalSize = sumFreq(sz)
				maxIntervalID = 0
				nExplicit = 1
			}
		}
		for b := uint8(ExtC); b <= ExtT; b++ {
			if !passesMinFrequency(intervalSizeOfLeft[b], e.params.MinFrequency) {
				continue
			}
			sz := e.pushChild(b, &rms, length, nRightExtOfLeft, intervalSizeOfLeft)
			if sz == nil {
				continue
			}
			total := sumFreq(sz)
			if total > maxIntervalSize {
				maxIntervalSize = total
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

func sumFreq(f []uint64) uint64 {
	var t uint64
	for _, v := range f {
		t += v
	}
	return t
}

// passesFrequencyWindow reports whether every string's frequency is
// within its configured [0,max] window (0 meaning unbounded).
func passesFrequencyWindow(freq []uint64, max []uint64) bool {
	for s, f := range freq {
		if max[s] != 0 && f > max[s] {
			return false
		}
	}
	return true
}

// passesMinFrequency reports whether a left extension's per-string
// interval sizes all meet their configured per-string minimum (0 meaning
// no minimum).
func passesMinFrequency(sizes []uint64, min []uint64) bool {
	for s, sz := range sizes {
		if sz < min[s] {
			return false
		}
	}
	return true
}

func (e *ManyEnumerator) reorderNewChildren(nExplicit, maxIntervalID int) {
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

// buildCallbackState computes the full ManyRightMaximalString descriptor
// for frame, plus per-left-character union right-extension counts
// (nRightExtensionsOfLeftUnion) and per-string interval sizes
// (intervalSizeOfLeft, indexed [ext][string]).
func (e *ManyEnumerator) buildCallbackState(frame *ManyStackFrame) (ManyRightMaximalString, [6]uint8, [6][]uint64) {
	n := len(e.idxs)
	var rms ManyRightMaximalString
	rms.Length = frame.Length
	rms.FirstCharacter = frame.FirstCharacter
	rms.BwtStart = append([]uint64(nil), frame.BwtStart...)
	rms.Frequency = append([]uint64(nil), frame.Frequency...)
	rms.BwtStartLeft = make([][5]uint64, n)
	rms.FrequencyLeftRight = make([][6][6]uint64, n)

	var nRightExtensionsOfLeftUnion [6]uint8
	var rightUnionSeen [6][6]bool
	var intervalSizeOfLeft [6][]uint64
	for i := range intervalSizeOfLeft {
		intervalSizeOfLeft[i] = make([]uint64, n)
	}
	nRightExtensionsOfLeftUnion[ExtSharp] = 1

	var rightExtensionBitmap, leftExtensionBitmap uint8

	for s, idx := range e.idxs {
		var bitmap uint8
		rankPoints := make([]int64, 1, 7)
		rankPoints[0] = int64(frame.BwtStart[s]) - 1
		for i := 0; i <= ExtN; i++ {
			if frame.FrequencyRight[s][i] > 0 {
				bitmap |= 1 << uint(i)
				last := rankPoints[len(rankPoints)-1]
				rankPoints = append(rankPoints, last+int64(frame.FrequencyRight[s][i]))
			}
		}
		rightExtensionBitmap |= bitmap

		values := make([][4]uint64, len(rankPoints))
		if rankPoints[0] == -1 {
			if len(rankPoints) > 1 {
				qp := make([]int, len(rankPoints)-1)
				for i := 1; i < len(rankPoints); i++ {
					qp[i-1] = int(rankPoints[i] + 1)
				}
				copy(values[1:], idx.MultiPrefixCounts(qp))
			}
		} else {
			qp := make([]int, len(rankPoints))
			for i, p := range rankPoints {
				qp[i] = int(p + 1)
			}
			values = idx.MultiPrefixCounts(qp)
		}
		for i, p := range rankPoints {
			if p >= 0 && uint64(p) >= idx.SharpPosition() {
				values[i][0]++
			}
		}
		valuesN := make([]uint64, len(rankPoints))
		for i, p := range rankPoints {
			total := uint64(p + 1)
			valuesN[i] = total - (values[i][0] + values[i][1] + values[i][2] + values[i][3])
		}

		c := idx.CArray()
		sharpPos := idx.SharpPosition()
		for i := 0; i < 4; i++ {
			rms.BwtStartLeft[s][i] = c[i] + values[0][i] + 1
		}
		if sharpPos < uint64(rankPoints[0]+1) {
			rms.BwtStartLeft[s][0]--
		}
		rms.BwtStartLeft[s][4] = c[4] + valuesN[0] + 1

		j := 0
		for i := uint8(0); i <= ExtN; i++ {
			if bitmap&(1<<uint(i)) == 0 {
				continue
			}
			j++
			sharpTmp := uint64(0)
			if sharpPos >= uint64(rankPoints[j-1]+1) && sharpPos <= uint64(rankPoints[j]) {
				sharpTmp = 1
			}
			rms.FrequencyLeftRight[s][ExtSharp][i] = sharpTmp
			markLeft(ExtSharp, i, sharpTmp, &leftExtensionBitmap, &rightUnionSeen, &nRightExtensionsOfLeftUnion)

			aCount := values[j][0] - values[j-1][0] - sharpTmp
			rms.FrequencyLeftRight[s][ExtA][i] = aCount
			intervalSizeOfLeft[ExtA][s] += aCount
			markLeft(ExtA, i, aCount, &leftExtensionBitmap, &rightUnionSeen, &nRightExtensionsOfLeftUnion)

			for k := 1; k <= 3; k++ {
				v := values[j][k] - values[j-1][k]
				rms.FrequencyLeftRight[s][k+1][i] = v
				intervalSizeOfLeft[k+1][s] += v
				markLeft(uint8(k+1), i, v, &leftExtensionBitmap, &rightUnionSeen, &nRightExtensionsOfLeftUnion)
			}

			nv := valuesN[j] - valuesN[j-1]
			rms.FrequencyLeftRight[s][ExtN][i] = nv
			intervalSizeOfLeft[ExtN][s] += nv
			markLeft(ExtN, i, nv, &leftExtensionBitmap, &rightUnionSeen, &nRightExtensionsOfLeftUnion)
		}
	}

	rms.RightExtensionBitmap = rightExtensionBitmap
	for i := 0; i <= ExtN; i++ {
		if rightExtensionBitmap&(1<<uint(i)) != 0 {
			rms.NRightExtensions++
		}
	}
	rms.LeftExtensionBitmap = leftExtensionBitmap
	for i := 0; i <= ExtN; i++ {
		if leftExtensionBitmap&(1<<uint(i)) != 0 {
			rms.NLeftExtensions++
		}
	}
	return rms, nRightExtensionsOfLeftUnion, intervalSizeOfLeft
}

// markLeft records, across all strings, that left extension b has a
// nonzero bi-extension frequency with right extension r — union
// right-extension-count bookkeeping used by ACGT/N-generalized
// right-maximality, and sets the overall left-extension bitmap bit once.
func markLeft(b, r uint8, freq uint64, leftExtensionBitmap *uint8, rightUnionSeen *[6][6]bool, nRightExtensionsOfLeftUnion *[6]uint8) {
	if freq == 0 {
		return
	}
	*leftExtensionBitmap |= 1 << b
	if r == ExtSharp || !rightUnionSeen[b][r] {
		rightUnionSeen[b][r] = true
		nRightExtensionsOfLeftUnion[b]++
	}
}

func isManyLeftExtensionRightMaximal(b uint8, nRightExtensionsOfLeftUnion [6]uint8, frequencyLeftRight [][6][6]uint64, maximality Maximality) bool {
	switch maximality {
	case MaximalityDistinctSymbols:
		return nRightExtensionsOfLeftUnion[b] >= 2
	case MaximalityDistinctOrTwoNs:
		if nRightExtensionsOfLeftUnion[b] >= 2 {
			return true
		}
		var nTotal uint64
		for _, perString := range frequencyLeftRight {
			nTotal += perString[b][ExtN]
		}
		return nTotal >= 2
	case MaximalityACGTOnly:
		n := 0
		for i := uint8(ExtA); i <= ExtT; i++ {
			var total uint64
			for _, perString := range frequencyLeftRight {
				total += perString[b][i]
			}
			if total != 0 {
				n++
			}
		}
		return n >= 2
	default:
		panic(fmt.Sprintf("enumerator: unknown traversal maximality %d", maximality))
	}
}

func (e *ManyEnumerator) pushChild(b uint8, rms *ManyRightMaximalString, length uint64, nRightExtOfLeftUnion [6]uint8, intervalSizeOfLeft [6][]uint64) []uint64 {
	if !isManyLeftExtensionRightMaximal(b, nRightExtOfLeftUnion, rms.FrequencyLeftRight, e.params.TraversalMaximality) {
		return nil
	}
	n := len(e.idxs)
	frame := ManyStackFrame{
		FirstCharacter: b,
		Length:         length,
		Frequency:      make([]uint64, n),
		BwtStart:       make([]uint64, n),
		FrequencyRight: make([][6]uint64, n),
	}
	for s := range e.idxs {
		// rms.BwtStartLeft[s][b-1] already folds in the sharp-position
		// adjustment computed once in buildCallbackState, for every
		// left-extension symbol including A.
		frame.BwtStart[s] = rms.BwtStartLeft[s][b-1]
		frame.Frequency[s] = intervalSizeOfLeft[b][s]
		frame.FrequencyRight[s] = rms.FrequencyLeftRight[s][b]
	}
	e.stack = append(e.stack, frame)
	return frame.Frequency
}
