package enumerator

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/dnaindex/maws/bwtindex"
)

// bruteForceManyRightMaximalCounts is the two-string analogue of
// bruteForceRightMaximalCounts: at a given length, a substring is
// right-maximal iff the UNION of its distinct one-character right
// extensions across both texts has size >= 2 (end-of-text counts as its
// own distinct per-text symbol).
func bruteForceManyRightMaximalCounts(texts []string, length int) map[string][]int {
	type key = string
	rightExt := map[key]map[int]bool{}
	counts := map[key][]int{}
	for ti, text := range texts {
		for i := 0; i+length <= len(text); i++ {
			w := text[i : i+length]
			if _, ok := counts[w]; !ok {
				counts[w] = make([]int, len(texts))
			}
			counts[w][ti]++
			if rightExt[w] == nil {
				rightExt[w] = map[int]bool{}
			}
			if i+length < len(text) {
				rightExt[w][int(text[i+length])] = true
			} else {
				rightExt[w][-(ti+1)] = true
			}
		}
	}
	out := map[string][]int{}
	for w, c := range counts {
		if len(rightExt[w]) >= 2 {
			out[w] = c
		}
	}
	return out
}

type capturingManyDetector struct {
	nodes []ManyRightMaximalString
}

func (d *capturingManyDetector) Visit(node ManyRightMaximalString) { d.nodes = append(d.nodes, node) }
func (d *capturingManyDetector) Clone(id int) ManyDetector         { return &capturingManyDetector{} }
func (d *capturingManyDetector) Merge(other ManyDetector) {
	d.nodes = append(d.nodes, other.(*capturingManyDetector).nodes...)
}
func (d *capturingManyDetector) Finalize() {}

func buildManyIndices(t *testing.T, texts []string) []*bwtindex.Index {
	t.Helper()
	idxs := make([]*bwtindex.Index, len(texts))
	for i, text := range texts {
		idxs[i] = buildIndex(t, text)
	}
	return idxs
}

func uniformFreqBound(n int, v uint64) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRunManyVisitsRootFirst(t *testing.T) {
	texts := []string{"ACACACA", "GATTACA"}
	idxs := buildManyIndices(t, texts)
	det := &capturingManyDetector{}
	_, err := RunMany(idxs, ManyParams{
		MinFrequency:        uniformFreqBound(2, 0),
		MaxFrequency:        uniformFreqBound(2, 0),
		TraversalMaximality: MaximalityDistinctSymbols,
	}, det)
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}
	if len(det.nodes) == 0 {
		t.Fatalf("expected at least the root node to be visited")
	}
	root := det.nodes[0]
	if root.Length != 0 {
		t.Fatalf("first visited node has Length=%d, want 0 (the empty string)", root.Length)
	}
	for i, text := range texts {
		want := uint64(len(text) + 1)
		if root.Frequency[i] != want {
			t.Fatalf("root frequency[%d] = %d, want %d", i, root.Frequency[i], want)
		}
	}
}

func TestRunManyUnionRightMaximalityMatchesBruteForce(t *testing.T) {
	texts := []string{"ACACACA", "GATTACA"}
	idxs := buildManyIndices(t, texts)
	det := &capturingManyDetector{}
	_, err := RunMany(idxs, ManyParams{
		MinFrequency:        uniformFreqBound(2, 0),
		MaxFrequency:        uniformFreqBound(2, 0),
		TraversalMaximality: MaximalityDistinctSymbols,
	}, det)
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}

	for length := 0; length <= len(texts[0]); length++ {
		want := bruteForceManyRightMaximalCounts(texts, length)

		type freqPair struct{ a, b int }
		wantPairs := make([]freqPair, 0, len(want))
		for _, c := range want {
			wantPairs = append(wantPairs, freqPair{c[0], c[1]})
		}
		sort.Slice(wantPairs, func(i, j int) bool {
			if wantPairs[i].a != wantPairs[j].a {
				return wantPairs[i].a < wantPairs[j].a
			}
			return wantPairs[i].b < wantPairs[j].b
		})

		gotPairs := make([]freqPair, 0)
		for _, n := range det.nodes {
			if int(n.Length) == length {
				gotPairs = append(gotPairs, freqPair{int(n.Frequency[0]), int(n.Frequency[1])})
			}
		}
		sort.Slice(gotPairs, func(i, j int) bool {
			if gotPairs[i].a != gotPairs[j].a {
				return gotPairs[i].a < gotPairs[j].a
			}
			return gotPairs[i].b < gotPairs[j].b
		})

		if len(gotPairs) != len(wantPairs) {
			t.Fatalf("length %d: got %d right-maximal nodes %v, want %d %v", length, len(gotPairs), gotPairs, len(wantPairs), wantPairs)
		}
		for i := range wantPairs {
			if gotPairs[i] != wantPairs[i] {
				t.Fatalf("length %d: frequency-pair multiset mismatch got %v want %v", length, gotPairs, wantPairs)
			}
		}
	}
}

func TestRunManyRespectsPerStringMaxFrequency(t *testing.T) {
	texts := []string{strings.Repeat("ACGT", 8), strings.Repeat("GATTACA", 5)}
	idxs := buildManyIndices(t, texts)
	det := &capturingManyDetector{}
	_, err := RunMany(idxs, ManyParams{
		MaxFrequency:        []uint64{3, 0},
		MinFrequency:        uniformFreqBound(2, 0),
		TraversalMaximality: MaximalityDistinctSymbols,
	}, det)
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}
	for _, n := range det.nodes {
		if n.Frequency[0] > 3 {
			t.Fatalf("visited node with Frequency[0]=%d exceeds MaxFrequency[0]=3", n.Frequency[0])
		}
	}
}

func TestRunManyDescendsPastRoot(t *testing.T) {
	// Regression test for a bug where pushChild computed a child stack
	// frame but never appended it, silently truncating every traversal
	// to the root node alone.
	texts := []string{"ACGTACGTACGT", "GATTACAGATTACA"}
	idxs := buildManyIndices(t, texts)
	det := &capturingManyDetector{}
	n, err := RunMany(idxs, ManyParams{
		MinFrequency:        uniformFreqBound(2, 0),
		MaxFrequency:        uniformFreqBound(2, 0),
		TraversalMaximality: MaximalityDistinctSymbols,
	}, det)
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}
	if n <= 1 {
		t.Fatalf("traversed only %d node(s), expected the traversal to descend past the root", n)
	}
	maxLength := uint64(0)
	for _, nd := range det.nodes {
		if nd.Length > maxLength {
			maxLength = nd.Length
		}
	}
	if maxLength == 0 {
		t.Fatalf("no node with Length>0 was visited")
	}
}

func TestRunManyParallelMatchesSequential(t *testing.T) {
	texts := []string{
		strings.Repeat("ACGTACGTNNNACGTGGGCCCAAATTTGATTACA", 3),
		strings.Repeat("GATTACAGGGCCCTTTAAANNNACGT", 3),
	}
	idxs := buildManyIndices(t, texts)

	seq := &capturingManyDetector{}
	nSeq, err := RunMany(idxs, ManyParams{
		MinFrequency:        uniformFreqBound(2, 0),
		MaxFrequency:        uniformFreqBound(2, 0),
		TraversalMaximality: MaximalityDistinctSymbols,
	}, seq)
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}

	par := &capturingManyDetector{}
	nPar, err := RunManyParallel(context.Background(), idxs, ManyParams{
		MinFrequency:        uniformFreqBound(2, 0),
		MaxFrequency:        uniformFreqBound(2, 0),
		TraversalMaximality: MaximalityDistinctSymbols,
	}, par, 4)
	if err != nil {
		t.Fatalf("RunManyParallel: %v", err)
	}
	if nSeq != nPar {
		t.Fatalf("traversed node counts differ: sequential=%d parallel=%d", nSeq, nPar)
	}
	if len(seq.nodes) != len(par.nodes) {
		t.Fatalf("visited node count differs: sequential=%d parallel=%d", len(seq.nodes), len(par.nodes))
	}

	seqFreqs := map[string]int{}
	for _, n := range seq.nodes {
		seqFreqs[manyFreqKey(n)]++
	}
	parFreqs := map[string]int{}
	for _, n := range par.nodes {
		parFreqs[manyFreqKey(n)]++
	}
	for k, v := range seqFreqs {
		if parFreqs[k] != v {
			t.Fatalf("parallel/sequential node multiset mismatch at key %s: seq=%d par=%d", k, v, parFreqs[k])
		}
	}
}

func manyFreqKey(n ManyRightMaximalString) string {
	parts := make([]string, 0, len(n.Frequency)+2)
	parts = append(parts, string(rune(n.Length)), string(rune(n.FirstCharacter)))
	for _, f := range n.Frequency {
		parts = append(parts, string(rune(f)))
	}
	return strings.Join(parts, "|")
}

func TestNewManyRejectsMismatchedFrequencyLengths(t *testing.T) {
	idxs := buildManyIndices(t, []string{"ACGT", "GATTACA"})
	_, err := NewMany(idxs, ManyParams{
		MinFrequency: []uint64{0},
		MaxFrequency: []uint64{0, 0},
	}, &capturingManyDetector{})
	if err == nil {
		t.Fatalf("expected an error for mismatched MinFrequency length")
	}
}
