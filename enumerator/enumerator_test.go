package enumerator

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dnaindex/maws/bwtindex"
)

// bruteForceRightMaximalCounts returns, for the substrings of text of the
// given length, the occurrence count of each one that contains no N and is
// right-maximal under MaximalityDistinctSymbols (i.e. has >=2 distinct
// one-character extensions to the right, where running off the end of the
// text counts as an extension by a symbol found nowhere else, exactly like
// '#'). Substrings with an N are left out because the enumerator only ever
// extends to the left by A, C, G or T.
func bruteForceRightMaximalCounts(text string, length int) map[string]int {
	counts := map[string]int{}
	if length == 0 {
		counts[""] = len(text) + 1
		return counts
	}
	for i := 0; i+length <= len(text); i++ {
		counts[text[i:i+length]]++
	}
	rightExt := map[string]map[byte]bool{}
	for i := 0; i+length <= len(text); i++ {
		w := text[i : i+length]
		if rightExt[w] == nil {
			rightExt[w] = map[byte]bool{}
		}
		if i+length < len(text) {
			rightExt[w][text[i+length]] = true
		} else {
			rightExt[w][0] = true // end-of-text acts like a distinct symbol
		}
	}
	out := map[string]int{}
	for w, c := range counts {
		if len(rightExt[w]) >= 2 && !strings.Contains(w, "N") {
			out[w] = c
		}
	}
	return out
}

// capturingDetector stores every visited node in order, for assertions
// that need the full sequence of visited nodes rather than just counts.
type capturingDetector struct {
	nodes []RightMaximalString
}

func (d *capturingDetector) Visit(node RightMaximalString) { d.nodes = append(d.nodes, node) }
func (d *capturingDetector) Clone(id int) Detector          { return &capturingDetector{} }
func (d *capturingDetector) Merge(other Detector) {
	d.nodes = append(d.nodes, other.(*capturingDetector).nodes...)
}
func (d *capturingDetector) Finalize() {}

func buildIndex(t *testing.T, text string) *bwtindex.Index {
	t.Helper()
	idx, err := bwtindex.Build([]byte(text))
	if err != nil {
		t.Fatalf("bwtindex.Build(%q): %v", text, err)
	}
	return idx
}

func TestRunVisitsRootFirst(t *testing.T) {
	idx := buildIndex(t, "ACACACA")
	det := &capturingDetector{}
	Run(idx, Params{TraversalMaximality: MaximalityDistinctSymbols}, det)
	if len(det.nodes) == 0 {
		t.Fatalf("expected at least the root node to be visited")
	}
	if det.nodes[0].Length != 0 {
		t.Fatalf("first visited node has Length=%d, want 0 (the empty string)", det.nodes[0].Length)
	}
	if det.nodes[0].Frequency != idx.TextLength()+1 {
		t.Fatalf("root frequency = %d, want %d", det.nodes[0].Frequency, idx.TextLength()+1)
	}
}

func TestRunFrequencyMatchesBruteForceByLength(t *testing.T) {
	texts := []string{"ACACACA", "AAAA", "ACGT", "ANGTNNNCAG", "GATTACA"}
	for _, text := range texts {
		idx := buildIndex(t, text)
		det := &capturingDetector{}
		Run(idx, Params{TraversalMaximality: MaximalityDistinctSymbols}, det)

		maxLen := len(text)
		for length := 0; length <= maxLen; length++ {
			want := bruteForceRightMaximalCounts(text, length)
			wantFreqs := make([]int, 0, len(want))
			for _, c := range want {
				wantFreqs = append(wantFreqs, c)
			}
			sort.Ints(wantFreqs)

			gotFreqs := make([]int, 0)
			for _, n := range det.nodes {
				if int(n.Length) == length {
					gotFreqs = append(gotFreqs, int(n.Frequency))
				}
			}
			sort.Ints(gotFreqs)

			if len(gotFreqs) != len(wantFreqs) {
				t.Fatalf("text %q length %d: got %d right-maximal nodes %v, want %d %v", text, length, len(gotFreqs), gotFreqs, len(wantFreqs), wantFreqs)
			}
			for i := range wantFreqs {
				if gotFreqs[i] != wantFreqs[i] {
					t.Fatalf("text %q length %d: frequency multiset mismatch got %v want %v", text, length, gotFreqs, wantFreqs)
				}
			}
		}
	}
}

func TestRunRespectsMinMaxLength(t *testing.T) {
	idx := buildIndex(t, "ACACACAGT")
	det := &capturingDetector{}
	Run(idx, Params{MinLength: 2, MaxLength: 4, TraversalMaximality: MaximalityDistinctSymbols}, det)
	for _, n := range det.nodes {
		if n.Length < 2 || n.Length > 4 {
			t.Fatalf("visited node with Length=%d outside [2,4]", n.Length)
		}
	}
}

func TestRunRespectsMaxFrequency(t *testing.T) {
	idx := buildIndex(t, strings.Repeat("ACGT", 8))
	det := &capturingDetector{}
	Run(idx, Params{MaxFrequency: 3, TraversalMaximality: MaximalityDistinctSymbols}, det)
	for _, n := range det.nodes {
		if n.Frequency > 3 {
			t.Fatalf("visited node with Frequency=%d exceeds MaxFrequency=3", n.Frequency)
		}
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	text := strings.Repeat("ACGTACGTNNNACGTGGGCCCAAATTTGATTACA", 3)
	idx := buildIndex(t, text)

	seq := &capturingDetector{}
	nSeq := Run(idx, Params{TraversalMaximality: MaximalityDistinctSymbols}, seq)

	par := &capturingDetector{}
	nPar, err := RunParallel(context.Background(), idx, Params{TraversalMaximality: MaximalityDistinctSymbols}, par, 4)
	if err != nil {
		t.Fatalf("RunParallel: %v", err)
	}
	if nSeq != nPar {
		t.Fatalf("traversed node counts differ: sequential=%d parallel=%d", nSeq, nPar)
	}

	seqFreqs := map[string]int{}
	for _, n := range seq.nodes {
		seqFreqs[freqKey(n)]++
	}
	parFreqs := map[string]int{}
	for _, n := range par.nodes {
		parFreqs[freqKey(n)]++
	}
	if diff := cmp.Diff(seqFreqs, parFreqs); diff != "" {
		t.Fatalf("parallel/sequential visited-node multiset mismatch (-sequential +parallel):\n%s", diff)
	}
}

func freqKey(n RightMaximalString) string {
	return strings.Join([]string{
		string(rune(n.Length)),
		string(rune(n.Frequency)),
		string(rune(n.FirstCharacter)),
	}, "|")
}

func TestMaximalityACGTOnlyIgnoresNAndSharp(t *testing.T) {
	// In "ACGTNACGTC", 'T' is followed by {N,C} and 'C' by {G,#}: each has
	// two distinct right extensions, but only one of them is in A/C/G/T,
	// so under MaximalityACGTOnly neither is visited.
	idx := buildIndex(t, "ACGTNACGTC")
	det := &capturingDetector{}
	Run(idx, Params{TraversalMaximality: MaximalityACGTOnly}, det)
	if len(det.nodes) == 0 {
		t.Fatalf("expected at least the root to be visited")
	}
	for _, n := range det.nodes {
		if n.Length == 1 && (n.FirstCharacter == ExtC || n.FirstCharacter == ExtT) {
			t.Fatalf("visited length-1 node with FirstCharacter=%d; its N/# extension must not count", n.FirstCharacter)
		}
	}
}
