package maws

import "math"

// Scorer lets a caller rank or filter emitted words by a statistical
// measure instead of reporting every one unconditionally. Implementations
// are cloned once per work package, exactly like Detector itself, so they
// must not share mutable state across clones.
type Scorer interface {
	// Score is called once per emitted word aWb, where left and right are
	// the DNA alphabet indices (0..3 for A,C,G,T) of a and b, leftFreq and
	// rightFreq are the in-text occurrence counts of aW and Wb, and length
	// is len(aWb). It returns the word's score, which is passed to Select;
	// the score is not written to the output.
	Score(left, right uint8, leftFreq, rightFreq, length uint64) float64

	// Select reports whether the most recently scored word should be
	// emitted at all; returning false drops it silently.
	Select(score float64) bool

	// Clone returns an independent Scorer for a new work package.
	Clone() Scorer
}

// LogOddsScorer ranks a MAW/MRW by how surprising its absence (or
// rarity) is under an i.i.d. model of the text's empirical base
// composition: the log-probability of the word under that model, more
// negative meaning more surprising. Select drops words only when a
// minimum score was given to NewLogOddsScorer; otherwise it keeps every
// word. The score itself is not written to the output.
type LogOddsScorer struct {
	logProbabilities [4]float64
	minScore         float64
	haveMin          bool

	lastScore float64
}

// NewLogOddsScorer builds a scorer from an index's empirical per-symbol
// log-probabilities. If minScore is non-nil, words scoring below it are
// dropped by Select.
func NewLogOddsScorer(logProbabilities [4]float64, minScore *float64) *LogOddsScorer {
	s := &LogOddsScorer{logProbabilities: logProbabilities}
	if minScore != nil {
		s.minScore = *minScore
		s.haveMin = true
	}
	return s
}

// Score returns the natural log of the probability of the two flanking
// characters under the i.i.d. model, scaled by length as a rough proxy
// for how much of the word's surprise they account for.
func (s *LogOddsScorer) Score(left, right uint8, leftFreq, rightFreq, length uint64) float64 {
	score := s.logProbabilities[left] + s.logProbabilities[right]
	if length > 0 {
		score *= float64(length) / 2
	}
	s.lastScore = score
	return score
}

// Select drops words scoring below the configured minimum, if any.
func (s *LogOddsScorer) Select(score float64) bool {
	if !s.haveMin {
		return true
	}
	return score >= s.minScore
}

// Clone returns an independent LogOddsScorer sharing the same
// (read-only) model parameters.
func (s *LogOddsScorer) Clone() Scorer {
	var min *float64
	if s.haveMin {
		v := s.minScore
		min = &v
	}
	return NewLogOddsScorer(s.logProbabilities, min)
}

// EntropyBits is a small helper exposed for CLI summary output: the
// Shannon entropy, in bits, of the empirical base composition.
func EntropyBits(probabilities [4]float64) float64 {
	var h float64
	for _, p := range probabilities {
		if p <= 0 {
			continue
		}
		h -= p * math.Log2(p)
	}
	return h
}
