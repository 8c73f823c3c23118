package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/viterin/vek/vek32"
)

// Guess rejections travel to the originating session as guess_error payloads,
// so the error text is user-facing.
var (
	errNotLegalGuess = errors.New("Not a legal guess.")
	errWordUnknown   = errors.New("Word not known.")
)

// RankedEntry is the wire form of one ranking row.
type RankedEntry struct {
	Word       string  `json:"word"`
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
}

type rankedFamily struct {
	family     string
	word       string
	similarity float64
}

// Ranking is the precomputed result of scoring the whole vocabulary against
// one target word, grouped by lemma family. Immutable once built.
type Ranking struct {
	targetWord   string
	targetVec    []float32
	ranked       []rankedFamily
	rankOfFamily map[string]int
}

// TotalWords reports how many distinct lemma families were ranked.
func (r *Ranking) TotalWords() int {
	return len(r.ranked)
}

// Target reports the resolved target word.
func (r *Ranking) Target() string {
	return r.targetWord
}

// TopEntries returns the best n rows of the ranking.
func (r *Ranking) TopEntries(n int) []RankedEntry {
	if n > len(r.ranked) {
		n = len(r.ranked)
	}

	out := make([]RankedEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, RankedEntry{
			Word:       r.ranked[i].word,
			Rank:       i + 1,
			Similarity: r.ranked[i].similarity,
		})
	}

	return out
}

// pickTarget draws a random word from the target-selection pool.
func pickTarget(voc *Vocabulary) (string, error) {
	if len(voc.meaningful) == 0 {
		return "", errors.New("no meaningful words available for target selection")
	}
	return voc.meaningful[rand.IntN(len(voc.meaningful))], nil
}

// resolveTarget lowercases a caller-supplied target, prefers its lemma when
// the lemma itself has a vector, and verifies the model knows the result.
func resolveTarget(voc *Vocabulary, raw string) (string, error) {
	target := strings.ToLower(strings.TrimSpace(raw))
	if target == "" {
		return "", errors.New("empty target word")
	}

	if lemma := voc.oracle.Lemma(target); lemma != target && voc.oracle.HasVector(lemma) {
		target = lemma
	}
	if !voc.oracle.HasVector(target) {
		return "", fmt.Errorf("target word %q is out of vocabulary", target)
	}

	return target, nil
}

// buildRanking scores every vectored vocabulary word against the target,
// keeps the best-scoring surface per lemma family, and assigns dense 1-based
// ranks. Ties break on the representative word so repeated builds agree.
func buildRanking(voc *Vocabulary, target string) (*Ranking, error) {
	targetVec, ok := voc.oracle.Vector(target)
	if !ok {
		return nil, fmt.Errorf("target word %q is out of vocabulary", target)
	}
	if err := normalize(targetVec); err != nil {
		return nil, fmt.Errorf("target word %q: %w", target, err)
	}

	best := make(map[string]int, len(voc.vecWords))
	sims := make([]float64, len(voc.vecWords))

	for i, row := range voc.vecs {
		sims[i] = float64(vek32.Dot(row, targetVec))

		family := voc.familyKey[voc.vecWords[i]]
		if j, ok := best[family]; !ok || sims[i] > sims[j] {
			best[family] = i
		}
	}

	ranked := make([]rankedFamily, 0, len(best))
	for family, i := range best {
		ranked = append(ranked, rankedFamily{
			family:     family,
			word:       voc.vecWords[i],
			similarity: sims[i],
		})
	}

	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].similarity != ranked[b].similarity {
			return ranked[a].similarity > ranked[b].similarity
		}
		return ranked[a].word < ranked[b].word
	})

	rankOf := make(map[string]int, len(ranked))
	for i, entry := range ranked {
		rankOf[entry.family] = i + 1
	}

	return &Ranking{
		targetWord:   target,
		targetVec:    targetVec,
		ranked:       ranked,
		rankOfFamily: rankOf,
	}, nil
}

type guessOutcome struct {
	word       string
	similarity float64
	rank       int
	isCorrect  bool
}

// resolveGuess scores one guess against the ranking. Guesses whose lemma
// family was ranked resolve in O(1); anything else the model knows gets an
// estimated rank by counting strictly closer ranked families.
func resolveGuess(voc *Vocabulary, r *Ranking, raw string) (guessOutcome, error) {
	guess := strings.TrimSpace(raw)
	if !isLowerAlpha(guess) {
		return guessOutcome{}, errNotLegalGuess
	}

	// The lemma stands in for the surface when the model knows it, so
	// "cats" scores as "cat".
	search := guess
	if lemma := voc.oracle.Lemma(guess); lemma != guess && voc.oracle.HasVector(lemma) {
		search = lemma
	}
	if !voc.oracle.HasVector(search) {
		return guessOutcome{}, errWordUnknown
	}

	family := voc.oracle.Lemma(guess)

	if rank, ok := r.rankOfFamily[family]; ok {
		return guessOutcome{
			word:       guess,
			similarity: r.ranked[rank-1].similarity,
			rank:       rank,
			isCorrect:  rank == 1,
		}, nil
	}

	vec, ok := voc.oracle.Vector(search)
	if !ok {
		return guessOutcome{}, errWordUnknown
	}
	if err := normalize(vec); err != nil {
		return guessOutcome{}, errWordUnknown
	}

	similarity := float64(vek32.Dot(vec, r.targetVec))

	rank := 1
	for _, entry := range r.ranked {
		if entry.similarity > similarity {
			rank++
		}
	}

	return guessOutcome{
		word:       guess,
		similarity: similarity,
		rank:       rank,
		isCorrect:  rank == 1,
	}, nil
}

// hintWord picks the ranked representative at half the best rank achieved so
// far, skipping words already hinted by walking toward rank 1. Returns the
// rank-1 word if everything closer has been hinted already.
func hintWord(r *Ranking, bestRank int, given map[string]bool) string {
	if len(r.ranked) == 0 {
		return ""
	}

	if bestRank < 1 || bestRank > len(r.ranked) {
		bestRank = len(r.ranked)
	}

	rank := bestRank / 2
	if rank < 1 {
		rank = 1
	}

	for ; rank > 1; rank-- {
		if !given[r.ranked[rank-1].word] {
			break
		}
	}

	return r.ranked[rank-1].word
}
