package main

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strings"
	"sync/atomic"

	"github.com/viterin/vek/vek32"
	"golang.org/x/sync/singleflight"
)

// Auxiliaries and modals slip through coarse VERB tagging but make terrible
// targets, so they are excluded from the selection pool outright.
var functionVerbs = map[string]bool{
	"be": true, "is": true, "are": true, "was": true, "were": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"having": true, "do": true, "does": true, "did": true, "will": true,
	"would": true, "shall": true, "should": true, "may": true, "might": true,
	"can": true, "could": true, "must": true,
}

// Vocabulary is the per-process embedding cache: the curated word list, the
// target-selection pool, unit-normalized vectors for every word the model
// knows, and each word's lemma family key. Immutable once built, so readers
// never lock.
type Vocabulary struct {
	words      []string
	meaningful []string
	vecs       [][]float32
	vecWords   []string
	familyKey  map[string]string

	oracle Oracle
}

// vocabStore coalesces concurrent first builds: exactly one caller does the
// work, everyone else blocks on the shared result. Subsequent calls return
// the cached value without touching the group.
type vocabStore struct {
	group singleflight.Group
	built atomic.Pointer[Vocabulary]
}

func (s *vocabStore) ensure(cfg *Config, oracle Oracle, progress func(string)) (*Vocabulary, error) {
	if v := s.built.Load(); v != nil {
		return v, nil
	}

	v, err, _ := s.group.Do("vocab", func() (any, error) {
		built, err := buildVocabulary(cfg, oracle, progress)
		if err != nil {
			return nil, err
		}
		s.built.Store(built)
		return built, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Vocabulary), nil
}

// buildVocabulary loads the word list and consults the oracle once per word.
// Row order in vecs follows word order in the file.
func buildVocabulary(cfg *Config, oracle Oracle, progress func(string)) (*Vocabulary, error) {
	words, err := loadWordList(cfg.vocabPath)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%s: no usable words", cfg.vocabPath)
	}

	if progress != nil {
		progress("Filtering vectors for vocabulary...")
	}

	voc := &Vocabulary{
		words:     words,
		familyKey: make(map[string]string, len(words)),
		oracle:    oracle,
	}

	for i, w := range words {
		voc.familyKey[w] = oracle.Lemma(w)

		if cfg.rankSize > 0 && i >= cfg.rankSize {
			continue
		}

		vec, ok := oracle.Vector(w)
		if !ok {
			continue
		}
		if err := normalize(vec); err != nil {
			return nil, fmt.Errorf("word %q: %w", w, err)
		}

		voc.vecs = append(voc.vecs, vec)
		voc.vecWords = append(voc.vecWords, w)
	}

	if len(voc.vecWords) == 0 {
		return nil, fmt.Errorf("%s: no words with vectors", cfg.vocabPath)
	}

	pool := cfg.meaningfulPool
	if pool > len(words) {
		pool = len(words)
	}

	for _, w := range words[:pool] {
		if !voc.isMeaningful(cfg, w) {
			continue
		}
		voc.meaningful = append(voc.meaningful, w)
	}

	return voc, nil
}

// isMeaningful keeps content-bearing words suitable as targets: vectored,
// tagged noun/verb/adjective/adverb, long enough, and not a function verb.
// Words whose lemma collapses below the length floor are dropped too, so a
// plural of a short word cannot sneak in.
func (voc *Vocabulary) isMeaningful(cfg *Config, w string) bool {
	if len(w) < cfg.minWordLength {
		return false
	}
	if functionVerbs[w] {
		return false
	}
	if !voc.oracle.HasVector(w) {
		return false
	}

	switch voc.oracle.POS(w) {
	case POSNoun, POSVerb, POSAdj, POSAdv:
	default:
		return false
	}

	if lemma := voc.familyKey[w]; lemma != w && len(lemma) < cfg.minWordLength {
		return false
	}

	return true
}

// loadWordList reads a newline-separated word list, skipping blank lines and
// anything that is not lowercase ASCII letters. File order is preserved.
func loadWordList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if !isLowerAlpha(word) {
			continue
		}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return words, nil
}

func isLowerAlpha(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

// normalize scales v to unit length in place.
func normalize(v []float32) error {
	norm := math.Sqrt(float64(vek32.Dot(v, v)))
	if norm == 0 {
		return fmt.Errorf("zero-magnitude vector")
	}
	vek32.MulNumber_Inplace(v, float32(1/norm))
	return nil
}
