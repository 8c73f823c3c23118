package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/go-porterstemmer"
	lru "github.com/hashicorp/golang-lru/v2"
)

// PartOfSpeech is the coarse tag reported by the embedding model.
type PartOfSpeech string

const (
	POSNoun  PartOfSpeech = "NOUN"
	POSVerb  PartOfSpeech = "VERB"
	POSAdj   PartOfSpeech = "ADJ"
	POSAdv   PartOfSpeech = "ADV"
	POSOther PartOfSpeech = "OTHER"
)

// Oracle is the embedding capability the game consumes: dense vectors,
// coarse part-of-speech tags, and a lemma family key per surface word.
// Implementations must be safe for concurrent readers.
type Oracle interface {
	HasVector(word string) bool
	Vector(word string) ([]float32, bool)
	POS(word string) PartOfSpeech
	Lemma(word string) string
}

const (
	vectorsFileName = "vectors.txt"
	lexiconFileName = "lexicon.tsv"

	lemmaCacheSize = 16384
)

// vectorModel serves Oracle lookups from a word2vec-format text file plus an
// optional tab-separated part-of-speech lexicon. Vectors and tags are loaded
// once and never mutated, so lookups need no locking; lemma stems are
// memoized through an LRU since out-of-vocabulary guesses hit the stemmer
// repeatedly.
type vectorModel struct {
	vectors map[string][]float32
	tags    map[string]PartOfSpeech
	dim     int

	lemmaMu sync.Mutex
	lemmas  *lru.Cache[string, string]
}

// LoadVectorModel reads a model directory containing vectors.txt and,
// optionally, lexicon.tsv. Words without a lexicon entry are tagged OTHER.
func LoadVectorModel(dir string) (*vectorModel, error) {
	m := &vectorModel{
		vectors: make(map[string][]float32),
		tags:    make(map[string]PartOfSpeech),
	}

	var err error
	m.lemmas, err = lru.New[string, string](lemmaCacheSize)
	if err != nil {
		return nil, err
	}

	if err := m.loadVectors(filepath.Join(dir, vectorsFileName)); err != nil {
		return nil, err
	}

	lexPath := filepath.Join(dir, lexiconFileName)
	if _, err := os.Stat(lexPath); err == nil {
		if err := m.loadLexicon(lexPath); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *vectorModel) loadVectors(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)

		// word2vec text files open with a "<count> <dim>" header line.
		if lineNo == 1 && len(fields) == 2 {
			if dim, err := strconv.Atoi(fields[1]); err == nil {
				m.dim = dim
				continue
			}
		}

		if len(fields) < 2 {
			return fmt.Errorf("%s:%d: malformed vector line", path, lineNo)
		}

		word := strings.ToLower(fields[0])
		vec := make([]float32, 0, len(fields)-1)
		for _, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return fmt.Errorf("%s:%d: bad component %q: %w", path, lineNo, field, err)
			}
			vec = append(vec, float32(v))
		}

		if m.dim == 0 {
			m.dim = len(vec)
		}
		if len(vec) != m.dim {
			return fmt.Errorf("%s:%d: vector for %q has %d components, want %d", path, lineNo, word, len(vec), m.dim)
		}

		m.vectors[word] = vec
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	if len(m.vectors) == 0 {
		return fmt.Errorf("%s: no vectors found", path)
	}

	return nil
}

func (m *vectorModel) loadLexicon(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		word, tag, found := strings.Cut(line, "\t")
		if !found {
			return fmt.Errorf("%s:%d: malformed lexicon line", path, lineNo)
		}

		switch pos := PartOfSpeech(strings.ToUpper(strings.TrimSpace(tag))); pos {
		case POSNoun, POSVerb, POSAdj, POSAdv:
			m.tags[strings.ToLower(word)] = pos
		default:
			m.tags[strings.ToLower(word)] = POSOther
		}
	}

	return scanner.Err()
}

// Dimension reports the width of the loaded vectors.
func (m *vectorModel) Dimension() int {
	return m.dim
}

func (m *vectorModel) HasVector(word string) bool {
	_, ok := m.vectors[strings.ToLower(word)]
	return ok
}

func (m *vectorModel) Vector(word string) ([]float32, bool) {
	vec, ok := m.vectors[strings.ToLower(word)]
	if !ok {
		return nil, false
	}

	// Copy so callers can normalize in place.
	out := make([]float32, len(vec))
	copy(out, vec)

	return out, true
}

func (m *vectorModel) POS(word string) PartOfSpeech {
	if tag, ok := m.tags[strings.ToLower(word)]; ok {
		return tag
	}
	return POSOther
}

func (m *vectorModel) Lemma(word string) string {
	word = strings.ToLower(word)

	m.lemmaMu.Lock()
	defer m.lemmaMu.Unlock()

	if lemma, ok := m.lemmas.Get(word); ok {
		return lemma
	}

	lemma := porterstemmer.StemString(word)
	if lemma == "" {
		lemma = word
	}
	m.lemmas.Add(word, lemma)

	return lemma
}
