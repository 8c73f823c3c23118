package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRanking(t *testing.T) (*Vocabulary, *Ranking) {
	t.Helper()

	voc := testVocabulary(t)

	ranking, err := buildRanking(voc, "alpha")
	require.NoError(t, err)

	return voc, ranking
}

func TestBuildRanking(t *testing.T) {
	_, ranking := testRanking(t)

	assert.Equal(t, "alpha", ranking.Target())
	assert.Equal(t, 4, ranking.TotalWords(), "betas and beta collapse into one family")

	top := ranking.TopEntries(10)
	require.Len(t, top, 4)

	assert.Equal(t, "alpha", top[0].Word)
	assert.Equal(t, 1, top[0].Rank)
	assert.InDelta(t, 1.0, top[0].Similarity, 1e-5)

	assert.Equal(t, "betas", top[1].Word, "the closer surface represents its family")
	assert.Equal(t, 2, top[1].Rank)
	assert.InDelta(t, 0.96593, top[1].Similarity, 1e-4)

	assert.Equal(t, "gamma", top[2].Word)
	assert.Equal(t, "delta", top[3].Word)

	assert.Len(t, ranking.TopEntries(2), 2)
}

func TestBuildRankingTieBreak(t *testing.T) {
	oracle := &stubOracle{
		vecs: map[string][]float32{
			"alpha": {1, 0},
			"zeta":  {0, 1},
			"eta":   {0, 1},
		},
	}

	voc, err := buildVocabulary(testConfig(t, []string{"alpha", "zeta", "eta"}), oracle, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ranking, err := buildRanking(voc, "alpha")
		require.NoError(t, err)

		top := ranking.TopEntries(3)
		require.Len(t, top, 3)
		assert.Equal(t, "eta", top[1].Word, "equal similarities order by word")
		assert.Equal(t, "zeta", top[2].Word)
	}
}

func TestBuildRankingUnknownTarget(t *testing.T) {
	voc := testVocabulary(t)

	_, err := buildRanking(voc, "zzz")
	assert.ErrorContains(t, err, "out of vocabulary")
}

func TestPickTarget(t *testing.T) {
	voc := testVocabulary(t)

	for i := 0; i < 20; i++ {
		target, err := pickTarget(voc)
		require.NoError(t, err)
		assert.Contains(t, voc.meaningful, target)
	}

	_, err := pickTarget(&Vocabulary{})
	assert.Error(t, err)
}

func TestResolveTarget(t *testing.T) {
	voc := testVocabulary(t)

	target, err := resolveTarget(voc, "  Alpha ")
	require.NoError(t, err)
	assert.Equal(t, "alpha", target)

	target, err = resolveTarget(voc, "alphas")
	require.NoError(t, err)
	assert.Equal(t, "alpha", target, "the lemma stands in when it has a vector")

	target, err = resolveTarget(voc, "epsilon")
	require.NoError(t, err)
	assert.Equal(t, "epsilon", target)

	_, err = resolveTarget(voc, "zzz")
	assert.Error(t, err)

	_, err = resolveTarget(voc, "  ")
	assert.Error(t, err)
}

func TestResolveGuessExact(t *testing.T) {
	voc, ranking := testRanking(t)

	outcome, err := resolveGuess(voc, ranking, "betas")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.rank)
	assert.InDelta(t, 0.96593, outcome.similarity, 1e-4)
	assert.False(t, outcome.isCorrect)

	outcome, err = resolveGuess(voc, ranking, "beta")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.rank, "any surface in a ranked family shares its rank")
	assert.InDelta(t, 0.96593, outcome.similarity, 1e-4,
		"similarity reported is the family representative's")

	outcome, err = resolveGuess(voc, ranking, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.rank)
	assert.True(t, outcome.isCorrect)

	outcome, err = resolveGuess(voc, ranking, "alphas")
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.rank, "plurals of the target win through their lemma")
	assert.True(t, outcome.isCorrect)
	assert.Equal(t, "alphas", outcome.word, "the guessed surface is echoed back")
}

func TestResolveGuessEstimated(t *testing.T) {
	voc, ranking := testRanking(t)

	// epsilon sits between betas and gamma but was never ranked.
	outcome, err := resolveGuess(voc, ranking, "epsilon")
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.rank, "one more than the count of strictly closer families")
	assert.InDelta(t, 0.70711, outcome.similarity, 1e-4)
	assert.False(t, outcome.isCorrect)
}

func TestResolveGuessRejections(t *testing.T) {
	voc, ranking := testRanking(t)

	for _, guess := range []string{"", "  ", "Beta", "beta!", "two words", "beta2"} {
		_, err := resolveGuess(voc, ranking, guess)
		assert.ErrorIs(t, err, errNotLegalGuess, "guess %q", guess)
	}

	_, err := resolveGuess(voc, ranking, "zzz")
	assert.ErrorIs(t, err, errWordUnknown)
}

func TestHintWord(t *testing.T) {
	_, ranking := testRanking(t)

	assert.Equal(t, "betas", hintWord(ranking, 4, map[string]bool{}),
		"hints land halfway between rank 1 and the best guess")

	assert.Equal(t, "betas", hintWord(ranking, 0, map[string]bool{}),
		"no guesses yet counts as best = total words")

	assert.Equal(t, "alpha", hintWord(ranking, 4, map[string]bool{"betas": true}),
		"already-hinted words are skipped toward rank 1")

	assert.Equal(t, "alpha", hintWord(ranking, 2, map[string]bool{}))

	assert.Equal(t, "", hintWord(&Ranking{}, 4, map[string]bool{}))
}
