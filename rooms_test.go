package main

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomID(t *testing.T) {
	mgr := newTestManager(t)

	pattern := regexp.MustCompile(`^[bcdfghjklmnpqrstvwxz][aeiou][bcdfghjklmnpqrstvwxz][aeiou][0-9]{2}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := mgr.newRoomID()
		assert.Regexp(t, pattern, id)
		seen[id] = true
	}

	assert.Greater(t, len(seen), 1, "ids are random")
}

func TestLowerRoomID(t *testing.T) {
	assert.Equal(t, "abc123", lowerRoomID("AbC123"))
	assert.Equal(t, "abc123", lowerRoomID("abc123"))
	assert.Equal(t, "", lowerRoomID(""))
}

func TestGetOrCreateIsCaseInsensitive(t *testing.T) {
	mgr := newTestManager(t)

	a := mgr.getOrCreate("ROOM1")
	b := mgr.getOrCreate("room1")
	assert.Same(t, a, b)

	mgr.remove("room1")
}

func TestDropIfEmptyKeepsOccupiedRooms(t *testing.T) {
	mgr := newTestManager(t)

	room := mgr.getOrCreate("busy")
	room.mu.Lock()
	room.order = append(room.order, "session")
	room.mu.Unlock()

	mgr.dropIfEmpty("busy")

	mgr.mu.Lock()
	_, exists := mgr.rooms["busy"]
	mgr.mu.Unlock()
	assert.True(t, exists)

	mgr.remove("busy")
}

func TestBuildTarget(t *testing.T) {
	mgr := newTestManager(t)
	voc := testVocabulary(t)

	ranking, err := mgr.buildTarget(voc, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", ranking.Target())

	ranking, err = mgr.buildTarget(voc, "zzz")
	require.NoError(t, err)
	assert.Contains(t, voc.meaningful, ranking.Target(), "unusable targets fall back to a random draw")

	ranking, err = mgr.buildTarget(voc, "")
	require.NoError(t, err)
	assert.Contains(t, voc.meaningful, ranking.Target())
}
