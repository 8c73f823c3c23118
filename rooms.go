package main

import (
	"context"
	"crypto/rand"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// A bad random target (no vector) is retried this many times before the
// room gives up and is destroyed.
const buildRetries = 3

// RoomManager is the registry: room id -> Room behind a single mutex. It
// owns the shared build worker pool and the process-wide vocabulary cache,
// and reaps rooms left idle past the session timeout.
type RoomManager struct {
	mu    sync.Mutex
	rooms map[string]*Room

	cfg    *Config
	oracle Oracle
	vocab  vocabStore

	buildSem    *semaphore.Weighted
	idleTimeout time.Duration
}

func newRoomManager(cfg *Config, oracle Oracle) *RoomManager {
	m := &RoomManager{
		rooms:       make(map[string]*Room),
		cfg:         cfg,
		oracle:      oracle,
		buildSem:    semaphore.NewWeighted(int64(cfg.buildWorkers())),
		idleTimeout: cfg.sessionTimeout,
	}

	if m.idleTimeout > 0 {
		go m.reaperLoop()
	}

	return m
}

// getOrCreate returns the room for id, creating it lazily on first use.
// Room ids are case-insensitive.
func (m *RoomManager) getOrCreate(roomID string) *Room {
	roomID = lowerRoomID(roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[roomID]; ok {
		return room
	}

	room := newRoom(m.cfg, m, roomID)
	m.rooms[roomID] = room
	go room.run()

	logf(m.cfg, "GAMES: Created room %q", roomID)

	return room
}

// dropIfEmpty removes and destroys the room when its membership is empty.
func (m *RoomManager) dropIfEmpty(roomID string) {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if ok {
		room.mu.RLock()
		empty := len(room.order) == 0
		room.mu.RUnlock()

		if !empty {
			m.mu.Unlock()
			return
		}
		delete(m.rooms, roomID)
	}
	m.mu.Unlock()

	if ok {
		room.destroy()
	}
}

// remove unconditionally removes and destroys a room (build failure path).
func (m *RoomManager) remove(roomID string) {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if ok {
		delete(m.rooms, roomID)
	}
	m.mu.Unlock()

	if ok {
		room.destroy()
	}
}

// startBuild schedules the ranking precomputation on the shared worker pool.
// Called with the room lock held, so it must not lock the room itself.
func (m *RoomManager) startBuild(r *Room, targetWord string) {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancelBuild = cancel

	go m.runBuild(ctx, r, targetWord)
}

func (m *RoomManager) runBuild(ctx context.Context, r *Room, targetWord string) {
	if err := m.buildSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer m.buildSem.Release(1)

	voc, err := m.vocab.ensure(m.cfg, m.oracle, r.notifyLoading)
	if err != nil {
		// The whole process is useless without the vocabulary.
		log.Fatalf("ERROR: vocabulary initialization failed: %v", err)
	}

	r.notifyLoading("Pre-computing ranks vs target...")

	ranking, err := m.buildTarget(voc, targetWord)

	// The room may be gone by now; discard the result cooperatively.
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		select {
		case r.failed <- err:
		case <-r.done:
		}
		return
	}

	select {
	case r.built <- buildResult{voc: voc, ranking: ranking}:
	case <-r.done:
	}
}

// buildTarget builds the ranking for the supplied target when one was given
// and it checks out, falling back to freshly drawn random targets.
func (m *RoomManager) buildTarget(voc *Vocabulary, targetWord string) (*Ranking, error) {
	if targetWord != "" {
		if target, err := resolveTarget(voc, targetWord); err == nil {
			if ranking, err := buildRanking(voc, target); err == nil {
				return ranking, nil
			}
		}
		logf(m.cfg, "GAMES: Requested target %q unusable, drawing a random one", targetWord)
	}

	var lastErr error
	for attempt := 0; attempt < buildRetries; attempt++ {
		target, err := pickTarget(voc)
		if err != nil {
			return nil, err
		}

		ranking, err := buildRanking(voc, target)
		if err == nil {
			return ranking, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

// newRoomID mints a pronounceable consonant-vowel-consonant-vowel-digit-digit
// room id, retrying on the (unlikely) collision with a live room.
func (m *RoomManager) newRoomID() string {
	const (
		consonants = "bcdfghjklmnpqrstvwxz"
		vowels     = "aeiou"
		digits     = "0123456789"
	)

	for {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		id := string([]byte{
			consonants[int(buf[0])%len(consonants)],
			vowels[int(buf[1])%len(vowels)],
			consonants[int(buf[2])%len(consonants)],
			vowels[int(buf[3])%len(vowels)],
			digits[int(buf[4])%len(digits)],
			digits[int(buf[5])%len(digits)],
		})

		m.mu.Lock()
		_, exists := m.rooms[id]
		m.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically destroys rooms idle longer than the session timeout.
func (m *RoomManager) reaperLoop() {
	ticker := time.NewTicker(m.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-m.idleTimeout)

		m.mu.Lock()
		var stale []*Room
		for id, room := range m.rooms {
			room.mu.RLock()
			last := room.lastActive
			room.mu.RUnlock()

			if last.Before(cutoff) {
				delete(m.rooms, id)
				stale = append(stale, room)
			}
		}
		m.mu.Unlock()

		for _, room := range stale {
			logf(m.cfg, "GAMES: Reaped idle room %q", room.id)
			room.destroy()
		}
	}
}

func lowerRoomID(id string) string {
	b := []byte(id)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
