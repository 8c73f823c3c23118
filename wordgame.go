// Proximity word game
//
// Every room hides one target word drawn from the vocabulary. Players submit
// guesses and the server answers with the guess's rank against the target in
// embedding space (1 = the target's own lemma family) plus its cosine
// similarity, broadcasting each result to the whole room. Rank 1 wins.
//
// Features:
// - One websocket endpoint; sessions join rooms by id via join_room
// - Rooms are created lazily on first join; ranking precomputation runs on
//   a shared worker pool while joiners see ready:false
// - Exact O(1) ranks for ranked lemma families, counted estimates otherwise
// - Hints walk halfway toward the best rank achieved so far
// - Custom rooms can be seeded with a chosen target word
// - Empty rooms are destroyed immediately; idle rooms are reaped
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients.
type ClientMessage struct {
	Type       string `json:"type"`                  // "join_room", "make_guess", "request_hint"
	RoomID     string `json:"room_id,omitempty"`     // all events
	PlayerName string `json:"player_name,omitempty"` // all events
	Guess      string `json:"guess,omitempty"`       // make_guess
	TargetWord string `json:"target_word,omitempty"` // join_room, optional custom target
}

// Client is one websocket session. The session id, not the player name, is
// the authoritative participant key; name collisions are allowed.
type Client struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan any
	closed bool

	// Rooms this session joined, touched only by the readPump goroutine.
	rooms map[string]*Room
}

// trySend queues a payload without blocking. Reports false when the client
// is gone or its buffer is full.
func (c *Client) trySend(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) sendError(msg string) {
	c.trySend(GuessErrorMessage{Type: "guess_error", Msg: msg})
}

func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range cfg.corsAllowOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

func serveWS(cfg *Config, mgr *RoomManager) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			id:    uuid.NewString(),
			conn:  conn,
			send:  make(chan any, 32),
			rooms: make(map[string]*Room),
		}

		logf(cfg, "GAMES: Session %s connected from %s", client.id, realIP(r))

		go client.writePump()
		client.readPump(cfg, mgr)
	}
}

func (c *Client) readPump(cfg *Config, mgr *RoomManager) {
	defer func() {
		for _, room := range c.rooms {
			room.leave(c)
		}
		c.close()
		_ = c.conn.Close()
		logf(cfg, "GAMES: Session %s disconnected", c.id)
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join_room":
			if msg.RoomID == "" || msg.PlayerName == "" {
				c.sendError("room_id and player_name required")
				continue
			}

			room := mgr.getOrCreate(msg.RoomID)
			c.rooms[room.id] = room
			room.join(joinRequest{
				client:     c,
				playerName: msg.PlayerName,
				targetWord: msg.TargetWord,
			})

		case "make_guess":
			room, ok := c.rooms[lowerRoomID(msg.RoomID)]
			if !ok {
				c.sendError(errUnknownRoom.Error())
				continue
			}
			room.submitGuess(guessRequest{
				client:     c,
				playerName: msg.PlayerName,
				word:       msg.Guess,
			})

		case "request_hint":
			room, ok := c.rooms[lowerRoomID(msg.RoomID)]
			if !ok {
				c.sendError(errUnknownRoom.Error())
				continue
			}
			room.requestHint(hintRequest{
				client:     c,
				playerName: msg.PlayerName,
			})

		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// redirectNewRoom handles GET /path by minting a fresh room id and
// redirecting to /path/:roomid.
func redirectNewRoom(cfg *Config, path string, mgr *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID := mgr.newRoomID()
		logf(cfg, "GAMES: Minted room id %s/%s", path, roomID)
		http.Redirect(w, r, cfg.prefix+path+"/"+roomID, http.StatusTemporaryRedirect)
	}
}

func serveRoomPage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := lowerRoomID(ps.ByName("roomid"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		io.WriteString(w, newPage("proximity", "Room "+roomID+": connect a client to "+cfg.prefix+"/ws and join_room."))
	}
}

// qrHandler generates a PNG QR code for the current room URL.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("roomid")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:roomid/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// registerWordGame sets up routes so that:
//   - $path                  → redirects to a new random room id
//   - $path/:roomid          → HTML landing page for the room
//   - $path/:roomid/qr       → PNG QR code for that room URL
//   - /ws                    → the shared websocket endpoint
func registerWordGame(cfg *Config, path string, mux *httprouter.Router, mgr *RoomManager) {
	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, path, mgr))

	mux.GET(cfg.prefix+path+"/:roomid", serveRoomPage(cfg))

	mux.GET(cfg.prefix+path+"/:roomid/qr", qrHandler)

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, mgr))
}
