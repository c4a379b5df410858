package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"resumebuilder/api/internal/broadcast"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 25 * time.Second
	maxFrameBytes  = 1 << 20
	outboundBuffer = 64
	inboxBuffer    = 16
	// Disconnect cleanup gets its own deadline; the request context may
	// already be gone.
	disconnectTimeout = 10 * time.Second
)

type Authenticator interface {
	Identity(token string) (string, error)
}

// SocketServer upgrades HTTP requests to websocket sessions driven by a
// Coordinator. Upgraded connections are hijacked, so http.Server.Shutdown
// does not wait for them; call Shutdown as well.
type SocketServer struct {
	coordinator *Coordinator
	auth        Authenticator
	upgrader    websocket.Upgrader

	mu       sync.Mutex
	sessions map[*websocket.Conn]struct{}
	closing  bool
	wg       sync.WaitGroup
}

func NewSocketServer(coordinator *Coordinator, auth Authenticator, allowedOrigin string) *SocketServer {
	return &SocketServer{
		coordinator: coordinator,
		auth:        auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
		sessions: make(map[*websocket.Conn]struct{}),
	}
}

func socketToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func (s *SocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.isClosing() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	token := socketToken(r)
	if token == "" {
		http.Error(w, "Authentication error", http.StatusUnauthorized)
		return
	}
	identity, err := s.auth.Identity(token)
	if err != nil {
		http.Error(w, "Authentication error", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade for %s: %v", identity, err)
		return
	}
	if !s.track(ws) {
		goingAway(ws)
		_ = ws.Close()
		return
	}
	defer s.untrack(ws)
	s.serve(context.WithoutCancel(r.Context()), ws, NewConn(identity, outboundBuffer))
}

func (s *SocketServer) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *SocketServer) track(ws *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions[ws] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *SocketServer) untrack(ws *websocket.Conn) {
	s.mu.Lock()
	delete(s.sessions, ws)
	s.mu.Unlock()
	s.wg.Done()
}

func goingAway(ws *websocket.Conn) {
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeTimeout))
}

// Shutdown refuses new sessions, closes every open one, and waits until each
// has run its disconnect transition or ctx is done. Membership of the closed
// sessions is removed from the store before Shutdown returns nil.
func (s *SocketServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	open := make([]*websocket.Conn, 0, len(s.sessions))
	for ws := range s.sessions {
		open = append(open, ws)
	}
	s.mu.Unlock()

	for _, ws := range open {
		goingAway(ws)
		_ = ws.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serve runs one connection until the peer goes away. The calling goroutine
// is the connection's actor: it handles inbound frames one at a time, then
// runs the disconnect transition.
func (s *SocketServer) serve(ctx context.Context, ws *websocket.Conn, conn *Conn) {
	defer ws.Close()

	handleCtx, handleCancel := context.WithCancel(ctx)
	defer handleCancel()

	inbox := make(chan broadcast.Message, inboxBuffer)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		if !s.writeLoop(ws, conn) {
			// Unblock the reader so the actor can disconnect.
			_ = ws.Close()
		}
	}()

	go func() {
		defer close(inbox)
		defer handleCancel()
		s.readLoop(handleCtx, ws, conn, inbox)
	}()

	for frame := range inbox {
		s.coordinator.Dispatch(ctx, conn, frame)
	}

	disconnectCtx, cancel := context.WithTimeout(ctx, disconnectTimeout)
	s.coordinator.Disconnect(disconnectCtx, conn)
	cancel()
	<-writerDone
}

func (s *SocketServer) readLoop(ctx context.Context, ws *websocket.Conn, conn *Conn, inbox chan<- broadcast.Message) {
	ws.SetReadLimit(maxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read from %s: %v", conn.identity, err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongTimeout))
		if messageType != websocket.TextMessage {
			continue
		}

		var frame broadcast.Message
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			// Malformed frames still go through the actor so the error reply
			// stays ordered with everything else.
			frame = broadcast.Message{}
		}
		select {
		case inbox <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// writeLoop drains conn's outbound queue until conn is closed. It reports
// false when the peer stopped accepting writes.
func (s *SocketServer) writeLoop(ws *websocket.Conn, conn *Conn) bool {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-conn.Outbound():
			payload, err := json.Marshal(msg)
			if err != nil {
				log.Printf("realtime: encode %s: %v", msg.Event, err)
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return false
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return false
			}
		case <-conn.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return true
		}
	}
}
