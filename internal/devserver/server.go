// Package devserver implements the thin, concrete realization spec.md
// §6 leaves as an external collaborator: an HTTP server that serves a
// File's target buffer straight out of memory, plus a websocket
// endpoint the watcher's rebuild-complete event pushes a reload
// notification through. Routing policy, proxying and HTML injection are
// out of scope; this is the serve-plus-notify mechanism alone.
//
// Grounded on Mschirtzinger-jj-beads's internal/turso/dashboard/server.go
// for the net/http + coder/websocket broadcast-to-clients shape.
package devserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"shanhu.io/misc/idutil"
)

// ReloadPath is the websocket endpoint the dev server's clients connect
// to for live-reload notifications (spec.md's §6 expansion).
const ReloadPath = "/__digo/reload"

// Server serves in-memory build outputs and broadcasts a reload signal
// to connected clients after each rebuild. It satisfies digo.SaveSink
// (Put) and digo.DevServer (Start, URL) without importing the digo
// package, so the two packages stay decoupled.
type Server struct {
	Addr string

	mu      sync.RWMutex
	files   map[string][]byte
	etags   map[string]string

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]string

	listener net.Listener
	http     *http.Server
}

// New creates a Server that will listen on addr (":0" picks a free
// port) once Start is called.
func New(addr string) *Server {
	if addr == "" {
		addr = ":0"
	}
	return &Server{
		Addr:    addr,
		files:   make(map[string][]byte),
		etags:   make(map[string]string),
		clients: make(map[*websocket.Conn]string),
	}
}

// Put installs data as the in-memory content served at destPath,
// satisfying digo.SaveSink.
func (s *Server) Put(destPath string, data []byte) {
	tag := etag(data)
	s.mu.Lock()
	s.files[normalize(destPath)] = data
	s.etags[normalize(destPath)] = tag
	s.mu.Unlock()
}

// Start begins listening and serving. It returns once the listener is
// bound; the HTTP server itself runs on a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("devserver: listen on %s: %w", s.Addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(ReloadPath, s.handleReload)
	mux.HandleFunc("/", s.handleFile)

	s.http = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go s.http.Serve(ln)
	return nil
}

// Stop shuts the server down and closes every connected websocket.
func (s *Server) Stop() error {
	s.clientsMu.Lock()
	for c := range s.clients {
		_ = c.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, c)
	}
	s.clientsMu.Unlock()

	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// URL is the base address clients fetch built output from.
func (s *Server) URL() string {
	if s.listener == nil {
		return "http://" + s.Addr
	}
	return "http://" + s.listener.Addr().String()
}

// NotifyReload broadcasts a reload message to every connected client,
// called once per rebuild (spec.md's watcher invokes this via the
// runner's Watcher.OnRebuild hook).
func (s *Server) NotifyReload() {
	s.clientsMu.Lock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	for _, c := range clients {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.Write(ctx, websocket.MessageText, []byte("reload"))
		cancel()
		if err != nil {
			s.removeClient(c)
		}
	}
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path := normalize(r.URL.Path)
	s.mu.RLock()
	data, ok := s.files[path]
	tag := s.etags[path]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", tag)
	w.Write(data)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return
	}
	sum := sha256.Sum256([]byte(r.RemoteAddr + r.UserAgent() + time.Now().String()))
	id := idutil.Short(hex.EncodeToString(sum[:]))
	s.clientsMu.Lock()
	s.clients[conn] = id
	s.clientsMu.Unlock()
	log.Printf("devserver: client %s connected for reload notifications", id)
	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)
	ctx := context.Background()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	id := s.clients[conn]
	delete(s.clients, conn)
	s.clientsMu.Unlock()
	if id != "" {
		log.Printf("devserver: client %s disconnected", id)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func normalize(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		return "/" + p
	}
	return p
}

// etag mirrors the teacher's makeRuleDigest shape (sha256 over the
// content, hex-encoded), generalized from a build-rule execution digest
// to an HTTP cache-validation token.
func etag(data []byte) string {
	sum := sha256.Sum256(data)
	return `"sha256:` + hex.EncodeToString(sum[:]) + `"`
}
