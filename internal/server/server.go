package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jpalmerr/coinwatch/internal/store"
)

const (
	// sseWriteTimeout bounds a single stream write so a stalled client
	// cannot pin its handler goroutine. Must be <= shutdown timeout.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Coinwatch"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Config holds the dependencies of a [Server].
type Config struct {
	// Store supplies the board. Required.
	Store store.Store

	// Controller handles mutations. When nil the mutation routes are not
	// registered.
	Controller Controller

	// Market serves history and the markets proxy. When nil those routes
	// are not registered.
	Market MarketData

	// Port is the TCP port to listen on; 0 picks a free port.
	Port int

	// Assets holds assets/index.html. May be nil.
	Assets fs.FS

	// Title replaces {{.Title}} in the dashboard, HTML escaped.
	Title string

	Logger *slog.Logger
}

// Server handles HTTP requests for the coinwatch dashboard and API.
//
// Server provides:
//   - GET /: the embedded dashboard HTML
//   - GET /api/board: the current board as JSON
//   - GET /api/sse: Server-Sent Events stream of boards
//   - GET /api/ws: websocket stream of boards
//   - the watch list, retry, currency, holdings and account mutations
//   - GET /api/history/{id} and GET /api/prices
//
// The server shuts down gracefully when the context passed to Start is
// cancelled.
type Server struct {
	store      store.Store
	controller Controller
	market     MarketData
	port       int
	httpServer *http.Server
	listener   net.Listener
	assets     fs.FS
	title      string
	logger     *slog.Logger
	prices     *priceCache
}

// NewServer creates a new HTTP [Server].
// The server is not started until [Server.Start] is called.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:      cfg.Store,
		controller: cfg.Controller,
		market:     cfg.Market,
		port:       cfg.Port,
		assets:     cfg.Assets,
		title:      cfg.Title,
		logger:     logger,
	}
	if cfg.Market != nil {
		s.prices = newPriceCache(cfg.Market, pricesTTL)
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/board", s.handleBoard)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("GET /api/ws", s.handleWS)

	if s.controller != nil {
		mux.HandleFunc("POST /api/watchlist", s.handleAddCoin)
		mux.HandleFunc("DELETE /api/watchlist/{id}", s.handleRemoveCoin)
		mux.HandleFunc("POST /api/retry", s.handleRetry)
		mux.HandleFunc("PUT /api/currency", s.handleCurrency)
		mux.HandleFunc("PUT /api/holdings/{id}", s.handleHolding)
		mux.HandleFunc("DELETE /api/account", s.handleResetAccount)
	}
	if s.market != nil {
		mux.HandleFunc("GET /api/history/{id}", s.handleHistory)
		mux.HandleFunc("GET /api/prices", s.handlePrices)
	}

	if s.assets != nil {
		mux.HandleFunc("GET /", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns once the listener is bound. The server
// runs until ctx is cancelled, then shuts down with a 5-second timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so streaming handlers exit on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleBoard returns the current board as JSON.
func (s *Server) handleBoard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, s.store.Get())
}

// handleSSE streams boards via Server-Sent Events, starting with the
// current one.
//
// Writes carry a deadline so a slow or vanished client cannot block the
// handler past shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// some ResponseWriter implementations (recorders) reject deadlines
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	last := s.store.Get()
	if data, err := json.Marshal(last); err == nil {
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case board, ok := <-ch:
			if !ok {
				return
			}
			if board.Version < last.Version {
				continue
			}
			last = board
			data, err := json.Marshal(board)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on both client disconnect and server shutdown via BaseContext
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
