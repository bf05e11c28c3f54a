// Package api is the JSON HTTP boundary of the venue. It parses requests,
// maps engine outcomes onto statuses and payloads, and owns no matching or
// settlement logic of its own.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bourse/internal/common"
	"bourse/internal/config"
	"bourse/internal/engine"
	"bourse/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

const defaultShutdownTimeout = 5 * time.Second

type Server struct {
	cfg      config.Config
	engine   *engine.Engine
	registry *prometheus.Registry
	router   *mux.Router
	hub      *Hub
	log      zerolog.Logger
	cancel   context.CancelFunc
}

func New(cfg config.Config, eng *engine.Engine, registry *prometheus.Registry, log zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   eng,
		registry: registry,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		log:      log.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()
	return s
}

// Hub exposes the websocket hub so the engine can report trades into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) setupRoutes() {
	s.router.Use(s.observe)
	s.router.HandleFunc("/", s.handleHome).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/order", s.handlePlaceOrder).Methods("POST")
	s.router.HandleFunc("/depth", s.handleDepth).Methods("GET")
	s.router.HandleFunc("/balance/{userId}", s.handleBalance).Methods("GET")
	s.router.HandleFunc("/quote", s.handleQuote).Methods("POST")
	s.router.HandleFunc("/ticker", s.handleTicker).Methods("GET")
	s.router.Handle("/metrics", metrics.Handler(s.registry)).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the full middleware-wrapped handler. Split out so tests
// can drive the server without a listener.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

func (s *Server) Shutdown() {
	s.log.Info().Msg("server shutting down")
	s.cancel()
}

// Run serves until the context is cancelled, then drains the listener and
// the websocket hub.
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	t.Go(func() error {
		s.hub.run(t)
		return nil
	})

	httpServer := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	t.Go(func() error {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	t.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	s.log.Info().Str("addr", s.cfg.Server.Addr).Msg("server running")
	if err := t.Wait(); err != nil {
		s.log.Error().Err(err).Msg("server exited")
	}
}

// observe records per-route request durations.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}
		metrics.RequestDurationMs.WithLabelValues(route).
			Observe(float64(time.Since(start).Milliseconds()))
	})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "Hello Trader")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := getValidator().Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	side, err := common.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	filled, err := s.engine.Place(common.Order{
		Owner:      req.UserID,
		Side:       side,
		LimitPrice: req.Price,
		Quantity:   req.Quantity,
	}, req.FillOrKill)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, PlaceOrderResponse{FilledQuantity: filled})
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	depth := s.engine.Depth()
	out := make(map[string]DepthEntry, len(depth))
	for price, level := range depth {
		out[price] = DepthEntry{
			Type:     level.Side.String(),
			Quantity: level.Quantity,
		}
	}
	respondJSON(w, http.StatusOK, DepthResponse{Depth: out})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	respondJSON(w, http.StatusOK, BalanceResponse{Balances: s.engine.Balance(userID)})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := getValidator().Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	side, err := common.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	avg, err := s.engine.Quote(side, req.Quantity, req.UserID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, QuoteResponse{
		Quantity:     req.Quantity,
		AveragePrice: avg,
	})
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	var resp TickerResponse
	if bid, ok := s.engine.BestBid(); ok {
		resp.BestBid = &bid
	}
	if ask, ok := s.engine.BestAsk(); ok {
		resp.BestAsk = &ask
	}
	resp.LastPrice = s.engine.LastPrice()
	respondJSON(w, http.StatusOK, resp)
}

// respondEngineError maps engine outcomes onto HTTP statuses.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrRejection):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrUnknownAccount):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrUnfulfillable):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, engine.ErrNotEnoughLiquidity):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
