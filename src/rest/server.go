package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"market-pulse/src/config"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

// -----------------------------------------------------------------------------

// feedController is the slice of the feed connector the HTTP layer needs.
type feedController interface {
	Subscribe(symbol string)
	Unsubscribe(symbol string)
	EnsureSubscribed(symbols []string)
	Status() models.MFeedStatus
}

// quoteReader extends the read-side store contract with the cached-symbol
// count reported on the status endpoint.
type quoteReader interface {
	interfaces.IQuoteReader
	Len() int
}

// -----------------------------------------------------------------------------

// Server exposes the HTTP API: bulk quote reads, index proxies, market status,
// subscription management and the SSE stream endpoint.
type Server struct {
	Name string

	config     *config.Config
	logger     *logger.Logger
	store      quoteReader
	feed       feedController
	serializer interfaces.ISerializer

	router *mux.Router
	server *http.Server

	// closed on Stop so open SSE streams end before Shutdown waits on them
	done     chan struct{}
	stopOnce sync.Once
}

// -----------------------------------------------------------------------------

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg *config.Config, log *logger.Logger, store quoteReader, feed feedController, serializer interfaces.ISerializer) *Server {
	s := &Server{
		Name:       "RestServer",
		config:     cfg,
		logger:     log,
		store:      store,
		feed:       feed,
		serializer: serializer,
		router:     mux.NewRouter(),
		done:       make(chan struct{}),
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/quotes/latest", s.handleLatestQuotes).Methods(http.MethodGet)
	api.HandleFunc("/market/indices", s.handleMarketIndices).Methods(http.MethodGet)
	api.HandleFunc("/market/status", s.handleMarketStatus).Methods(http.MethodGet)
	api.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions/{symbol}", s.handleSubscribe).Methods(http.MethodPost)
	api.HandleFunc("/subscriptions/{symbol}", s.handleUnsubscribe).Methods(http.MethodDelete)
	api.HandleFunc("/feed/status", s.handleFeedStatus).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// -----------------------------------------------------------------------------

// Router returns the configured router, used by tests to drive handlers
// without binding a port.
func (s *Server) Router() http.Handler {
	return s.router
}

// -----------------------------------------------------------------------------

// Start begins serving in the background. Listen errors other than a normal
// shutdown are reported on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("%s : listening on %s", s.Name, s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s failed: %w", s.Name, err)
		}
		close(errCh)
	}()
	return errCh
}

// -----------------------------------------------------------------------------

// Stop ends every open SSE stream, then gracefully shuts the server down,
// waiting for in-flight requests up to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("%s : shutting down", s.Name)
	s.stopOnce.Do(func() { close(s.done) })
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown error: %w", s.Name, err)
	}
	return nil
}
