// Package httpapi exposes the catalog and the purchase workflow over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/buildtall-systems/gifticon/internal/auth"
	"github.com/buildtall-systems/gifticon/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Brand           string
	Currency        catalog.Currency
}

type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
	cfg        Config
	handler    *handler
}

func New(
	cfg Config,
	store *catalog.Store,
	authManager *auth.Manager,
	sessions *Sessions,
	logger *zap.Logger,
) *Server {
	h := &handler{
		brand:    cfg.Brand,
		currency: cfg.Currency,
		store:    store,
		auth:     authManager,
		sessions: sessions,
		logger:   logger,
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           createMux(h, authManager, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		httpServer: srv,
		handler:    h,
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Run() error {
	s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server ListenAndServe failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight payments.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := s.handler.wait(ctx); err != nil {
		return fmt.Errorf("waiting for payments: %w", err)
	}
	return nil
}

func createMux(h *handler, authManager *auth.Manager, logger *zap.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	router.Group(func(router chi.Router) {
		router.Use(auth.RedirectIfAuthenticated(authManager))
		router.Get(auth.LoginPath, h.loginPage)
		router.Post(auth.LoginPath, h.login)
	})

	router.Group(func(router chi.Router) {
		router.Use(auth.RequireAuth(authManager))
		router.Get(auth.HomePath, h.home)
		router.Post("/logout", h.logout)

		router.Route("/api", func(router chi.Router) {
			router.Get("/catalog", h.listCatalog)
			router.Get("/history", h.history)

			router.Route("/order", func(router chi.Router) {
				router.Get("/", h.snapshot)
				router.Post("/", h.startPurchase)
				router.Post("/payment-sheet", h.beginPayment)
				router.Put("/payment-method", h.choosePaymentMethod)
				router.Post("/confirm", h.confirmPayment)
				router.Post("/retry", h.retryPayment)
				router.Post("/cancel", h.cancel)
				router.Post("/close", h.closeShare)
				router.Get("/contacts", h.searchContacts)
				router.Post("/send", h.sendToContact)
				router.Get("/share/{channel}", h.shareToChannel)
			})
		})
	})

	return router
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("requestId", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// background runs payment calls that outlive their request.
type background struct {
	wg sync.WaitGroup
}

func (b *background) goPay(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

func (b *background) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
