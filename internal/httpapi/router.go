// Package httpapi exposes the chat operations over HTTP with gin.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fenggwsx/SportChat/internal/api"
	"github.com/fenggwsx/SportChat/internal/config"
)

// NewRouter builds the gin engine with every route under /api/v1.
func NewRouter(svc *api.Service, serverCfg config.ServerConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	SetupRoutes(router, svc, serverCfg)
	return router
}

func SetupRoutes(router *gin.Engine, svc *api.Service, serverCfg config.ServerConfig) {
	h := NewHandler(svc)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health)
		v1.GET("/config", h.AppConfig)

		authGroup := v1.Group("/auth")
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)

		private := v1.Group("", RequireAuth(svc))
		private.GET("/me", h.Me)
		private.PUT("/me/password", h.ChangePassword)
		private.GET("/me/stats", h.Stats)
		private.GET("/me/export", h.Export)

		private.POST("/messages", h.SendMessage)
		private.GET("/conversations", h.Conversations)
		private.GET("/conversations/search", h.Search)
		private.PATCH("/conversations/:id", h.UpdateConversation)
		private.DELETE("/conversations/:id", h.DeleteConversation)
		private.DELETE("/threads/:id", h.DeleteThread)

		admin := private.Group("/admin", RequireAdmin(serverCfg))
		admin.POST("/cleanup", h.Cleanup)
	}
}

// Server runs the HTTP API until its context ends.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errors.Wrap(err, "listen http")
	}
	log.Info().Str("component", "http").Str("addr", ln.Addr().String()).Msg("http listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve http")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http")
	}
	return nil
}
