package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"sqsbridge/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type HTTPServer struct {
	server *http.Server
	logger logger.Logger
	addr   net.Addr
}

type ServerConfig struct {
	Port string
}

// NewHTTPServer serves router for the lifetime of the fx app. The listener is
// bound in OnStart so a taken port fails startup instead of the process.
func NewHTTPServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	config ServerConfig,
	log logger.Logger,
) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpServer := &HTTPServer{
		server: srv,
		logger: log.With(logger.String("component", "http_server")),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			}
			httpServer.addr = ln.Addr()

			httpServer.logger.Info("starting HTTP server", logger.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					httpServer.logger.Error("HTTP server stopped unexpectedly", logger.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			httpServer.logger.Info("shutting down HTTP server")
			return srv.Shutdown(ctx)
		},
	})

	return httpServer
}

func (s *HTTPServer) GetServer() *http.Server {
	return s.server
}

// Addr is the bound listener address, nil before start.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}
