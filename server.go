package couchdiscover

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewStatusServer builds the status server of the coordinator
func NewStatusServer(coordinator *Coordinator, options StatusServerOptions) *StatusServer {
	return newStatusServer(coordinator, options)
}

func newStatusServer(source statusSource, options StatusServerOptions) *StatusServer {
	if options.Logger == nil {
		nop := zerolog.Nop()
		options.Logger = &nop
	}
	s := &StatusServer{
		Logger:  options.Logger,
		options: options,
		source:  source,
	}
	s.server = &http.Server{Handler: s.newRouter()}
	return s
}

// newRouter will return the status router
func (s *StatusServer) newRouter() *gin.Engine {
	gin.DisableConsoleColor()
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestid.New())
	router.Use(gin.Recovery())

	router.GET("/healthz", s.healthz)
	router.GET("/status", s.status)
	if s.options.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.options.Gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

func (s *StatusServer) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultHealthTimeout)
	defer cancel()

	if !s.source.LocalUp(ctx) {
		s.Logger.Debug().Str("requestId", requestid.Get(c)).Msg("Local node is not up")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "up"})
}

func (s *StatusServer) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.Status())
}

// Start listens on the configured address and serves in background
func (s *StatusServer) Start() error {
	listener, err := net.Listen("tcp", s.options.Address)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("Status server stopped abruptly")
		}
	}()
	s.Logger.Info().Msgf("Starting status server at %s", listener.Addr())
	return nil
}

// Addr returns the listening address once started
func (s *StatusServer) Addr() string {
	if s.listener == nil {
		return s.options.Address
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the status server
func (s *StatusServer) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.Logger.Info().Msg("Stopping status server successful")
	return nil
}
