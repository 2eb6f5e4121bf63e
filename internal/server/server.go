// Package server exposes the HTTP surface: health, historical candle seeds
// and the per-instrument websocket stream.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appconfig "chartflow/config"
	"chartflow/internal/history"
	"chartflow/internal/hub"
	"chartflow/internal/market"
	"chartflow/logger"
)

// Server hosts the Gin-powered HTTP and websocket endpoints.
type Server struct {
	cfg        *appconfig.Config
	market     *market.Market
	hub        *hub.Hub
	history    *history.Service
	log        *logger.Log
	httpServer *http.Server
	ctx        context.Context
}

// NewServer constructs the HTTP server.
func NewServer(cfg *appconfig.Config, mkt *market.Market, h *hub.Hub, hist *history.Service) *Server {
	return &Server{
		cfg:     cfg,
		market:  mkt,
		hub:     h,
		history: hist,
		log:     logger.Logger(),
	}
}

// Run starts the HTTP server and blocks until the provided context is
// cancelled or the underlying server exits with an error. Active websocket
// sessions observe the same context and terminate with the server.
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    normalizeAddress(s.cfg.Server.Address),
		Handler: router,
	}

	s.log.WithComponent("server").WithFields(logger.Fields{"address": s.httpServer.Addr}).Info("http server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}
	router.Use(corsMiddleware())

	router.GET("/health", s.handleHealth)
	router.GET("/candles/:instrument", s.handleCandles)
	router.GET("/ws/:instrument", s.handleWebsocket)

	return router, nil
}

// corsMiddleware allows browser clients on any origin to read the chart
// endpoints.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"name":        s.cfg.Chartflow.Name,
		"version":     s.cfg.Chartflow.Version,
		"instruments": s.market.Instruments(),
	})
}

func (s *Server) handleCandles(c *gin.Context) {
	instrument := strings.ToUpper(c.Param("instrument"))

	tf := c.DefaultQuery("tf", s.history.DefaultTimeframe())

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	limit, err := s.history.ClampLimit(limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candles, err := s.history.GetCandles(c.Request.Context(), instrument, tf, limit)
	switch {
	case errors.Is(err, history.ErrUnknownInstrument):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown instrument"})
		return
	case errors.Is(err, history.ErrUnknownTimeframe):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timeframe"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "candle lookup failed"})
		return
	}

	if candles == nil {
		candles = []market.Candle{}
	}
	c.JSON(http.StatusOK, candles)
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "0.0.0.0:8000"
	}
	if strings.HasPrefix(addr, ":") {
		return "0.0.0.0" + addr
	}
	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, port)
	}
	return net.JoinHostPort(addr, "8000")
}
