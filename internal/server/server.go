package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentterm/termd/internal/config"
	"github.com/agentterm/termd/internal/jsonrpc"
	"github.com/agentterm/termd/internal/logging"
	"github.com/agentterm/termd/internal/middleware"
	"github.com/agentterm/termd/internal/monitoring"
	"github.com/agentterm/termd/internal/session"
	"github.com/agentterm/termd/internal/tools"
)

// maxRPCBody bounds a single /rpc request body.
const maxRPCBody = 4 << 20

// Server hosts the HTTP/WebSocket control plane.
type Server struct {
	cfg        *config.Config
	log        *logging.Logger
	metrics    *monitoring.Metrics
	manager    *session.Manager
	dispatcher *tools.Dispatcher

	engine *gin.Engine
	http   *http.Server
}

// New wires the router. The caller owns manager shutdown; Close only
// stops the HTTP listener.
func New(cfg *config.Config, log *logging.Logger, metrics *monitoring.Metrics, manager *session.Manager, dispatcher *tools.Dispatcher) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		cfg:        cfg,
		log:        log.Component("server"),
		metrics:    metrics,
		manager:    manager,
		dispatcher: dispatcher,
		engine:     engine,
	}

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	engine.Use(metrics.Middleware())

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	engine.POST("/rpc", s.handleRPC)
	engine.GET("/ws", s.handleWS)

	return s
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the listener and blocks until it stops.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("control plane listening", zap.String("addr", addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the listener down gracefully.
func (s *Server) Close(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.manager.Count(),
	})
}

// handleRPC serves one JSON-RPC message per POST body. Notifications get
// 204; requests get the response message as the body.
func (s *Server) handleRPC(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRPCBody))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	msg, perr := jsonrpc.Parse(body)
	if perr != nil {
		var rpcErr *jsonrpc.Error
		if e, ok := perr.(*jsonrpc.Error); ok {
			rpcErr = e
		} else {
			rpcErr = jsonrpc.ErrInternal(perr.Error())
		}
		s.writeMessage(c, http.StatusOK, jsonrpc.NewError(nil, rpcErr))
		return
	}

	reply := s.dispatcher.Handle(c.Request.Context(), msg)
	if reply == nil {
		c.Status(http.StatusNoContent)
		return
	}
	s.writeMessage(c, http.StatusOK, reply)
}

func (s *Server) writeMessage(c *gin.Context, status int, msg *jsonrpc.Message) {
	data, err := jsonrpc.Marshal(msg)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json", data)
}
