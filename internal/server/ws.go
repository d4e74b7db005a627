package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentterm/termd/internal/jsonrpc"
	"github.com/agentterm/termd/internal/shared/id"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced by the HTTP middleware; the ws
		// endpoint accepts whatever origin reached it.
		return true
	},
}

// handleWS upgrades the connection and speaks the line protocol with one
// JSON-RPC message per text frame. A malformed frame is answered with a
// parse error; the connection stays open.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := id.NewConnID()
	log := s.log.With(zap.String("conn_id", connID.String()))
	log.Info("websocket connected")

	s.metrics.WSConnections.Inc()
	defer s.metrics.WSConnections.Dec()

	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			log.Debug("websocket closed", zap.Error(err))
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		msg, perr := jsonrpc.Parse(frame)
		if perr != nil {
			rpcErr, ok := perr.(*jsonrpc.Error)
			if !ok {
				rpcErr = jsonrpc.ErrInternal(perr.Error())
			}
			if err := s.writeWS(conn, jsonrpc.NewError(nil, rpcErr)); err != nil {
				return
			}
			continue
		}

		reply := s.dispatcher.Handle(c.Request.Context(), msg)
		if reply == nil {
			continue
		}
		if err := s.writeWS(conn, reply); err != nil {
			log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg *jsonrpc.Message) error {
	data, err := jsonrpc.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
