package tools

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/agentterm/termd/internal/jsonrpc"
	"github.com/agentterm/termd/internal/logging"
	"github.com/agentterm/termd/internal/session"
)

// RPC method names served by the dispatcher.
const (
	MethodToolsCall = "tools/call"
	MethodToolsList = "tools/list"
	MethodPing      = "ping"
)

// CallParams is the params shape for tools/call.
type CallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// Dispatcher binds a tool registry to the JSON-RPC protocol.
type Dispatcher struct {
	registry *Registry
	log      *logging.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.NewNop()
	}
	return &Dispatcher{registry: registry, log: log.Component("rpc")}
}

// Serve runs the request loop on a transport until it signals shutdown or
// EOF. A malformed line is answered with a parse error and the loop
// continues; a single bad line never closes the connection.
func (d *Dispatcher) Serve(ctx context.Context, transport jsonrpc.Transport) error {
	for {
		msg, err := transport.Receive()
		if err != nil {
			var rpcErr *jsonrpc.Error
			if errors.As(err, &rpcErr) {
				if sendErr := transport.Send(jsonrpc.NewError(nil, rpcErr)); sendErr != nil {
					return sendErr
				}
				continue
			}
			return err
		}
		if msg == nil {
			return nil
		}

		reply := d.Handle(ctx, msg)
		if reply == nil {
			continue
		}
		if err := transport.Send(reply); err != nil {
			return err
		}
	}
}

// Handle processes one message and returns the response, or nil for
// notifications and responses (which expect no reply).
func (d *Dispatcher) Handle(ctx context.Context, msg *jsonrpc.Message) *jsonrpc.Message {
	if msg.IsNotification() {
		// Fire-and-forget: execute for side effects, drop the outcome.
		d.dispatch(ctx, msg)
		return nil
	}
	if !msg.IsRequest() {
		return nil
	}

	result, rpcErr := d.dispatch(ctx, msg)
	if rpcErr != nil {
		return jsonrpc.NewError(msg.ID, rpcErr)
	}

	reply, err := jsonrpc.NewResult(*msg.ID, result)
	if err != nil {
		d.log.Error("failed to marshal result", zap.Error(err))
		return jsonrpc.NewError(msg.ID, jsonrpc.ErrInternal(err.Error()))
	}
	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, msg *jsonrpc.Message) (interface{}, *jsonrpc.Error) {
	switch msg.Method {
	case MethodPing:
		return map[string]string{"status": "ok"}, nil

	case MethodToolsList:
		return map[string]interface{}{"tools": d.registry.List()}, nil

	case MethodToolsCall:
		var params CallParams
		if err := msg.UnmarshalParams(&params); err != nil {
			return nil, jsonrpc.ErrInvalidParams(err.Error())
		}
		if params.Name == "" {
			return nil, jsonrpc.ErrInvalidParams("missing tool name")
		}

		result, err := d.registry.Execute(ctx, params.Name, params.Arguments)
		if err != nil {
			return nil, d.mapToolError(params.Name, err)
		}
		return result, nil

	default:
		return nil, jsonrpc.ErrMethodNotFound(msg.Method)
	}
}

// mapToolError translates engine errors into coded JSON-RPC errors so
// remote callers can distinguish unknown tools, unknown sessions, and
// state guard rejections from plain I/O failures.
func (d *Dispatcher) mapToolError(tool string, err error) *jsonrpc.Error {
	var notFound *NotFoundError
	switch {
	case errors.As(err, &notFound):
		return jsonrpc.ErrMethodNotFound(notFound.Error())
	case errors.Is(err, session.ErrNotFound):
		return &jsonrpc.Error{
			Code:    jsonrpc.CodeInvalidParams,
			Message: "Invalid params: session not found",
			Data:    map[string]string{"tool": tool},
		}
	case session.IsStateError(err):
		return &jsonrpc.Error{
			Code:    jsonrpc.CodeInvalidRequest,
			Message: "Invalid Request: " + err.Error(),
			Data:    map[string]string{"tool": tool},
		}
	default:
		d.log.Warn("tool execution failed",
			zap.String("tool", tool),
			zap.Error(err))
		return jsonrpc.ErrInternal(err.Error())
	}
}
