package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/agentterm/termd/internal/monitoring"
	"github.com/agentterm/termd/internal/session"
)

// TerminalProvider exposes session lifecycle and I/O as named tools.
type TerminalProvider struct {
	manager *session.Manager
	metrics *monitoring.Metrics
}

// NewTerminalProvider creates the provider. metrics may be nil.
func NewTerminalProvider(manager *session.Manager, metrics *monitoring.Metrics) *TerminalProvider {
	return &TerminalProvider{manager: manager, metrics: metrics}
}

// Register adds every terminal tool to the registry.
func (p *TerminalProvider) Register(registry *Registry) error {
	sessionParam := Parameter{
		Name: "session_id", Type: "string",
		Description: "Terminal session ID", Required: true,
	}

	entries := []struct {
		tool    Tool
		handler Handler
	}{
		{
			Tool{
				ID:          "terminal.create_session",
				Name:        "Create Session",
				Description: "Create a new terminal session (PTY, with optional headless fallback)",
				Parameters: []Parameter{
					{Name: "shell", Type: "string", Description: "Shell to run; defaults to $SHELL, then /bin/sh"},
					{Name: "working_dir", Type: "string", Description: "Initial working directory"},
					{Name: "env", Type: "object", Description: "Environment variables to set"},
					{Name: "rows", Type: "number", Description: "Terminal height; defaults to 24"},
					{Name: "cols", Type: "number", Description: "Terminal width; defaults to 80"},
					{Name: "force_headless", Type: "boolean", Description: "Skip PTY allocation and run over pipes"},
					{Name: "allow_headless_fallback", Type: "boolean", Description: "Fall back to pipes when PTY allocation is denied"},
				},
			},
			p.createSession,
		},
		{
			Tool{
				ID:          "terminal.start",
				Name:        "Start Session",
				Description: "Attach a backend and start the session's process",
				Parameters:  []Parameter{sessionParam},
			},
			p.start,
		},
		{
			Tool{
				ID:          "terminal.stop",
				Name:        "Stop Session",
				Description: "Terminate the session's process; idempotent",
				Parameters:  []Parameter{sessionParam},
			},
			p.stop,
		},
		{
			Tool{
				ID:          "terminal.pause",
				Name:        "Pause Session",
				Description: "Pause a running session",
				Parameters:  []Parameter{sessionParam},
			},
			p.pause,
		},
		{
			Tool{
				ID:          "terminal.resume",
				Name:        "Resume Session",
				Description: "Resume a paused session",
				Parameters:  []Parameter{sessionParam},
			},
			p.resume,
		},
		{
			Tool{
				ID:          "terminal.send_input",
				Name:        "Send Input",
				Description: "Write input bytes to the session's terminal",
				Parameters: []Parameter{
					sessionParam,
					{Name: "input", Type: "string", Description: "Input to send", Required: true},
				},
			},
			p.sendInput,
		},
		{
			Tool{
				ID:          "terminal.read_output",
				Name:        "Read Output",
				Description: "Read pending output; optionally wait up to timeout_ms for data",
				Parameters: []Parameter{
					sessionParam,
					{Name: "timeout_ms", Type: "number", Description: "Milliseconds to wait for output"},
				},
			},
			p.readOutput,
		},
		{
			Tool{
				ID:          "terminal.resize",
				Name:        "Resize Terminal",
				Description: "Change terminal dimensions",
				Parameters: []Parameter{
					sessionParam,
					{Name: "rows", Type: "number", Description: "New height", Required: true},
					{Name: "cols", Type: "number", Description: "New width", Required: true},
				},
			},
			p.resize,
		},
		{
			Tool{
				ID:          "terminal.list_sessions",
				Name:        "List Sessions",
				Description: "List all tracked sessions",
				Parameters:  []Parameter{},
			},
			p.listSessions,
		},
		{
			Tool{
				ID:          "terminal.get_session_info",
				Name:        "Get Session Info",
				Description: "Get one session's status and configuration",
				Parameters:  []Parameter{sessionParam},
			},
			p.getSessionInfo,
		},
		{
			Tool{
				ID:          "terminal.remove_session",
				Name:        "Remove Session",
				Description: "Stop a session and forget it",
				Parameters:  []Parameter{sessionParam},
			},
			p.removeSession,
		},
		{
			Tool{
				ID:          "terminal.set_metadata",
				Name:        "Set Metadata",
				Description: "Attach an opaque key/value pair to a session",
				Parameters: []Parameter{
					sessionParam,
					{Name: "key", Type: "string", Description: "Metadata key", Required: true},
					{Name: "value", Type: "string", Description: "Metadata value", Required: true},
				},
			},
			p.setMetadata,
		},
		{
			Tool{
				ID:          "terminal.get_metadata",
				Name:        "Get Metadata",
				Description: "Read a session metadata value",
				Parameters: []Parameter{
					sessionParam,
					{Name: "key", Type: "string", Description: "Metadata key", Required: true},
				},
			},
			p.getMetadata,
		},
	}

	for _, e := range entries {
		if err := registry.Register(e.tool, p.instrument(e.tool.ID, e.handler)); err != nil {
			return err
		}
	}
	return nil
}

func (p *TerminalProvider) instrument(toolID string, h Handler) Handler {
	if p.metrics == nil {
		return h
	}
	return func(ctx context.Context, params map[string]interface{}) (*Result, error) {
		result, err := h(ctx, params)
		p.metrics.ObserveToolCall(toolID, err)
		return result, err
	}
}

func (p *TerminalProvider) createSession(_ context.Context, params map[string]interface{}) (*Result, error) {
	cfg := session.Config{
		AllowHeadlessFallback: true,
	}

	cfg.Shell, _ = params["shell"].(string)
	cfg.WorkingDir, _ = params["working_dir"].(string)
	if rows, ok := params["rows"].(float64); ok {
		cfg.Rows = uint16(rows)
	}
	if cols, ok := params["cols"].(float64); ok {
		cfg.Cols = uint16(cols)
	}
	if force, ok := params["force_headless"].(bool); ok {
		cfg.ForceHeadless = force
	}
	if allow, ok := params["allow_headless_fallback"].(bool); ok {
		cfg.AllowHeadlessFallback = allow
	}
	if envMap, ok := params["env"].(map[string]interface{}); ok {
		cfg.Env = make(map[string]string, len(envMap))
		for k, v := range envMap {
			if s, ok := v.(string); ok {
				cfg.Env[k] = s
			}
		}
	}

	s := p.manager.Create(cfg)
	return &Result{Success: true, Data: infoData(s)}, nil
}

func (p *TerminalProvider) start(_ context.Context, params map[string]interface{}) (*Result, error) {
	s, err := p.lookup(params)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: infoData(s)}, nil
}

func (p *TerminalProvider) stop(_ context.Context, params map[string]interface{}) (*Result, error) {
	s, err := p.lookup(params)
	if err != nil {
		return nil, err
	}
	if err := s.Stop(); err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: map[string]interface{}{"status": string(s.Status())}}, nil
}

func (p *TerminalProvider) pause(_ context.Context, params map[string]interface{}) (*Result, error) {
	s, err := p.lookup(params)
	if err != nil {
		return nil, err
	}
	if err := s.Pause(); err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: map[string]interface{}{"status": string(s.Status())}}, nil
}

func (p *TerminalProvider) resume(_ context.Context, params map[string]interface{}) (*Result, error) {
	s, err := p.lookup(params)
	if err != nil {
		return nil, err
	}
	if err := s.Resume(); err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: map[string]interface{}{"status": string(s.Status())}}, nil
}

func (p *TerminalProvider) sendInput(_ context.Context, params map[string]interface{}) (*Result, error) {
	s, err := p.lookup(params)
	if err != nil {
		return nil, err
	}
	input, ok := params["input"].(string)
	if !ok {
		return nil, fmt.Errorf("input is required")
	}
	if err := s.SendInput([]byte(input)); err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: map[string]interface{}{"bytes": len(input)}}, nil
}

func (p *TerminalProvider) readOutput(_ context.Context, params map[string]interface{}) (*Result, error) {
	s, err := p.lookup(params)
	if err != nil {
		return nil, err
	}

	var output []byte
	if ms, ok := params["timeout_ms"].(float64); ok && ms > 0 {
		output, err = s.ReadOutputTimeout(time.Duration(ms) * time.Millisecond)
	} else {
		output, err = s.ReadOutput()
	}
	if err != nil {
		return nil, err
	}

	// base64 alongside the raw string so binary-heavy output survives
	// JSON transport.
	return &Result{Success: true, Data: map[string]interface{}{
		"output":        string(output),
		"output_base64": base64.StdEncoding.EncodeToString(output),
		"length":        len(output),
	}}, nil
}

func (p *TerminalProvider) resize(_ context.Context, params map[string]interface{}) (*Result, error) {
	s, err := p.lookup(params)
	if err != nil {
		return nil, err
	}
	rows, ok := params["rows"].(float64)
	if !ok {
		return nil, fmt.Errorf("rows is required")
	}
	cols, ok := params["cols"].(float64)
	if !ok {
		return nil, fmt.Errorf("cols is required")
	}
	if err := s.Resize(uint16(rows), uint16(cols)); err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: map[string]interface{}{"rows": int(rows), "cols": int(cols)}}, nil
}

func (p *TerminalProvider) listSessions(_ context.Context, _ map[string]interface{}) (*Result, error) {
	sessions := p.manager.List()
	infos := make([]session.Info, len(sessions))
	for i, s := range sessions {
		infos[i] = s.Info()
	}
	return &Result{Success: true, Data: map[string]interface{}{
		"sessions": infos,
		"count":    len(infos),
	}}, nil
}

func (p *TerminalProvider) getSessionInfo(_ context.Context, params map[string]interface{}) (*Result, error) {
	s, err := p.lookup(params)
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: infoData(s)}, nil
}

func (p *TerminalProvider) removeSession(_ context.Context, params map[string]interface{}) (*Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}
	if err := p.manager.Remove(sessionID); err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: map[string]interface{}{"removed": sessionID}}, nil
}

func (p *TerminalProvider) setMetadata(_ context.Context, params map[string]interface{}) (*Result, error) {
	s, err := p.lookup(params)
	if err != nil {
		return nil, err
	}
	key, ok := params["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key is required")
	}
	value, ok := params["value"].(string)
	if !ok {
		return nil, fmt.Errorf("value is required")
	}
	s.SetMetadata(key, value)
	return &Result{Success: true, Data: map[string]interface{}{"key": key}}, nil
}

func (p *TerminalProvider) getMetadata(_ context.Context, params map[string]interface{}) (*Result, error) {
	s, err := p.lookup(params)
	if err != nil {
		return nil, err
	}
	key, ok := params["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key is required")
	}
	value, found := s.GetMetadata(key)
	return &Result{Success: true, Data: map[string]interface{}{
		"key":   key,
		"value": value,
		"found": found,
	}}, nil
}

func (p *TerminalProvider) lookup(params map[string]interface{}) (*session.Session, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}
	return p.manager.Get(sessionID)
}

func infoData(s *session.Session) map[string]interface{} {
	info := s.Info()
	return map[string]interface{}{
		"id":            info.ID,
		"shell":         info.Shell,
		"working_dir":   info.WorkingDir,
		"rows":          info.Rows,
		"cols":          info.Cols,
		"status":        string(info.Status),
		"backend":       info.Backend,
		"created_at":    info.CreatedAt,
		"last_activity": info.LastActivity,
	}
}
