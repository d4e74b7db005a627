package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Parameter documents one tool argument.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Tool is the metadata for one registered operation.
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// Result is a successful tool invocation's payload.
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Handler executes one tool invocation.
type Handler func(ctx context.Context, params map[string]interface{}) (*Result, error)

// NotFoundError reports an unknown tool name, with near-miss suggestions
// so callers can implement "did you mean" UX.
type NotFoundError struct {
	Tool        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("tool not found: %s", e.Tool)
	}
	return fmt.Sprintf("tool not found: %s (did you mean %s?)", e.Tool, strings.Join(e.Suggestions, ", "))
}

// Registry maps tool names to handlers.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]Tool
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:     make(map[string]Tool),
		handlers: make(map[string]Handler),
	}
}

// Register adds a tool. The ID must be unique and non-empty.
func (r *Registry) Register(tool Tool, handler Handler) error {
	if tool.ID == "" {
		return fmt.Errorf("tool ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[tool.ID]; exists {
		return fmt.Errorf("tool already registered: %s", tool.ID)
	}
	r.defs[tool.ID] = tool
	r.handlers[tool.ID] = handler
	return nil
}

// List returns all registered tools sorted by ID.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Execute invokes a tool by name. An unknown name yields *NotFoundError
// rather than a generic failure.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) (*Result, error) {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &NotFoundError{Tool: name, Suggestions: r.nearMisses(name)}
	}
	return handler(ctx, params)
}

// nearMisses finds registered names that share a prefix segment or contain
// the requested name as a substring.
func (r *Registry) nearMisses(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(name)
	if i := strings.IndexByte(needle, '.'); i >= 0 {
		needle = needle[i+1:]
	}

	var hits []string
	for candidate := range r.defs {
		lower := strings.ToLower(candidate)
		if strings.Contains(lower, needle) || strings.Contains(needle, lower) {
			hits = append(hits, candidate)
		}
	}
	sort.Strings(hits)
	if len(hits) > 3 {
		hits = hits[:3]
	}
	return hits
}
