package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/eleven-am/dinevoice/internal/transport"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

type HandlerFunc func(ctx context.Context, call transport.ToolCall) (any, error)

type tool struct {
	def     transport.ToolDefinition
	handler HandlerFunc
}

// Registry dispatches tool calls by name and advertises the registered
// definitions to the realtime session.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool
	log   *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		tools: make(map[string]tool),
		log:   log.With("component", "tool_registry"),
	}
}

func (r *Registry) Register(def transport.ToolDefinition, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = tool{def: def, handler: handler}
}

func (r *Registry) Definitions() []transport.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]transport.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (r *Registry) Handle(ctx context.Context, call transport.ToolCall) (any, error) {
	r.mu.RLock()
	t, ok := r.tools[call.ToolName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.ToolName)
	}

	r.log.Debug("handling tool call", "tool", call.ToolName, "call_id", call.CallID, "user_id", call.UserID, "language", call.Language)
	return t.handler(ctx, call)
}

func decodeArgs(call transport.ToolCall, dst any) error {
	if len(call.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(call.Arguments, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
