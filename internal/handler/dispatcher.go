// Package handler implements the transaction validation and state-mutation
// rules of the aclchain ledger: entity creation, the relationship proposal
// state machine, and the message dispatcher that routes committed payloads to
// the correct rule set.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"aclchain/internal/state"
	"aclchain/pkg/domain"
)

// HandlerFunc validates one decoded message against the transaction's state
// view and buffers the resulting writes. Handlers are pure functions of their
// arguments: no shared mutable state survives between invocations.
type HandlerFunc func(ctx context.Context, signer string, content []byte, sc *state.Context) error

// Registry maps message types to handlers. It is populated once by
// NewRegistry and never mutated afterwards.
type Registry struct {
	logger   *slog.Logger
	handlers map[domain.MessageType]HandlerFunc
}

// NewRegistry builds the complete dispatch table for the aclchain message
// taxonomy.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:   logger,
		handlers: make(map[domain.MessageType]HandlerFunc),
	}

	r.handlers[domain.MessageCreateUser] = createUser
	r.handlers[domain.MessageCreateRole] = createRole
	r.handlers[domain.MessageCreateTask] = createTask

	for _, binding := range kindBindings {
		kind := binding.kind
		r.handlers[binding.propose] = proposeHandler(kind, binding.removal)
		r.handlers[binding.confirm] = confirmHandler(kind, binding.removal)
		r.handlers[binding.reject] = rejectHandler(kind, binding.removal)
	}
	return r
}

// Handler returns the handler registered for typ.
func (r *Registry) Handler(typ domain.MessageType) (HandlerFunc, bool) {
	h, ok := r.handlers[typ]
	return h, ok
}

// Apply decodes the payload, routes it to its handler, and flushes the
// buffered writes in a single SetState once validation has passed. A
// validation failure anywhere discards the whole transaction with no partial
// writes.
func (r *Registry) Apply(ctx context.Context, signer string, payload []byte, reader state.Reader, writer state.Writer) error {
	var decoded domain.Payload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return domain.Invalidf("malformed payload: %v", err)
	}
	handler, ok := r.handlers[decoded.Type]
	if !ok {
		// A correctly generated payload can never carry an unknown
		// type; this is a version mismatch, not a bad request.
		return domain.Internalf(nil, "unknown message type %q", decoded.Type)
	}

	sc := state.NewContext(reader, r.logger)
	if err := handler(ctx, signer, decoded.Content, sc); err != nil {
		return err
	}
	if err := sc.Flush(ctx, writer); err != nil {
		return fmt.Errorf("flush state: %w", err)
	}
	return nil
}
