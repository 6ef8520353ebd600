package processor

import (
	"context"
	"errors"
	"sync"
)

// ErrHandleClosed is returned when the handle is used after Close
var ErrHandleClosed = errors.New("ocr engine handle closed")

// EngineHandle owns one job's OCR engine. The engine is created on first
// use; a creation failure is cached so every later call reports it without
// retrying. Close is idempotent and safe when the engine was never created.
type EngineHandle struct {
	factory EngineFactory

	mu      sync.Mutex
	engine  Engine
	err     error
	created bool
	closed  bool
}

// NewEngineHandle creates a new handle around factory
func NewEngineHandle(factory EngineFactory) *EngineHandle {
	return &EngineHandle{factory: factory}
}

// Get returns the engine, creating it on first use
func (h *EngineHandle) Get(ctx context.Context) (Engine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHandleClosed
	}
	if h.created {
		return h.engine, h.err
	}
	h.created = true

	if h.factory == nil {
		h.err = errors.New("no ocr engine configured")
		return nil, h.err
	}
	h.engine, h.err = h.factory(ctx)
	return h.engine, h.err
}

// Created reports whether engine creation was attempted
func (h *EngineHandle) Created() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.created
}

// Close disposes the engine if one exists
func (h *EngineHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if h.engine == nil {
		return nil
	}
	err := h.engine.Close()
	h.engine = nil
	return err
}
