package engine

import (
	"context"
	"sync"
)

// StubConfig configures the stub engine
type StubConfig struct {
	// Dictionary maps a joined source token sequence to target tokens.
	// Unknown inputs are echoed back unchanged.
	Dictionary map[string][]string
	// Err, when set, is returned by every TranslateBatch call
	Err error
}

// Stub is a deterministic Engine that needs no model
type Stub struct {
	mu     sync.Mutex
	config *StubConfig
	calls  [][][]string
	opts   []BatchOptions
	closed bool
}

// NewStub creates a stub engine
func NewStub(config *StubConfig) *Stub {
	if config == nil {
		config = &StubConfig{}
	}
	return &Stub{config: config}
}

// TranslateBatch returns one single-hypothesis result per input
func (s *Stub) TranslateBatch(ctx context.Context, batches [][]string, opts BatchOptions) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls = append(s.calls, batches)
	s.opts = append(s.opts, opts)
	if s.config.Err != nil {
		return nil, s.config.Err
	}

	results := make([]Result, 0, len(batches))
	for _, tokens := range batches {
		out, ok := s.config.Dictionary[joinTokens(tokens)]
		if !ok {
			out = append([]string(nil), tokens...)
		}
		results = append(results, Result{Hypotheses: [][]string{out}})
	}
	return results, nil
}

// Calls returns the batches received so far
func (s *Stub) Calls() [][][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][][]string(nil), s.calls...)
}

// Options returns the batch options received so far
func (s *Stub) Options() []BatchOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BatchOptions(nil), s.opts...)
}

// Closed reports whether Close was called
func (s *Stub) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close marks the stub closed
func (s *Stub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func joinTokens(tokens []string) string {
	n := 0
	for _, t := range tokens {
		n += len(t) + 1
	}
	b := make([]byte, 0, n)
	for i, t := range tokens {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, t...)
	}
	return string(b)
}
