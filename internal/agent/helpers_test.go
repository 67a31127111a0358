package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/agrismart/assistant/internal/inventory"
	"github.com/agrismart/assistant/internal/llm"
	"github.com/agrismart/assistant/internal/memory"
	"github.com/agrismart/assistant/internal/prompts"
	"github.com/agrismart/assistant/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockLLM returns scripted responses and records every request.
type mockLLM struct {
	name      string
	responses []*llm.Response
	errs      []error
	// repeat is returned once responses run out.
	repeat *llm.Response
	// block, when set, holds every Send until closed or ctx ends.
	block chan struct{}
	// started is signalled as each Send begins.
	started chan struct{}

	mu    sync.Mutex
	calls []llm.Request
}

func (m *mockLLM) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockLLM) Send(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	idx := len(m.calls)
	cp := *req
	cp.Rounds = append([]llm.Round(nil), req.Rounds...)
	cp.History = append([]llm.Turn(nil), req.History...)
	m.calls = append(m.calls, cp)
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	if m.repeat != nil {
		return m.repeat, nil
	}
	return nil, errors.New("mockLLM: no scripted response")
}

func (m *mockLLM) requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.calls...)
}

func text(s string) *llm.Response {
	return &llm.Response{Text: s, Model: "mock-model"}
}

func toolCalls(calls ...llm.ToolCall) *llm.Response {
	return &llm.Response{ToolCalls: calls, Model: "mock-model"}
}

func call(name string, args map[string]any) llm.ToolCall {
	return llm.ToolCall{Name: name, Arguments: args}
}

func farmTools() *tools.Registry {
	return tools.NewFarmRegistry(inventory.Default(), tools.WithBookingIDs(func() string { return "RNT-4821" }))
}

func newTestLoop(client llm.Client, exec Executor, maxRounds int) *Loop {
	reg := farmTools()
	if exec == nil {
		exec = reg
	}
	return NewLoop(LoopConfig{
		Client:       client,
		Tools:        exec,
		Declarations: Declarations(reg.List()),
		System:       "system",
		MaxRounds:    maxRounds,
		Parallel:     4,
		Logger:       discardLogger(),
	})
}

func newTestAssistant(primary, secondary llm.Client, opts ...func(*AssistantConfig)) (*Assistant, *memory.Store) {
	var loop *Loop
	if primary != nil {
		loop = newTestLoop(primary, nil, 0)
	}
	chainCfg := ChainConfig{Primary: loop, Logger: discardLogger()}
	if secondary != nil {
		chainCfg.Secondary = secondary
	}
	store := memory.NewStore(prompts.Greeting)
	cfg := AssistantConfig{
		Chain:  NewChain(chainCfg),
		Store:  store,
		Logger: discardLogger(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return NewAssistant(cfg), store
}
