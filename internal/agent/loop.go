// Package agent drives a user turn through the model backends: the
// tool-calling loop, the degradation chain that falls back to a
// secondary model and then to canned offline advice, and the
// Assistant facade that records completed exchanges.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agrismart/assistant/internal/llm"
	"github.com/agrismart/assistant/internal/tools"
)

// DefaultMaxToolRounds bounds tool-call rounds per turn.
const DefaultMaxToolRounds = 8

// ErrRoundLimitExceeded is returned when the model still asks for
// tools after the round budget is spent.
var ErrRoundLimitExceeded = errors.New("tool round limit exceeded")

// Executor runs a named tool. *tools.Registry satisfies it.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// LoopConfig configures a Loop.
type LoopConfig struct {
	Client llm.Client
	Tools  Executor
	// Declarations is the tool catalog offered to the model.
	Declarations []llm.ToolDeclaration
	System       string
	// MaxRounds bounds dispatched tool batches. Zero means
	// DefaultMaxToolRounds.
	MaxRounds int
	// Parallel bounds concurrent tool executions within a round.
	// Zero or one runs calls sequentially.
	Parallel int
	Logger   *slog.Logger
}

// Loop runs the send → dispatch → send cycle against one backend.
type Loop struct {
	client    llm.Client
	tools     Executor
	decls     []llm.ToolDeclaration
	system    string
	maxRounds int
	parallel  int
	logger    *slog.Logger
}

// NewLoop creates a loop.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxToolRounds
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		client:    cfg.Client,
		tools:     cfg.Tools,
		decls:     cfg.Declarations,
		system:    cfg.System,
		maxRounds: cfg.MaxRounds,
		parallel:  cfg.Parallel,
		logger:    cfg.Logger.With("component", "loop", "backend", cfg.Client.Name()),
	}
}

// LoopResult is what a loop run produced. Trace is valid even when Run
// returns an error.
type LoopResult struct {
	Text  string
	Model string
	// Sends counts requests issued to the backend.
	Sends int
	// Trace holds every executed tool call, in round then call order.
	Trace []llm.ToolResult
}

// Run answers input given history. Tool rounds are kept in the request
// scratch space only; nothing here touches the conversation store.
func (l *Loop) Run(ctx context.Context, history []llm.Turn, input llm.Input) (*LoopResult, error) {
	req := &llm.Request{
		System:  l.system,
		History: history,
		Input:   input,
		Tools:   l.decls,
	}
	res := &LoopResult{}

	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		resp, err := l.client.Send(ctx, req)
		res.Sends++
		if err != nil {
			return res, fmt.Errorf("%s send %d: %w", l.client.Name(), res.Sends, err)
		}
		res.Model = resp.Model

		if !resp.HasToolCalls() {
			res.Text = resp.Text
			l.logger.Debug("final text", "sends", res.Sends, "tool_calls", len(res.Trace))
			return res, nil
		}

		if round >= l.maxRounds {
			l.logger.Warn("tool round limit reached",
				"rounds", round,
				"pending_calls", len(resp.ToolCalls),
			)
			return res, fmt.Errorf("%w (%d rounds)", ErrRoundLimitExceeded, round)
		}

		results := l.dispatch(ctx, round+1, resp.ToolCalls)
		res.Trace = append(res.Trace, results...)
		if err := ctx.Err(); err != nil {
			return res, err
		}

		req.Rounds = append(req.Rounds, llm.Round{Calls: resp.ToolCalls, Results: results})
	}
}

// dispatch executes every call in the batch and returns results in
// call order. It returns only after every call has finished.
func (l *Loop) dispatch(ctx context.Context, round int, calls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallel)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = l.execute(gctx, round, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (l *Loop) execute(ctx context.Context, round int, call llm.ToolCall) (result llm.ToolResult) {
	result = llm.ToolResult{
		CallID:    call.ID,
		Name:      call.Name,
		Arguments: call.Arguments,
		Round:     round,
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result.Output = nil
			result.Error = fmt.Sprintf("tool %s failed: %v", call.Name, r)
			l.logger.Error("tool panicked", "tool", call.Name, "panic", r)
		}
		result.Duration = time.Since(start)
	}()

	out, err := l.tools.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		result.Error, result.ErrorCode = toolErrorPayload(err)
		l.logger.Debug("tool returned error",
			"tool", call.Name,
			"round", round,
			"code", result.ErrorCode,
			"error", result.Error,
		)
		return result
	}

	result.Output = out
	l.logger.Debug("tool executed", "tool", call.Name, "round", round)
	return result
}

// toolErrorPayload turns a dispatch error into the message and code
// relayed to the model.
func toolErrorPayload(err error) (string, string) {
	var te *tools.Error
	if errors.As(err, &te) {
		return te.Message, te.Code
	}
	var unavailable *tools.ErrToolUnavailable
	if errors.As(err, &unavailable) {
		return unavailable.Error(), tools.CodeUnknownTool
	}
	return err.Error(), ""
}

// Declarations converts registry tools to the model catalog shape.
func Declarations(list []*tools.Tool) []llm.ToolDeclaration {
	out := make([]llm.ToolDeclaration, 0, len(list))
	for _, t := range list {
		out = append(out, llm.ToolDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return out
}
