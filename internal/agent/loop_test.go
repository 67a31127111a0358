package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agrismart/assistant/internal/llm"
	"github.com/agrismart/assistant/internal/tools"
)

func TestLoop_FinalTextWithoutTools(t *testing.T) {
	mock := &mockLLM{responses: []*llm.Response{text("Sow wheat in November.")}}
	loop := newTestLoop(mock, nil, 0)

	res, err := loop.Run(context.Background(), nil, llm.Input{Text: "When do I sow wheat?"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Text != "Sow wheat in November." {
		t.Errorf("Text = %q", res.Text)
	}
	if len(res.Trace) != 0 {
		t.Errorf("Trace = %+v, want empty", res.Trace)
	}
	if res.Sends != 1 {
		t.Errorf("Sends = %d, want 1", res.Sends)
	}

	reqs := mock.requests()
	if len(reqs[0].Tools) != 3 {
		t.Errorf("primary request offered %d tools, want 3", len(reqs[0].Tools))
	}
	if reqs[0].System != "system" {
		t.Errorf("System = %q", reqs[0].System)
	}
}

func TestLoop_BatchCompletesBeforeNextSend(t *testing.T) {
	mock := &mockLLM{responses: []*llm.Response{
		toolCalls(
			call(tools.ListItemsTool, nil),
			call(tools.GetItemDetailsTool, map[string]any{"name": "drone"}),
			call(tools.GetItemDetailsTool, map[string]any{"name": "Dron"}),
		),
		toolCalls(call(tools.GetItemDetailsTool, map[string]any{"name": "Power Tiller"})),
		text("The Drone rents for ₹800/acre."),
	}}
	loop := newTestLoop(mock, nil, 0)

	res, err := loop.Run(context.Background(), nil, llm.Input{Text: "Tell me about the drone"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Trace) != 4 {
		t.Fatalf("len(Trace) = %d, want 4", len(res.Trace))
	}

	reqs := mock.requests()
	if len(reqs) != 3 {
		t.Fatalf("sends = %d, want 3", len(reqs))
	}
	for i, req := range reqs {
		if len(req.Rounds) != i {
			t.Errorf("request %d carries %d rounds, want %d", i, len(req.Rounds), i)
		}
		for _, r := range req.Rounds {
			if len(r.Results) != len(r.Calls) {
				t.Fatalf("request %d: round with %d calls but %d results", i, len(r.Calls), len(r.Results))
			}
			for j := range r.Calls {
				if r.Calls[j].Name != r.Results[j].Name {
					t.Errorf("call %d name %q paired with result %q", j, r.Calls[j].Name, r.Results[j].Name)
				}
			}
		}
	}

	first := reqs[1].Rounds[0].Results
	if first[1].Failed() {
		t.Errorf("drone lookup failed: %s", first[1].Error)
	}
	if !first[2].Failed() || first[2].ErrorCode != tools.CodeNotFound {
		t.Errorf("Dron lookup = %+v, want not_found", first[2])
	}
	if first[0].Round != 1 || res.Trace[3].Round != 2 {
		t.Errorf("round numbers = %d, %d", first[0].Round, res.Trace[3].Round)
	}
}

func TestLoop_RoundLimit(t *testing.T) {
	mock := &mockLLM{repeat: toolCalls(call(tools.ListItemsTool, nil))}
	loop := newTestLoop(mock, nil, 3)

	res, err := loop.Run(context.Background(), nil, llm.Input{Text: "loop forever"})
	if !errors.Is(err, ErrRoundLimitExceeded) {
		t.Fatalf("err = %v, want ErrRoundLimitExceeded", err)
	}
	if res.Sends != 4 {
		t.Errorf("Sends = %d, want 4", res.Sends)
	}
	if len(res.Trace) != 3 {
		t.Errorf("len(Trace) = %d, want 3", len(res.Trace))
	}
}

func TestLoop_DefaultRoundLimit(t *testing.T) {
	mock := &mockLLM{repeat: toolCalls(call(tools.ListItemsTool, nil))}
	loop := newTestLoop(mock, nil, 0)

	res, err := loop.Run(context.Background(), nil, llm.Input{Text: "loop forever"})
	if !errors.Is(err, ErrRoundLimitExceeded) {
		t.Fatalf("err = %v, want ErrRoundLimitExceeded", err)
	}
	if len(res.Trace) != DefaultMaxToolRounds {
		t.Errorf("len(Trace) = %d, want %d", len(res.Trace), DefaultMaxToolRounds)
	}
}

func TestLoop_TransportErrorPassesThrough(t *testing.T) {
	quota := &llm.Error{Provider: "gemini", Status: 429, Message: "quota"}
	mock := &mockLLM{
		responses: []*llm.Response{toolCalls(call(tools.ListItemsTool, nil))},
		errs:      []error{nil, quota},
	}
	loop := newTestLoop(mock, nil, 0)

	res, err := loop.Run(context.Background(), nil, llm.Input{Text: "list"})
	var le *llm.Error
	if !errors.As(err, &le) || le.Status != 429 {
		t.Fatalf("err = %v, want wrapped *llm.Error 429", err)
	}
	if len(res.Trace) != 1 {
		t.Errorf("trace lost on error: %+v", res.Trace)
	}
}

// barrierExec blocks every call until n calls are in flight at once.
type barrierExec struct {
	n       int32
	started atomic.Int32
	release chan struct{}
	once    sync.Once
}

func (b *barrierExec) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	if b.started.Add(1) == b.n {
		b.once.Do(func() { close(b.release) })
	}
	select {
	case <-b.release:
	case <-time.After(2 * time.Second):
		return nil, errors.New("calls were not run concurrently")
	}
	return args["i"], nil
}

func TestLoop_ParallelDispatchKeepsOrder(t *testing.T) {
	mock := &mockLLM{responses: []*llm.Response{
		toolCalls(
			call("probe", map[string]any{"i": 0}),
			call("probe", map[string]any{"i": 1}),
			call("probe", map[string]any{"i": 2}),
			call("probe", map[string]any{"i": 3}),
		),
		text("ok"),
	}}
	exec := &barrierExec{n: 4, release: make(chan struct{})}
	loop := newTestLoop(mock, exec, 0)

	res, err := loop.Run(context.Background(), nil, llm.Input{Text: "go"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for i, r := range res.Trace {
		if r.Failed() {
			t.Fatalf("trace[%d] failed: %s", i, r.Error)
		}
		if r.Output != i {
			t.Errorf("trace[%d].Output = %v, want %d", i, r.Output, i)
		}
	}
}

type panicExec struct{}

func (panicExec) Execute(context.Context, string, map[string]any) (any, error) {
	panic("boom")
}

func TestLoop_ToolPanicBecomesResult(t *testing.T) {
	mock := &mockLLM{responses: []*llm.Response{toolCalls(call("explode", nil)), text("sorry")}}
	loop := newTestLoop(mock, panicExec{}, 0)

	res, err := loop.Run(context.Background(), nil, llm.Input{Text: "go"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !res.Trace[0].Failed() {
		t.Error("panicking tool should produce an error result")
	}
}

func TestLoop_UnknownToolRelayed(t *testing.T) {
	mock := &mockLLM{responses: []*llm.Response{toolCalls(call("weather_forecast", nil)), text("no forecast tool")}}
	loop := newTestLoop(mock, nil, 0)

	res, err := loop.Run(context.Background(), nil, llm.Input{Text: "forecast?"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Trace[0].ErrorCode != tools.CodeUnknownTool {
		t.Errorf("ErrorCode = %q, want %q", res.Trace[0].ErrorCode, tools.CodeUnknownTool)
	}
	relayed := mock.requests()[1].Rounds[0].Results[0].Payload()
	if _, ok := relayed["error"]; !ok {
		t.Errorf("payload = %v, want error key", relayed)
	}
}

func TestLoop_CancelledContext(t *testing.T) {
	mock := &mockLLM{block: make(chan struct{}), started: make(chan struct{}, 1)}
	loop := newTestLoop(mock, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := loop.Run(ctx, nil, llm.Input{Text: "slow"})
		done <- err
	}()

	<-mock.started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestLoop_DroneBooking(t *testing.T) {
	mock := &mockLLM{responses: []*llm.Response{
		toolCalls(call(tools.ListItemsTool, map[string]any{})),
		toolCalls(call(tools.BookItemTool, map[string]any{"itemId": 2.0, "duration": 3.0})),
		text("Booked the Drone for 3 hours. Booking ID RNT-4821."),
	}}
	loop := newTestLoop(mock, nil, 0)

	res, err := loop.Run(context.Background(), nil, llm.Input{Text: "Book the drone for 3 hours"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Trace) != 2 {
		t.Fatalf("len(Trace) = %d, want 2", len(res.Trace))
	}
	b, ok := res.Trace[1].Output.(tools.Booking)
	if !ok {
		t.Fatalf("book_item output = %T, want tools.Booking", res.Trace[1].Output)
	}
	if b.BookingID != "RNT-4821" || b.ItemName != "Drone" || b.Duration != 3 {
		t.Errorf("booking = %+v", b)
	}
	if got := res.Trace[1].Arguments["duration"]; got != 3.0 {
		t.Errorf("duration argument = %v, want 3", got)
	}
	if !strings.Contains(res.Text, b.BookingID) {
		t.Errorf("Text = %q, want booking id %s", res.Text, b.BookingID)
	}
}
