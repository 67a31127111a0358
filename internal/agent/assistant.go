package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agrismart/assistant/internal/audit"
	"github.com/agrismart/assistant/internal/llm"
	"github.com/agrismart/assistant/internal/memory"
	"github.com/agrismart/assistant/internal/prompts"
	"github.com/agrismart/assistant/internal/tools"
)

var (
	// ErrEmptyTurn is returned for a turn with neither text nor image.
	ErrEmptyTurn = errors.New("turn has no text or image")
	// ErrTurnInFlight is returned when a conversation already has a
	// turn being processed.
	ErrTurnInFlight = errors.New("a turn is already in progress for this conversation")
	// ErrExhausted is returned when every enabled tier failed. Nothing
	// is recorded in the conversation.
	ErrExhausted = errors.New("no backend could answer")
)

// Auditor records completed turns. *audit.Store satisfies it.
type Auditor interface {
	RecordTurn(ctx context.Context, rec audit.TurnRecord) error
}

// BookingSink is told about every confirmed booking once its turn has
// completed.
type BookingSink interface {
	BookingConfirmed(ctx context.Context, conversationID string, b tools.Booking) error
}

// TurnInput is one user submission.
type TurnInput struct {
	Text  string
	Image *llm.Image
}

// Reply is the answer to a submitted turn.
type Reply struct {
	RequestID      string           `json:"request_id"`
	ConversationID string           `json:"conversation_id"`
	Text           string           `json:"reply"`
	Outcome        Outcome          `json:"outcome"`
	Trace          []llm.ToolResult `json:"tool_trace"`
	Bookings       []tools.Booking  `json:"bookings,omitempty"`
	Elapsed        time.Duration    `json:"elapsed_ns"`
}

// Tier returns the tier that answered.
func (r *Reply) Tier() Tier { return r.Outcome.Tier }

// AssistantConfig configures an Assistant. Store and Chain are
// required.
type AssistantConfig struct {
	Chain    *Chain
	Store    *memory.Store
	Audit    Auditor
	Bookings BookingSink
	Logger   *slog.Logger
	// SideEffectTimeout bounds audit writes and booking notifications
	// after a turn. Zero means 5s.
	SideEffectTimeout time.Duration
}

// Assistant is the inbound entry point: it serializes turns per
// conversation, runs the degradation chain, and records the exchange
// only once an answer exists.
type Assistant struct {
	chain    *Chain
	store    *memory.Store
	audit    Auditor
	bookings BookingSink
	logger   *slog.Logger
	sideTTL  time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewAssistant creates the facade.
func NewAssistant(cfg AssistantConfig) *Assistant {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = 5 * time.Second
	}
	return &Assistant{
		chain:    cfg.Chain,
		store:    cfg.Store,
		audit:    cfg.Audit,
		bookings: cfg.Bookings,
		logger:   cfg.Logger.With("component", "assistant"),
		sideTTL:  cfg.SideEffectTimeout,
		inFlight: make(map[string]struct{}),
	}
}

func (a *Assistant) acquire(conversationID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inFlight[conversationID]; busy {
		return false
	}
	a.inFlight[conversationID] = struct{}{}
	return true
}

func (a *Assistant) release(conversationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, conversationID)
}

// History returns the visible turns of a conversation.
func (a *Assistant) History(conversationID string) []memory.Turn {
	return a.store.History(conversationID)
}

// SubmitTurn answers one user turn. On success the user turn and the
// reply are appended to the conversation together. If ctx ends first,
// the ctx error is returned and nothing is recorded.
func (a *Assistant) SubmitTurn(ctx context.Context, conversationID string, in TurnInput) (*Reply, error) {
	hasImage := in.Image != nil && len(in.Image.Data) > 0
	text := strings.TrimSpace(in.Text)
	if text == "" && !hasImage {
		return nil, ErrEmptyTurn
	}
	if text == "" {
		text = prompts.ImageOnlyQuestion
	}
	if conversationID == "" {
		conversationID = "default"
	}

	if !a.acquire(conversationID) {
		return nil, ErrTurnInFlight
	}
	defer a.release(conversationID)

	requestID := newRequestID()
	log := a.logger.With("request_id", requestID, "conversation", conversationID)
	start := time.Now()

	input := llm.Input{Text: text}
	if hasImage {
		input.Image = in.Image
	}

	outcome, trace, err := a.chain.Run(ctx, historyTurns(a.store.History(conversationID)), input)
	if err != nil {
		log.Info("turn abandoned", "error", err, "tool_calls", len(trace))
		return nil, err
	}

	reply := &Reply{
		RequestID:      requestID,
		ConversationID: conversationID,
		Text:           outcome.Text,
		Outcome:        outcome,
		Trace:          trace,
		Bookings:       confirmedBookings(trace),
		Elapsed:        time.Since(start),
	}
	a.recordAudit(ctx, reply, log)

	if !outcome.Answered() {
		log.Error("all tiers failed", "reason", outcome.Reason)
		return nil, fmt.Errorf("%w: %s", ErrExhausted, outcome.Reason)
	}

	if err := a.store.AppendExchange(conversationID,
		memory.Turn{Role: memory.RoleUser, Text: text, HadImage: hasImage},
		memory.Turn{Role: memory.RoleAssistant, Text: outcome.Text},
	); err != nil {
		return nil, fmt.Errorf("record exchange: %w", err)
	}

	a.notifyBookings(ctx, conversationID, reply.Bookings, log)

	log.Info("turn complete",
		"tier", outcome.Tier,
		"reason", outcome.Reason,
		"tool_calls", len(trace),
		"elapsed", reply.Elapsed.Round(time.Millisecond),
	)
	return reply, nil
}

func (a *Assistant) recordAudit(ctx context.Context, reply *Reply, log *slog.Logger) {
	if a.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.sideTTL)
	defer cancel()

	err := a.audit.RecordTurn(ctx, audit.TurnRecord{
		RequestID:      reply.RequestID,
		ConversationID: reply.ConversationID,
		Outcome:        string(reply.Outcome.Kind),
		Tier:           string(reply.Outcome.Tier),
		Reason:         string(reply.Outcome.Reason),
		Elapsed:        reply.Elapsed,
		Trace:          reply.Trace,
	})
	if err != nil {
		log.Warn("audit write failed", "error", err)
	}
}

func (a *Assistant) notifyBookings(ctx context.Context, conversationID string, bookings []tools.Booking, log *slog.Logger) {
	if a.bookings == nil || len(bookings) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.sideTTL)
	defer cancel()

	for _, b := range bookings {
		if err := a.bookings.BookingConfirmed(ctx, conversationID, b); err != nil {
			log.Warn("booking notification failed", "booking_id", b.BookingID, "error", err)
		}
	}
}

// historyTurns converts stored turns to the backend shape.
func historyTurns(stored []memory.Turn) []llm.Turn {
	out := make([]llm.Turn, 0, len(stored))
	for _, t := range stored {
		role := llm.RoleUser
		if t.Role == memory.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Turn{Role: role, Text: t.Text})
	}
	return out
}

// confirmedBookings extracts successful book_item results.
func confirmedBookings(trace []llm.ToolResult) []tools.Booking {
	var out []tools.Booking
	for _, r := range trace {
		if r.Name != tools.BookItemTool || r.Failed() {
			continue
		}
		if b, ok := r.Output.(tools.Booking); ok && b.Success {
			out = append(out, b)
		}
	}
	return out
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
