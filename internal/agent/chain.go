package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agrismart/assistant/internal/llm"
	"github.com/agrismart/assistant/internal/offline"
)

// Tier names the backend that produced a reply.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	TierOffline   Tier = "offline"
)

// Reason is the classified failure that caused a degraded reply.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonQuotaExceeded      Reason = "QuotaExceeded"
	ReasonModelUnavailable   Reason = "ModelUnavailable"
	ReasonTransient          Reason = "Transient"
	ReasonUnknown            Reason = "Unknown"
	ReasonRoundLimitExceeded Reason = "RoundLimitExceeded"
)

func reasonFor(f llm.Failure) Reason {
	switch f {
	case llm.FailureQuotaExceeded:
		return ReasonQuotaExceeded
	case llm.FailureModelUnavailable:
		return ReasonModelUnavailable
	case llm.FailureTransient:
		return ReasonTransient
	default:
		return ReasonUnknown
	}
}

// OutcomeKind discriminates Outcome.
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeDegraded  OutcomeKind = "degraded"
	OutcomeExhausted OutcomeKind = "exhausted"
)

// Outcome is the result of a chain run. Degraded and exhausted
// outcomes always carry a reason; success never does. Build outcomes
// with Success, Degraded and Exhausted.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Text   string      `json:"text,omitempty"`
	Tier   Tier        `json:"tier,omitempty"`
	Reason Reason      `json:"reason,omitempty"`
}

// Success is a primary-tier answer.
func Success(text string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Text: text, Tier: TierPrimary}
}

// Degraded is an answer from a fallback tier.
func Degraded(text string, tier Tier, reason Reason) Outcome {
	if reason == ReasonNone {
		reason = ReasonUnknown
	}
	return Outcome{Kind: OutcomeDegraded, Text: text, Tier: tier, Reason: reason}
}

// Exhausted means no tier produced text.
func Exhausted(reason Reason) Outcome {
	if reason == ReasonNone {
		reason = ReasonUnknown
	}
	return Outcome{Kind: OutcomeExhausted, Reason: reason}
}

// Answered reports whether the outcome carries reply text.
func (o Outcome) Answered() bool { return o.Kind != OutcomeExhausted }

// ChainConfig configures a Chain.
type ChainConfig struct {
	// Primary runs the tool-calling loop. Nil skips straight to the
	// fallback tiers with reason Unknown.
	Primary *Loop
	// Secondary answers single-shot when the primary model is
	// unavailable. Optional.
	Secondary llm.Client
	// DisableOffline turns off the canned-reply tier.
	DisableOffline bool
	Logger         *slog.Logger
}

// Chain tries primary, then secondary, then offline, in strict order
// and never more than once per tier.
type Chain struct {
	primary   *Loop
	secondary llm.Client
	offline   bool
	logger    *slog.Logger
}

// NewChain creates a degradation chain.
func NewChain(cfg ChainConfig) *Chain {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Chain{
		primary:   cfg.Primary,
		secondary: cfg.Secondary,
		offline:   !cfg.DisableOffline,
		logger:    cfg.Logger.With("component", "chain"),
	}
}

// Run produces an outcome for input. The returned trace holds every
// tool call the primary loop executed, whichever tier answered. A
// non-nil error means ctx ended and no outcome was produced.
func (c *Chain) Run(ctx context.Context, history []llm.Turn, input llm.Input) (Outcome, []llm.ToolResult, error) {
	var trace []llm.ToolResult
	reason := ReasonUnknown

	if c.primary == nil {
		c.logger.Warn("no primary backend configured, answering offline")
	} else {
		res, err := c.primary.Run(ctx, history, input)
		if res != nil {
			trace = res.Trace
		}
		if err == nil {
			return Success(res.Text), trace, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, trace, ctxErr
		}

		if errors.Is(err, ErrRoundLimitExceeded) {
			reason = ReasonRoundLimitExceeded
		} else {
			reason = reasonFor(llm.Classify(err))
		}
		c.logger.Warn("primary backend failed", "reason", reason, "error", err)

		if reason == ReasonModelUnavailable && c.secondary != nil {
			text, err := c.askSecondary(ctx, input.Text)
			if err == nil {
				return Degraded(text, TierSecondary, reason), trace, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Outcome{}, trace, ctxErr
			}
			c.logger.Warn("secondary backend failed", "error", err)
		}
	}

	if !c.offline {
		return Exhausted(reason), trace, nil
	}

	note := offline.ReasonUnreachable
	if reason == ReasonQuotaExceeded {
		note = offline.ReasonQuota
	}
	return Degraded(offline.Respond(input.Text, note), TierOffline, reason), trace, nil
}

// askSecondary sends only the current text: no history, no tools, no
// image.
func (c *Chain) askSecondary(ctx context.Context, text string) (string, error) {
	resp, err := c.secondary.Send(ctx, &llm.Request{Input: llm.Input{Text: text}})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("%s returned no text", c.secondary.Name())
	}
	return resp.Text, nil
}
