package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// LevelTrace mirrors config.LevelTrace for wire-level payload logs
// without importing the config package.
const LevelTrace = slog.Level(-8)

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint. Tests point it at an
	// httptest server.
	BaseURL string
	// Timeout bounds each Send. Zero means 30s.
	Timeout     time.Duration
	Temperature *float32
	HTTPClient  *http.Client
}

// GeminiClient talks to the Gemini generateContent API.
type GeminiClient struct {
	models  *genai.Models
	model   string
	timeout time.Duration
	temp    *float32
	logger  *slog.Logger
}

// NewGeminiClient builds a client for one model.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini: model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiClient{
		models:  client.Models,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		temp:    cfg.Temperature,
		logger:  logger.With("provider", "gemini", "model", cfg.Model),
	}, nil
}

// Name returns the configured model name.
func (c *GeminiClient) Name() string { return c.model }

// Send issues one generateContent call under the client's timeout.
func (c *GeminiClient) Send(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := buildContents(req)
	config := c.buildConfig(req)

	if c.logger.Enabled(ctx, LevelTrace) {
		if raw, err := json.Marshal(contents); err == nil {
			c.logger.Log(ctx, LevelTrace, "gemini request", "contents", string(raw), "tools", len(req.Tools))
		}
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		c.logger.Debug("gemini request failed", "elapsed", time.Since(start).Round(time.Millisecond), "error", err)
		return nil, c.wrapError(err)
	}

	out, err := c.parseResponse(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("gemini response",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"tool_calls", len(out.ToolCalls),
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
	)
	return out, nil
}

func (c *GeminiClient) buildConfig(req *Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{Temperature: c.temp}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaFromJSON(t.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
		}
	}
	return config
}

// buildContents lays out history, the new user input, then each
// completed tool round as a model call turn followed by a user turn
// carrying the function responses.
func buildContents(req *Request) []*genai.Content {
	var contents []*genai.Content
	for _, t := range req.SendableHistory() {
		if t.Text == "" {
			continue
		}
		role := genai.RoleUser
		if t.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, genai.Role(role)))
	}

	var parts []*genai.Part
	if req.Input.Text != "" {
		parts = append(parts, genai.NewPartFromText(req.Input.Text))
	}
	if img := req.Input.Image; img != nil && len(img.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	for _, r := range req.Rounds {
		calls := make([]*genai.Part, 0, len(r.Calls))
		for _, tc := range r.Calls {
			calls = append(calls, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Name,
				Args: tc.Arguments,
			}})
		}
		results := make([]*genai.Part, 0, len(r.Results))
		for _, res := range r.Results {
			results = append(results, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       res.CallID,
				Name:     res.Name,
				Response: res.Payload(),
			}})
		}
		contents = append(contents,
			genai.NewContentFromParts(calls, genai.RoleModel),
			genai.NewContentFromParts(results, genai.RoleUser),
		)
	}
	return contents
}

func (c *GeminiClient) parseResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	out := &Response{Model: c.model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		msg := "response has no candidates"
		if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
			msg = fmt.Sprintf("prompt blocked: %s", pf.BlockReason)
		}
		return nil, &Error{Provider: "gemini", Model: c.model, Message: msg}
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		switch {
		case p == nil, p.Thought:
		case p.FunctionCall != nil:
			args := p.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        p.FunctionCall.ID,
				Name:      p.FunctionCall.Name,
				Arguments: args,
			})
		case p.Text != "":
			text.WriteString(p.Text)
		}
	}
	out.Text = text.String()

	if !out.HasToolCalls() && strings.TrimSpace(out.Text) == "" {
		return nil, &Error{
			Provider: "gemini",
			Model:    c.model,
			Message:  fmt.Sprintf("empty response (finish reason %s)", resp.Candidates[0].FinishReason),
		}
	}
	return out, nil
}

func (c *GeminiClient) wrapError(err error) error {
	e := &Error{Provider: "gemini", Model: c.model, Err: err}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		e.Status = apiErr.Code
		e.Message = apiErr.Message
	case errors.As(err, &apiErrPtr):
		e.Status = apiErrPtr.Code
		e.Message = apiErrPtr.Message
	default:
		e.Message = err.Error()
	}
	if e.Message == "" {
		e.Message = http.StatusText(e.Status)
	}
	return e
}

// schemaFromJSON converts a JSON Schema map into the genai schema
// shape. Only the keywords tool declarations use are carried over.
func schemaFromJSON(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = schemaFromJSON(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = schemaFromJSON(items)
	}
	s.Required = stringSlice(m["required"])
	s.Enum = stringSlice(m["enum"])
	return s
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, x := range vals {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
