package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/agrismart/assistant/internal/agent"
	"github.com/agrismart/assistant/internal/llm"
	"github.com/agrismart/assistant/internal/render"
	"github.com/agrismart/assistant/internal/tools"
)

// maxChatBody bounds a chat request, image included.
const maxChatBody = 10 << 20

// ChatRequest is one user turn.
type ChatRequest struct {
	ConversationID string        `json:"conversation_id"`
	Message        string        `json:"message"`
	Image          *ImagePayload `json:"image,omitempty"`
}

// ImagePayload is an attached image. Data is standard base64.
type ImagePayload struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// ChatResponse is the complete reply to a turn.
type ChatResponse struct {
	RequestID      string           `json:"request_id"`
	ConversationID string           `json:"conversation_id"`
	Reply          string           `json:"reply"`
	ReplyHTML      string           `json:"reply_html,omitempty"`
	Tier           agent.Tier       `json:"tier"`
	Reason         agent.Reason     `json:"reason,omitempty"`
	ToolTrace      []llm.ToolResult `json:"tool_trace"`
	Bookings       []tools.Booking  `json:"bookings,omitempty"`
}

// badRequest is a client error reported with status 400.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.chat(r.Context(), &req)
	if err != nil {
		code, msg := s.errorStatus(err)
		s.errorResponse(w, code, msg)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// chat runs one turn for either transport.
func (s *Server) chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	in := agent.TurnInput{Text: req.Message}
	if req.Image != nil {
		img, err := decodeImage(req.Image)
		if err != nil {
			return nil, err
		}
		in.Image = img
	}

	reply, err := s.assistant.SubmitTurn(ctx, req.ConversationID, in)
	if err != nil {
		return nil, err
	}

	resp := &ChatResponse{
		RequestID:      reply.RequestID,
		ConversationID: reply.ConversationID,
		Reply:          reply.Text,
		Tier:           reply.Outcome.Tier,
		Reason:         reply.Outcome.Reason,
		ToolTrace:      reply.Trace,
		Bookings:       reply.Bookings,
	}
	if resp.ToolTrace == nil {
		resp.ToolTrace = []llm.ToolResult{}
	}
	if html, err := render.Markdown(reply.Text); err != nil {
		s.logger.Warn("markdown render failed", "request_id", reply.RequestID, "error", err)
	} else {
		resp.ReplyHTML = html
	}
	return resp, nil
}

func decodeImage(p *ImagePayload) (*llm.Image, error) {
	if p.Data == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, &badRequest{"image data is not valid base64"}
	}
	mime := p.MIMEType
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, &badRequest{"unsupported image type " + mime}
	}
	return &llm.Image{MIMEType: mime, Data: data}, nil
}

// errorStatus maps a turn error to an HTTP status and client message.
func (s *Server) errorStatus(err error) (int, string) {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, br.msg
	case errors.Is(err, agent.ErrEmptyTurn):
		return http.StatusBadRequest, "message or image is required"
	case errors.Is(err, agent.ErrTurnInFlight):
		return http.StatusConflict, err.Error()
	case errors.Is(err, agent.ErrExhausted):
		return http.StatusServiceUnavailable, "the assistant is unavailable, please try again later"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		s.logger.Error("turn failed", "error", err)
		return http.StatusInternalServerError, "internal error"
	}
}
