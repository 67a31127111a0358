package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// handleChatSocket serves chat over a WebSocket. Each inbound text
// frame is one ChatRequest; each outbound frame is a complete
// ChatResponse or an ErrorBody. Frames without a conversation id share
// one conversation per connection.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connConv := uuid.NewString()
	log := s.logger.With("transport", "websocket", "conversation", connConv)
	log.Debug("websocket connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if err := conn.WriteJSON(ErrorBody{Error: ErrorDetail{Message: "invalid frame", Code: http.StatusBadRequest}}); err != nil {
				return
			}
			continue
		}
		if req.ConversationID == "" {
			req.ConversationID = connConv
		}

		var out any
		resp, err := s.chat(r.Context(), &req)
		if err != nil {
			code, msg := s.errorStatus(err)
			out = ErrorBody{Error: ErrorDetail{Message: msg, Code: code}}
		} else {
			out = resp
		}
		if err := conn.WriteJSON(out); err != nil {
			log.Debug("websocket write failed", "error", err)
			return
		}
	}
}
