package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"thesearch/internal/domain"
	"thesearch/internal/infra/logger"
	"thesearch/internal/usecase/rag"
)

// Frame types sent on /ws.
const (
	FrameContexts = "contexts"
	FrameToken    = "token"
	FrameRelated  = "related"
	FrameDone     = "done"
	FrameError    = "error"
)

const (
	wsReadTimeout  = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// Frame is one JSON message of the WebSocket answer stream.
type Frame struct {
	Type      string                `json:"type"`
	Contexts  []domain.SearchResult `json:"contexts,omitempty"`
	Content   string                `json:"content,omitempty"`
	Questions []string              `json:"questions,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// handleWebSocket answers exactly one query per connection: the client
// sends a queryRequest, the server streams frames and closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), s.logger)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		log.Warn("websocket accept failed", "error", err)
		return
	}
	defer ws.CloseNow()

	ctx := r.Context()
	readCtx, cancel := context.WithTimeout(ctx, wsReadTimeout)
	var req queryRequest
	err = wsjson.Read(readCtx, ws, &req)
	cancel()
	if err != nil {
		log.Debug("websocket read failed", "error", err)
		ws.Close(websocket.StatusPolicyViolation, "expected a query message")
		return
	}

	fw := &frameWriter{ws: ws, ctx: ctx}
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.slots.Release(1)

	answer, err := s.engine.Answer(ctx, rag.Query{Text: req.Query, GenerateRelated: req.related()})
	if err != nil {
		msg := "Internal server error."
		if errors.Is(err, domain.ErrSearchProvider) {
			msg = "Error searching."
		}
		fw.send(Frame{Type: FrameError, Error: msg})
		ws.Close(websocket.StatusInternalError, msg)
		return
	}

	if err := answer.WriteTo(ctx, fw); err != nil {
		log.Warn("websocket answer ended early", "error", err)
		fw.send(Frame{Type: FrameError, Error: "Internal server error."})
		ws.Close(websocket.StatusInternalError, "")
		return
	}
	fw.send(Frame{Type: FrameDone})
	ws.Close(websocket.StatusNormalClosure, "")
}

// frameWriter adapts the answer sections to WebSocket frames.
type frameWriter struct {
	ws  *websocket.Conn
	ctx context.Context
}

func (f *frameWriter) send(frame Frame) error {
	ctx, cancel := context.WithTimeout(f.ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, f.ws, frame)
}

func (f *frameWriter) WriteContexts(contexts []domain.SearchResult) error {
	if contexts == nil {
		contexts = []domain.SearchResult{}
	}
	return f.send(Frame{Type: FrameContexts, Contexts: contexts})
}

func (f *frameWriter) WriteToken(token string) error {
	return f.send(Frame{Type: FrameToken, Content: token})
}

func (f *frameWriter) WriteRelated(questions []string) error {
	return f.send(Frame{Type: FrameRelated, Questions: questions})
}
