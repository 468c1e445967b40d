package rag

import (
	"bytes"
	"encoding/json"
	"io"

	"thesearch/internal/domain"
)

// Wire format markers separating the sections of a streamed answer.
const (
	LLMResponseMarker      = "\n\n__LLM_RESPONSE__\n\n"
	RelatedQuestionsMarker = "\n\n__RELATED_QUESTIONS__\n\n"
	EmptyContextsNotice    = "(The search engine returned nothing for this query. Please take the answer with a grain of salt.)\n\n"
)

// StreamWriter receives the sections of an answer in order: contexts once,
// tokens as they arrive, then related questions when they were requested.
type StreamWriter interface {
	WriteContexts(contexts []domain.SearchResult) error
	WriteToken(token string) error
	WriteRelated(questions []string) error
}

type flusher interface{ Flush() }

// WireWriter renders the plain-text wire format consumed by the web UI.
// Each section is flushed immediately when the destination supports it.
type WireWriter struct {
	w       io.Writer
	flusher flusher
}

// NewWireWriter writes to w, flushing through w when it has a Flush method
// (http.ResponseWriter, bufio.Writer without error).
func NewWireWriter(w io.Writer) *WireWriter {
	ww := &WireWriter{w: w}
	if f, ok := w.(flusher); ok {
		ww.flusher = f
	}
	return ww
}

func (ww *WireWriter) WriteContexts(contexts []domain.SearchResult) error {
	if contexts == nil {
		contexts = []domain.SearchResult{}
	}
	body, err := marshalNoEscape(contexts)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	b.Write(body)
	b.WriteString(LLMResponseMarker)
	if len(contexts) == 0 {
		b.WriteString(EmptyContextsNotice)
	}
	return ww.write(b.Bytes())
}

func (ww *WireWriter) WriteToken(token string) error {
	return ww.write([]byte(token))
}

func (ww *WireWriter) WriteRelated(questions []string) error {
	if questions == nil {
		questions = []string{}
	}
	body, err := marshalNoEscape(questions)
	if err != nil {
		body = []byte("[]")
	}
	return ww.write(append([]byte(RelatedQuestionsMarker), body...))
}

func (ww *WireWriter) write(p []byte) error {
	if _, err := ww.w.Write(p); err != nil {
		return err
	}
	if ww.flusher != nil {
		ww.flusher.Flush()
	}
	return nil
}

// marshalNoEscape encodes v without HTML escaping and without the trailing
// newline json.Encoder adds.
func marshalNoEscape(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}
