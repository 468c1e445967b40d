package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"thesearch/internal/domain"
	"thesearch/internal/infra/logger"
	"thesearch/internal/usecase/rag"
)

// SearchUUIDHeader echoes the search uuid of every /query response.
const SearchUUIDHeader = "X-Search-UUID"

const (
	maxRequestBody  = 64 << 10
	storePutTimeout = 5 * time.Second
)

// queryRequest is the body of POST /query. GenerateRelated defaults to true.
type queryRequest struct {
	Query           string `json:"query"`
	SearchUUID      string `json:"search_uuid"`
	GenerateRelated *bool  `json:"generate_related_questions"`
}

func (q queryRequest) related() bool {
	return q.GenerateRelated == nil || *q.GenerateRelated
}

// parseQueryRequest accepts a JSON body, a form body or URL query values.
func parseQueryRequest(w http.ResponseWriter, r *http.Request) (queryRequest, error) {
	var req queryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return req, domain.NewDomainError("httpapi.parse", domain.ErrInvalidInput, err.Error())
		}
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return req, domain.NewDomainError("httpapi.parse", domain.ErrInvalidInput, "malformed JSON body")
			}
		}
		// URL values fill anything the body left out.
		values := r.URL.Query()
		if req.Query == "" {
			req.Query = values.Get("query")
		}
		if req.SearchUUID == "" {
			req.SearchUUID = values.Get("search_uuid")
		}
		if req.GenerateRelated == nil {
			return req, parseRelatedValue(values.Get("generate_related_questions"), &req)
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, domain.NewDomainError("httpapi.parse", domain.ErrInvalidInput, err.Error())
	}
	req.Query = r.Form.Get("query")
	req.SearchUUID = r.Form.Get("search_uuid")
	return req, parseRelatedValue(r.Form.Get("generate_related_questions"), &req)
}

func parseRelatedValue(v string, req *queryRequest) error {
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return domain.NewDomainError("httpapi.parse", domain.ErrInvalidInput,
			"generate_related_questions must be a boolean")
	}
	req.GenerateRelated = &b
	return nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parseQueryRequest(w, r)
	if err != nil {
		s.metrics.observeQuery(outcomeBadRequest)
		writeText(w, http.StatusBadRequest, "Invalid request.")
		return
	}

	searchUUID := strings.TrimSpace(req.SearchUUID)
	supplied := searchUUID != ""
	if !supplied {
		searchUUID = uuid.NewString()
	}
	w.Header().Set(SearchUUIDHeader, searchUUID)

	log := logger.FromContext(ctx, s.logger).With("search_uuid", searchUUID)
	ctx = logger.WithContext(ctx, log)

	if supplied && s.replay(ctx, w, searchUUID) {
		return
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		// Client went away while queued.
		return
	}
	defer s.slots.Release(1)

	answer, err := s.engine.Answer(ctx, rag.Query{Text: req.Query, GenerateRelated: req.related()})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSearchProvider):
			s.metrics.observeQuery(outcomeSearchError)
			writeText(w, http.StatusInternalServerError, "Error searching.")
		case errors.Is(err, context.Canceled):
		default:
			s.metrics.observeQuery(outcomeLLMError)
			writeText(w, http.StatusServiceUnavailable, "Internal server error.")
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	tee := &teeWriter{w: w, rc: http.NewResponseController(w)}
	if err := answer.WriteTo(ctx, rag.NewWireWriter(tee)); err != nil {
		s.metrics.observeQuery(outcomeStreamError)
		log.Warn("answer stream ended early", "error", err)
		return
	}
	s.metrics.observeQuery(outcomeOK)
	s.remember(ctx, searchUUID, tee.buf.Bytes())
}

// replay writes a stored answer for searchUUID. It reports false when there
// is nothing to replay.
func (s *Server) replay(ctx context.Context, w http.ResponseWriter, searchUUID string) bool {
	if s.store == nil {
		return false
	}
	body, err := s.store.Get(ctx, searchUUID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.FromContext(ctx, s.logger).Warn("result store lookup failed", "error", err)
		}
		return false
	}
	s.metrics.observeStoreHit()
	s.metrics.observeQuery(outcomeReplay)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	return true
}

// remember stores a completed answer. Store failures never fail the request.
func (s *Server) remember(ctx context.Context, searchUUID string, body []byte) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storePutTimeout)
	defer cancel()
	if err := s.store.Put(ctx, searchUUID, body, s.storeTTL); err != nil {
		logger.FromContext(ctx, s.logger).Warn("result store write failed", "error", err)
	}
}

// teeWriter copies everything sent to the client into buf so the finished
// answer can be stored.
type teeWriter struct {
	w   io.Writer
	rc  *http.ResponseController
	buf bytes.Buffer
}

func (t *teeWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	t.buf.Write(p[:n])
	return n, err
}

func (t *teeWriter) Flush() { t.rc.Flush() }

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, msg)
}
