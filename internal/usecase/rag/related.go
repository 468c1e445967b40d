package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"
	"go.opentelemetry.io/otel/trace"

	"thesearch/internal/domain"
	"thesearch/internal/infra/tracer"
)

// MaxRelatedQuestions caps the list appended to an answer.
const MaxRelatedQuestions = 5

const relatedToolName = "ask_related_questions"

// relatedTool is offered to providers with function calling.
var relatedTool = domain.ToolSchema{
	Name:        relatedToolName,
	Description: "ask further questions that are related to the input and output.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"questions": {
				"type": "array",
				"description": "related question to the original question and context.",
				"items": {"type": "string"}
			}
		},
		"required": ["questions"]
	}`),
}

// relatedPayloadSchema validates the normalized payload from either path.
const relatedPayloadSchema = `{
	"type": "object",
	"properties": {
		"questions": {
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		}
	},
	"required": ["questions"]
}`

var compiledRelatedSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.NewCompiler().Compile([]byte(relatedPayloadSchema))
})

// RelatedGenerator asks the model for follow-up questions.
type RelatedGenerator struct {
	llm       domain.LLMProvider
	toolCalls bool
	maxTokens int
	logger    *slog.Logger
}

// NewRelatedGenerator creates a generator. toolCalls selects function calling
// over the JSON-only prompt.
func NewRelatedGenerator(llm domain.LLMProvider, toolCalls bool, maxTokens int, logger *slog.Logger) *RelatedGenerator {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &RelatedGenerator{llm: llm, toolCalls: toolCalls, maxTokens: maxTokens, logger: logger}
}

// Generate returns at most MaxRelatedQuestions questions. Every failure is
// reported wrapping domain.ErrRelatedQuestions.
func (g *RelatedGenerator) Generate(ctx context.Context, query string, contexts []domain.SearchResult) ([]string, error) {
	ctx, span := tracer.StartSpan(ctx, "rag.related_questions",
		trace.WithAttributes(tracer.BoolAttr("rag.tool_calls", g.toolCalls)),
	)
	defer span.End()

	questions, err := g.generate(ctx, query, contexts)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrRelatedQuestions, err)
	}
	span.SetAttributes(tracer.IntAttr("rag.related_count", len(questions)))
	tracer.SetOK(span)
	return questions, nil
}

func (g *RelatedGenerator) generate(ctx context.Context, query string, contexts []domain.SearchResult) ([]string, error) {
	req := domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem},
			{Role: domain.RoleUser, Content: query},
		},
		MaxTokens: g.maxTokens,
	}
	if g.toolCalls {
		req.Messages[0].Content = RelatedPrompt(contexts)
		req.Tools = []domain.ToolSchema{relatedTool}
		req.ToolChoice = relatedToolName
	} else {
		req.Messages[0].Content = RelatedPromptJSON(contexts)
	}

	resp, err := g.llm.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	payload, err := g.payload(resp)
	if err != nil {
		return nil, err
	}
	return decodeQuestions(payload)
}

// payload locates the JSON object carrying the questions.
func (g *RelatedGenerator) payload(resp *domain.ChatResponse) (map[string]any, error) {
	for _, tc := range resp.Message.ToolCalls {
		if tc.Name != relatedToolName {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal(tc.Arguments, &args); err != nil {
			// Some servers double-encode the arguments as a JSON string.
			var s string
			if json.Unmarshal(tc.Arguments, &s) != nil {
				return nil, fmt.Errorf("decode tool arguments: %w", err)
			}
			if args = ExtractJSON(s); args == nil {
				return nil, fmt.Errorf("decode tool arguments: %w", err)
			}
		}
		return args, nil
	}

	if obj := ExtractJSON(resp.Message.Content); obj != nil {
		return obj, nil
	}
	g.logger.Debug("related questions response had no JSON", "content_len", len(resp.Message.Content))
	return nil, fmt.Errorf("no JSON object in response")
}

// decodeQuestions accepts {"questions":["q"]} and
// {"questions":[{"question":"q"}]}, validates and truncates.
func decodeQuestions(payload map[string]any) ([]string, error) {
	raw, ok := payload["questions"].([]any)
	if !ok {
		return nil, fmt.Errorf("payload has no questions array")
	}

	questions := make([]any, 0, len(raw))
	for _, item := range raw {
		var q string
		switch v := item.(type) {
		case string:
			q = v
		case map[string]any:
			q, _ = v["question"].(string)
		default:
			// Unknown shapes are left in place so validation rejects them.
			questions = append(questions, item)
			continue
		}
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}

	schema, err := compiledRelatedSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	if result := schema.Validate(map[string]any{"questions": questions}); !result.IsValid() {
		return nil, fmt.Errorf("payload did not match schema: %s", result.Error())
	}

	out := make([]string, 0, min(len(questions), MaxRelatedQuestions))
	for _, q := range questions[:min(len(questions), MaxRelatedQuestions)] {
		out = append(out, q.(string))
	}
	return out, nil
}
