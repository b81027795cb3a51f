package agent

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jobpilot/assistant-api/internal/llm"
	"github.com/jobpilot/assistant-api/internal/model"
	"github.com/jobpilot/assistant-api/internal/store"
	"github.com/jobpilot/assistant-api/internal/tools"
	"github.com/jobpilot/assistant-api/pkg/logger"
)

// scriptedClient returns canned responses in order. Streaming feeds
// the response content to the callback one rune at a time before
// returning, mimicking a provider that always streams text first.
type scriptedClient struct {
	responses []*llm.CompletionResponse
	calls     int
	requests  []*llm.CompletionRequest
	err       error
}

func (c *scriptedClient) next(req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	if c.calls >= len(c.responses) {
		return &llm.CompletionResponse{Content: "épuisé"}, nil
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

func (c *scriptedClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return c.next(req)
}

func (c *scriptedClient) CompleteStream(ctx context.Context, req *llm.CompletionRequest, cb llm.StreamCallback) (*llm.CompletionResponse, error) {
	resp, err := c.next(req)
	if err != nil {
		return nil, err
	}
	for i, r := range []rune(resp.Content) {
		if err := cb(string(r), i); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (c *scriptedClient) Name() string { return "scripted" }

func newTestLoop(t *testing.T, client llm.Client) (*Loop, *store.Store) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(client, s, DefaultMaxIterations, logger.NewNop()), s
}

func toolCallResponse(name string, args map[string]any) *llm.CompletionResponse {
	return &llm.CompletionResponse{
		ToolCalls: []llm.ToolCall{{ID: "call-1", Name: name, Arguments: args}},
	}
}

func TestRunTextOnly(t *testing.T) {
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		{Content: "Bonjour!"},
	}}
	loop, _ := newTestLoop(t, client)

	out, err := loop.Run(context.Background(), "user-1", nil, "salut", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "Bonjour!" {
		t.Errorf("out = %q, want %q", out, "Bonjour!")
	}
	if client.calls != 1 {
		t.Errorf("model called %d times, want 1", client.calls)
	}
}

func TestRunExecutesToolsAndFeedsObservations(t *testing.T) {
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolCallResponse("add_company", map[string]any{"name": "Acme"}),
		{Content: "Entreprise Acme créée."},
	}}
	loop, s := newTestLoop(t, client)

	var used []string
	out, err := loop.Run(context.Background(), "user-1", nil, "Crée l'entreprise Acme", func(name string) {
		used = append(used, name)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "Entreprise Acme créée." {
		t.Errorf("out = %q", out)
	}
	if len(used) != 1 || used[0] != "add_company" {
		t.Errorf("used = %v, want [add_company]", used)
	}

	// The tool actually executed.
	companies, err := s.ListCompanies(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list companies: %v", err)
	}
	if len(companies) != 1 || companies[0].Name != "Acme" {
		t.Errorf("companies = %v, want one named Acme", companies)
	}

	// The second model call saw the tool turn and its observation.
	second := client.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != llm.RoleTool {
		t.Fatalf("last message role = %q, want tool", last.Role)
	}
	if last.ToolCallID != "call-1" {
		t.Errorf("observation tool call ID = %q, want call-1", last.ToolCallID)
	}
	var obs struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal([]byte(last.Content), &obs); err != nil {
		t.Fatalf("observation is not JSON: %v", err)
	}
	if !obs.Success {
		t.Errorf("observation success = false: %s", last.Content)
	}
}

func TestRunToolFailureIsNotFatal(t *testing.T) {
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolCallResponse("add_company", map[string]any{}), // missing name
		{Content: "Il me faut un nom d'entreprise."},
	}}
	loop, _ := newTestLoop(t, client)

	out, err := loop.Run(context.Background(), "user-1", nil, "crée une entreprise", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "Il me faut un nom d'entreprise." {
		t.Errorf("out = %q", out)
	}

	last := client.requests[1].Messages[len(client.requests[1].Messages)-1]
	var obs struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal([]byte(last.Content), &obs); err != nil {
		t.Fatalf("observation is not JSON: %v", err)
	}
	if obs.Success {
		t.Errorf("expected failed observation, got %s", last.Content)
	}
}

func TestRunUnknownToolAbortsTurn(t *testing.T) {
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolCallResponse("drop_database", nil),
	}}
	loop, _ := newTestLoop(t, client)

	_, err := loop.Run(context.Background(), "user-1", nil, "salut", nil)
	if !errors.Is(err, tools.ErrNotFound) {
		t.Errorf("err = %v, want tools.ErrNotFound", err)
	}
}

func TestRunIterationCeiling(t *testing.T) {
	// The model keeps asking for tools and never yields text.
	var responses []*llm.CompletionResponse
	for i := 0; i < DefaultMaxIterations+2; i++ {
		responses = append(responses, toolCallResponse("list_companies", map[string]any{}))
	}
	client := &scriptedClient{responses: responses}
	loop, _ := newTestLoop(t, client)

	out, err := loop.Run(context.Background(), "user-1", nil, "salut", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != FallbackText {
		t.Errorf("out = %q, want the fallback text", out)
	}
	if client.calls != DefaultMaxIterations {
		t.Errorf("model called %d times, want %d", client.calls, DefaultMaxIterations)
	}
}

func TestRunModelErrorPropagates(t *testing.T) {
	client := &scriptedClient{err: errors.New("upstream unavailable")}
	loop, _ := newTestLoop(t, client)

	if _, err := loop.Run(context.Background(), "user-1", nil, "salut", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunIncludesHistory(t *testing.T) {
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		{Content: "ok"},
	}}
	loop, _ := newTestLoop(t, client)

	history := []model.Message{
		{Role: model.RoleUser, Content: "premier message"},
		{Role: model.RoleAssistant, Content: "première réponse"},
	}
	if _, err := loop.Run(context.Background(), "user-1", history, "suite", nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	msgs := client.requests[0].Messages
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want system + 2 history + user", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem {
		t.Errorf("msgs[0].Role = %q, want system", msgs[0].Role)
	}
	if msgs[1].Content != "premier message" || msgs[2].Content != "première réponse" {
		t.Errorf("history not carried in order: %+v", msgs[1:3])
	}
	if msgs[3].Content != "suite" {
		t.Errorf("msgs[3].Content = %q, want the new user message", msgs[3].Content)
	}
}
