package agent

import (
	"context"
	"testing"

	"github.com/jobpilot/assistant-api/internal/llm"
)

// collect drains the event channel and returns the full sequence.
func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()

	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	if len(out) == 0 {
		t.Fatal("no events received")
	}
	return out
}

func TestRunStreamTextOnly(t *testing.T) {
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		{Content: "Salut!"},
	}}
	loop, _ := newTestLoop(t, client)

	events := collect(t, loop.RunStream(context.Background(), "user-1", nil, "bonjour"))

	last := events[len(events)-1]
	if last.Kind != EventDone {
		t.Fatalf("last event kind = %v, want EventDone", last.Kind)
	}
	if last.Final != "Salut!" {
		t.Errorf("final = %q, want %q", last.Final, "Salut!")
	}

	var text string
	for _, ev := range events[:len(events)-1] {
		if ev.Kind != EventText {
			t.Fatalf("unexpected event kind %v before terminal", ev.Kind)
		}
		text += ev.Text
	}
	if text != last.Final {
		t.Errorf("concatenated text = %q, final = %q; must match", text, last.Final)
	}
}

func TestRunStreamEmitsToolEvents(t *testing.T) {
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolCallResponse("add_company", map[string]any{"name": "Acme"}),
		{Content: "C'est fait."},
	}}
	loop, _ := newTestLoop(t, client)

	events := collect(t, loop.RunStream(context.Background(), "user-1", nil, "Crée l'entreprise Acme"))

	var toolNames []string
	var text string
	for _, ev := range events {
		switch ev.Kind {
		case EventToolUsed:
			toolNames = append(toolNames, ev.ToolName)
		case EventText:
			text += ev.Text
		}
	}
	if len(toolNames) != 1 || toolNames[0] != "add_company" {
		t.Errorf("tool events = %v, want [add_company]", toolNames)
	}

	last := events[len(events)-1]
	if last.Kind != EventDone {
		t.Fatalf("last event kind = %v, want EventDone", last.Kind)
	}
	if last.Final != "C'est fait." || text != last.Final {
		t.Errorf("final = %q, concatenated = %q", last.Final, text)
	}
}

func TestRunStreamCeilingEmitsFallback(t *testing.T) {
	var responses []*llm.CompletionResponse
	for i := 0; i < DefaultMaxIterations; i++ {
		responses = append(responses, toolCallResponse("list_companies", map[string]any{}))
	}
	client := &scriptedClient{responses: responses}
	loop, _ := newTestLoop(t, client)

	events := collect(t, loop.RunStream(context.Background(), "user-1", nil, "salut"))

	last := events[len(events)-1]
	if last.Kind != EventDone {
		t.Fatalf("last event kind = %v, want EventDone", last.Kind)
	}
	if last.Final != FallbackText {
		t.Errorf("final = %q, want the fallback text", last.Final)
	}

	// The client must have seen the fallback as streamed text too.
	var text string
	for _, ev := range events {
		if ev.Kind == EventText {
			text += ev.Text
		}
	}
	if text != FallbackText {
		t.Errorf("streamed text = %q, want the fallback text", text)
	}
}

func TestRunStreamErrorIsTerminal(t *testing.T) {
	client := &scriptedClient{responses: []*llm.CompletionResponse{
		toolCallResponse("drop_database", nil),
	}}
	loop, _ := newTestLoop(t, client)

	events := collect(t, loop.RunStream(context.Background(), "user-1", nil, "salut"))

	last := events[len(events)-1]
	if last.Kind != EventError {
		t.Fatalf("last event kind = %v, want EventError", last.Kind)
	}
	if last.Err == nil {
		t.Error("terminal error event has nil Err")
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Kind == EventDone || ev.Kind == EventError {
			t.Fatalf("terminal event before end of stream: %v", ev.Kind)
		}
	}
}
