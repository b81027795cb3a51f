package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobpilot/assistant-api/internal/llm"
	"github.com/jobpilot/assistant-api/internal/model"
	"github.com/jobpilot/assistant-api/internal/tools"
	"github.com/jobpilot/assistant-api/pkg/metrics"
)

// EventKind identifies an event produced by the streaming loop.
type EventKind int

const (
	// EventText carries one text fragment as the model produces it.
	EventText EventKind = iota
	// EventToolUsed fires right before a tool executes. Only the name
	// is exposed.
	EventToolUsed
	// EventError is terminal; the turn failed and no assistant text
	// should be persisted.
	EventError
	// EventDone is terminal; Final carries the full concatenated text
	// to persist.
	EventDone
)

// Event is one element of the streaming loop's output sequence.
type Event struct {
	Kind     EventKind
	Text     string // EventText: the fragment
	ToolName string // EventToolUsed
	Err      error  // EventError
	Final    string // EventDone: full accumulated text
}

// RunStream executes one turn in incremental mode. It returns a
// channel of events terminated by exactly one EventDone or EventError,
// after which the channel is closed. The consumer must drain the
// channel; cancellation is the consumer's concern (stop forwarding,
// keep pulling) so the producer can always run to completion.
func (l *Loop) RunStream(ctx context.Context, userID string, history []model.Message, userMessage string) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		final, err := l.runStream(ctx, userID, history, userMessage, events)
		if err != nil {
			metrics.AgentTurnsTotal.WithLabelValues("error").Inc()
			events <- Event{Kind: EventError, Err: err}
			return
		}
		events <- Event{Kind: EventDone, Final: final}
	}()

	return events
}

func (l *Loop) runStream(ctx context.Context, userID string, history []model.Message, userMessage string, events chan<- Event) (string, error) {
	registry := tools.NewRegistry(l.store, userID)

	msgs, err := l.assembler.Build(ctx, userID, history, userMessage)
	if err != nil {
		return "", err
	}

	var full string

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		resp, err := l.client.CompleteStream(ctx, &llm.CompletionRequest{
			Messages: msgs,
			Tools:    registry.Definitions(),
		}, func(token string, _ int) error {
			full += token
			events <- Event{Kind: EventText, Text: token}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("model invocation failed: %w", err)
		}
		metrics.RecordLLMCall(resp.Model, "success", float64(resp.LatencyMs)/1000.0, resp.TokensIn, resp.TokensOut)

		if len(resp.ToolCalls) == 0 {
			l.logger.Debug("streamed agent turn complete",
				zap.String("user_id", userID),
				zap.Int("iterations", iteration),
			)
			metrics.AgentIterations.Observe(float64(iteration))
			metrics.AgentTurnsTotal.WithLabelValues("done").Inc()
			return full, nil
		}

		msgs, err = l.executeToolCalls(ctx, registry, msgs, resp, func(name string) {
			events <- Event{Kind: EventToolUsed, ToolName: name}
		})
		if err != nil {
			return "", err
		}
	}

	l.logger.Warn("agent iteration ceiling reached", zap.String("user_id", userID))
	metrics.AgentIterations.Observe(float64(l.maxIterations))
	metrics.AgentTurnsTotal.WithLabelValues("exhausted").Inc()

	full += FallbackText
	events <- Event{Kind: EventText, Text: FallbackText}
	return full, nil
}
