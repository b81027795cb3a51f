package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobpilot/assistant-api/internal/llm"
	"github.com/jobpilot/assistant-api/internal/model"
	"github.com/jobpilot/assistant-api/internal/store"
	"github.com/jobpilot/assistant-api/internal/tools"
	"github.com/jobpilot/assistant-api/pkg/logger"
	"github.com/jobpilot/assistant-api/pkg/metrics"
)

// FallbackText is returned when the iteration ceiling is reached
// without a tool-call-free response. This is a terminal policy, not an
// error: a completed loop always yields text.
const FallbackText = "Désolé, je n'ai pas pu traiter ta demande. Essaie de reformuler."

// DefaultMaxIterations bounds worst-case latency when the model keeps
// requesting tools without converging.
const DefaultMaxIterations = 5

// Loop runs the bounded iterate-call-observe cycle: invoke the model,
// execute any requested tools, feed back observations, repeat.
type Loop struct {
	client        llm.Client
	store         *store.Store
	assembler     *ContextAssembler
	maxIterations int
	logger        *logger.Logger
}

// New creates an agent loop.
func New(client llm.Client, st *store.Store, maxIterations int, log *logger.Logger) *Loop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Loop{
		client:        client,
		store:         st,
		assembler:     NewContextAssembler(st),
		maxIterations: maxIterations,
		logger:        log,
	}
}

// Run executes one full turn and returns the assistant's final text.
// Tool execution failures are fed back to the model as observations;
// only a model invocation failure or an undeclared tool name aborts
// the turn. onToolUsed, when non-nil, fires before each tool executes.
func (l *Loop) Run(ctx context.Context, userID string, history []model.Message, userMessage string, onToolUsed func(name string)) (string, error) {
	registry := tools.NewRegistry(l.store, userID)

	msgs, err := l.assembler.Build(ctx, userID, history, userMessage)
	if err != nil {
		return "", err
	}

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		resp, err := l.client.Complete(ctx, &llm.CompletionRequest{
			Messages: msgs,
			Tools:    registry.Definitions(),
		})
		if err != nil {
			metrics.AgentTurnsTotal.WithLabelValues("error").Inc()
			return "", fmt.Errorf("model invocation failed: %w", err)
		}
		metrics.RecordLLMCall(resp.Model, "success", float64(resp.LatencyMs)/1000.0, resp.TokensIn, resp.TokensOut)

		if len(resp.ToolCalls) == 0 {
			l.logger.Debug("agent turn complete",
				zap.String("user_id", userID),
				zap.Int("iterations", iteration),
			)
			metrics.AgentIterations.Observe(float64(iteration))
			metrics.AgentTurnsTotal.WithLabelValues("done").Inc()
			return resp.Content, nil
		}

		msgs, err = l.executeToolCalls(ctx, registry, msgs, resp, onToolUsed)
		if err != nil {
			metrics.AgentTurnsTotal.WithLabelValues("error").Inc()
			return "", err
		}
	}

	l.logger.Warn("agent iteration ceiling reached", zap.String("user_id", userID))
	metrics.AgentIterations.Observe(float64(l.maxIterations))
	metrics.AgentTurnsTotal.WithLabelValues("exhausted").Inc()
	return FallbackText, nil
}

// executeToolCalls runs the model's requested tools in order and
// appends the tool-call turn plus one observation per result to msgs.
// onToolUsed, when non-nil, fires before each execution. An undeclared
// tool name is a registry/schema mismatch and aborts the turn.
func (l *Loop) executeToolCalls(
	ctx context.Context,
	registry *tools.Registry,
	msgs []llm.ChatMessage,
	resp *llm.CompletionResponse,
	onToolUsed func(name string),
) ([]llm.ChatMessage, error) {
	msgs = append(msgs, llm.ChatMessage{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})

	// Serial execution on purpose: later calls in the batch may depend
	// on earlier ones having committed.
	for _, tc := range resp.ToolCalls {
		tool, err := registry.Get(tc.Name)
		if err != nil {
			l.logger.Error("model requested undeclared tool", zap.String("tool", tc.Name))
			return nil, err
		}

		if onToolUsed != nil {
			onToolUsed(tc.Name)
		}

		observation := tool.Run(ctx, tc.Arguments)
		msgs = append(msgs, llm.ChatMessage{
			Role:       llm.RoleTool,
			Content:    observation,
			ToolCallID: tc.ID,
			Name:       tc.Name,
		})
	}

	return msgs, nil
}
