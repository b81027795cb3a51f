package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	return &AnthropicClient{client: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Complete sends a completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, err
	}

	out := &CompletionResponse{
		Model:      resp.Model,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}

	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.ContentBlockTypeText:
			out.Content += block.Text
		case anthropic.ContentBlockTypeToolUse:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: toArgs(block.Input),
			})
		}
	}

	return out, nil
}

// CompleteStream sends a streaming completion request. Text deltas are
// forwarded through the callback; tool_use blocks are assembled from
// content_block_start and input_json_delta events and returned whole.
func (c *AnthropicClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	stream := c.client.Messages.NewStreaming(ctx, c.buildParams(req))

	var content string
	var stopReason string
	var tokensIn, tokensOut int
	index := 0

	type partialTool struct {
		id   string
		name string
		args string
	}
	var toolOrder []*partialTool
	var current *partialTool

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case anthropic.MessageStreamEventTypeMessageStart:
			tokensIn = int(event.Message.Usage.InputTokens)

		case anthropic.MessageStreamEventTypeContentBlockStart:
			current = nil
			block, _ := event.ContentBlock.(anthropic.ContentBlockStartEventContentBlock)
			if block.Type == anthropic.ContentBlockStartEventContentBlockTypeToolUse {
				current = &partialTool{
					id:   block.ID,
					name: block.Name,
				}
				toolOrder = append(toolOrder, current)
			}

		case anthropic.MessageStreamEventTypeContentBlockDelta:
			delta, _ := event.Delta.(anthropic.ContentBlockDeltaEventDelta)
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					content += delta.Text
					if err := callback(delta.Text, index); err != nil {
						return nil, err
					}
					index++
				}
			case "input_json_delta":
				if current != nil {
					current.args += delta.PartialJSON
				}
			}

		case anthropic.MessageStreamEventTypeMessageDelta:
			delta, _ := event.Delta.(anthropic.MessageDeltaEventDelta)
			stopReason = string(delta.StopReason)
			tokensOut = int(event.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	var toolCalls []ToolCall
	for _, p := range toolOrder {
		args := map[string]any{}
		if p.args != "" {
			// A malformed argument payload becomes an empty arg map;
			// the tool layer reports the missing fields to the model.
			_ = json.Unmarshal([]byte(p.args), &args)
		}
		toolCalls = append(toolCalls, ToolCall{ID: p.id, Name: p.name, Arguments: args})
	}

	model := req.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	return &CompletionResponse{
		Content:    content,
		ToolCalls:  toolCalls,
		Model:      model,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

func (c *AnthropicClient) buildParams(req *CompletionRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	// System messages become the system field; tool observations become
	// tool_result blocks on user-role messages, per the Messages API.
	var system string
	var messages []anthropic.MessageParam
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system += msg.Content

		case RoleTool:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.F(anthropic.MessageParamRoleUser),
				Content: anthropic.F([]anthropic.ContentBlockParamUnion{
					anthropic.ToolResultBlockParam{
						Type:      anthropic.F(anthropic.ToolResultBlockParamTypeToolResult),
						ToolUseID: anthropic.F(msg.ToolCallID),
						Content: anthropic.F([]anthropic.ToolResultBlockParamContentUnion{
							anthropic.TextBlockParam{
								Type: anthropic.F(anthropic.TextBlockParamTypeText),
								Text: anthropic.F(msg.Content),
							},
						}),
					},
				}),
			})

		case RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ToolUseBlockParam{
					Type:  anthropic.F(anthropic.ToolUseBlockParamTypeToolUse),
					ID:    anthropic.F(tc.ID),
					Name:  anthropic.F(tc.Name),
					Input: anthropic.F[any](tc.Arguments),
				})
			}
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.F(anthropic.MessageParamRoleAssistant),
				Content: anthropic.F(blocks),
			})

		default:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.F(anthropic.MessageParamRoleUser),
				Content: anthropic.F([]anthropic.ContentBlockParamUnion{
					anthropic.TextBlockParam{
						Type: anthropic.F(anthropic.TextBlockParamTypeText),
						Text: anthropic.F(msg.Content),
					},
				}),
			})
		}
	}

	var tools []anthropic.ToolParam
	for _, t := range req.Tools {
		tools = append(tools, anthropic.ToolParam{
			Name:        anthropic.F(t.Name),
			Description: anthropic.F(t.Description),
			InputSchema: anthropic.F[any](t.Parameters),
		})
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(system),
		}})
	}
	if len(tools) > 0 {
		params.Tools = anthropic.F(tools)
	}

	return params
}

// toArgs converts a tool_use input payload to an argument map through
// a JSON round trip, regardless of how the SDK decoded it.
func toArgs(input any) map[string]any {
	args := map[string]any{}
	data, err := json.Marshal(input)
	if err != nil {
		return args
	}
	_ = json.Unmarshal(data, &args)
	return args
}
