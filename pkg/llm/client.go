// Package llm wraps the Anthropic SDK behind the tool-calling
// protocol the selection engine speaks.
package llm

import (
	"context"
	"encoding/json"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client defines the LLM operations used by the selection engine.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is our own request type for CreateMessage.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature *float64
}

// ToolDefinition declares one named operation the model may invoke,
// with a JSON-schema argument description.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Message is a single conversational turn made of content blocks.
type Message struct {
	Role   string // "user" or "assistant"
	Blocks []Block
}

// Block is one content block within a message. Type is one of
// "text", "tool_use", or "tool_result".
type Block struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// Tool use (assistant turns).
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`

	// Tool result (user turns).
	Content string `json:"content,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// TextMessage builds a single-block text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Blocks: []Block{{Type: "text", Text: text}}}
}

// ToolResultMessage builds a user message carrying tool results.
func ToolResultMessage(results ...Block) Message {
	return Message{Role: "user", Blocks: results}
}

// MessageResponse is our own response type from CreateMessage.
type MessageResponse struct {
	ID         string
	Model      string
	Blocks     []Block
	StopReason string
	Usage      TokenUsage
}

// ToolUses returns the tool_use blocks of the response in order.
func (r *MessageResponse) ToolUses() []Block {
	var uses []Block
	for _, b := range r.Blocks {
		if b.Type == "tool_use" {
			uses = append(uses, b)
		}
	}
	return uses
}

// Text concatenates the text blocks of the response.
func (r *MessageResponse) Text() string {
	var out string
	for _, b := range r.Blocks {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// TokenUsage tracks token consumption across a conversation.
type TokenUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// Add merges usage from another response.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
}

// NewClient creates a new Anthropic-backed client.
func NewClient(apiKey string) Client {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
	}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}

	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toSDKTools(req.Tools)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "llm: create message")
	}

	return fromSDKMessage(msg), nil
}

// --- SDK type conversion helpers ---

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch b.Type {
			case "tool_use":
				blocks = append(blocks, sdk.NewToolUseBlock(b.ToolUseID, b.ToolInput, b.ToolName))
			case "tool_result":
				blocks = append(blocks, sdk.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			default:
				blocks = append(blocks, sdk.NewTextBlock(b.Text))
			}
		}
		if m.Role == "assistant" {
			out = append(out, sdk.NewAssistantMessage(blocks...))
		} else {
			out = append(out, sdk.NewUserMessage(blocks...))
		}
	}
	return out
}

func toSDKTools(tools []ToolDefinition) []sdk.ToolUnionParam {
	params := make([]sdk.ToolParam, len(tools))
	for i, t := range tools {
		params[i] = sdk.ToolParam{
			Name:        t.Name,
			Description: sdk.String(t.Description),
			InputSchema: sdk.ToolInputSchemaParam{
				Properties: t.InputSchema,
			},
		}
	}
	out := make([]sdk.ToolUnionParam, len(params))
	for i := range params {
		out[i] = sdk.ToolUnionParam{OfTool: &params[i]}
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	blocks := make([]Block, 0, len(msg.Content))
	for _, b := range msg.Content {
		switch v := b.AsAny().(type) {
		case sdk.TextBlock:
			blocks = append(blocks, Block{Type: "text", Text: v.Text})
		case sdk.ToolUseBlock:
			blocks = append(blocks, Block{
				Type:      "tool_use",
				ToolUseID: v.ID,
				ToolName:  v.Name,
				ToolInput: json.RawMessage(v.JSON.Input.Raw()),
			})
		}
	}

	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Blocks:     blocks,
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
}
