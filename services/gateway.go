package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"charforge/models"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// Gateway errors. All are terminal for the current turn: the caller surfaces
// them to the HTTP boundary, nothing is retried and no message is persisted
// for the failed call.
var (
	ErrTimeout           = errors.New("model request timed out")
	ErrMalformedResponse = errors.New("malformed model response")
)

// UpstreamError reports a non-2xx response from the model endpoint.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("model endpoint returned status %d: %s", e.Status, e.Message)
}

// Reply is the gateway's parsed view of one model response: free text,
// optionally with a single tool invocation. When the raw response offers
// several tool calls only the first is honored; multi-tool turns are
// deliberately unsupported.
type Reply struct {
	Text     string
	ToolCall *models.ToolInvocation
}

// GatewayConfig carries the model endpoint settings.
type GatewayConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	RequestTimeout time.Duration
	TokenBudget    int
}

// Gateway is the single abstraction over the model endpoint. The model is
// stateless between calls; all memory is the replayed message history.
type Gateway struct {
	client *openai.Client
	cfg    GatewayConfig
	logger zerolog.Logger
}

func NewGateway(cfg GatewayConfig, logger zerolog.Logger) *Gateway {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}
	return &Gateway{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		logger: logger.With().Str("component", "gateway").Logger(),
	}
}

// Send replays the ordered message history plus the tool catalog and parses
// the model's next action. Known tool names feed the fallback text parser,
// which only fires when the structured tool-call field is absent.
func (g *Gateway) Send(ctx context.Context, messages []models.Message, tools []models.ToolDefinition) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	chatMessages := g.trimToBudget(toChatMessages(messages))

	req := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		Messages:    chatMessages,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Reply{}, g.classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	choice := resp.Choices[0].Message

	if len(choice.ToolCalls) > 0 {
		call := choice.ToolCalls[0]
		if len(choice.ToolCalls) > 1 {
			g.logger.Warn().
				Int("offered", len(choice.ToolCalls)).
				Str("honored", call.Function.Name).
				Msg("model offered multiple tool calls; executing the first only")
		}
		id := call.ID
		if id == "" {
			id = uuid.NewString()
		}
		return Reply{
			Text: choice.Content,
			ToolCall: &models.ToolInvocation{
				ID:        id,
				Name:      call.Function.Name,
				Arguments: parseToolArguments(call.Function.Arguments),
			},
		}, nil
	}

	// No structured call: look for a well-formed call embedded in the text.
	if call := ExtractToolCall(choice.Content, knownToolNames(tools)); call != nil {
		g.logger.Debug().Str("tool", call.Name).Msg("recovered tool call from response text")
		return Reply{Text: "", ToolCall: call}, nil
	}

	return Reply{Text: choice.Content}, nil
}

// Embed returns the embedding vector for a piece of text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	resp, err := g.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(g.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, g.classifyError(err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding data", ErrMalformedResponse)
	}
	return resp.Data[0].Embedding, nil
}

func (g *Gateway) classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamError{Status: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
}

// toChatMessages maps stored messages onto the wire format. Tool invocation
// records are stored as assistant messages whose content is the serialized
// call; tool results carry a tool_call_id and the outcome JSON. An invocation
// whose call id never received a result (an expired or abandoned
// confirmation) is replayed as plain assistant text: the wire protocol
// rejects a tool_calls message without an answering tool message.
func toChatMessages(messages []models.Message) []openai.ChatCompletionMessage {
	answered := make(map[string]bool)
	for _, msg := range messages {
		if msg.ToolResult != nil && msg.ToolCallID != nil {
			answered[*msg.ToolCallID] = true
		}
	}

	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch {
		case msg.ToolResult != nil && msg.ToolCallID != nil:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    *msg.ToolResult,
				ToolCallID: *msg.ToolCallID,
			})
		case msg.Role == models.RoleAssistant && msg.ToolCallID != nil:
			var inv models.ToolInvocation
			if err := json.Unmarshal([]byte(msg.Content), &inv); err != nil {
				out = append(out, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: msg.Content,
				})
				continue
			}
			if !answered[inv.ID] {
				out = append(out, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: fmt.Sprintf("I asked to run the %s tool, but it was never executed.", inv.Name),
				})
				continue
			}
			args, _ := json.Marshal(inv.Arguments)
			out = append(out, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   inv.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      inv.Name,
						Arguments: string(args),
					},
				}},
			})
		default:
			out = append(out, openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			})
		}
	}
	return out
}

func toOpenAITools(tools []models.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, def := range tools {
		properties := make(map[string]any, len(def.Parameters))
		for name, p := range def.Parameters {
			properties[name] = map[string]any{
				"type":        p.Type,
				"description": p.Description,
			}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": properties,
					"required":   def.RequiredParams(),
				},
			},
		})
	}
	return out
}

func knownToolNames(tools []models.ToolDefinition) map[string]bool {
	known := make(map[string]bool, len(tools))
	for _, def := range tools {
		known[def.Name] = true
	}
	return known
}

// parseToolArguments tolerantly parses a JSON argument string; a model that
// emits garbage arguments still yields a call the executor can soft-fail.
func parseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return make(map[string]any)
	}
	return args
}

// trimToBudget drops the oldest non-system messages until the context fits
// the token budget. The system prompt is never dropped and relative order is
// preserved. A tool-result message is dropped together with its preceding
// invocation so the wire protocol never sees an orphaned result.
func (g *Gateway) trimToBudget(messages []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	if g.cfg.TokenBudget <= 0 {
		return messages
	}
	for len(messages) > 2 && g.countTokens(messages) > g.cfg.TokenBudget {
		drop := 1
		if messages[0].Role != openai.ChatMessageRoleSystem {
			drop = 0
		}
		messages = append(messages[:drop], messages[drop+1:]...)
		// An orphaned tool result at the head is invalid on the wire.
		for len(messages) > drop && messages[drop].Role == openai.ChatMessageRoleTool {
			messages = append(messages[:drop], messages[drop+1:]...)
		}
	}
	return messages
}

func (g *Gateway) countTokens(messages []openai.ChatCompletionMessage) int {
	enc, err := tiktoken.EncodingForModel(g.cfg.Model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	total := 0
	for _, msg := range messages {
		if err != nil {
			total += len(msg.Content) / 4
			continue
		}
		total += len(enc.Encode(msg.Content, nil, nil)) + 4
	}
	return total
}
