package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"charforge/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() []models.ToolDefinition {
	return []models.ToolDefinition{
		{
			Name:        "assign_class",
			Description: "Assign a class",
			Parameters: map[string]models.ToolParameter{
				"class_name": {Type: "string", Description: "class", Required: true},
			},
		},
		{
			Name:        "roll_ability_scores",
			Description: "Roll scores",
			Parameters:  map[string]models.ToolParameter{},
		},
	}
}

func testGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGateway(GatewayConfig{
		BaseURL:        server.URL + "/v1",
		APIKey:         "test-key",
		Model:          "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		RequestTimeout: 5 * time.Second,
	}, zerolog.Nop())
}

func completionResponse(content string, toolCalls ...map[string]any) map[string]any {
	message := map[string]any{"role": "assistant", "content": content}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
	}
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": "stop"}},
	}
}

func toolCallJSON(id, name, args string) map[string]any {
	return map[string]any{
		"id":   id,
		"type": "function",
		"function": map[string]any{
			"name":      name,
			"arguments": args,
		},
	}
}

func sampleHistory() []models.Message {
	convID := uuid.New()
	return []models.Message{
		{ID: 1, ConversationID: convID, Role: models.RoleSystem, Content: "You are a game master."},
		{ID: 2, ConversationID: convID, Role: models.RoleUser, Content: "I want a fierce warrior"},
	}
}

func TestSendPlainText(t *testing.T) {
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		_ = json.NewEncoder(w).Encode(completionResponse("I recommend the Barbarian."))
	})

	reply, err := g.Send(context.Background(), sampleHistory(), testCatalog())
	require.NoError(t, err)
	assert.Nil(t, reply.ToolCall)
	assert.Equal(t, "I recommend the Barbarian.", reply.Text)
}

func TestSendStructuredToolCall(t *testing.T) {
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completionResponse("",
			toolCallJSON("call_1", "assign_class", `{"class_name": "Barbarian"}`)))
	})

	reply, err := g.Send(context.Background(), sampleHistory(), testCatalog())
	require.NoError(t, err)
	require.NotNil(t, reply.ToolCall)
	assert.Equal(t, "call_1", reply.ToolCall.ID)
	assert.Equal(t, "assign_class", reply.ToolCall.Name)
	assert.Equal(t, "Barbarian", reply.ToolCall.Arguments["class_name"])
}

func TestSendHonorsFirstToolCallOnly(t *testing.T) {
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completionResponse("",
			toolCallJSON("call_1", "assign_class", `{"class_name": "Barbarian"}`),
			toolCallJSON("call_2", "roll_ability_scores", `{}`)))
	})

	reply, err := g.Send(context.Background(), sampleHistory(), testCatalog())
	require.NoError(t, err)
	require.NotNil(t, reply.ToolCall)
	assert.Equal(t, "assign_class", reply.ToolCall.Name, "only the first offered call is honored")
}

func TestSendFallbackTextParse(t *testing.T) {
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completionResponse(
			`{"tool": "roll_ability_scores", "arguments": {}}`))
	})

	reply, err := g.Send(context.Background(), sampleHistory(), testCatalog())
	require.NoError(t, err)
	require.NotNil(t, reply.ToolCall)
	assert.Equal(t, "roll_ability_scores", reply.ToolCall.Name)
	assert.Empty(t, reply.Text, "a recovered call clears the user-visible text")
}

func TestSendGarbledArgumentsYieldEmptyMap(t *testing.T) {
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completionResponse("",
			toolCallJSON("call_1", "assign_class", `{broken`)))
	})

	reply, err := g.Send(context.Background(), sampleHistory(), testCatalog())
	require.NoError(t, err)
	require.NotNil(t, reply.ToolCall)
	assert.NotNil(t, reply.ToolCall.Arguments)
	assert.Empty(t, reply.ToolCall.Arguments)
}

func TestSendTimeout(t *testing.T) {
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(completionResponse("too late"))
	})
	g.cfg.RequestTimeout = 50 * time.Millisecond

	_, err := g.Send(context.Background(), sampleHistory(), testCatalog())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSendUpstreamError(t *testing.T) {
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "backend exploded", "type": "server_error"}}`)
	})

	_, err := g.Send(context.Background(), sampleHistory(), testCatalog())
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusInternalServerError, upstream.Status)
}

func TestSendMalformedBody(t *testing.T) {
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not json")
	})

	_, err := g.Send(context.Background(), sampleHistory(), testCatalog())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestSendEmptyChoices(t *testing.T) {
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "chatcmpl-1", "object": "chat.completion", "choices": []}`)
	})

	_, err := g.Send(context.Background(), sampleHistory(), testCatalog())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestSendReplaysHistoryInOrder(t *testing.T) {
	var received []openai.ChatCompletionMessage
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received = req.Messages
		_ = json.NewEncoder(w).Encode(completionResponse("ok"))
	})

	convID := uuid.New()
	callID := "call_9"
	resultPayload := `{"success":true,"message":"done","tool_call_id":"call_9"}`
	invocation := `{"id":"call_9","name":"assign_class","arguments":{"class_name":"Bard"}}`
	history := []models.Message{
		{ID: 1, ConversationID: convID, Role: models.RoleSystem, Content: "prompt"},
		{ID: 2, ConversationID: convID, Role: models.RoleUser, Content: "hi"},
		{ID: 3, ConversationID: convID, Role: models.RoleAssistant, Content: invocation, ToolCallID: &callID},
		{ID: 4, ConversationID: convID, Role: models.RoleSystem, Content: "done", ToolCallID: &callID, ToolResult: &resultPayload},
		{ID: 5, ConversationID: convID, Role: models.RoleAssistant, Content: "All set."},
	}

	_, err := g.Send(context.Background(), history, testCatalog())
	require.NoError(t, err)

	require.Len(t, received, 5)
	assert.Equal(t, openai.ChatMessageRoleSystem, received[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, received[1].Role)

	require.Len(t, received[2].ToolCalls, 1)
	assert.Equal(t, "assign_class", received[2].ToolCalls[0].Function.Name)

	assert.Equal(t, openai.ChatMessageRoleTool, received[3].Role)
	assert.Equal(t, callID, received[3].ToolCallID)
	assert.Equal(t, resultPayload, received[3].Content)

	assert.Equal(t, openai.ChatMessageRoleAssistant, received[4].Role)
}

func TestSendDeniedCallReplaysAsAnsweredToolCall(t *testing.T) {
	var received []openai.ChatCompletionMessage
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received = req.Messages
		_ = json.NewEncoder(w).Encode(completionResponse("ok"))
	})

	convID := uuid.New()
	callID := "call_1"
	denial := `{"success":false,"message":"The player denied the request.","tool_call_id":"call_1"}`
	history := []models.Message{
		{ID: 1, ConversationID: convID, Role: models.RoleUser, Content: "make me a wizard"},
		{ID: 2, ConversationID: convID, Role: models.RoleAssistant,
			Content: `{"id":"call_1","name":"assign_class","arguments":{"class_name":"Wizard"}}`, ToolCallID: &callID},
		{ID: 3, ConversationID: convID, Role: models.RoleSystem,
			Content: "The player denied the request.", ToolCallID: &callID, ToolResult: &denial},
		{ID: 4, ConversationID: convID, Role: models.RoleUser, Content: "what now?"},
	}

	_, err := g.Send(context.Background(), history, testCatalog())
	require.NoError(t, err)

	// Every replayed tool_calls message must be answered by an immediately
	// following tool message for each of its ids.
	for i, msg := range received {
		for _, call := range msg.ToolCalls {
			require.Less(t, i+1, len(received), "tool call %q has no following message", call.ID)
			next := received[i+1]
			assert.Equal(t, openai.ChatMessageRoleTool, next.Role,
				"tool call %q must be followed by a tool message, got role %q", call.ID, next.Role)
			assert.Equal(t, call.ID, next.ToolCallID)
		}
	}
}

func TestSendUnansweredToolCallReplaysAsPlainText(t *testing.T) {
	var received []openai.ChatCompletionMessage
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received = req.Messages
		_ = json.NewEncoder(w).Encode(completionResponse("ok"))
	})

	convID := uuid.New()
	callID := "call_expired"
	// An expired or abandoned confirmation leaves the invocation record
	// without a result; it must not reach the wire as tool_calls.
	history := []models.Message{
		{ID: 1, ConversationID: convID, Role: models.RoleUser, Content: "make me a wizard"},
		{ID: 2, ConversationID: convID, Role: models.RoleAssistant,
			Content: `{"id":"call_expired","name":"assign_class","arguments":{"class_name":"Wizard"}}`, ToolCallID: &callID},
		{ID: 3, ConversationID: convID, Role: models.RoleUser, Content: "hello?"},
	}

	_, err := g.Send(context.Background(), history, testCatalog())
	require.NoError(t, err)

	require.Len(t, received, 3)
	assert.Empty(t, received[1].ToolCalls)
	assert.Equal(t, openai.ChatMessageRoleAssistant, received[1].Role)
	assert.Contains(t, received[1].Content, "assign_class")
}

func TestEmbed(t *testing.T) {
	g := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		fmt.Fprint(w, `{"object": "list", "data": [{"object": "embedding", "index": 0, "embedding": [0.25, -0.5]}]}`)
	})

	embedding, err := g.Embed(context.Background(), "a fierce warrior")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5}, embedding)
}

func TestTrimToBudgetKeepsSystemAndOrder(t *testing.T) {
	g := NewGateway(GatewayConfig{Model: "gpt-4o-mini", TokenBudget: 12}, zerolog.Nop())

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "system prompt"},
		{Role: openai.ChatMessageRoleUser, Content: "first long message with plenty of words in it"},
		{Role: openai.ChatMessageRoleAssistant, Content: "a reply that also has plenty of words in it"},
		{Role: openai.ChatMessageRoleUser, Content: "second"},
		{Role: openai.ChatMessageRoleAssistant, Content: "final"},
	}

	trimmed := g.trimToBudget(messages)

	require.NotEmpty(t, trimmed)
	assert.Equal(t, openai.ChatMessageRoleSystem, trimmed[0].Role, "the system prompt is never dropped")
	assert.Less(t, len(trimmed), 5)

	// Relative order of the survivors is preserved.
	assert.Equal(t, "final", trimmed[len(trimmed)-1].Content)
}

func TestTrimToBudgetDropsOrphanedToolResults(t *testing.T) {
	g := NewGateway(GatewayConfig{Model: "gpt-4o-mini", TokenBudget: 8}, zerolog.Nop())

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "system prompt"},
		{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{{ID: "c1", Type: openai.ToolTypeFunction}}},
		{Role: openai.ChatMessageRoleTool, ToolCallID: "c1", Content: "a tool result with a reasonably long body of text"},
		{Role: openai.ChatMessageRoleUser, Content: "short"},
		{Role: openai.ChatMessageRoleAssistant, Content: "ok"},
	}

	trimmed := g.trimToBudget(messages)
	for _, msg := range trimmed {
		if msg.Role == openai.ChatMessageRoleTool {
			t.Fatalf("orphaned tool result survived trimming: %+v", msg)
		}
	}
}
