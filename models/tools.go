package models

import "sort"

// ToolParameter describes one parameter of a tool for the model's
// function-call declarations. The schema is advisory: the model shapes its
// output by it, but each tool handler validates its own arguments.
type ToolParameter struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"-"`
}

// ToolDefinition is the contract surface between the model and the executor.
// Definitions are fixed at process start and shared read-only.
type ToolDefinition struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  map[string]ToolParameter `json:"parameters"`
	// RequiresConfirmation marks gated tools that pause for human approval.
	RequiresConfirmation bool `json:"requires_confirmation"`
}

// RequiredParams returns the names of required parameters in stable order.
func (d ToolDefinition) RequiredParams() []string {
	names := make([]string, 0, len(d.Parameters))
	for name, p := range d.Parameters {
		if p.Required {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ToolInvocation is a model-requested tool call. It lives for one loop
// iteration and is persisted into the message log for audit and replay.
type ToolInvocation struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolOutcome is the structured result of executing a tool. Soft failures
// (Success=false) are conversational: the model reads Message and recovers
// in the next turn. They are never Go errors.
type ToolOutcome struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}
