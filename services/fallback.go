package services

import (
	"encoding/json"
	"regexp"
	"strings"

	"charforge/models"

	"github.com/google/uuid"
)

// Fallback tool-call extraction. Some backends never use the structured
// tool-call field and instead print the call into the response text. This
// parser recovers such calls, but only when a well-formed pattern names a
// known tool with a valid JSON argument object. It never guesses.
//
// Two shapes are recognized:
//
//  1. a JSON object with "tool"/"name" and "arguments"/"args" keys, bare or
//     inside a fenced code block:
//     {"tool": "assign_class", "arguments": {"class_name": "Wizard"}}
//  2. function-call syntax:
//     assign_class({"class_name": "Wizard"})

var callSyntaxRe = regexp.MustCompile(`([a-z][a-z0-9_]*)\s*\(\s*\{`)

type embeddedCall struct {
	Tool      string         `json:"tool"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Args      map[string]any `json:"args"`
}

// ExtractToolCall scans free text for an embedded tool call against the set
// of known tool names. Returns nil when nothing well-formed is found.
func ExtractToolCall(content string, known map[string]bool) *models.ToolInvocation {
	if strings.TrimSpace(content) == "" || len(known) == 0 {
		return nil
	}
	if call := extractJSONObjectCall(content, known); call != nil {
		return call
	}
	return extractCallSyntax(content, known)
}

func extractJSONObjectCall(content string, known map[string]bool) *models.ToolInvocation {
	for i := 0; i < len(content); i++ {
		if content[i] != '{' {
			continue
		}
		raw, end := balancedJSON(content, i)
		if raw == "" {
			continue
		}
		var call embeddedCall
		if err := json.Unmarshal([]byte(raw), &call); err != nil {
			continue
		}
		name := call.Tool
		if name == "" {
			name = call.Name
		}
		args := call.Arguments
		if args == nil {
			args = call.Args
		}
		if name != "" && known[name] {
			if args == nil {
				args = make(map[string]any)
			}
			return &models.ToolInvocation{ID: uuid.NewString(), Name: name, Arguments: args}
		}
		// A complete object that is not a tool call: skip past it so nested
		// objects are not re-parsed as candidates.
		i = end
	}
	return nil
}

func extractCallSyntax(content string, known map[string]bool) *models.ToolInvocation {
	for _, loc := range callSyntaxRe.FindAllStringSubmatchIndex(content, -1) {
		name := content[loc[2]:loc[3]]
		if !known[name] {
			continue
		}
		// The match ends on the opening brace of the argument object.
		raw, _ := balancedJSON(content, loc[1]-1)
		if raw == "" {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			continue
		}
		return &models.ToolInvocation{ID: uuid.NewString(), Name: name, Arguments: args}
	}
	return nil
}

// balancedJSON returns the substring from start to the matching closing
// brace, honoring strings and escapes. Returns "" when unbalanced.
func balancedJSON(s string, start int) (string, int) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], i
			}
		}
	}
	return "", -1
}
