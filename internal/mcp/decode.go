package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// decode maps a tool call's loosely-typed argument bag onto the request
// struct for that tool. Round-tripping through JSON keeps the field rules
// (names, optionality, number coercion) in one place: the struct tags.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var input T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return input, fmt.Errorf("marshal arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return input, fmt.Errorf("unmarshal arguments: %w", err)
	}
	return input, nil
}
