// Package tool defines the shared contract implemented by every built-in
// and plugin tool. Declarations describe a tool to the model provider,
// Results carry the output of an execution back into the conversation.
package tool

import "context"

// SchemaType enumerates the JSON schema types used in tool declarations.
type SchemaType string

const (
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
	TypeArray   SchemaType = "array"
	TypeObject  SchemaType = "object"
)

// Schema is a JSON-schema fragment describing one parameter or the
// parameter object of a tool.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Declaration is the provider-facing description of a tool.
type Declaration struct {
	Name        string
	Description string
	Parameters  *Schema
}

// Result is the outcome of a completed tool execution. Failed marks an
// execution that ran to completion but did not succeed (a non-zero exit
// code, a missing file); transport and timeout failures are reported as
// errors instead.
type Result struct {
	Content string
	Failed  bool
}

// Tool is the executable unit registered with the tool registry. Execute
// receives already-decoded arguments and must honour ctx cancellation.
type Tool interface {
	Declaration() Declaration
	Mutating() bool
	Execute(ctx context.Context, args map[string]any) (Result, error)
}
