package registry

import (
	"errors"
	"fmt"
)

// -- Sentinels --

var (
	ErrUnknownTool    = errors.New("unknown tool")
	ErrDuplicateTool  = errors.New("tool already registered")
	ErrPluginDisabled = errors.New("plugin is disabled")
)

// UnknownToolError reports a lookup for a name no tool was registered under.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

func (e *UnknownToolError) Unwrap() error { return ErrUnknownTool }

// PluginDisabledError reports a lookup for a plugin tool that was discovered
// but not enabled. The reason records why it stayed disabled.
type PluginDisabledError struct {
	Name   string
	Reason string
}

func (e *PluginDisabledError) Error() string {
	return fmt.Sprintf("plugin tool %q is disabled: %s", e.Name, e.Reason)
}

func (e *PluginDisabledError) Unwrap() error { return ErrPluginDisabled }
