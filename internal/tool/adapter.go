package tool

import (
	"context"

	"github.com/mitchellh/mapstructure"
)

// Validator is implemented by request types that carry their own
// validation beyond what decoding enforces.
type Validator interface {
	Validate() error
}

type adapter[Req any] struct {
	decl     Declaration
	mutating bool
	run      func(ctx context.Context, req Req) (Result, error)
}

// NewAdapter wraps a typed run function as a Tool. Raw arguments from the
// model are decoded into Req using the json field tags, then validated if
// Req implements Validator.
func NewAdapter[Req any](decl Declaration, mutating bool, run func(ctx context.Context, req Req) (Result, error)) Tool {
	return &adapter[Req]{decl: decl, mutating: mutating, run: run}
}

func (a *adapter[Req]) Declaration() Declaration { return a.decl }

func (a *adapter[Req]) Mutating() bool { return a.mutating }

func (a *adapter[Req]) Execute(ctx context.Context, args map[string]any) (Result, error) {
	var req Req
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &req,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Result{}, &InvalidArgsError{Tool: a.decl.Name, Cause: err}
	}
	if err := decoder.Decode(args); err != nil {
		return Result{}, &InvalidArgsError{Tool: a.decl.Name, Cause: err}
	}
	if v, ok := any(&req).(Validator); ok {
		if err := v.Validate(); err != nil {
			return Result{}, &InvalidArgsError{Tool: a.decl.Name, Cause: err}
		}
	}
	return a.run(ctx, req)
}
