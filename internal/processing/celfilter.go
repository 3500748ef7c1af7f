package processing

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"logalike/internal/logger"
	"logalike/pkg/message"
	"logalike/pkg/pipeline"
)

// CELFilter evaluates a CEL expression against each message's fields and
// drops messages for which the expression is false. The message fields are
// exposed to the expression as the map variable "fields".
type CELFilter struct {
	expression string
	program    cel.Program
	logger     logger.Logger
}

// NewCELFilter compiles the expression once. The expression must evaluate
// to bool.
func NewCELFilter(expression string, log logger.Logger) (*CELFilter, error) {
	if log == nil {
		log = logger.NopLogger()
	}
	env, err := cel.NewEnv(
		cel.Variable("fields", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return &CELFilter{
		expression: expression,
		program:    program,
		logger:     log,
	}, nil
}

// Matches evaluates the expression for one message. Evaluation errors
// (e.g. a referenced field being absent) drop the message.
func (f *CELFilter) Matches(m *message.Message) bool {
	result, _, err := f.program.Eval(map[string]interface{}{
		"fields": m.Fields(),
	})
	if err != nil {
		f.logger.Debugw("CEL filter evaluation failed, dropping message",
			"expression", f.expression,
			"error", err,
		)
		return false
	}
	matched, ok := result.Value().(bool)
	return ok && matched
}

// Processor lifts the filter into a pipeline processor.
func (f *CELFilter) Processor() pipeline.Processor {
	return pipeline.Filter(f.Matches)
}
