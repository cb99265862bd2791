package filtering

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"beacon/internal/config"
	"beacon/internal/event"
	"beacon/internal/logger"
)

// Service evaluates configured block rules against raw events before they
// enter the pipeline. Rules are CEL boolean expressions over the event's
// name, message type and attribute map; a rule evaluating to true blocks the
// event.
type Service struct {
	rules  []compiledRule
	logger logger.Logger
}

type compiledRule struct {
	name    string
	program cel.Program
}

func NewService(rules []config.FilterRule, log logger.Logger) (*Service, error) {
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("message_type", cel.IntType),
		cel.Variable("attributes", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	s := &Service{logger: log}
	for _, rule := range rules {
		ast, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Name, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule %q: expression must be boolean, got %s", rule.Name, ast.OutputType())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		s.rules = append(s.rules, compiledRule{name: rule.Name, program: program})
	}

	return s, nil
}

// Blocked reports whether any rule matches ev. A rule that fails to evaluate
// is skipped; filtering never fails an event outright.
func (s *Service) Blocked(ev *event.RawEvent) (bool, string) {
	if len(s.rules) == 0 {
		return false, ""
	}

	attrs := ev.Data
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	input := map[string]interface{}{
		"name":         ev.Name,
		"message_type": int64(ev.MessageType),
		"attributes":   attrs,
	}

	for _, rule := range s.rules {
		out, _, err := rule.program.Eval(input)
		if err != nil {
			s.logger.Warnw("Filter rule evaluation failed",
				"rule", rule.name,
				"error", err,
			)
			continue
		}
		if blocked, ok := out.Value().(bool); ok && blocked {
			return true, rule.name
		}
	}
	return false, ""
}
