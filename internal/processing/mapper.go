package processing

import (
	"fmt"
	"regexp"

	"logalike/pkg/message"
	"logalike/pkg/pipeline"
)

// Predicate decides whether a message matches a condition.
type Predicate func(*message.Message) bool

// MapperProcessor lifts a Mapper into a pipeline processor.
func MapperProcessor(mapper Mapper) pipeline.Processor {
	return pipeline.Mapper(mapper)
}

// FilterProcessor lifts a Predicate into a pipeline processor that drops
// non-matching messages.
func FilterProcessor(predicate Predicate) pipeline.Processor {
	return pipeline.Filter(predicate)
}

// Conditional applies the action only to messages matching the predicate;
// everything else passes unchanged.
func Conditional(predicate Predicate, action Mapper) Mapper {
	return func(m *message.Message) *message.Message {
		if predicate(m) {
			return action(m)
		}
		return m
	}
}

// RegexFind applies the action when the given field exists and the regex
// matches anywhere in its string value.
func RegexFind(field, expr string, action Mapper) (Mapper, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling regex %q: %w", expr, err)
	}
	return Conditional(func(m *message.Message) bool {
		value, ok := m.OptionalString(field)
		return ok && re.MatchString(value)
	}, action), nil
}

// RegexMatch applies the action when the given field exists and the regex
// matches its entire string value.
func RegexMatch(field, expr string, action Mapper) (Mapper, error) {
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("compiling regex %q: %w", expr, err)
	}
	return Conditional(func(m *message.Message) bool {
		value, ok := m.OptionalString(field)
		return ok && re.MatchString(value)
	}, action), nil
}
