package message

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

const (
	// ErrorField is the reserved field that collects write errors under
	// PolicyDropWithError. Multiple errors are separated by newlines.
	ErrorField = "_typemappingerror"

	// TimestampField is the conventional timestamp field name.
	TimestampField = "@timestamp"

	errorSeparator = "\n"
)

var (
	// ErrNotFound is returned by GetAs when the field is absent.
	ErrNotFound = errors.New("field not found")
	// ErrTypeMismatch is returned when a value does not match the
	// constrained or requested type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnknownField is returned under PolicyReject when a field has no
	// entry in the type table.
	ErrUnknownField = errors.New("unknown field")
)

// Message is a keyed record with per-field type constraints. The type table
// and policy are fixed at construction; field values change only through
// Put/Set/Remove. A message must not be written to from more than one
// goroutine at a time.
type Message struct {
	fields       map[string]interface{}
	types        map[string]FieldType
	policy       Policy
	destinations []Destination
}

// New creates an empty message without type constraints, accepting any
// field.
func New() *Message {
	return NewWithPolicy(PolicyAccept)
}

// NewWithPolicy creates an empty message without type constraints, using the
// given policy for writes.
func NewWithPolicy(policy Policy) *Message {
	return WithTypes(nil, policy)
}

// WithTypes creates an empty message constrained by the given type table.
// The table is copied; later changes to the argument do not affect the
// message.
func WithTypes(types map[string]FieldType, policy Policy) *Message {
	copied := make(map[string]FieldType, len(types))
	for k, v := range types {
		copied[k] = v
	}
	return &Message{
		fields: make(map[string]interface{}),
		types:  copied,
		policy: policy,
	}
}

// Set writes a field honouring the type table and policy. Under
// PolicyReject the write fails with ErrUnknownField or ErrTypeMismatch;
// under the remaining policies mismatched values are dropped and recorded in
// the reserved error field, and unknown fields are handled per policy.
func (m *Message) Set(field string, value interface{}) error {
	expected, constrained := m.types[field]
	if !constrained {
		switch m.policy {
		case PolicyAccept:
			m.fields[field] = value
		case PolicyStringify:
			m.fields[field] = fmt.Sprintf("%v", value)
		case PolicyDropWithError:
			m.addError(fmt.Sprintf("failed to insert value %v under field %s: no type mapping found", value, field))
		case PolicyReject:
			return fmt.Errorf("field %s: %w", field, ErrUnknownField)
		}
		return nil
	}

	converted, ok := expected.Convert(value)
	if !ok {
		if m.policy == PolicyReject {
			return fmt.Errorf("field %s expects %s, got %T: %w", field, expected, value, ErrTypeMismatch)
		}
		m.addError(fmt.Sprintf("type mismatch when inserting value %v with type %T under field %s with required type %s",
			value, value, field, expected))
		return nil
	}
	m.fields[field] = converted
	return nil
}

// Put writes a field like Set and returns the message for chaining. Errors
// raised under PolicyReject are discarded; callers that need them use Set.
func (m *Message) Put(field string, value interface{}) *Message {
	_ = m.Set(field, value)
	return m
}

// PutAll writes every entry of the given map, subject to the same rules as
// Put.
func (m *Message) PutAll(values map[string]interface{}) *Message {
	for field, value := range values {
		_ = m.Set(field, value)
	}
	return m
}

// PutTimestamp sets the conventional timestamp field.
func (m *Message) PutTimestamp(t time.Time) *Message {
	return m.Put(TimestampField, t)
}

// Timestamp returns the conventional timestamp field, if present.
func (m *Message) Timestamp() (time.Time, bool) {
	return m.OptionalTime(TimestampField)
}

func (m *Message) addError(msg string) {
	if existing, ok := m.fields[ErrorField].(string); ok {
		m.fields[ErrorField] = existing + errorSeparator + msg
	} else {
		m.fields[ErrorField] = msg
	}
}

// Remove deletes a field and returns the message for chaining.
func (m *Message) Remove(field string) *Message {
	delete(m.fields, field)
	return m
}

// RemoveAll deletes every listed field.
func (m *Message) RemoveAll(fields ...string) *Message {
	for _, field := range fields {
		delete(m.fields, field)
	}
	return m
}

// Contains reports whether the field is present.
func (m *Message) Contains(field string) bool {
	_, ok := m.fields[field]
	return ok
}

// Len returns the number of fields present.
func (m *Message) Len() int {
	return len(m.fields)
}

// Optional returns the raw value of a field, if present.
func (m *Message) Optional(field string) (interface{}, bool) {
	v, ok := m.fields[field]
	return v, ok
}

// OptionalString returns the field as a string if present and compatible.
func (m *Message) OptionalString(field string) (string, bool) {
	if v, ok := m.fields[field].(string); ok {
		return v, true
	}
	return "", false
}

// OptionalInt returns the field as an int64 if present and compatible.
func (m *Message) OptionalInt(field string) (int64, bool) {
	switch v := m.fields[field].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	}
	return 0, false
}

// OptionalFloat returns the field as a float64 if present and compatible.
func (m *Message) OptionalFloat(field string) (float64, bool) {
	switch v := m.fields[field].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	return 0, false
}

// OptionalBool returns the field as a bool if present and compatible.
func (m *Message) OptionalBool(field string) (bool, bool) {
	if v, ok := m.fields[field].(bool); ok {
		return v, true
	}
	return false, false
}

// OptionalTime returns the field as a time.Time if present and compatible.
func (m *Message) OptionalTime(field string) (time.Time, bool) {
	if v, ok := m.fields[field].(time.Time); ok {
		return v, true
	}
	return time.Time{}, false
}

// GetAs returns the field converted to the requested type, failing with
// ErrNotFound when absent and ErrTypeMismatch when incompatible.
func (m *Message) GetAs(field string, expected FieldType) (interface{}, error) {
	value, ok := m.fields[field]
	if !ok {
		return nil, fmt.Errorf("field %s: %w", field, ErrNotFound)
	}
	converted, ok := expected.Convert(value)
	if !ok {
		return nil, fmt.Errorf("field %s holds %T, requested %s: %w", field, value, expected, ErrTypeMismatch)
	}
	return converted, nil
}

// Fields returns a copy of the current field values.
func (m *Message) Fields() map[string]interface{} {
	copied := make(map[string]interface{}, len(m.fields))
	for k, v := range m.fields {
		copied[k] = v
	}
	return copied
}

// TypeTable returns a copy of the type constraints applied to this message.
func (m *Message) TypeTable() map[string]FieldType {
	copied := make(map[string]FieldType, len(m.types))
	for k, v := range m.types {
		copied[k] = v
	}
	return copied
}

// Policy returns the write policy of this message.
func (m *Message) Policy() Policy {
	return m.policy
}

// AddDestination appends a logical destination to this message.
func (m *Message) AddDestination(d Destination) *Message {
	m.destinations = append(m.destinations, d)
	return m
}

// AddDestinations appends the given destinations in order.
func (m *Message) AddDestinations(ds ...Destination) *Message {
	m.destinations = append(m.destinations, ds...)
	return m
}

// Destinations returns a copy of the destinations declared on this message.
// The slice can be empty.
func (m *Message) Destinations() []Destination {
	copied := make([]Destination, len(m.destinations))
	copy(copied, m.destinations)
	return copied
}

// Copy duplicates the field map and destination list, so writes and
// removals on the copy never show through to the original. Field values
// themselves are shared, not cloned. The type table and policy carry over.
func (m *Message) Copy() *Message {
	copied := &Message{
		fields:       make(map[string]interface{}, len(m.fields)),
		types:        m.types,
		policy:       m.policy,
		destinations: make([]Destination, len(m.destinations)),
	}
	for k, v := range m.fields {
		copied.fields[k] = v
	}
	copy(copied.destinations, m.destinations)
	return copied
}

// Equal compares two messages by field values, type table and policy rather
// than identity.
func (m *Message) Equal(other *Message) bool {
	if m == other {
		return true
	}
	if other == nil {
		return false
	}
	return m.policy == other.policy &&
		reflect.DeepEqual(m.fields, other.fields) &&
		reflect.DeepEqual(m.types, other.types)
}

func (m *Message) String() string {
	return fmt.Sprintf("[%v, %v, %s]", m.fields, m.types, m.policy)
}
