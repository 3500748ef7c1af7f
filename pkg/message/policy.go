package message

import "fmt"

// Policy decides what happens when a value is written to a field that has no
// entry in the type table, or whose value does not match the constrained
// type.
type Policy int

const (
	// PolicyAccept stores unknown fields as opaque values.
	PolicyAccept Policy = iota
	// PolicyStringify stores unknown fields as their textual form.
	PolicyStringify
	// PolicyDropWithError drops the value and appends a human-readable
	// error to the reserved error field.
	PolicyDropWithError
	// PolicyReject fails the write with ErrUnknownField or ErrTypeMismatch.
	PolicyReject
)

func (p Policy) String() string {
	switch p {
	case PolicyAccept:
		return "accept"
	case PolicyStringify:
		return "stringify"
	case PolicyDropWithError:
		return "drop"
	case PolicyReject:
		return "reject"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParsePolicy converts a textual policy name into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "accept":
		return PolicyAccept, nil
	case "stringify":
		return PolicyStringify, nil
	case "drop":
		return PolicyDropWithError, nil
	case "reject":
		return PolicyReject, nil
	default:
		return 0, fmt.Errorf("unknown type policy %q", s)
	}
}
