package reference

import "fmt"

// NotFoundError reports an identifier that no reference table could resolve.
type NotFoundError struct {
	Kind  string
	Input interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reference: no %s matching %v", e.Kind, e.Input)
}

func notFound(kind string, input interface{}) error {
	return &NotFoundError{Kind: kind, Input: input}
}
