package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/telekom/account-notifier/pkg/events"
)

// ErrUnknownOperation matches every error returned by ParseOperation.
var ErrUnknownOperation = errors.New("unknown operation")

// UnknownOperationError carries the rejected input. Its message is the one
// shown to clients.
type UnknownOperationError struct {
	Operation string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("Unknown operation: %s. Use CREATE or DELETE", e.Operation)
}

func (e *UnknownOperationError) Is(target error) bool { return target == ErrUnknownOperation }

// Operation is the kind of notification requested through the direct endpoint.
type Operation int

const (
	OperationCreate Operation = iota + 1
	OperationDelete
)

func (o Operation) String() string {
	switch o {
	case OperationCreate:
		return "CREATE"
	case OperationDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("Operation(%d)", int(o))
	}
}

// Kind maps the operation to the event kind whose flow it triggers.
func (o Operation) Kind() events.Kind {
	if o == OperationDelete {
		return events.KindDeleted
	}
	return events.KindCreated
}

// ParseOperation matches s case-insensitively against CREATE and DELETE.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToUpper(s) {
	case "CREATE":
		return OperationCreate, nil
	case "DELETE":
		return OperationDelete, nil
	default:
		return 0, &UnknownOperationError{Operation: s}
	}
}
