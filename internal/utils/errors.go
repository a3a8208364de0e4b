package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by how far it is allowed to propagate.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPersistence
	KindLaunch
	KindDiscovery
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindPersistence:
		return "PersistenceFailure"
	case KindLaunch:
		return "LaunchFailure"
	case KindDiscovery:
		return "DiscoveryFailure"
	case KindDelivery:
		return "DeliveryFailure"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is. A *CustomError matches the sentinel of its Kind.
var (
	ErrNotFound    = &CustomError{Kind: KindNotFound, Message: "not found"}
	ErrPersistence = &CustomError{Kind: KindPersistence, Message: "persistence failure"}
	ErrLaunch      = &CustomError{Kind: KindLaunch, Message: "launch failure"}
	ErrDiscovery   = &CustomError{Kind: KindDiscovery, Message: "discovery failure"}
	ErrDelivery    = &CustomError{Kind: KindDelivery, Message: "delivery failure"}
)

type CustomError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CustomError) Unwrap() error { return e.Err }

// Is reports whether target is a *CustomError of the same Kind.
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus maps the error kind to a response code.
func (e *CustomError) HTTPStatus() int {
	if e.Kind == KindNotFound {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func New(kind Kind, message string) error {
	return &CustomError{
		Kind:    kind,
		Message: message,
	}
}

func Wrap(kind Kind, message string, err error) error {
	return &CustomError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the Kind of the first *CustomError in err's chain.
func KindOf(err error) Kind {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
