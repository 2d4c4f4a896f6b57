package aggregator

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindTransport
	KindProtocol
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	default:
		return "internal"
	}
}

// HTTPStatus is the status code the HTTP surface answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTransport, KindProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

const (
	MsgIDRequired       = "Dashboard ID is required"
	MsgInvalidID        = "Invalid dashboard ID format"
	MsgNotFound         = "Dashboard not found"
	MsgHostMissing      = "Dashboard host is not configured"
	MsgTokenMissing     = "Dashboard access token is not set. Please configure it in the dashboard settings."
	MsgUnreachable      = "Unable to connect to Home Assistant. Please check the Host URL."
	msgAuthFailedPrefix = "Authentication failed: "
)

// Error is the failure shape of every Service method. Message is meant for
// end users; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func validationErr(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}
