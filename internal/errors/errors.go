// Package errors defines the structured error kinds of spec §7:
// InputValidation, GraphIntegrity, Cryptography, and Internal.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode identifies one of the named error conditions of spec §7.
type ErrorCode string

const (
	// InputValidation
	UnknownPeer        ErrorCode = "UNKNOWN_PEER"
	InvalidPeerState   ErrorCode = "INVALID_PEER_STATE"
	InvalidSelfState   ErrorCode = "INVALID_SELF_STATE"
	DuplicateVote      ErrorCode = "DUPLICATE_VOTE"
	PrematureGossip    ErrorCode = "PREMATURE_GOSSIP"
	InvalidMessage     ErrorCode = "INVALID_MESSAGE"

	// GraphIntegrity
	UnknownSelfParent  ErrorCode = "UNKNOWN_SELF_PARENT"
	UnknownOtherParent ErrorCode = "UNKNOWN_OTHER_PARENT"
	InvalidEvent       ErrorCode = "INVALID_EVENT"
	SignatureFailure   ErrorCode = "SIGNATURE_FAILURE"
	MismatchedPayload  ErrorCode = "MISMATCHED_PAYLOAD"
	MissingVotes       ErrorCode = "MISSING_VOTES"
	UnknownPayload     ErrorCode = "UNKNOWN_PAYLOAD"

	// Cryptography
	DkgError  ErrorCode = "DKG_ERROR"
	DkgMisuse ErrorCode = "DKG_MISUSE"
	DkgCacheMiss ErrorCode = "DKG_CACHE_MISS"

	// Internal
	Logic ErrorCode = "LOGIC"

	// Auth (ops REST surface, not part of spec §7's engine-facing
	// error families)
	Unauthorized ErrorCode = "UNAUTHORIZED"
	Forbidden    ErrorCode = "FORBIDDEN"
	RateLimited  ErrorCode = "RATE_LIMITED"
)

// Kind groups error codes into the four families spec §7 names.
type Kind string

const (
	KindInputValidation Kind = "input_validation"
	KindGraphIntegrity  Kind = "graph_integrity"
	KindCryptography    Kind = "cryptography"
	KindInternal        Kind = "internal"
	KindAuth            Kind = "auth"
)

var codeKind = map[ErrorCode]Kind{
	UnknownPeer:      KindInputValidation,
	InvalidPeerState: KindInputValidation,
	InvalidSelfState: KindInputValidation,
	DuplicateVote:    KindInputValidation,
	PrematureGossip:  KindInputValidation,
	InvalidMessage:   KindInputValidation,

	UnknownSelfParent:  KindGraphIntegrity,
	UnknownOtherParent: KindGraphIntegrity,
	InvalidEvent:       KindGraphIntegrity,
	SignatureFailure:   KindGraphIntegrity,
	MismatchedPayload:  KindGraphIntegrity,
	MissingVotes:       KindGraphIntegrity,
	UnknownPayload:     KindGraphIntegrity,

	DkgError:     KindCryptography,
	DkgMisuse:    KindCryptography,
	DkgCacheMiss: KindCryptography,

	Logic: KindInternal,

	Unauthorized: KindAuth,
	Forbidden:    KindAuth,
	RateLimited:  KindAuth,
}

// Error is the structured error type every public engine operation
// returns on failure (spec §7).
type Error struct {
	Code      ErrorCode              `json:"code"`
	Kind      Kind                   `json:"kind"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to Cause.
func (e *Error) Unwrap() error { return e.Cause }

// New builds a structured error for code with message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Kind: codeKind[code], Message: message, Timestamp: time.Now()}
}

// Wrap builds a structured error for code, preserving cause for
// errors.Is/As and logging.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Kind: codeKind[code], Message: message, Cause: cause, Timestamp: time.Now()}
}

// WithField attaches a structured field (offending peer, event hash,
// round) to the error for logging.
func (e *Error) WithField(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// Is reports whether err is a structured Error of the given code,
// matching the stdlib errors.Is protocol.
func Is(err error, code ErrorCode) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}

// IsBenign reports whether err is one handle_request/handle_response
// should silently drop per spec §7 (UnknownPeer, InvalidPeerState).
func IsBenign(err error) bool {
	return Is(err, UnknownPeer) || Is(err, InvalidPeerState)
}
