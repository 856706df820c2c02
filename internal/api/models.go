// Package api defines the wire shapes of the node's ops REST surface.
package api

// Response is the envelope every REST endpoint replies with,
// following the teacher's internal/api/rest/handlers.go APIResponse
// shape (success flag + data xor error), generalized from the
// teacher's anomaly-detection payloads to consensus status/block/vote
// payloads.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the error half of Response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Ok wraps data in a successful Response.
func Ok(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// Fail wraps a code/message pair in a failed Response.
func Fail(code, message string) Response {
	return Response{Success: false, Error: &ErrorBody{Code: code, Message: message}}
}

// FailWithDetails is Fail with an additional details string attached.
func FailWithDetails(code, message, details string) Response {
	return Response{Success: false, Error: &ErrorBody{Code: code, Message: message, Details: details}}
}

// VoteAddRequest asks the node to cast a vote to admit a new peer.
type VoteAddRequest struct {
	PeerID    string `json:"peer_id" binding:"required"`
	PublicKey string `json:"public_key" binding:"required"` // base64 raw identity key bytes
}

// VoteRemoveRequest asks the node to cast a vote to strip a peer's
// voting rights.
type VoteRemoveRequest struct {
	PeerID string `json:"peer_id" binding:"required"`
}

// LoginRequest authenticates an operator against the node's
// configured credential and issues a bearer token.
type LoginRequest struct {
	OperatorID string `json:"operator_id" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}
