package models

// Error codes returned in API error responses.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeStoryNotFound    = "STORY_NOT_FOUND"
	ErrCodeStoryUnpublished = "STORY_UNPUBLISHED"
	ErrCodeEmptySource      = "EMPTY_SOURCE"
	ErrCodeIngestRunning    = "INGEST_IN_PROGRESS"
	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"
	ErrCodeSessionTerminal  = "SESSION_TERMINAL"
	ErrCodeInvalidChoice    = "INVALID_CHOICE"
	ErrCodeNoCheck          = "NO_CHECK_ON_NODE"
	ErrCodeTokenInvalid     = "TOKEN_INVALID"
	ErrCodeTokenExpired     = "TOKEN_EXPIRED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse is the standard API error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
