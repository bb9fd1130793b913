package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound      = errors.New("resource not found")
	ErrStoryNotFound = errors.New("story not found")

	// Ingestion Errors
	ErrEmptySource   = errors.New("source contains no data rows")
	ErrStoryUpsert   = errors.New("failed to upsert story record")
	ErrIngestRunning = errors.New("ingestion already in progress for this story")

	// Session & Traversal Errors
	ErrSessionNotFound  = errors.New("reading session not found")
	ErrSessionTerminal  = errors.New("session is at a terminal node")
	ErrInvalidChoice    = errors.New("choice does not exist on the current node")
	ErrNoCheckOnNode    = errors.New("current node has no dice check")
	ErrUnknownStat      = errors.New("session has no value for the checked stat")
	ErrStoryUnpublished = errors.New("story is not published")

	// Token Errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
)
