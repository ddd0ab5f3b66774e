package models

import "errors"

// Pipeline errors. Callers match them with errors.Is; the wrapped message
// carries the detail.
var (
	// ErrNotFound indicates a missing source document or index data.
	ErrNotFound = errors.New("not found")

	// ErrUninitialized indicates a request reached a pipeline that did not
	// start successfully.
	ErrUninitialized = errors.New("not initialized")

	// ErrUpstream indicates an embedding or language model failure,
	// including missing credentials.
	ErrUpstream = errors.New("upstream service error")

	// ErrRemoteCall indicates the assistant could not reach the
	// investigation endpoint.
	ErrRemoteCall = errors.New("remote call failed")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbedderMismatch indicates a persisted index was built with a
	// different embedding function than the one configured.
	ErrEmbedderMismatch = errors.New("embedder mismatch")
)
