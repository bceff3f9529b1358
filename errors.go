package agentbridge

import "github.com/wagiedev/agentbridge/internal/errors"

// Re-export error types from internal package

// RuntimeNotFoundError indicates the agent runtime executable was not found.
type RuntimeNotFoundError = errors.RuntimeNotFoundError

// SpawnError indicates the child process could not be launched.
type SpawnError = errors.SpawnError

// WriteError indicates a request could not be written to the child.
type WriteError = errors.WriteError

// EncodeError indicates a request could not be serialized.
type EncodeError = errors.EncodeError

// ReadError indicates a child output stream failed repeatedly.
type ReadError = errors.ReadError

// BufferOverflowError indicates an output line exceeded the buffer limit.
type BufferOverflowError = errors.BufferOverflowError

// ProcessError indicates the child exited with a failure.
type ProcessError = errors.ProcessError

// BridgeError is the base interface for all bridge errors.
type BridgeError = errors.BridgeError

// Re-export sentinel errors from internal package.
var (
	// ErrAlreadyRunning indicates a spawn was attempted while a child is active.
	ErrAlreadyRunning = errors.ErrAlreadyRunning

	// ErrAgentNotRunning indicates a command was issued without an active child.
	ErrAgentNotRunning = errors.ErrAgentNotRunning

	// ErrChannelClosed indicates the child's input stream has been severed.
	ErrChannelClosed = errors.ErrChannelClosed

	// ErrBridgeClosed indicates the bridge has been closed and cannot be reused.
	ErrBridgeClosed = errors.ErrBridgeClosed

	// ErrMissingConversationID indicates a conversation command lacked its target.
	ErrMissingConversationID = errors.ErrMissingConversationID
)
