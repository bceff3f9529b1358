package errors

import (
	"errors"
	"fmt"
)

// BridgeError is the base interface for all bridge errors.
type BridgeError interface {
	error
	IsBridgeError() bool
}

// Compile-time verification that all error types implement BridgeError.
var (
	_ BridgeError = (*RuntimeNotFoundError)(nil)
	_ BridgeError = (*SpawnError)(nil)
	_ BridgeError = (*WriteError)(nil)
	_ BridgeError = (*EncodeError)(nil)
	_ BridgeError = (*ReadError)(nil)
	_ BridgeError = (*BufferOverflowError)(nil)
	_ BridgeError = (*ProcessError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrAlreadyRunning indicates a spawn was attempted while a child is active.
	ErrAlreadyRunning = errors.New("agent already running")

	// ErrAgentNotRunning indicates a command was issued without an active child.
	ErrAgentNotRunning = errors.New("agent not running")

	// ErrChannelClosed indicates the child's input stream has been severed,
	// almost always because the child exited. It is sticky: once returned,
	// every later send on the same channel returns it too.
	ErrChannelClosed = errors.New("request channel closed")

	// ErrBridgeClosed indicates the bridge has been closed and cannot be reused.
	ErrBridgeClosed = errors.New("bridge closed: bridges are single-use, create a new one with NewBridge()")

	// ErrMissingConversationID indicates a conversation command was issued
	// without the conversation it targets.
	ErrMissingConversationID = errors.New("conversation id required")
)

// RuntimeNotFoundError indicates the agent runtime executable was not found.
type RuntimeNotFoundError struct {
	Executable    string
	SearchedPaths []string
}

func (e *RuntimeNotFoundError) Error() string {
	return fmt.Sprintf("agent runtime %q not found in: %v", e.Executable, e.SearchedPaths)
}

// IsBridgeError implements BridgeError.
func (e *RuntimeNotFoundError) IsBridgeError() bool { return true }

// SpawnError indicates the child process could not be launched.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn agent: %v", e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *SpawnError) IsBridgeError() bool { return true }

// WriteError indicates an I/O fault, other than a severed pipe, while
// writing a request to the child.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("failed to write request: %v", e.Err)
	}

	return fmt.Sprintf("failed to write request (%s): %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *WriteError) IsBridgeError() bool { return true }

// EncodeError indicates a request could not be serialized.
type EncodeError struct {
	RequestID string
	Err       error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode request %q: %v", e.RequestID, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *EncodeError) IsBridgeError() bool { return true }

// ReadError indicates a stream pump gave up after repeated read faults.
type ReadError struct {
	Source   string
	Attempts int
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s read failed after %d attempts: %v", e.Source, e.Attempts, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ReadError) IsBridgeError() bool { return true }

// BufferOverflowError indicates unterminated output exceeded the frame
// buffer ceiling and was discarded.
type BufferOverflowError struct {
	Discarded int
	Limit     int
}

func (e *BufferOverflowError) Error() string {
	return fmt.Sprintf("frame buffer overflow: discarded %d bytes (limit %d)", e.Discarded, e.Limit)
}

// IsBridgeError implements BridgeError.
func (e *BufferOverflowError) IsBridgeError() bool { return true }

// ProcessError indicates the agent runtime exited unsuccessfully.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("agent runtime exited with code %d", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}

	return msg
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ProcessError) IsBridgeError() bool { return true }
