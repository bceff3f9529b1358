// Package errors defines error types for the agent bridge.
//
// This package provides structured error types for the failure scenarios of
// the bridge: launching the agent runtime, writing requests to it, and
// draining its output. All error types support error unwrapping and can be
// checked using errors.Is, errors.As, and errors.AsType.
package errors
