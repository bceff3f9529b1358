// Package message implements the line protocol spoken with the agent runtime.
//
// Outbound, a Request is encoded as one JSON object per line. Inbound, each
// line is either a Response, a JSON object tagged by its "type" field, or
// free-form diagnostic text. Decode tells the two apart; lines that are not
// responses are carried as LogEvent values instead of being treated as errors.
package message
