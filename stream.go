package agentbridge

import (
	"iter"
)

// RequestsFromSlice creates a request sequence from a slice, for SendAll.
func RequestsFromSlice(reqs []Request) iter.Seq[Request] {
	return func(yield func(Request) bool) {
		for _, req := range reqs {
			if !yield(req) {
				return
			}
		}
	}
}

// RequestsFromChannel creates a request sequence from a channel. The
// sequence ends when the channel is closed.
func RequestsFromChannel(ch <-chan Request) iter.Seq[Request] {
	return func(yield func(Request) bool) {
		for req := range ch {
			if !yield(req) {
				return
			}
		}
	}
}

// NewUserMessage creates a user_message request.
func NewUserMessage(id, text string) Request {
	return Request{
		ID:      id,
		Kind:    KindUserMessage,
		Message: &text,
	}
}

// NewCommand creates a request of the given kind with no payload.
func NewCommand(id string, kind Kind) Request {
	return Request{ID: id, Kind: kind}
}
