// Package model defines the backend contract the response coordinator
// generates replies through.
package model

import "context"

type Message struct {
	Role    string
	Content string
}

// Stream yields the reply as ordered text fragments. Recv returns io.EOF once
// the backend signals completion; a stream is finite and not restartable.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type Backend interface {
	// Generate starts a reply for the given prior history plus the new user
	// message. Fragments must be delivered in generation order.
	Generate(ctx context.Context, history []Message, next Message) (Stream, error)

	// Embed returns a vector for the given text, used for memory recall.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name identifies the generation model, recorded on persisted messages.
	Name() string
}
