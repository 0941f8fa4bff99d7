package services

import (
	"context"

	"github.com/google/generative-ai-go/genai"
)

// ChatModel sends a conversation to the generative model. The last element
// of contents is the message being answered.
type ChatModel interface {
	GenerateChat(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error)
}

type Publisher interface {
	Publish(topic string, msg interface{})
}
