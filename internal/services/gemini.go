package services

import (
	"context"
	"errors"
	"strings"

	"chat_relay_go_backend/internal/models"

	"github.com/google/generative-ai-go/genai"
)

const (
	DefaultModelName       = "gemini-2.5-flash-lite"
	DefaultMaxOutputTokens = 1300 // roughly 1000 words

	SystemInstruction = "You are a helpful assistant. You must answer ONLY in plain text. " +
		"Do NOT use markdown formatting. Keep your answers concise and under 1000 words. " +
		"Refuse to answer anything other than the user's question."
)

var (
	ErrNoCandidates   = errors.New("response has no candidates")
	ErrEmptyCandidate = errors.New("first candidate has no text")
)

// GeminiChatModel sends transcripts to a Gemini model configured with the
// relay's system instruction and output ceiling.
type GeminiChatModel struct {
	model *genai.GenerativeModel
}

func NewGeminiChatModel(client *genai.Client, modelName string, maxOutputTokens int32) *GeminiChatModel {
	if modelName == "" {
		modelName = DefaultModelName
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = DefaultMaxOutputTokens
	}
	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction)},
	}
	model.SetMaxOutputTokens(maxOutputTokens)
	return &GeminiChatModel{model: model}
}

func (g *GeminiChatModel) GenerateChat(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	if len(contents) == 0 {
		return nil, errors.New("conversation is empty")
	}
	// A fresh session per call: the transcript lives in SessionStore, not
	// in the SDK's chat history.
	session := g.model.StartChat()
	session.History = append([]*genai.Content(nil), contents[:len(contents)-1]...)
	return session.SendMessage(ctx, contents[len(contents)-1].Parts...)
}

func turnsToContents(turns []models.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, &genai.Content{
			Role:  string(t.Role),
			Parts: []genai.Part{genai.Text(t.Text)},
		})
	}
	return contents
}

// replyText extracts the text of the first candidate.
func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return "", ErrEmptyCandidate
	}
	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		switch part := p.(type) {
		case genai.Text:
			sb.WriteString(string(part))
		case *genai.Text:
			sb.WriteString(string(*part))
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyCandidate
	}
	return sb.String(), nil
}
