package services_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	apperrors "chat_relay_go_backend/internal/errors"
	"chat_relay_go_backend/internal/models"
	"chat_relay_go_backend/internal/services"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type relayFixture struct {
	relay     *services.ChatRelay
	quota     *services.QuotaStore
	sessions  *services.SessionStore
	model     *MockChatModel
	publisher *MockPublisher
}

func newRelayFixture(t *testing.T, limit int) *relayFixture {
	t.Helper()
	f := &relayFixture{
		quota:     services.NewQuotaStore(limit, 0),
		sessions:  services.NewSessionStore(zerolog.Nop(), 0),
		model:     new(MockChatModel),
		publisher: new(MockPublisher),
	}
	t.Cleanup(f.quota.Close)
	t.Cleanup(f.sessions.Close)
	f.relay = services.NewChatRelay(f.quota, f.sessions, f.model, f.publisher, 0, zerolog.Nop())
	return f
}

func request(text string) models.ChatRequest {
	return models.ChatRequest{Text: text, UserID: "user_1", SessionID: "session_1"}
}

func requireCustomError(t *testing.T, err error) *apperrors.CustomError {
	t.Helper()
	var customErr *apperrors.CustomError
	require.True(t, errors.As(err, &customErr), "expected *CustomError, got %v", err)
	return customErr
}

func TestChatRelaySuccess(t *testing.T) {
	f := newRelayFixture(t, 50)
	f.model.On("GenerateChat", mock.Anything, mock.Anything).Return(textResponse("4"), nil).Once()
	f.publisher.On("Publish", "quota_update_user_1", models.QuotaUsage{
		UserID:    "user_1",
		Date:      f.quota.Usage("user_1").Date,
		Used:      1,
		Limit:     50,
		Remaining: 49,
	}).Once()

	reply, err := f.relay.Handle(context.Background(), request("What is 2+2?"))
	require.NoError(t, err)
	assert.Equal(t, "4", reply.Text)

	assert.Equal(t, []models.Turn{models.UserTurn("What is 2+2?"), models.ModelTurn("4")}, f.relay.Transcript("session_1"))
	assert.Equal(t, 1, f.relay.Usage("user_1").Used)
	f.model.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestChatRelaySendsFullHistory(t *testing.T) {
	f := newRelayFixture(t, 50)
	f.publisher.On("Publish", mock.Anything, mock.Anything)

	var second []*genai.Content
	f.model.On("GenerateChat", mock.Anything, mock.Anything).Return(textResponse("4"), nil).Once()
	f.model.On("GenerateChat", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { second = args.Get(1).([]*genai.Content) }).
		Return(textResponse("6"), nil).Once()

	_, err := f.relay.Handle(context.Background(), request("What is 2+2?"))
	require.NoError(t, err)
	_, err = f.relay.Handle(context.Background(), request("And 3+3?"))
	require.NoError(t, err)

	require.Len(t, second, 3)
	assert.Equal(t, "user", second[0].Role)
	assert.Equal(t, "model", second[1].Role)
	assert.Equal(t, "user", second[2].Role)
	assert.Equal(t, genai.Text("And 3+3?"), second[2].Parts[0])
	assert.Len(t, f.relay.Transcript("session_1"), 4)
}

func TestChatRelayQuotaExhausted(t *testing.T) {
	const limit = 50
	f := newRelayFixture(t, limit)
	f.publisher.On("Publish", mock.Anything, mock.Anything)
	f.model.On("GenerateChat", mock.Anything, mock.Anything).Return(textResponse("ok"), nil).Times(limit)

	for i := 0; i < limit; i++ {
		_, err := f.relay.Handle(context.Background(), request("hello"))
		require.NoError(t, err)
	}

	_, err := f.relay.Handle(context.Background(), request("one more"))
	customErr := requireCustomError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, customErr.StatusCode)
	assert.Equal(t, apperrors.ErrorTypeQuotaExceeded, customErr.Type)
	assert.Contains(t, customErr.Message, "50")

	f.model.AssertNumberOfCalls(t, "GenerateChat", limit)
	assert.Len(t, f.relay.Transcript("session_1"), 2*limit, "a denied message is not recorded")
	assert.Equal(t, limit, f.relay.Usage("user_1").Used)
}

func TestChatRelayExemptRequestsSkipQuota(t *testing.T) {
	f := newRelayFixture(t, 1)
	f.publisher.On("Publish", mock.Anything, mock.Anything)
	f.model.On("GenerateChat", mock.Anything, mock.Anything).Return(textResponse("ok"), nil)

	req := request("hello")
	req.Exempt = true
	for i := 0; i < 3; i++ {
		_, err := f.relay.Handle(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, f.relay.Usage("user_1").Used)

	_, err := f.relay.Handle(context.Background(), request("counted"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.relay.Usage("user_1").Used)
}

func TestChatRelayEmptyCandidates(t *testing.T) {
	f := newRelayFixture(t, 50)
	f.model.On("GenerateChat", mock.Anything, mock.Anything).
		Return(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{}}, nil).Once()

	_, err := f.relay.Handle(context.Background(), request("Hello"))
	customErr := requireCustomError(t, err)
	assert.Equal(t, http.StatusInternalServerError, customErr.StatusCode)
	assert.Equal(t, "No response from AI", customErr.Message)
	assert.ErrorIs(t, err, services.ErrNoCandidates)

	assert.Equal(t, []models.Turn{models.UserTurn("Hello")}, f.relay.Transcript("session_1"))
	assert.Equal(t, 0, f.relay.Usage("user_1").Used, "failed replies do not count")
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestChatRelayUpstreamFailure(t *testing.T) {
	f := newRelayFixture(t, 50)
	f.model.On("GenerateChat", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	_, err := f.relay.Handle(context.Background(), request("Hello"))
	customErr := requireCustomError(t, err)
	assert.Equal(t, apperrors.ErrorTypeUpstream, customErr.Type)
	assert.Equal(t, http.StatusInternalServerError, customErr.StatusCode)
	assert.Equal(t, 0, f.relay.Usage("user_1").Used)
	assert.Len(t, f.relay.Transcript("session_1"), 1)
}

func TestChatRelayValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     models.ChatRequest
		message string
	}{
		{"missing user", models.ChatRequest{Text: "hi", SessionID: "session_1"}, "User ID and Session ID are required"},
		{"missing session", models.ChatRequest{Text: "hi", UserID: "user_1"}, "User ID and Session ID are required"},
		{"blank message", models.ChatRequest{Text: "   ", UserID: "user_1", SessionID: "session_1"}, "Message is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRelayFixture(t, 50)

			_, err := f.relay.Handle(context.Background(), tt.req)
			customErr := requireCustomError(t, err)
			assert.Equal(t, http.StatusBadRequest, customErr.StatusCode)
			assert.Equal(t, tt.message, customErr.Message)

			f.model.AssertNotCalled(t, "GenerateChat", mock.Anything, mock.Anything)
			assert.Empty(t, f.relay.Transcript("session_1"))
			assert.Equal(t, 0, f.quota.Len())
		})
	}
}

func TestChatRelayIgnoresCallerCancellation(t *testing.T) {
	f := newRelayFixture(t, 50)
	f.publisher.On("Publish", mock.Anything, mock.Anything)

	ctx, cancel := context.WithCancel(context.Background())
	f.model.On("GenerateChat", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Return(textResponse("still here"), nil).Once()

	reply, err := f.relay.Handle(ctx, request("Hello"))
	require.NoError(t, err)
	assert.Equal(t, "still here", reply.Text)
	assert.Len(t, f.relay.Transcript("session_1"), 2)
}

func TestChatRelayWaitingRequestHonoursCallerContext(t *testing.T) {
	f := newRelayFixture(t, 2)
	f.publisher.On("Publish", mock.Anything, mock.Anything)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	f.model.On("GenerateChat", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-unblock
		}).
		Return(textResponse("slow"), nil).Once()
	f.model.On("GenerateChat", mock.Anything, mock.Anything).Return(textResponse("fast"), nil)

	slowDone := make(chan error, 1)
	go func() {
		_, err := f.relay.Handle(context.Background(), request("first"))
		slowDone <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	waitDone := make(chan error, 1)
	go func() {
		_, err := f.relay.Handle(ctx, request("second"))
		waitDone <- err
	}()

	select {
	case err := <-waitDone:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("request waiting on a busy session ignored its cancelled context")
	}

	other := request("third")
	other.SessionID = "session_2"
	reply, err := f.relay.Handle(context.Background(), other)
	require.NoError(t, err, "an abandoned wait gives its quota slot back")
	assert.Equal(t, "fast", reply.Text)

	close(unblock)
	require.NoError(t, <-slowDone)
	assert.Equal(t, 2, f.relay.Usage("user_1").Used)
	assert.Equal(t, []models.Turn{models.UserTurn("first"), models.ModelTurn("slow")}, f.relay.Transcript("session_1"),
		"the abandoned message is never recorded")
}
