package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "chat_relay_go_backend/internal/errors"
	"chat_relay_go_backend/internal/models"

	"github.com/rs/zerolog"
)

// QuotaTopic is the broker topic carrying a user's quota usage after each
// successful reply.
func QuotaTopic(userID string) string {
	return "quota_update_" + userID
}

func QuotaExceededMessage(limit int) string {
	return fmt.Sprintf("Daily limit is exhausted. You can ask a maximum of %d questions per day.", limit)
}

// ChatRelay validates a chat request, checks the user's quota, records the
// exchange in the session transcript and asks the model for a reply.
type ChatRelay struct {
	quota           *QuotaStore
	sessions        *SessionStore
	model           ChatModel
	publisher       Publisher
	upstreamTimeout time.Duration
	log             zerolog.Logger
}

func NewChatRelay(
	quota *QuotaStore,
	sessions *SessionStore,
	model ChatModel,
	publisher Publisher,
	upstreamTimeout time.Duration,
	log zerolog.Logger,
) *ChatRelay {
	return &ChatRelay{
		quota:           quota,
		sessions:        sessions,
		model:           model,
		publisher:       publisher,
		upstreamTimeout: upstreamTimeout,
		log:             log,
	}
}

func (r *ChatRelay) Handle(ctx context.Context, req models.ChatRequest) (models.ChatReply, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.SessionID) == "" {
		return models.ChatReply{}, apperrors.New400Error("User ID and Session ID are required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return models.ChatReply{}, apperrors.New400Error("Message is required")
	}

	lease, err := r.quota.CheckAndConsume(req.UserID, req.Exempt)
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			r.log.Info().
				Str("userID", req.UserID).
				Int("limit", r.quota.Limit()).
				Msg("Daily quota exhausted")
			return models.ChatReply{}, apperrors.New429Error(QuotaExceededMessage(r.quota.Limit()))
		}
		return models.ChatReply{}, apperrors.New500Error(err)
	}
	defer lease.Release()

	// Waiting for the session honours the caller's context. Once the model
	// call starts it is detached, so the reply is recorded even if the
	// caller goes away.
	var reply string
	err = r.sessions.Exchange(ctx, req.SessionID, models.UserTurn(req.Text), func(ctx context.Context, history []models.Turn) (models.Turn, error) {
		ctx = context.WithoutCancel(ctx)
		if r.upstreamTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.upstreamTimeout)
			defer cancel()
		}

		resp, err := r.model.GenerateChat(ctx, turnsToContents(history))
		if err != nil {
			return models.Turn{}, apperrors.NewUpstreamError("Failed to get a response from the model", err)
		}
		text, err := replyText(resp)
		if err != nil {
			return models.Turn{}, apperrors.NewUpstreamError("No response from AI", err)
		}
		r.log.Debug().
			Str("sessionID", req.SessionID).
			Int("historyTurns", len(history)).
			Int("candidates", len(resp.Candidates)).
			Int("replyLength", len(text)).
			Msg("Model response received")
		reply = text
		return models.ModelTurn(text), nil
	})
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		r.log.Debug().
			Str("userID", req.UserID).
			Str("sessionID", req.SessionID).
			Msg("Request abandoned while waiting for session")
		return models.ChatReply{}, apperrors.New500Error(err)
	}
	if err != nil {
		customErr := apperrors.AsCustomError(err)
		r.log.Error().
			Err(customErr.Internal).
			Str("userID", req.UserID).
			Str("sessionID", req.SessionID).
			Msg(customErr.Message)
		return models.ChatReply{}, customErr
	}

	lease.Commit()
	if r.publisher != nil {
		r.publisher.Publish(QuotaTopic(req.UserID), r.quota.Usage(req.UserID))
	}
	return models.ChatReply{Text: reply}, nil
}

// Usage exposes the quota snapshot for a user.
func (r *ChatRelay) Usage(userID string) models.QuotaUsage {
	return r.quota.Usage(userID)
}

// Transcript exposes the recorded history of a session.
func (r *ChatRelay) Transcript(sessionID string) []models.Turn {
	return r.sessions.Transcript(sessionID)
}
