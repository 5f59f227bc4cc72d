package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/model"
)

// ChatStore persists the per-attempt chat log.
type ChatStore interface {
	Append(ctx context.Context, m *model.ChatMessage) error
	// ListByAttempt returns the full ordered log. When markReadFor is
	// non-empty, messages sent by the opposite party are flagged read.
	ListByAttempt(ctx context.Context, attemptID uuid.UUID, markReadFor model.ChatSender) ([]model.ChatMessage, error)
	CountUnread(ctx context.Context, attemptID uuid.UUID, sender model.ChatSender) (int, error)
	SetBlocked(ctx context.Context, attemptID uuid.UUID, blocked bool) error
}

// ChatView is what GetMessages returns: the log plus the gate state and the
// unread count derived for the viewer.
type ChatView struct {
	Messages    []model.ChatMessage `json:"messages"`
	ChatBlocked bool                `json:"chat_blocked"`
	UnreadCount int                 `json:"unread_count"`
}

// ChatService is the bidirectional message channel scoped to one attempt.
// The block gate is one-directional: it stops students, never admins.
type ChatService struct {
	chats    ChatStore
	attempts AttemptStore
	log      zerolog.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(chats ChatStore, attempts AttemptStore, log zerolog.Logger) *ChatService {
	return &ChatService{
		chats:    chats,
		attempts: attempts,
		log:      log.With().Str("component", "chat_service").Logger(),
	}
}

// Send appends a message to the attempt's chat log. Students are rejected
// with ErrForbidden while the attempt's chat is blocked.
func (s *ChatService) Send(ctx context.Context, attemptID uuid.UUID, sender model.ChatSender, text string) (*model.ChatMessage, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	if sender == model.ChatSenderStudent && attempt.ChatBlocked {
		return nil, ErrForbidden
	}

	msg := &model.ChatMessage{
		AttemptID: attemptID.String(),
		Sender:    sender,
		Message:   text,
	}
	if err := s.chats.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Get returns the ordered chat log, the block flag, and how many messages
// from the opposite party the viewer has not read yet. markRead flags those
// messages read as a side effect.
func (s *ChatService) Get(ctx context.Context, attemptID uuid.UUID, viewer model.ChatSender, markRead bool) (*ChatView, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	other := model.ChatSenderAdmin
	if viewer == model.ChatSenderAdmin {
		other = model.ChatSenderStudent
	}

	unread, err := s.chats.CountUnread(ctx, attemptID, other)
	if err != nil {
		return nil, err
	}

	markFor := model.ChatSender("")
	if markRead {
		markFor = viewer
	}
	messages, err := s.chats.ListByAttempt(ctx, attemptID, markFor)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}

	return &ChatView{
		Messages:    messages,
		ChatBlocked: attempt.ChatBlocked,
		UnreadCount: unread,
	}, nil
}

// SetBlocked toggles the admin-controlled chat gate. Existing messages are
// kept.
func (s *ChatService) SetBlocked(ctx context.Context, attemptID uuid.UUID, blocked bool) error {
	if _, err := s.attempts.GetByID(ctx, attemptID); err != nil {
		return err
	}
	if err := s.chats.SetBlocked(ctx, attemptID, blocked); err != nil {
		return err
	}
	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Bool("blocked", blocked).
		Msg("Chat block toggled")
	return nil
}

// Warn appends an admin warning to the chat. Warnings carry a visually
// distinct prefix and bypass the block gate.
func (s *ChatService) Warn(ctx context.Context, attemptID uuid.UUID, text string) (*model.ChatMessage, error) {
	return s.Send(ctx, attemptID, model.ChatSenderAdmin, "WARNING: "+text)
}
