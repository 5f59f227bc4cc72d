package model

import (
	"time"
)

// ChatSender identifies which side of an attempt's chat wrote a message.
type ChatSender string

const (
	ChatSenderStudent ChatSender = "student"
	ChatSenderAdmin   ChatSender = "admin"
)

// ChatMessage is one entry in an attempt's append-only chat log.
type ChatMessage struct {
	ID        int64      `json:"id"`
	AttemptID string     `json:"attempt_id"`
	Sender    ChatSender `json:"sender"`
	Message   string     `json:"message"`
	SentAt    time.Time  `json:"timestamp"`
	Read      bool       `json:"read"`
}

// SendMessageRequest is the payload for posting a chat message.
type SendMessageRequest struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
}

// SetChatBlockedRequest toggles the admin-controlled chat gate.
type SetChatBlockedRequest struct {
	Blocked *bool `json:"blocked" binding:"required"`
}

// SendWarningRequest is the payload for an admin warning.
type SendWarningRequest struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
}
