package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel distinguishes who a chat entry comes from
type Channel string

const (
	ChannelSystem Channel = "system" // Client and server notices
	ChannelGod    Channel = "god"    // Secret role information
	ChannelPlayer Channel = "player" // Something a player said or did
)

// SystemSender is the sender name used for notices
const SystemSender = "System"

// GodSender is the sender name used for secret role messages
const GodSender = "God"

// ChatEntry is one line of the chat log
type ChatEntry struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Channel   Channel   `json:"channel"`
	Role      Role      `json:"role,omitempty"`
	IsAI      bool      `json:"isAi,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChatEntry creates a chat entry with a fresh ID
func NewChatEntry(channel Channel, sender, message string) ChatEntry {
	return ChatEntry{
		ID:        uuid.NewString(),
		Sender:    sender,
		Message:   message,
		Channel:   channel,
		Timestamp: time.Now(),
	}
}
