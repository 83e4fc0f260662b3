package orch

import (
	"time"

	"github.com/keulen/huddle/internal/domain"
)

// chatLog is the meeting transcript plus the unread counter. Loop-owned.
type chatLog struct {
	messages []domain.ChatMessage
	unread   int
	focused  bool
}

func (c *chatLog) append(fromName, text string, countUnread bool) {
	c.messages = append(c.messages, domain.ChatMessage{
		FromName: fromName,
		Text:     text,
		At:       time.Now(),
	})
	if countUnread && !c.focused {
		c.unread++
	}
}

func (c *chatLog) setFocused(focused bool) {
	c.focused = focused
	if focused {
		c.unread = 0
	}
}
