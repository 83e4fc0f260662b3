package domain

import "time"

type ChatMessage struct {
	FromName string    `json:"fromName"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}
