package models

import "time"

// Message — уведомление во входящих получателя.
type Message struct {
	ID             string    `json:"id"`
	RecipientEmail string    `json:"recipientEmail"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"createdAt"`
	Read           bool      `json:"read"`
}
