// Package ticket holds the support ticket records shared by the classification
// engine, the triage pipeline, and storage.
package ticket

import (
	"time"

	"github.com/kalambet/supportpilot/internal/labels"
)

// Ticket is an inbound support request. Engines annotate copies of it and
// never modify the original.
type Ticket struct {
	ID            string    `json:"id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	Description   string    `json:"description" yaml:"description"`
	CustomerEmail string    `json:"customer_email,omitempty" yaml:"customer_email"`
	CreatedAt     time.Time `json:"created_at,omitempty" yaml:"created_at"`
}

// Classification is the validated label assignment for one ticket.
type Classification struct {
	Topic     labels.Topic     `json:"topic"`
	Sentiment labels.Sentiment `json:"sentiment"`
	Priority  labels.Priority  `json:"priority"`
	Reasoning string           `json:"reasoning"`
}

// Valid reports whether every label is a member of its set.
func (c Classification) Valid() bool {
	return c.Topic.Valid() && c.Sentiment.Valid() && c.Priority.Valid()
}

// Classified is a ticket with its classification fields merged in.
type Classified struct {
	Ticket
	Classification
}

// Text returns the text a ticket is answered from: the description, or the
// title when the description is empty.
func (t Ticket) Text() string {
	if t.Description != "" {
		return t.Description
	}
	return t.Title
}
