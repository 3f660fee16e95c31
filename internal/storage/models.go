package storage

import (
	"errors"
	"time"

	"github.com/kalambet/supportpilot/internal/ticket"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// StoredTicket is a classified ticket as kept in the history.
type StoredTicket struct {
	ticket.Classified
	ClassifiedAt time.Time `json:"classified_at"`
}

// TicketFilter narrows ListTickets. Empty fields match everything.
type TicketFilter struct {
	Topic     string
	Sentiment string
	Priority  string
}

// Stats counts stored tickets per label value.
type Stats struct {
	Total       int            `json:"total"`
	ByTopic     map[string]int `json:"by_topic"`
	BySentiment map[string]int `json:"by_sentiment"`
	ByPriority  map[string]int `json:"by_priority"`
}

type Job struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PayloadJSON string    `json:"-"`
	Status      string    `json:"status"` // "pending", "running", "completed", "failed"
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	RunAfter    time.Time `json:"run_after"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastError   string    `json:"last_error,omitempty"`
	ResultJSON  string    `json:"-"`
}
