package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/supportpilot/internal/labels"
	"github.com/kalambet/supportpilot/internal/ticket"
)

const ticketColumns = `id, title, description, customer_email, created_at, topic, sentiment, priority, reasoning, classified_at`

// SaveClassifiedTickets upserts classified tickets by ID in one transaction.
// A re-classified ticket replaces its previous row.
func (s *Store) SaveClassifiedTickets(tickets []ticket.Classified) error {
	if len(tickets) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			customer_email = excluded.customer_email,
			created_at = excluded.created_at,
			topic = excluded.topic,
			sentiment = excluded.sentiment,
			priority = excluded.priority,
			reasoning = excluded.reasoning,
			classified_at = excluded.classified_at`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, t := range tickets {
		if t.ID == "" {
			tx.Rollback()
			return fmt.Errorf("ticket %q has no id", t.Title)
		}
		if _, err := stmt.Exec(
			t.ID, t.Title, t.Description, t.CustomerEmail, formatTime(t.CreatedAt),
			string(t.Topic), string(t.Sentiment), string(t.Priority), t.Reasoning, now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("saving ticket %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetTicket(id string) (StoredTicket, error) {
	row := s.db.QueryRow(`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return StoredTicket{}, ErrNotFound
	}
	if err != nil {
		return StoredTicket{}, err
	}
	return t, nil
}

// ListTickets returns stored tickets matching f, most urgent first and
// then most recently classified.
func (s *Store) ListTickets(f TicketFilter, limit, offset int) ([]StoredTicket, error) {
	var where []string
	var args []interface{}
	if f.Topic != "" {
		where = append(where, "topic = ?")
		args = append(args, f.Topic)
	}
	if f.Sentiment != "" {
		where = append(where, "sentiment = ?")
		args = append(args, f.Sentiment)
	}
	if f.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, f.Priority)
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	// Priority labels sort lexically in urgency order: "P0 ..." < "P1 ..." < "P2 ...".
	query += ` ORDER BY priority ASC, classified_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []StoredTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// Stats counts stored tickets per topic, sentiment and priority. Every
// label value appears in the maps, with zero when no ticket carries it.
func (s *Store) Stats() (Stats, error) {
	st := Stats{
		ByTopic:     make(map[string]int),
		BySentiment: make(map[string]int),
		ByPriority:  make(map[string]int),
	}
	for _, t := range labels.AllTopics() {
		st.ByTopic[string(t)] = 0
	}
	for _, v := range labels.AllSentiments() {
		st.BySentiment[string(v)] = 0
	}
	for _, p := range labels.AllPriorities() {
		st.ByPriority[string(p)] = 0
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tickets`).Scan(&st.Total); err != nil {
		return Stats{}, fmt.Errorf("counting tickets: %w", err)
	}
	for column, counts := range map[string]map[string]int{
		"topic":     st.ByTopic,
		"sentiment": st.BySentiment,
		"priority":  st.ByPriority,
	} {
		if err := s.countBy(column, counts); err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}

// countBy fills counts with per-value row counts of column. column is
// always one of the fixed label columns.
func (s *Store) countBy(column string, counts map[string]int) error {
	rows, err := s.db.Query(`SELECT ` + column + `, COUNT(*) FROM tickets GROUP BY ` + column)
	if err != nil {
		return fmt.Errorf("counting by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var value string
		var n int
		if err := rows.Scan(&value, &n); err != nil {
			return err
		}
		counts[value] = n
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(r rowScanner) (StoredTicket, error) {
	var t StoredTicket
	var createdAt, classifiedAt, topic, sentiment, priority string
	if err := r.Scan(&t.ID, &t.Title, &t.Description, &t.CustomerEmail, &createdAt,
		&topic, &sentiment, &priority, &t.Reasoning, &classifiedAt); err != nil {
		return StoredTicket{}, err
	}
	t.Topic = labels.Topic(topic)
	t.Sentiment = labels.Sentiment(sentiment)
	t.Priority = labels.Priority(priority)

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return StoredTicket{}, fmt.Errorf("parsing created_at for ticket %s: %w", t.ID, err)
	}
	if t.ClassifiedAt, err = parseTime(classifiedAt); err != nil {
		return StoredTicket{}, fmt.Errorf("parsing classified_at for ticket %s: %w", t.ID, err)
	}
	return t, nil
}

// formatTime renders t as RFC3339, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
