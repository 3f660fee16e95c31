package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/supportpilot/internal/ticket"
)

// ticketFile accepts either a bare list of tickets or {"tickets": [...]}.
type ticketFile struct {
	Tickets []ticket.Ticket `json:"tickets" yaml:"tickets"`
}

// loadTickets reads tickets from a JSON or YAML file, chosen by extension.
func loadTickets(path string) ([]ticket.Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tickets file: %w", err)
	}

	var tickets []ticket.Ticket
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		tickets, err = decodeTickets(data, yaml.Unmarshal)
	default:
		tickets, err = decodeTickets(data, json.Unmarshal)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(tickets) == 0 {
		return nil, fmt.Errorf("%s contains no tickets", path)
	}

	for i := range tickets {
		if tickets[i].ID == "" {
			tickets[i].ID = fmt.Sprintf("TICKET-%03d", i+1)
		}
	}
	return tickets, nil
}

func decodeTickets(data []byte, unmarshal func([]byte, any) error) ([]ticket.Ticket, error) {
	var list []ticket.Ticket
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped ticketFile
	if err := unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Tickets, nil
}
