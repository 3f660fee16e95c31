package engine

import (
	"context"
	"errors"
	"io"
	"testing"
)

type mockProvisioner struct {
	isRunning bool
	models    map[string]bool
	pulled    []string
	pullErr   error
}

func (m *mockProvisioner) IsRunning(_ context.Context) bool { return m.isRunning }
func (m *mockProvisioner) ListModels(_ context.Context) ([]string, error) {
	var names []string
	for n := range m.models {
		names = append(names, n)
	}
	return names, nil
}
func (m *mockProvisioner) HasModel(_ context.Context, name string) bool { return m.models[name] }
func (m *mockProvisioner) PullModel(_ context.Context, name string, cb func(PullProgress)) error {
	if m.pullErr != nil {
		return m.pullErr
	}
	m.pulled = append(m.pulled, name)
	if cb != nil {
		cb(PullProgress{Status: "success"})
	}
	return nil
}

func TestEnsureReady_AllModelsPresent(t *testing.T) {
	m := &mockProvisioner{
		isRunning: true,
		models:    map[string]bool{"gpt-3.5-turbo": true, "text-embedding-ada-002": true},
	}
	err := EnsureReady(context.Background(), m, []string{"gpt-3.5-turbo", "gpt-3.5-turbo", "text-embedding-ada-002"}, io.Discard)
	if err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 0 {
		t.Errorf("expected no pulls, got %v", m.pulled)
	}
}

func TestEnsureReady_PullsMissing(t *testing.T) {
	m := &mockProvisioner{
		isRunning: true,
		models:    map[string]bool{"llama3.2": true},
	}
	err := EnsureReady(context.Background(), m, []string{"llama3.2", "", "nomic-embed-text"}, io.Discard)
	if err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "nomic-embed-text" {
		t.Errorf("expected pull of nomic-embed-text, got %v", m.pulled)
	}
}

func TestEnsureReady_PullUnsupported(t *testing.T) {
	m := &mockProvisioner{isRunning: true, models: map[string]bool{}, pullErr: ErrPullUnsupported}
	err := EnsureReady(context.Background(), m, []string{"gpt-4o-mini"}, io.Discard)
	if !errors.Is(err, ErrPullUnsupported) {
		t.Fatalf("error = %v, want ErrPullUnsupported", err)
	}
}

func TestEnsureReady_EngineDown(t *testing.T) {
	m := &mockProvisioner{isRunning: false, models: map[string]bool{}}
	if err := EnsureReady(context.Background(), m, []string{"llama3.2"}, io.Discard); err == nil {
		t.Fatal("expected error when provider is down")
	}
}
