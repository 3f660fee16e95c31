package engine

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady checks that the backend is reachable and that every named
// model is available. Missing models are pulled when the backend supports it,
// with progress output written to w. Empty and duplicate names are skipped.
func EnsureReady(ctx context.Context, p Provisioner, models []string, w io.Writer) error {
	if !p.IsRunning(ctx) {
		return fmt.Errorf("inference provider is not reachable; check llm.base_url and llm.api_key")
	}

	seen := make(map[string]bool, len(models))
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		if p.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}

		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := p.PullModel(ctx, model, func(pp PullProgress) {
			if pp.Total > 0 {
				pct := float64(pp.Completed) / float64(pp.Total) * 100
				fmt.Fprintf(w, "  %s %.0f%%\n", pp.Status, pct)
			} else {
				fmt.Fprintf(w, "  %s\n", pp.Status)
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}

	return nil
}
