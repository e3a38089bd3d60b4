package testsupport

import (
	"context"
	"testing"

	"adforge/internal/config"
	"adforge/internal/project"
)

// MustOpenStore opens a project.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *project.Store {
	t.Helper()

	store, err := project.Open(cfg)
	if err != nil {
		t.Fatalf("project.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewProject creates a project for tests using the provided store.
func NewProject(t testing.TB, store *project.Store, title string, opts ...func(*project.Seed)) *project.Project {
	t.Helper()

	seed := project.Seed{Title: title, RetryBudget: 2}
	for _, opt := range opts {
		opt(&seed)
	}
	p, err := store.Create(context.Background(), seed)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return p
}

// FastMode enables gate chaining on the seeded project.
func FastMode(seed *project.Seed) {
	seed.FastMode = true
}

// WithSettings seeds the project's settings bag.
func WithSettings(values map[string]string) func(*project.Seed) {
	return func(seed *project.Seed) {
		seed.Settings = values
	}
}
