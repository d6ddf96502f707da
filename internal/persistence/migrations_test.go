package persistence

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestRunMigrationsAppliesInOrder(t *testing.T) {
	for _, dialect := range []string{"postgres", "sqlite"} {
		t.Run(dialect, func(t *testing.T) {
			var scripts []string
			exec := func(_ context.Context, script string) error {
				scripts = append(scripts, script)
				return nil
			}
			if err := RunMigrations(context.Background(), dialect, exec, zap.NewNop()); err != nil {
				t.Fatalf("RunMigrations: %v", err)
			}
			if len(scripts) == 0 || !strings.Contains(scripts[0], "support_tickets") {
				t.Fatalf("expected ticket table migration, got %v", scripts)
			}
		})
	}
}

func TestRunMigrationsUnknownDialect(t *testing.T) {
	exec := func(context.Context, string) error { return nil }
	if err := RunMigrations(context.Background(), "oracle", exec, zap.NewNop()); err == nil {
		t.Fatalf("expected error for unknown dialect")
	}
}
