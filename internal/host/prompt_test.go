package host

import (
	"context"
	"testing"

	"github.com/dshills/lintbridge/internal/migrate"
)

func nonTerminalPrompter() *TerminalPrompter {
	p := NewTerminalPrompter()
	p.isTerminal = func() bool { return false }
	return p
}

func TestPromptMigrationWithoutTerminal(t *testing.T) {
	p := nonTerminalPrompter()

	decision, err := p.PromptMigration(context.Background(), "file:///ws")
	if err != nil {
		t.Fatalf("PromptMigration() error = %v", err)
	}
	if decision != migrate.DecisionDismissed {
		t.Errorf("PromptMigration() = %v, want dismissed", decision)
	}
}

func TestShowInformationWithoutTerminal(t *testing.T) {
	p := nonTerminalPrompter()

	action, err := p.ShowInformation(context.Background(), "message", "OK")
	if err != nil {
		t.Fatalf("ShowInformation() error = %v", err)
	}
	if action != "" {
		t.Errorf("ShowInformation() = %q, want dismissed", action)
	}
}

func TestShowInformationWithoutActions(t *testing.T) {
	p := NewTerminalPrompter()
	p.isTerminal = func() bool { return true }

	// No actions means nothing to choose; no form is shown.
	action, err := p.ShowInformation(context.Background(), "message")
	if err != nil {
		t.Fatalf("ShowInformation() error = %v", err)
	}
	if action != "" {
		t.Errorf("ShowInformation() = %q, want empty", action)
	}
}
