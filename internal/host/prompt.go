package host

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/dshills/lintbridge/internal/migrate"
	"github.com/dshills/lintbridge/internal/protocol"
)

// TerminalPrompter asks the user questions on the controlling terminal.
// When there is no terminal the prompts resolve to their dismissed values,
// which downstream treats as "not now".
type TerminalPrompter struct {
	// isTerminal is swappable for tests.
	isTerminal func() bool
}

// NewTerminalPrompter builds a prompter bound to stdin/stderr.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
		},
	}
}

// PromptMigration asks the four-way migration question for a resource.
func (p *TerminalPrompter) PromptMigration(ctx context.Context, resource protocol.DocumentURI) (migrate.Decision, error) {
	if !p.isTerminal() {
		return migrate.DecisionDismissed, nil
	}

	scope := "your global settings"
	if resource != "" {
		scope = string(resource)
	}

	decision := migrate.DecisionNotNow
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[migrate.Decision]().
			Title("Migrate deprecated lint settings?").
			Description(fmt.Sprintf("The auto-fix-on-save setting in %s moved to the editor's code-actions-on-save settings.", scope)).
			Options(
				huh.NewOption("Yes, update my settings", migrate.DecisionYes),
				huh.NewOption("Not now", migrate.DecisionNotNow),
				huh.NewOption("Never migrate", migrate.DecisionNever),
				huh.NewOption("Show the documentation", migrate.DecisionOpenDocs),
			).
			Value(&decision),
	))

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return migrate.DecisionDismissed, nil
		}
		return migrate.DecisionDismissed, err
	}
	return decision, nil
}

// ShowInformation displays a message with optional actions. The returned
// string is the chosen action, or empty when dismissed.
func (p *TerminalPrompter) ShowInformation(ctx context.Context, message string, actions ...string) (string, error) {
	if !p.isTerminal() || len(actions) == 0 {
		return "", nil
	}

	options := make([]huh.Option[string], 0, len(actions)+1)
	for _, action := range actions {
		options = append(options, huh.NewOption(action, action))
	}
	options = append(options, huh.NewOption("Dismiss", ""))

	choice := ""
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(message).
			Options(options...).
			Value(&choice),
	))

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", nil
		}
		return "", err
	}
	return choice, nil
}
