package ui

import (
	"context"
	"errors"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/rivo/tview"
)

// Every confirm backend starts with "No" focused, so a stray Enter declines.

type confirmModel struct {
	title   string
	detail  string
	yes     bool
	decided bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(k.String()) {
	case "y":
		m.yes, m.decided = true, true
		return m, tea.Quit
	case "n", "q", "esc", "ctrl+c":
		m.yes, m.decided = false, true
		return m, tea.Quit
	case "left", "right", "tab", "shift+tab", "h", "l":
		m.yes = !m.yes
	case "enter":
		m.decided = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	var b strings.Builder
	b.WriteString(m.title)
	if m.detail != "" {
		b.WriteString("\n\n")
		b.WriteString(m.detail)
	}
	b.WriteString("\n\n")
	if m.yes {
		b.WriteString("[ Yes ]   No")
	} else {
		b.WriteString("  Yes   [ No ]")
	}
	b.WriteString("\n\ny/n, arrows to move, enter to answer")
	return b.String()
}

// Terminal prompts draw on stderr; stdout carries the result record.
func confirmWithBubbleTea(ctx context.Context, text string) (bool, error) {
	title, detail := splitPrompt(text)
	final, err := tea.NewProgram(
		confirmModel{title: title, detail: detail},
		tea.WithAltScreen(),
		tea.WithOutput(os.Stderr),
		tea.WithContext(ctx),
	).Run()
	if err != nil {
		return false, err
	}
	out, ok := final.(confirmModel)
	return ok && out.decided && out.yes, nil
}

func confirmWithHuh(ctx context.Context, text string) (bool, error) {
	approved := false
	title, detail := splitPrompt(text)
	field := huh.NewConfirm().
		Title(title).
		Description(detail).
		Affirmative("Yes").
		Negative("No").
		Value(&approved)
	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(huh.ThemeCharm()).
		WithOutput(os.Stderr)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return approved, nil
}

func confirmWithTView(text string) (bool, error) {
	app := tview.NewApplication()
	approved := false

	modal := tview.NewModal().
		SetText(strings.TrimSpace(text)).
		AddButtons([]string{"Yes", "No"}).
		SetFocus(1).
		SetDoneFunc(func(index int, _ string) {
			approved = index == 0
			app.Stop()
		})

	if err := app.SetRoot(modal, true).Run(); err != nil {
		return false, err
	}
	return approved, nil
}

// splitPrompt uses the first line as a title and the rest as detail.
func splitPrompt(text string) (string, string) {
	trimmed := strings.TrimSpace(text)
	title, rest, found := strings.Cut(trimmed, "\n")
	if !found {
		return trimmed, ""
	}
	return strings.TrimSpace(title), strings.TrimSpace(rest)
}
