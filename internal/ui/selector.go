package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Candidate lists come from the ambiguity window and hold a handful of
// command descriptions, so every picker numbers them and accepts the digit.

func numbered(options []string) []string {
	labels := make([]string, len(options))
	for i, option := range options {
		labels[i] = fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(option))
	}
	return labels
}

// digitChoice maps a pressed digit key to an option index.
func digitChoice(key string, count int) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 1 || n > count {
		return -1, false
	}
	return n - 1, true
}

func chooseWithHuh(ctx context.Context, title string, options []string) (int, bool, error) {
	labels := numbered(options)
	choices := make([]huh.Option[int], len(labels))
	for i, label := range labels {
		choices[i] = huh.NewOption(label, i)
	}

	choice := 0
	field := huh.NewSelect[int]().
		Title(strings.TrimSpace(title)).
		Options(choices...).
		Height(huhSelectHeight(len(choices))).
		Value(&choice)
	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(huh.ThemeCharm()).
		WithOutput(os.Stderr)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return -1, false, nil
		}
		return -1, false, err
	}
	return choice, true, nil
}

type candidateItem struct {
	label string
	index int
}

func (i candidateItem) Title() string       { return i.label }
func (i candidateItem) Description() string { return "" }
func (i candidateItem) FilterValue() string { return i.label }

type candidatePicker struct {
	list   list.Model
	count  int
	index  int
	chosen bool
}

func (m candidatePicker) Init() tea.Cmd { return nil }

func (m candidatePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch k := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(bubblePickerSize(k.Width, k.Height, m.count))
		return m, nil
	case tea.KeyMsg:
		key := k.String()
		if index, ok := digitChoice(key, m.count); ok {
			m.index, m.chosen = index, true
			return m, tea.Quit
		}
		switch key {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(candidateItem); ok {
				m.index, m.chosen = item.index, true
			}
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m candidatePicker) View() string {
	return m.list.View()
}

func chooseWithBubbleTea(ctx context.Context, title string, options []string) (int, bool, error) {
	labels := numbered(options)
	items := make([]list.Item, len(labels))
	for i, label := range labels {
		items[i] = candidateItem{label: label, index: i}
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	width, height := bubblePickerSize(80, 24, len(items))
	picker := list.New(items, delegate, width, height)
	picker.Title = strings.TrimSpace(title)
	picker.SetShowHelp(false)
	picker.SetShowStatusBar(false)
	picker.SetFilteringEnabled(false)

	model := candidatePicker{list: picker, count: len(items)}
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithOutput(os.Stderr), tea.WithContext(ctx)).Run()
	if err != nil {
		return -1, false, err
	}
	out, ok := final.(candidatePicker)
	if !ok || !out.chosen {
		return -1, false, nil
	}
	return out.index, true, nil
}

// chooseWithTView shows the candidates as modal buttons plus a Cancel button.
func chooseWithTView(title string, options []string) (int, bool, error) {
	app := tview.NewApplication()
	labels := numbered(options)
	selected := -1

	modal := tview.NewModal().
		SetText(strings.TrimSpace(title)).
		AddButtons(append(labels, "Cancel")).
		SetDoneFunc(func(index int, _ string) {
			if index >= 0 && index < len(labels) {
				selected = index
			}
			app.Stop()
		})
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if index, ok := digitChoice(string(event.Rune()), len(labels)); ok {
			selected = index
			app.Stop()
			return nil
		}
		return event
	})

	if err := app.SetRoot(modal, true).Run(); err != nil {
		return -1, false, err
	}
	if selected < 0 {
		return -1, false, nil
	}
	return selected, true, nil
}

// bubblePickerSize fits the list to the terminal, leaving room for the title.
func bubblePickerSize(termWidth, termHeight, optionCount int) (int, int) {
	if termWidth <= 0 {
		termWidth = 80
	}
	if termHeight <= 0 {
		termHeight = 24
	}
	width := max(min(termWidth-4, 72), min(termWidth, 32))
	rows := max(optionCount, 1) + 4
	height := max(min(rows, termHeight-2), min(termHeight, 6))
	return width, height
}

func huhSelectHeight(optionCount int) int {
	return max(min(optionCount+1, 10), 4)
}
