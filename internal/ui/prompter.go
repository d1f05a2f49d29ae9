// Package ui asks the user to confirm, choose or simply be told something.
// Every prompt fails closed: when no backend answers, Confirm is false and
// Choose selects nothing.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Prompter is the user-interaction port used during resolution.
type Prompter interface {
	Confirm(ctx context.Context, text string) bool
	Choose(ctx context.Context, title string, options []string) (int, bool)
	Notify(ctx context.Context, text string)
}

// Dialogs tries the configured backend and its fallbacks in order.
type Dialogs struct {
	backend string
	title   string
	logger  *zap.Logger
	// in is shared by every plain prompt; each prompt consumes one line.
	in  *bufio.Reader
	out io.Writer
}

func New(backend, title string, logger *zap.Logger) *Dialogs {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(title) == "" {
		title = "Bumblebee"
	}
	return &Dialogs{
		backend: NormalizeBackend(backend),
		title:   title,
		logger:  logger,
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stderr,
	}
}

func (d *Dialogs) Confirm(ctx context.Context, text string) bool {
	for _, candidate := range backendCandidates(d.backend) {
		if !available(candidate) {
			continue
		}
		var (
			approved bool
			err      error
		)
		switch candidate {
		case BackendYad:
			approved, err = confirmWithYad(ctx, d.title, text)
		case BackendBubbleTea:
			approved, err = confirmWithBubbleTea(ctx, text)
		case BackendHuh:
			approved, err = confirmWithHuh(ctx, text)
		case BackendTView:
			approved, err = confirmWithTView(text)
		case BackendPlain:
			approved, err = confirmWithPlain(d.in, d.out, text)
		default:
			continue
		}
		if err != nil {
			d.logger.Warn("confirm backend failed", zap.String("backend", candidate), zap.Error(err))
			continue
		}
		return approved
	}
	d.logger.Warn("no confirm backend answered; declining", zap.String("backend", d.backend))
	return false
}

func (d *Dialogs) Choose(ctx context.Context, title string, options []string) (int, bool) {
	if len(options) == 0 {
		return -1, false
	}
	for _, candidate := range backendCandidates(d.backend) {
		if !available(candidate) {
			continue
		}
		var (
			index int
			ok    bool
			err   error
		)
		switch candidate {
		case BackendYad:
			index, ok, err = chooseWithYad(ctx, d.title, title, options)
		case BackendBubbleTea:
			index, ok, err = chooseWithBubbleTea(ctx, title, options)
		case BackendHuh:
			index, ok, err = chooseWithHuh(ctx, title, options)
		case BackendTView:
			index, ok, err = chooseWithTView(title, options)
		case BackendPlain:
			index, ok, err = chooseWithPlain(d.in, d.out, title, options)
		default:
			continue
		}
		if err != nil {
			d.logger.Warn("choose backend failed", zap.String("backend", candidate), zap.Error(err))
			continue
		}
		if !ok || index < 0 || index >= len(options) {
			return -1, false
		}
		return index, true
	}
	d.logger.Warn("no choose backend answered; selecting nothing", zap.String("backend", d.backend))
	return -1, false
}

// Notify never blocks on the user and never fails the caller.
func (d *Dialogs) Notify(ctx context.Context, text string) {
	if d.backend == BackendAuto || d.backend == BackendYad {
		if YadAvailable() {
			err := notifyWithYad(d.title, text)
			if err == nil {
				return
			}
			d.logger.Debug("yad notify failed", zap.Error(err))
		}
		err := desktopNotify(ctx, d.title, text)
		if err == nil {
			return
		}
		d.logger.Debug("desktop notify failed", zap.Error(err))
	}
	fmt.Fprintln(d.out, text)
}
