// Package resolve turns an utterance into a resolution outcome and runs
// resolved commands by id.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashwch/bumblebee/internal/audit"
	"github.com/ashwch/bumblebee/internal/cache"
	"github.com/ashwch/bumblebee/internal/embedding"
	"github.com/ashwch/bumblebee/internal/i18n"
	"github.com/ashwch/bumblebee/internal/outcome"
	"github.com/ashwch/bumblebee/internal/params"
	"github.com/ashwch/bumblebee/internal/ranker"
	"github.com/ashwch/bumblebee/internal/registry"
	"github.com/ashwch/bumblebee/internal/runtime"
	"github.com/ashwch/bumblebee/internal/safety"
	"github.com/ashwch/bumblebee/internal/ui"
	"go.uber.org/zap"
)

const (
	KindInput          = "input"
	KindConfiguration  = "configuration"
	KindEmbedding      = "embedding"
	KindUnknownCommand = "unknown_command"
	KindExecution      = "execution"
)

// Recorder persists terminal outcomes. audit.Log satisfies it.
type Recorder interface {
	Record(kind, utterance, commandID string, result outcome.Result) error
}

type Options struct {
	RegistryPath string
	CachePath    string
	Producer     embedding.Producer
	Prompter     ui.Prompter
	Catalog      i18n.Catalog
	Thresholds   Thresholds
	Logger       *zap.Logger
	Audit        Recorder
}

// Resolver runs one attempt at a time; it holds no state between attempts.
type Resolver struct {
	registryPath string
	cachePath    string
	producer     embedding.Producer
	prompter     ui.Prompter
	catalog      i18n.Catalog
	thresholds   Thresholds
	logger       *zap.Logger
	audit        Recorder
}

func New(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog := opts.Catalog
	if catalog.Spoken == nil {
		catalog = i18n.LoadCatalog("en")
	}
	return &Resolver{
		registryPath: opts.RegistryPath,
		cachePath:    opts.CachePath,
		producer:     opts.Producer,
		prompter:     opts.Prompter,
		catalog:      catalog,
		thresholds:   opts.Thresholds.Normalize(),
		logger:       logger,
		audit:        opts.Audit,
	}
}

// Plan resolves utterance without running anything. Prompts are the only
// side effect besides cache maintenance.
func (r *Resolver) Plan(ctx context.Context, utterance string) outcome.Result {
	result := r.plan(ctx, utterance)
	r.finish(audit.KindPlan, utterance, commandID(result), result)
	return result
}

func (r *Resolver) plan(ctx context.Context, utterance string) outcome.Result {
	if strings.TrimSpace(utterance) == "" {
		return outcome.Error{Message: "utterance is empty", Kind: KindInput}
	}
	reg, err := registry.Load(r.registryPath)
	if err != nil {
		return outcome.Error{Message: err.Error(), Kind: KindConfiguration}
	}
	if r.producer == nil {
		return outcome.Error{Message: "no embedding producer configured", Kind: KindConfiguration}
	}

	c, stats, err := cache.Ensure(ctx, reg, r.producer, r.cachePath)
	if err != nil {
		return producerFailure(err)
	}
	r.logger.Debug("cache ensured",
		zap.Int("computed", stats.Computed),
		zap.Int("reused", stats.Reused),
		zap.Int("pruned", stats.Pruned),
	)

	query, err := r.producer.Embed(ctx, utterance)
	if err != nil {
		return producerFailure(err)
	}
	return r.Decide(ctx, utterance, ranker.Rank(query, reg, c))
}

// Decide walks a ranking through the ambiguity, confidence and danger gates.
// The user is asked at most one choice and at most two confirmations.
func (r *Resolver) Decide(ctx context.Context, utterance string, ranking []ranker.Candidate) outcome.Result {
	if len(ranking) == 0 {
		return outcome.NoMatch{Score: 0}
	}
	th := r.thresholds
	top := ranking[0]

	if group := ambiguousGroup(ranking, th.AmbiguityDelta); len(group) > 1 && top.Score >= th.Clarify {
		options := make([]string, len(group))
		for i, candidate := range group {
			options[i] = candidate.Command.Description
		}
		idx, ok := r.choose(ctx, r.catalog.Prompts.ChooseTitle, options)
		if !ok {
			return outcome.Cancelled{}
		}
		top = group[idx]
	}

	cmd := top.Command
	if top.Score < th.Clarify {
		return outcome.NoMatch{Score: top.Score}
	}
	if top.Score < th.Accept && !r.confirm(ctx, r.catalog.DidYouMean(cmd.Description)) {
		return outcome.Cancelled{ID: cmd.ID, Description: cmd.Description, Score: top.Score}
	}

	p := params.Extract(cmd.ID, utterance)
	command := r.render(cmd, p)
	if cmd.Dangerous && !r.confirm(ctx, r.catalog.AllowAction(cmd.Description, command)) {
		return outcome.Cancelled{ID: cmd.ID, Description: cmd.Description, Score: top.Score}
	}

	return outcome.Confirmed{
		ID:          cmd.ID,
		Description: cmd.Description,
		Command:     command,
		Score:       top.Score,
		Params:      p,
		Spoken:      r.catalog.SpokenSuccess(cmd.ID, cmd.Description, p),
		MatchedText: top.MatchedText,
	}
}

// Execute runs the command registered under id with raw params coerced,
// defaulted and clamped for its family.
func (r *Resolver) Execute(ctx context.Context, id string, raw map[string]string) outcome.Result {
	result := r.execute(ctx, id, raw)
	r.finish(audit.KindExec, "", id, result)
	return result
}

func (r *Resolver) execute(ctx context.Context, id string, raw map[string]string) outcome.Result {
	reg, err := registry.Load(r.registryPath)
	if err != nil {
		return outcome.Error{Message: err.Error(), Kind: KindConfiguration}
	}
	cmd, ok := reg.Lookup(id)
	if !ok {
		return outcome.Error{Message: fmt.Sprintf("Unknown command id: %s", id), Kind: KindUnknownCommand, ID: id}
	}

	p := params.Clamp(cmd.ID, params.Coerce(raw))
	if r.prompter != nil {
		r.prompter.Notify(ctx, r.catalog.Executing(cmd.Description))
	}
	command := r.render(cmd, p)

	run, err := runtime.Run(command)
	if err != nil {
		return outcome.Error{
			Message:     err.Error(),
			Kind:        KindExecution,
			ID:          cmd.ID,
			Description: cmd.Description,
			Command:     command,
		}
	}

	spoken := r.catalog.SpokenSuccess(cmd.ID, cmd.Description, p)
	if !run.Success() {
		spoken = r.catalog.SpokenFailure(cmd.Description)
	}
	return outcome.Executed{
		ID:          cmd.ID,
		Description: cmd.Description,
		Command:     command,
		Params:      p,
		ExitCode:    run.ExitCode,
		Stdout:      run.Stdout,
		Stderr:      run.Stderr,
		Spoken:      spoken,
	}
}

// ambiguousGroup is the top candidate plus those of the next two that score
// within delta of it.
func ambiguousGroup(ranking []ranker.Candidate, delta float64) []ranker.Candidate {
	const epsilon = 1e-9
	group := []ranker.Candidate{ranking[0]}
	for _, candidate := range ranking[1:min(len(ranking), 3)] {
		if ranking[0].Score-candidate.Score <= delta+epsilon {
			group = append(group, candidate)
		}
	}
	return group
}

func (r *Resolver) confirm(ctx context.Context, text string) bool {
	if r.prompter == nil {
		return false
	}
	return r.prompter.Confirm(ctx, text)
}

func (r *Resolver) choose(ctx context.Context, title string, options []string) (int, bool) {
	if r.prompter == nil {
		return -1, false
	}
	idx, ok := r.prompter.Choose(ctx, title, options)
	if !ok || idx < 0 || idx >= len(options) {
		return -1, false
	}
	return idx, true
}

// render falls back to the raw template when rendering fails.
func (r *Resolver) render(cmd registry.Command, p params.Params) string {
	rendered, err := runtime.Render(cmd.Template, p)
	if err != nil {
		r.logger.Warn("template render failed; using raw template",
			zap.String("id", cmd.ID),
			zap.String("error", safety.RedactError(err)),
		)
	}
	return rendered
}

func (r *Resolver) finish(kind, utterance, id string, result outcome.Result) {
	fields := []zap.Field{
		zap.String("kind", kind),
		zap.String("outcome", result.Type()),
	}
	if id != "" {
		fields = append(fields, zap.String("id", id))
	}
	if utterance != "" {
		fields = append(fields, zap.String("utterance", safety.RedactText(utterance)))
	}
	if e, ok := result.(outcome.Error); ok {
		r.logger.Warn("resolution failed", append(fields, zap.String("error", safety.RedactText(e.Message)), zap.String("error_kind", e.Kind))...)
	} else {
		r.logger.Info("resolution finished", fields...)
	}

	if r.audit == nil {
		return
	}
	if err := r.audit.Record(kind, utterance, id, result); err != nil {
		r.logger.Warn("audit record failed", zap.String("error", safety.RedactError(err)))
	}
}

func producerFailure(err error) outcome.Result {
	kind := KindEmbedding
	var pe *embedding.ProducerError
	if errors.As(err, &pe) {
		kind = KindEmbedding + "_" + string(pe.Kind)
	}
	return outcome.Error{Message: safety.RedactError(err), Kind: kind}
}

func commandID(result outcome.Result) string {
	switch r := result.(type) {
	case outcome.Cancelled:
		return r.ID
	case outcome.Confirmed:
		return r.ID
	case outcome.Executed:
		return r.ID
	case outcome.Error:
		return r.ID
	default:
		return ""
	}
}
