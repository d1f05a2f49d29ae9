package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashwch/bumblebee/internal/audit"
	"github.com/ashwch/bumblebee/internal/config"
	"github.com/ashwch/bumblebee/internal/embedding"
	"github.com/ashwch/bumblebee/internal/i18n"
	"github.com/ashwch/bumblebee/internal/live"
	"github.com/ashwch/bumblebee/internal/logging"
	"github.com/ashwch/bumblebee/internal/outcome"
	"github.com/ashwch/bumblebee/internal/resolve"
	"github.com/ashwch/bumblebee/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

type rootFlags struct {
	Plan       string
	ExecID     string
	Params     []string
	Threshold  float64
	UI         string
	ConfigPath string
	Verbose    bool
}

// app carries the process streams and the constructors tests swap out.
type app struct {
	stdout   io.Writer
	stderr   io.Writer
	flags    rootFlags
	exitCode int

	newProducer  func(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Producer, error)
	newPrompter  func(cfg config.Config, logger *zap.Logger) ui.Prompter
	newGenerator func(ctx context.Context, apiKey string) (live.Generator, error)
}

// env is what every subcommand needs once config is resolved.
type env struct {
	cfg        config.Config
	configPath string
	logger     *zap.Logger
	closeLog   func()
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		newProducer: embedding.NewProducer,
		newPrompter: func(cfg config.Config, logger *zap.Logger) ui.Prompter {
			return ui.New(cfg.UI.Backend, cfg.UI.DialogTitle, logger)
		},
		newGenerator: func(ctx context.Context, apiKey string) (live.Generator, error) {
			return live.NewGenAIGenerator(ctx, apiKey)
		},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return newApp(stdout, stderr).execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.stderr, "bumblebee: %v\n", err)
		if a.exitCode == 0 {
			a.exitCode = 1
		}
	}
	return a.exitCode
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "bumblebee",
		Short: "Resolve spoken or typed requests into registered desktop commands",
		Long: `bumblebee matches an utterance against a registry of shell commands by
embedding similarity, confirms when unsure or when a command is dangerous,
and prints one JSON record describing the outcome.

  bumblebee --plan "set brightness to 20 percent"
  bumblebee --exec-id brightness_set --param value=20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runRoot,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.flags.ConfigPath, "config", "", "config file (default <config dir>/bumblebee/config.toml)")
	flags.StringVar(&a.flags.UI, "ui", "", "prompt backend: auto, yad, bubbletea, huh, tview, plain")
	flags.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "debug logging")

	root.Flags().StringVar(&a.flags.Plan, "plan", "", "resolve an utterance without running it")
	root.Flags().StringVar(&a.flags.ExecID, "exec-id", "", "run a registered command by id")
	root.Flags().StringArrayVar(&a.flags.Params, "param", nil, "command parameter key=value (repeatable)")
	root.Flags().Float64Var(&a.flags.Threshold, "threshold", 0, "acceptance threshold override")

	root.AddCommand(
		a.askCommand(),
		a.doctorCommand(),
		a.cacheCommand(),
		a.registryCommand(),
		a.configCommand(),
		a.auditCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) runRoot(cmd *cobra.Command, _ []string) error {
	if a.flags.ExecID == "" && a.flags.Plan == "" {
		a.emit(outcome.Error{Message: "Missing --plan text or --exec-id", Kind: resolve.KindInput})
		return nil
	}

	e, err := a.setup(cmd)
	if err != nil {
		a.emit(outcome.Error{Message: err.Error(), Kind: resolve.KindConfiguration})
		return nil
	}
	defer e.closeLog()

	if a.flags.ExecID != "" {
		raw, err := parseParams(a.flags.Params)
		if err != nil {
			a.emit(outcome.Error{Message: err.Error(), Kind: resolve.KindInput, ID: a.flags.ExecID})
			return nil
		}
		resolver, err := a.resolver(cmd.Context(), e, false)
		if err != nil {
			a.emit(outcome.Error{Message: err.Error(), Kind: resolve.KindConfiguration})
			return nil
		}
		a.emit(resolver.Execute(cmd.Context(), a.flags.ExecID, raw))
		return nil
	}

	resolver, err := a.resolver(cmd.Context(), e, true)
	if err != nil {
		a.emit(outcome.Error{Message: err.Error(), Kind: resolve.KindConfiguration})
		return nil
	}
	a.emit(resolver.Plan(cmd.Context(), a.flags.Plan))
	return nil
}

// setup resolves config with precedence defaults < file < env < flags and
// opens the log file.
func (a *app) setup(cmd *cobra.Command) (env, error) {
	var (
		cfg  config.Config
		path string
		err  error
	)
	if strings.TrimSpace(a.flags.ConfigPath) != "" {
		path = a.flags.ConfigPath
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, path, err = config.LoadOrCreate()
	}
	if err != nil {
		return env{}, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return env{}, err
	}
	if f := cmd.Flags().Lookup("threshold"); f != nil && f.Changed {
		if err := cfg.Set("match.threshold", strconv.FormatFloat(a.flags.Threshold, 'f', -1, 64)); err != nil {
			return env{}, err
		}
	}
	if strings.TrimSpace(a.flags.UI) != "" {
		if err := cfg.Set("ui.backend", a.flags.UI); err != nil {
			return env{}, err
		}
	}

	level := cfg.Log.Level
	if a.flags.Verbose {
		level = "debug"
	}
	logger := zap.NewNop()
	closeLog := func() {}
	if rt, err := logging.New(level); err == nil {
		logger = rt.Logger
		closeLog = func() { _ = rt.Close() }
	} else {
		fmt.Fprintf(a.stderr, "bumblebee: logging disabled: %v\n", err)
	}
	return env{cfg: cfg, configPath: path, logger: logger, closeLog: closeLog}, nil
}

func (a *app) resolver(ctx context.Context, e env, needsProducer bool) (*resolve.Resolver, error) {
	registryPath, err := e.cfg.RegistryPath()
	if err != nil {
		return nil, err
	}
	cachePath, err := e.cfg.CachePath()
	if err != nil {
		return nil, err
	}

	var producer embedding.Producer
	if needsProducer {
		producer, err = a.newProducer(ctx, e.cfg.Embedding)
		if err != nil {
			// Reported through the resolver so the failure is logged and audited.
			producer = unavailableProducer{err: err}
		}
	}

	opts := resolve.Options{
		RegistryPath: registryPath,
		CachePath:    cachePath,
		Producer:     producer,
		Prompter:     a.newPrompter(e.cfg, e.logger),
		Catalog:      catalogFor(e.cfg),
		Thresholds: resolve.Thresholds{
			Accept:         e.cfg.Match.Threshold,
			Clarify:        e.cfg.Match.ClarifyThreshold,
			AmbiguityDelta: e.cfg.Match.AmbiguityDelta,
		},
		Logger: e.logger,
	}
	if log, err := audit.Default(); err == nil {
		opts.Audit = log
	} else {
		e.logger.Warn("audit log unavailable", zap.Error(err))
	}
	return resolve.New(opts), nil
}

// unavailableProducer fails every call with the error that prevented
// building the real producer.
type unavailableProducer struct {
	err error
}

func (p unavailableProducer) Embed(context.Context, string) ([]float32, error) {
	var pe *embedding.ProducerError
	if errors.As(p.err, &pe) {
		return nil, p.err
	}
	return nil, &embedding.ProducerError{Kind: embedding.KindAuth, Producer: "unavailable", Err: p.err}
}

func (p unavailableProducer) Name() string { return "unavailable" }

func catalogFor(cfg config.Config) i18n.Catalog {
	locale := cfg.Locale
	if strings.EqualFold(locale, "auto") {
		locale = ""
	}
	return i18n.LoadCatalog(locale)
}

// parseParams turns repeated key=value flags into the raw parameter map.
func parseParams(pairs []string) (map[string]string, error) {
	raw := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q (want key=value)", pair)
		}
		raw[key] = strings.TrimSpace(value)
	}
	return raw, nil
}

// emit writes the single result record and sets the exit status from it.
func (a *app) emit(result outcome.Result) {
	encoded, err := json.Marshal(result)
	if err != nil {
		encoded, _ = json.Marshal(outcome.Error{Message: fmt.Sprintf("could not encode result: %v", err)})
		result = outcome.Error{}
	}
	fmt.Fprintln(a.stdout, string(encoded))
	a.exitCode = outcome.ExitCode(result)
}

func liveTimeout(cfg config.Config) time.Duration {
	return time.Duration(cfg.Live.TimeoutSeconds) * time.Second
}
