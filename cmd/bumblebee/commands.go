package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ashwch/bumblebee/internal/audit"
	"github.com/ashwch/bumblebee/internal/cache"
	"github.com/ashwch/bumblebee/internal/config"
	"github.com/ashwch/bumblebee/internal/doctor"
	"github.com/ashwch/bumblebee/internal/live"
	"github.com/ashwch/bumblebee/internal/registry"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) askCommand() *cobra.Command {
	var (
		text          string
		forceOverflow bool
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a free-form question with a live model",
		Long: `Answers questions the command registry cannot, in sentences suited to
text-to-speech. Calls count against a daily budget; when the primary model is
rate limited the overflow model is tried. Failures print a short apology.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(text)
			if question == "" {
				question = strings.TrimSpace(strings.Join(args, " "))
			}
			if question == "" {
				a.exitCode = 1
				return nil
			}

			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			defer e.closeLog()

			generator, err := a.newGenerator(cmd.Context(), e.cfg.Embedding.APIKey)
			if err != nil {
				e.logger.Warn("live generator unavailable", zap.Error(err))
				generator = nil
			}
			svc := live.NewService(generator, live.Options{
				PrimaryModel:  e.cfg.Live.PrimaryModel,
				OverflowModel: e.cfg.Live.OverflowModel,
				MaxDaily:      e.cfg.Live.MaxDaily,
				Timeout:       liveTimeout(e.cfg),
				Catalog:       catalogFor(e.cfg),
				Logger:        e.logger,
			})
			answer, err := svc.Answer(cmd.Context(), question, forceOverflow)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a, answer)
			}
			fmt.Fprintln(a.stdout, answer.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "question to answer")
	cmd.Flags().BoolVar(&forceOverflow, "force-overflow", false, "skip the primary model")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}

func (a *app) doctorCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check config, registry, cache and desktop tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			defer e.closeLog()

			report := doctor.Run(cmd.Context(), e.cfg, e.configPath)
			if !report.OK() {
				a.exitCode = 1
			}
			if asJSON {
				return writeJSON(a, report)
			}
			fmt.Fprintln(a.stdout, report.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func (a *app) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or pre-compute the embedding cache",
	}

	warm := &cobra.Command{
		Use:   "warm",
		Short: "Embed every registry text that has no cached vector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, reg, cachePath, err := a.loadRegistry(cmd)
			if err != nil {
				return err
			}
			defer e.closeLog()

			producer, err := a.newProducer(cmd.Context(), e.cfg.Embedding)
			if err != nil {
				return err
			}
			_, stats, err := cache.Ensure(cmd.Context(), reg, producer, cachePath)
			if err != nil {
				return err
			}
			e.logger.Info("cache warmed", zap.Int("computed", stats.Computed), zap.Int("reused", stats.Reused), zap.Int("pruned", stats.Pruned))
			return writeJSON(a, struct {
				Path string `json:"path"`
				cache.Stats
			}{Path: cachePath, Stats: stats})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "List registry texts that still need embeddings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, reg, cachePath, err := a.loadRegistry(cmd)
			if err != nil {
				return err
			}
			defer e.closeLog()

			stale := cache.Stale(reg, cache.Load(cachePath))
			if stale == nil {
				stale = []cache.StaleText{}
			}
			return writeJSON(a, struct {
				Path  string            `json:"path"`
				Stale []cache.StaleText `json:"stale"`
			}{Path: cachePath, Stale: stale})
		},
	}

	cmd.AddCommand(warm, status)
	return cmd
}

func (a *app) loadRegistry(cmd *cobra.Command) (env, registry.Registry, string, error) {
	e, err := a.setup(cmd)
	if err != nil {
		return env{}, registry.Registry{}, "", err
	}
	registryPath, err := e.cfg.RegistryPath()
	if err != nil {
		e.closeLog()
		return env{}, registry.Registry{}, "", err
	}
	cachePath, err := e.cfg.CachePath()
	if err != nil {
		e.closeLog()
		return env{}, registry.Registry{}, "", err
	}
	reg, err := registry.Load(registryPath)
	if err != nil {
		e.closeLog()
		return env{}, registry.Registry{}, "", err
	}
	return e, reg, cachePath, nil
}

func (a *app) registryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the command registry",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the starter registry if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			defer e.closeLog()

			path, err := e.cfg.RegistryPath()
			if err != nil {
				return err
			}
			written, err := registry.WriteDefault(path)
			if err != nil {
				return err
			}
			if written {
				fmt.Fprintf(a.stdout, "wrote starter registry to %s\n", path)
			} else {
				fmt.Fprintf(a.stdout, "registry already exists at %s\n", path)
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, reg, _, err := a.loadRegistry(cmd)
			if err != nil {
				return err
			}
			defer e.closeLog()

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDANGEROUS\tDESCRIPTION")
			for _, c := range reg.Commands {
				danger := ""
				if c.Dangerous {
					danger = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, danger, c.Description)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(initCmd, list)
	return cmd
}

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}

	show := &cobra.Command{
		Use:   "show [key]",
		Short: "Print the effective config, or one key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			defer e.closeLog()

			if len(args) == 1 {
				value, err := e.cfg.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, value)
				return nil
			}
			encoded, err := toml.Marshal(e.cfg)
			if err != nil {
				return fmt.Errorf("could not encode config: %w", err)
			}
			fmt.Fprintf(a.stdout, "# %s\n%s", e.configPath, encoded)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			defer e.closeLog()

			// Start from the file alone so env and flag overrides are not persisted.
			cfg, err := config.LoadFrom(e.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(e.configPath, cfg); err != nil {
				return err
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s=%s\n", strings.ToLower(strings.TrimSpace(args[0])), value)
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func (a *app) auditCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print recent resolution outcomes as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := audit.Default()
			if err != nil {
				return err
			}
			events, err := log.List(limit)
			if err != nil {
				return err
			}
			for _, ev := range events {
				line, err := json.Marshal(ev)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, string(line))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events (0 for all)")
	return cmd
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(a.stdout, version)
		},
	}
}

func writeJSON(a *app, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, string(encoded))
	return nil
}
