package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"xsection-editor/internal/config"
	"xsection-editor/internal/overlap"
	"xsection-editor/internal/repository"
	"xsection-editor/internal/version"
	"xsection-editor/internal/versioning"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "xsbatch",
		Short:         "Batch tools for ESTRY-TUFLOW cross-section files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "settings file (default: built-in settings)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log each file")

	root.AddCommand(newNormalizeCmd(opts), newClassifyCmd(opts), newVersionCmd())
	return root
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// load reads the settings named by --config. A missing --config uses the
// defaults without touching the user's config file.
func (o *options) load() (config.Config, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}
	data, err := os.ReadFile(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	return config.Parse(data)
}

// expandPaths replaces directories by the .csv files in them.
func expandPaths(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, a)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(a, "*.csv"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}

func loadAll(ctx context.Context, repo *repository.Repository, paths []string, w io.Writer) []error {
	_, errs := repo.LoadFiles(ctx, paths)
	var all []error
	for _, p := range paths {
		if err, ok := errs[p]; ok {
			fmt.Fprintf(w, "%s: %v\n", p, err)
			all = append(all, fmt.Errorf("%s: %w", p, err))
		}
	}
	return all
}

func newNormalizeCmd(opts *options) *cobra.Command {
	var (
		policy       string
		fixVerticals bool
		startAtZero  bool
		plotOnSave   bool
		all          bool
		jobs         int
	)
	cmd := &cobra.Command{
		Use:   "normalize PATH...",
		Short: "Normalize sections and save them under the naming policy",
		Long: `Loads each file (or every .csv file in a directory), applies the
configured normalization and writes the result. Files that need no change
are skipped unless --all is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("policy") {
				p, err := versioning.ParsePolicy(policy)
				if err != nil {
					return err
				}
				cfg.SaveNamingPolicy = string(p)
			}
			if flags.Changed("fix-verticals") {
				cfg.FixVerticalsAndOrder = fixVerticals
			}
			if flags.Changed("start-at-zero") {
				cfg.StartAtZero = startAtZero
			}
			if flags.Changed("plot") {
				cfg.PlotOnSave = plotOnSave
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			paths, err := expandPaths(args)
			if err != nil {
				return err
			}
			return runNormalize(cmd.Context(), cfg, opts.logger(cmd), paths, all, jobs, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&policy, "policy", "", "save naming policy: increment or in_place")
	f.BoolVar(&fixVerticals, "fix-verticals", false, "separate vertical segments and order by station")
	f.BoolVar(&startAtZero, "start-at-zero", false, "shift stations so the first is zero")
	f.BoolVar(&plotOnSave, "plot", false, "write a PNG plot beside each saved file")
	f.BoolVar(&all, "all", false, "save files that need no change too")
	f.IntVarP(&jobs, "jobs", "j", 4, "files saved in parallel")
	return cmd
}

func runNormalize(ctx context.Context, cfg config.Config, logger *slog.Logger, paths []string, all bool, jobs int, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	repo := repository.New(cfg, logger)
	errs := loadAll(ctx, repo, paths, w)

	var todo []string
	for _, id := range repo.IDs() {
		rec, err := repo.Get(id)
		if err != nil {
			continue
		}
		if all || rec.Dirty() {
			todo = append(todo, id)
		} else {
			fmt.Fprintf(w, "%s: unchanged\n", id)
		}
	}

	results := make([]string, len(todo))
	saveErrs := make([]error, len(todo))
	g, gctx := errgroup.WithContext(ctx)
	if jobs < 1 {
		jobs = 1
	}
	g.SetLimit(jobs)
	for i, id := range todo {
		i, id := i, id
		g.Go(func() error {
			res, err := repo.Save(gctx, id)
			if err != nil {
				saveErrs[i] = err
				return nil
			}
			results[i] = fmt.Sprintf("%s: saved %s", id, res.Path)
			if res.RenderErr != nil {
				results[i] += fmt.Sprintf(" (plot failed: %v)", res.RenderErr)
			} else if res.PlotPath != "" {
				results[i] += fmt.Sprintf(" (plot %s)", res.PlotPath)
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range todo {
		if saveErrs[i] != nil {
			fmt.Fprintf(w, "%s: %v\n", id, saveErrs[i])
			errs = append(errs, saveErrs[i])
			continue
		}
		fmt.Fprintln(w, results[i])
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d files failed: %w", len(errs), len(paths), errors.Join(errs...))
	}
	return nil
}

func newClassifyCmd(opts *options) *cobra.Command {
	var samples bool
	cmd := &cobra.Command{
		Use:   "classify BOUNDARY PATH...",
		Short: "Report which parts of each section lie inside a boundary polygon",
		Long: `Reads a WKT or GeoJSON polygon and prints, for every section, the
station ranges whose samples are inside or on the boundary. Samples
without coordinates are not classified.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			b, err := overlap.LoadBoundary(args[0])
			if err != nil {
				return err
			}
			paths, err := expandPaths(args[1:])
			if err != nil {
				return err
			}
			return runClassify(cmd.Context(), cfg, opts.logger(cmd), b, paths, samples, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&samples, "samples", false, "list the class of every sample")
	return cmd
}

func runClassify(ctx context.Context, cfg config.Config, logger *slog.Logger, b *overlap.Boundary, paths []string, perSample bool, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	repo := repository.New(cfg, logger)
	errs := loadAll(ctx, repo, paths, w)

	for _, id := range repo.IDs() {
		rec, err := repo.Get(id)
		if err != nil {
			continue
		}
		s := rec.Samples()
		classes := overlap.Classify(s, b)
		counts := map[overlap.Class]int{}
		for _, c := range classes {
			counts[c]++
		}
		fmt.Fprintf(w, "%s: %d samples, %d inside, %d on boundary, %d outside, %d without coordinates\n",
			id, len(s), counts[overlap.Inside], counts[overlap.OnBoundary], counts[overlap.Outside], len(s)-len(classes))
		for _, iv := range overlap.Intervals(s, classes) {
			fmt.Fprintf(w, "  overlap %g to %g (samples %d-%d)\n", iv.From, iv.To, iv.FirstIndex, iv.LastIndex)
		}
		if perSample {
			for i, smp := range s {
				class := "-"
				if c, ok := classes[i]; ok {
					class = c.String()
				}
				fmt.Fprintf(w, "  %d\t%g\t%g\t%s\n", i, smp.Station, smp.Elevation, class)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d files failed: %w", len(errs), len(paths), errors.Join(errs...))
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "xsbatch "+strings.TrimSpace(version.String()))
		},
	}
}
