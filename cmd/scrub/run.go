package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wudi/pdfscrub/config"
	"github.com/wudi/pdfscrub/observability"
	"github.com/wudi/pdfscrub/pipeline"
	"github.com/wudi/pdfscrub/raster"
)

// defaultTargets are the answer marks used by the exams this tool was built
// for.
var defaultTargets = []string{
	"X", "V", "F", "IF", "II", "TD", "GE", "RP", "TE", "POP", "DD", "P", "RA", "RH", "B", "N",
}

// OutputSuffix is appended to each input's base name.
const OutputSuffix = "_SinCorreccion.pdf"

type runOptions struct {
	targets []string
	outDir  string
	scale   float64
	jobs    int
	codec   string
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run [flags] <file-or-dir>...",
		Short: "Scrub every PDF named or found under the given directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, args)
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&opts.targets, "targets", "t", defaultTargets, "answer strings to erase")
	f.StringVarP(&opts.outDir, "out", "o", "out", "output directory")
	f.Float64Var(&opts.scale, "scale", raster.BatchScale, "render zoom factor")
	f.IntVarP(&opts.jobs, "jobs", "j", runtime.NumCPU(), "files processed concurrently")
	f.StringVar(&opts.codec, "codec", "", "page image codec: jpeg or flate (default from config)")
	return cmd
}

func runBatch(cmd *cobra.Command, opts runOptions, args []string) error {
	cfg, err := config.Load(cfgFile, ".env")
	if err != nil {
		return err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: "console",
		Output: cmd.ErrOrStderr(),
	})

	cfg.Pipeline.Scale = opts.scale
	if opts.codec != "" {
		cfg.Pipeline.Codec = opts.codec
	}
	pc, err := cfg.Pipeline.Build(pipeline.BatchConfig())
	if err != nil {
		return err
	}
	p, err := pipeline.New(pc, pipeline.WithLogger(logger))
	if err != nil {
		return err
	}

	inputs, err := collectInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no PDF files found")
	}
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(inputs),
		progressbar.OptionSetDescription("scrubbing"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
	)

	var (
		mu       sync.Mutex
		failures []string
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(opts.jobs, 1))
	for _, in := range inputs {
		g.Go(func() error {
			defer bar.Add(1)
			out := outputPath(opts.outDir, in)
			if err := scrubFile(ctx, p, in, out, opts.targets); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error("scrub failed", observability.String("file", in), observability.Error("error", err))
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", in, err))
				mu.Unlock()
				return nil
			}
			logger.Info("scrubbed", observability.String("file", in), observability.String("out", out))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d files failed:\n  %s", len(failures), len(inputs), strings.Join(failures, "\n  "))
	}
	return nil
}

func scrubFile(ctx context.Context, p *pipeline.Pipeline, in, out string, targets []string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	result, err := p.Run(ctx, data, targets)
	if err != nil {
		return err
	}
	return os.WriteFile(out, result, 0o644)
}

// collectInputs expands directories to the PDFs below them, in walk order.
func collectInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func outputPath(dir, in string) string {
	base := filepath.Base(in)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+OutputSuffix)
}
