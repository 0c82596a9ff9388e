package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"git.sr.ht/~jackmordaunt/icogen"
	"git.sr.ht/~jackmordaunt/icogen/internal/util"
	"git.sr.ht/~jackmordaunt/icogen/raster"
	"github.com/spf13/cobra"
)

// jobFlags are shared by generate and watch.
type jobFlags struct {
	output   string
	sizes    string
	filter   string
	sharpen  float64
	workers  int
	compress bool
	pngs     string
	icns     string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Container path (default <source>.ico)")
	cmd.Flags().StringVarP(&f.sizes, "sizes", "s", "", "Comma separated side lengths (default from config)")
	cmd.Flags().StringVar(&f.filter, "filter", "", "Resampling filter: catmull-rom, lanczos, lanczos3")
	cmd.Flags().Float64Var(&f.sharpen, "sharpen", 0, "Sharpening sigma after downscaling, 0 disables")
	cmd.Flags().IntVarP(&f.workers, "workers", "j", 0, "Parallel workers (default from config)")
	cmd.Flags().BoolVar(&f.compress, "compress", false, "Recompress frames at maximum PNG compression")
	cmd.Flags().StringVar(&f.pngs, "pngs", "", "Also write <base>-<side>.png frames into this directory")
	cmd.Flags().StringVar(&f.icns, "icns", "", "Also write a macOS .icns to this path")
}

// generator builds a Generator from config overlaid with flags.
func (f *jobFlags) generator(cmd *cobra.Command) (*icogen.Generator, error) {
	g := icogen.New(logger)
	filter := cfg.Filter
	if cmd.Flags().Changed("filter") {
		filter = f.filter
	}
	var err error
	if g.Engine.Filter, err = raster.ParseFilter(filter); err != nil {
		return nil, usageError{err}
	}
	g.Engine.Sharpen = cfg.Sharpen
	if cmd.Flags().Changed("sharpen") {
		if f.sharpen < 0 {
			return nil, usagef("negative sharpen sigma %v", f.sharpen)
		}
		g.Engine.Sharpen = f.sharpen
	}
	g.Workers = cfg.Workers
	if cmd.Flags().Changed("workers") {
		if f.workers < 1 {
			return nil, usagef("workers must be positive")
		}
		g.Workers = f.workers
	}
	g.SVGSide = cfg.SVGSide
	return g, nil
}

// request builds the job request for source.
func (f *jobFlags) request(cmd *cobra.Command, source string) (icogen.Request, error) {
	specs := icogen.Sizes(cfg.Sizes...)
	if cmd.Flags().Changed("sizes") {
		var err error
		if specs, err = icogen.ParseSizes(f.sizes); err != nil {
			return icogen.Request{}, usageError{err}
		}
	}
	dest := f.output
	if dest == "" {
		dest = strings.TrimSuffix(source, filepath.Ext(source)) + ".ico"
	}
	pngs := f.pngs
	if pngs == "" && cfg.PNGs {
		pngs = filepath.Dir(dest)
	}
	icns := f.icns
	if icns == "" && cfg.ICNS {
		icns = strings.TrimSuffix(dest, filepath.Ext(dest)) + ".icns"
	}
	return icogen.Request{
		Source:   source,
		Sizes:    specs,
		Dest:     dest,
		PNGDir:   pngs,
		ICNS:     icns,
		Compress: f.compress || cfg.Compress,
	}, nil
}

// findSource resolves the positional source or searches the working
// directory for a conventional icon file.
func findSource(a []string) (string, error) {
	if len(a) > 0 {
		return a[0], nil
	}
	found, err := util.Finder{Root: "."}.Find("icon.png", "icon.svg")
	if err != nil {
		return "", fmt.Errorf("finding icon: %w", err)
	}
	if found == "" {
		return "", usagef("no source given and no icon.png or icon.svg found")
	}
	return found, nil
}

func newGenerateCmd() *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "generate [source]",
		Short: "Generate an icon container from an image",
		Long: `Generate scales the source to each requested size and packs the frames
into a single .ico. Sizes larger than the source are skipped. Without a
source, the nearest icon.png or icon.svg below the working directory is used.`,
		Args: args(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			source, err := findSource(a)
			if err != nil {
				return err
			}
			g, err := flags.generator(cmd)
			if err != nil {
				return err
			}
			req, err := flags.request(cmd, source)
			if err != nil {
				return err
			}
			req.Progress = func(pct int) {
				logger.Debug("progress", "percent", pct)
			}
			res, err := g.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
