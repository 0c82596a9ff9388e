// Package icogen turns a source image into a multi-resolution icon
// container.
//
// A Generator runs jobs through Validating, Preparing, Generating,
// Encoding and optionally Compressing. Every artifact is staged in a
// per-job temporary directory and only moved into place once the whole job
// has succeeded, so a failed job never disturbs earlier output.
package icogen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"git.sr.ht/~jackmordaunt/icogen/ico"
	"git.sr.ht/~jackmordaunt/icogen/internal/util"
	"git.sr.ht/~jackmordaunt/icogen/raster"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

// Request describes one generation job.
type Request struct {
	// Source is the image path. It also identifies the job: only one job
	// per source runs at a time.
	Source string
	// Image, if set, is used instead of loading Source.
	Image *raster.Source
	// Sizes to generate. Empty selects DefaultSides.
	Sizes []SizeSpec
	// Dest is the container path.
	Dest string
	// PNGDir, if set, receives one <base>-<side>.png per frame.
	PNGDir string
	// ICNS, if set, is the path of a companion macOS icon.
	ICNS string
	// Compress re-encodes frames at maximum compression.
	Compress bool
	// Progress observes percentages in [0,100]. It is called from another
	// goroutine and never blocks the job.
	Progress func(int)
}

// Result reports the outcome of a job.
type Result struct {
	JobID   string
	OK      bool
	Message string
	State   State
	// Sides holds the side lengths packed into the container, ascending.
	Sides []int
	// Skipped lists selected sizes the source was too small for.
	Skipped []*UnsupportedSizeError
	// Bytes is the container size.
	Bytes int
	// PNGs lists the frame files written.
	PNGs []string
}

// Generator runs generation jobs.
type Generator struct {
	Engine raster.Engine
	// Workers bounds parallel per-size work. Zero means runtime.NumCPU.
	Workers int
	// SVGSide is the side vector sources are rasterised at.
	SVGSide int
	// TempDir holds job staging directories. Empty means os.TempDir.
	TempDir string
	Logger  hclog.Logger

	mu      sync.Mutex
	running map[string]*job
}

// New returns a generator with the default engine settings.
func New(logger hclog.Logger) *Generator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Generator{
		Engine: raster.Engine{
			Filter:  raster.CatmullRom,
			Sharpen: raster.DefaultSharpen,
		},
		Workers: runtime.NumCPU(),
		SVGSide: raster.DefaultSVGSide,
		Logger:  logger,
	}
}

// job is the bookkeeping for one in-flight request.
type job struct {
	id     string
	source string
	mu     sync.Mutex
	state  State
	log    hclog.Logger
}

func (j *job) enter(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
	j.log.Debug("state", "state", s)
}

func (j *job) current() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Status returns the state of the job running for source, if any.
func (g *Generator) Status(source string) (State, bool) {
	key := identity(source)
	g.mu.Lock()
	defer g.mu.Unlock()
	j, ok := g.running[key]
	if !ok {
		return Idle, false
	}
	return j.current(), true
}

func (g *Generator) logger() hclog.Logger {
	if g.Logger == nil {
		return hclog.NewNullLogger()
	}
	return g.Logger
}

// acquire registers a job for source or rejects it if one is in flight.
func (g *Generator) acquire(source string) (*job, error) {
	key := identity(source)
	g.mu.Lock()
	defer g.mu.Unlock()
	if j, ok := g.running[key]; ok {
		return nil, &AlreadyRunningError{Source: source, JobID: j.id}
	}
	if g.running == nil {
		g.running = make(map[string]*job)
	}
	id := uuid.NewString()
	j := &job{
		id:     id,
		source: key,
		state:  Idle,
		log:    g.logger().With("job", id, "source", source),
	}
	g.running[key] = j
	return j, nil
}

func (g *Generator) release(j *job) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, j.source)
}

func identity(source string) string {
	if abs, err := filepath.Abs(source); err == nil {
		return abs
	}
	return filepath.Clean(source)
}

// Generate runs one job to completion. The Result is always populated; on
// failure OK is false, State is Failed and the error is also returned.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	source := req.Source
	if source == "" && req.Image != nil {
		source = req.Image.Path
	}
	j, err := g.acquire(source)
	if err != nil {
		return Result{State: Failed, Message: err.Error()}, err
	}
	defer g.release(j)
	prog := newProgress(req.Progress)
	res, err := g.run(ctx, j, req, prog)
	res.JobID = j.id
	if err != nil {
		j.enter(Failed)
		res.State, res.OK, res.Message = Failed, false, err.Error()
		j.log.Error("job failed", "error", err)
	} else {
		prog.report(100)
		j.enter(Done)
		res.State, res.OK = Done, true
		res.Message = summary(req.Dest, res)
		j.log.Info("job done", "dest", req.Dest, "frames", len(res.Sides), "bytes", res.Bytes)
	}
	prog.close()
	return res, err
}

func (g *Generator) run(ctx context.Context, j *job, req Request, prog *progress) (res Result, err error) {
	if req.Dest == "" {
		return res, ErrNoDestination
	}
	j.enter(Validating)
	src := req.Image
	if src == nil {
		src, err = openSource(req.Source, g.SVGSide)
		if err != nil {
			return res, err
		}
	}
	specs := req.Sizes
	if len(specs) == 0 {
		specs = Sizes(DefaultSides...)
	}
	sides, skipped := plan(Resolve(specs, src.MinSide()), src.MinSide())
	res.Skipped = skipped
	for _, s := range skipped {
		j.log.Warn("skipping size", "size", s.SideLength, "max", s.Max)
	}
	if len(sides) == 0 {
		return res, ErrNoSizes
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	prog.report(5)

	j.enter(Preparing)
	square := raster.Square(src.Image)
	staging, err := os.MkdirTemp(g.TempDir, "icogen-"+j.id+"-")
	if err != nil {
		return res, &IOError{Op: "creating staging directory", Path: g.TempDir, Err: err}
	}
	defer func() {
		rmErr := os.RemoveAll(staging)
		if rmErr == nil {
			return
		}
		j.log.Warn("removing staging directory", "dir", staging, "error", rmErr)
		if err != nil {
			var errs util.MultiError
			errs.Add(err)
			errs.Add(&IOError{Op: "remove", Path: staging, Err: rmErr})
			err = errs
		}
	}()
	prog.report(10)

	j.enter(Generating)
	frames, staged, err := g.render(ctx, j, square, sides, src.Base(), staging, prog)
	if err != nil {
		return res, err
	}

	j.enter(Encoding)
	data, err := ico.Marshal(ico.TypeIcon, frames)
	if err != nil {
		return res, fmt.Errorf("encoding container: %w", err)
	}
	prog.report(85)
	if req.Compress {
		j.enter(Compressing)
		frames, err = ico.Recompress(ctx, frames)
		if err != nil {
			return res, fmt.Errorf("compressing frames: %w", err)
		}
		if data, err = ico.Marshal(ico.TypeIcon, frames); err != nil {
			return res, fmt.Errorf("encoding container: %w", err)
		}
	}
	container := filepath.Join(staging, fmt.Sprintf("%s-%s.ico", src.Base(), j.id))
	if err := os.WriteFile(container, data, 0o644); err != nil {
		return res, &IOError{Op: "staging container", Path: container, Err: err}
	}
	var icnsStaged string
	if req.ICNS != "" {
		icnsStaged = filepath.Join(staging, fmt.Sprintf("%s-%s.icns", src.Base(), j.id))
		if err := writeICNS(icnsStaged, square); err != nil {
			return res, err
		}
	}
	prog.report(90)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	// Companions first and the container last; any failure restores
	// whatever was at the destinations before.
	pub := publication{job: j.id}
	var pngs []string
	if req.PNGDir != "" {
		for ii, side := range sides {
			if req.Compress {
				if err := os.WriteFile(staged[ii], frames[ii].Data, 0o644); err != nil {
					return res, &IOError{Op: "staging frame", Path: staged[ii], Err: err}
				}
			}
			dst := filepath.Join(req.PNGDir, fmt.Sprintf("%s-%d.png", src.Base(), side))
			pub.add(staged[ii], dst)
			pngs = append(pngs, dst)
		}
	}
	if icnsStaged != "" {
		pub.add(icnsStaged, req.ICNS)
	}
	pub.add(container, req.Dest)
	if err := pub.commit(); err != nil {
		return res, err
	}
	res.Sides, res.Bytes, res.PNGs = sides, len(data), pngs
	return res, nil
}

// render scales the square intermediate to every side on a bounded pool.
// Each worker owns one frame slot and stages its frame in a file named with
// the job id and side length. Cancellation is checked before each size
// starts, never in the middle of one.
func (g *Generator) render(
	ctx context.Context,
	j *job,
	square image.Image,
	sides []int,
	base, staging string,
	prog *progress,
) ([]ico.Frame, []string, error) {
	var (
		frames = make([]ico.Frame, len(sides))
		staged = make([]string, len(sides))
		mu     sync.Mutex
		done   int
	)
	workers := g.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for ii, side := range sides {
		if gctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := g.Engine.Render(square, side)
			if err != nil {
				return fmt.Errorf("rendering %d: %w", side, err)
			}
			path := filepath.Join(staging, fmt.Sprintf("%s-%s-%d.png", base, j.id, side))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return &IOError{Op: "staging frame", Path: path, Err: err}
			}
			frames[ii], staged[ii] = ico.NewPNGFrame(side, data), path
			mu.Lock()
			done++
			prog.report(10 + 70*done/len(sides))
			mu.Unlock()
			j.log.Trace("rendered frame", "size", side, "bytes", len(data))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	for _, f := range frames {
		if f.Data == nil {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			return nil, nil, context.Canceled
		}
	}
	return frames, staged, nil
}

// openSource loads a source, reporting undecodable content as a
// *ico.DecodeError and unreadable files as an *IOError.
func openSource(path string, svgSide int) (*raster.Source, error) {
	src, err := raster.Open(path, svgSide)
	if errors.Is(err, raster.ErrDecode) {
		return nil, &ico.DecodeError{Reason: "decoding source " + path, Err: err}
	}
	if err != nil {
		return nil, &IOError{Op: "reading source", Path: path, Err: err}
	}
	return src, nil
}

func summary(dest string, res Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "wrote %d frames (%s) to %s", len(res.Sides), joinInts(res.Sides), dest)
	if len(res.Skipped) > 0 {
		skipped := make([]int, len(res.Skipped))
		for ii, s := range res.Skipped {
			skipped[ii] = s.SideLength
		}
		sort.Ints(skipped)
		fmt.Fprintf(&b, "; skipped %s (source is %dpx)", joinInts(skipped), res.Skipped[0].Max)
	}
	return b.String()
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for ii, n := range ns {
		parts[ii] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}
