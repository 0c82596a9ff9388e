package icogen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"git.sr.ht/~jackmordaunt/icogen/ico"
	"github.com/stretchr/testify/require"
)

// source writes a w x h PNG with a diagonal gradient and returns its path.
func source(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func generator(t *testing.T) *Generator {
	g := New(nil)
	g.Workers = 2
	g.TempDir = t.TempDir()
	return g
}

func decode(t *testing.T, path string) *ico.Container {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	c, err := ico.Unmarshal(data)
	require.NoError(t, err)
	return c
}

func TestSquareSourceAllSizes(t *testing.T) {
	dir := t.TempDir()
	g := generator(t)
	dest := filepath.Join(dir, "out", "app.ico")

	res, err := g.Generate(context.Background(), Request{
		Source: source(t, dir, "app.png", 512, 512),
		Sizes:  Sizes(16, 32, 48, 256),
		Dest:   dest,
	})
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, Done, res.State)
	require.Equal(t, []int{16, 32, 48, 256}, res.Sides)
	require.Empty(t, res.Skipped)

	c := decode(t, dest)
	require.Len(t, c.Frames, 4)
	for _, f := range c.Frames {
		cfg, err := png.DecodeConfig(bytes.NewReader(f.Data))
		require.NoError(t, err)
		require.Equal(t, f.SideLength, cfg.Width)
		require.Equal(t, f.SideLength, cfg.Height)
		require.Equal(t, byte(6), f.Data[25], "frame %d is not RGBA", f.SideLength)
		require.Equal(t, 32, f.BitDepth)
	}
	best, ok := c.Best()
	require.True(t, ok)
	require.Equal(t, 256, best.SideLength)
}

func TestSmallSourceSkipsLargerSizes(t *testing.T) {
	dir := t.TempDir()
	g := generator(t)
	dest := filepath.Join(dir, "small.ico")

	res, err := g.Generate(context.Background(), Request{
		Source: source(t, dir, "small.png", 20, 20),
		Sizes:  Sizes(16, 32, 256),
		Dest:   dest,
	})
	require.NoError(t, err)
	require.Equal(t, []int{16}, res.Sides)
	require.Len(t, res.Skipped, 2)
	require.Equal(t, 32, res.Skipped[0].SideLength)
	require.Equal(t, 256, res.Skipped[1].SideLength)
	require.Equal(t, 20, res.Skipped[0].Max)
	require.Contains(t, res.Message, "skipped 32,256")
	require.Len(t, decode(t, dest).Frames, 1)
}

func TestResolve(t *testing.T) {
	specs := Resolve([]SizeSpec{
		{SideLength: 16, Selected: true},
		{SideLength: 20, Selected: true},
		{SideLength: 21, Selected: true},
		{SideLength: 16, Selected: false},
		{SideLength: 8},
	}, 20)
	require.Len(t, specs, 4)
	require.True(t, specs[0].Enabled)
	require.True(t, specs[0].Selected, "first occurrence wins")
	require.True(t, specs[1].Enabled, "side equal to the source is included")
	require.False(t, specs[2].Enabled)
	require.True(t, specs[3].Enabled)
	require.True(t, SizeSpec{SideLength: 16}.Equal(SizeSpec{SideLength: 16, Selected: true}))

	sides, skipped := plan(specs, 20)
	require.Equal(t, []int{16, 20}, sides, "unselected sizes are not generated")
	require.Len(t, skipped, 1)
	require.Equal(t, 21, skipped[0].SideLength)
}

func TestParseSizes(t *testing.T) {
	specs, err := ParseSizes("16, 32,,48")
	require.NoError(t, err)
	require.Equal(t, Sizes(16, 32, 48), specs)
	for _, bad := range []string{"", "16,abc", "0", "257"} {
		_, err := ParseSizes(bad)
		require.Error(t, err, bad)
	}
}

func TestNoUsableSizes(t *testing.T) {
	dir := t.TempDir()
	res, err := generator(t).Generate(context.Background(), Request{
		Source: source(t, dir, "tiny.png", 8, 8),
		Sizes:  Sizes(16, 32),
		Dest:   filepath.Join(dir, "tiny.ico"),
	})
	require.ErrorIs(t, err, ErrNoSizes)
	require.False(t, res.OK)
	require.Equal(t, Failed, res.State)
	_, err = os.Stat(filepath.Join(dir, "tiny.ico"))
	require.True(t, os.IsNotExist(err))
}

func TestAlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	g := generator(t)
	src := source(t, dir, "busy.png", 64, 64)

	held, err := g.acquire(src)
	require.NoError(t, err)
	state, ok := g.Status(src)
	require.True(t, ok)
	require.Equal(t, Idle, state)

	_, err = g.Generate(context.Background(), Request{
		Source: src,
		Sizes:  Sizes(16),
		Dest:   filepath.Join(dir, "busy.ico"),
	})
	var running *AlreadyRunningError
	require.True(t, errors.As(err, &running), "got %v", err)
	require.Equal(t, held.id, running.JobID)

	// Other sources are unaffected.
	_, err = g.Generate(context.Background(), Request{
		Source: source(t, dir, "other.png", 64, 64),
		Sizes:  Sizes(16),
		Dest:   filepath.Join(dir, "other.ico"),
	})
	require.NoError(t, err)

	g.release(held)
	_, err = g.Generate(context.Background(), Request{
		Source: src,
		Sizes:  Sizes(16),
		Dest:   filepath.Join(dir, "busy.ico"),
	})
	require.NoError(t, err)
	_, ok = g.Status(src)
	require.False(t, ok)
}

func TestFailureLeavesDestination(t *testing.T) {
	dir := t.TempDir()
	g := generator(t)
	dest := filepath.Join(dir, "keep.ico")
	require.NoError(t, os.WriteFile(dest, []byte("previous"), 0o644))

	// Undecodable source.
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err := g.Generate(context.Background(), Request{Source: bad, Dest: dest})
	var de *ico.DecodeError
	require.True(t, errors.As(err, &de), "got %v", err)

	// Cancelled before the first size.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Generate(ctx, Request{
		Source: source(t, dir, "ok.png", 64, 64),
		Sizes:  Sizes(16, 32),
		Dest:   dest,
	})
	require.ErrorIs(t, err, context.Canceled)

	by, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "previous", string(by))

	staging, err := os.ReadDir(g.TempDir)
	require.NoError(t, err)
	require.Empty(t, staging, "staging directories must be removed")
}

func TestUnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := generator(t).Generate(context.Background(), Request{
		Source: source(t, dir, "ok.png", 32, 32),
		Sizes:  Sizes(16),
		Dest:   filepath.Join(blocker, "out.ico"),
	})
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr), "got %v", err)
}

func TestCompanionFailureKeepsDestination(t *testing.T) {
	dir := t.TempDir()
	g := generator(t)
	dest := filepath.Join(dir, "keep.ico")
	require.NoError(t, os.WriteFile(dest, []byte("previous"), 0o644))
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	res, err := g.Generate(context.Background(), Request{
		Source: source(t, dir, "ok.png", 32, 32),
		Sizes:  Sizes(16, 32),
		Dest:   dest,
		PNGDir: filepath.Join(blocker, "pngs"),
	})
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr), "got %v", err)
	require.Equal(t, Failed, res.State)
	require.False(t, res.OK)

	by, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "previous", string(by))
	staging, err := os.ReadDir(g.TempDir)
	require.NoError(t, err)
	require.Empty(t, staging)
}

func TestPublicationRestoresOnFailure(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(old, []byte("old a"), 0o644))
	fresh := filepath.Join(dir, "b.png")
	stagedA := filepath.Join(dir, "staged-a")
	require.NoError(t, os.WriteFile(stagedA, []byte("new a"), 0o644))
	stagedB := filepath.Join(dir, "staged-b")
	require.NoError(t, os.WriteFile(stagedB, []byte("new b"), 0o644))

	pub := publication{job: "job"}
	pub.add(stagedA, old)
	pub.add(stagedB, fresh)
	pub.add(filepath.Join(dir, "missing"), filepath.Join(dir, "app.ico"))
	var ioErr *IOError
	require.True(t, errors.As(pub.commit(), &ioErr))

	by, err := os.ReadFile(old)
	require.NoError(t, err)
	require.Equal(t, "old a", string(by))
	_, err = os.Stat(fresh)
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(dir, "app.ico"))
	require.ErrorIs(t, err, os.ErrNotExist)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".bak")
	}
}

func TestConcurrentSameBaseName(t *testing.T) {
	var (
		dir   = t.TempDir()
		g     = generator(t)
		left  = filepath.Join(dir, "left")
		right = filepath.Join(dir, "right")
	)
	require.NoError(t, os.MkdirAll(left, 0o755))
	require.NoError(t, os.MkdirAll(right, 0o755))
	jobs := []struct {
		src  string
		dest string
		pngs string
		want []int
	}{
		{source(t, left, "icon.png", 64, 64), filepath.Join(left, "icon.ico"), filepath.Join(left, "pngs"), []int{16, 32, 48}},
		{source(t, right, "icon.png", 32, 32), filepath.Join(right, "icon.ico"), filepath.Join(right, "pngs"), []int{16, 32}},
	}
	var (
		wg   sync.WaitGroup
		errs = make([]error, len(jobs))
		ids  = make([]string, len(jobs))
	)
	for ii, job := range jobs {
		wg.Add(1)
		go func(ii int) {
			defer wg.Done()
			res, err := g.Generate(context.Background(), Request{
				Source: job.src,
				Sizes:  Sizes(16, 32, 48),
				Dest:   job.dest,
				PNGDir: job.pngs,
			})
			errs[ii], ids[ii] = err, res.JobID
		}(ii)
	}
	wg.Wait()
	require.NotEqual(t, ids[0], ids[1])
	for ii, job := range jobs {
		require.NoError(t, errs[ii])
		c := decode(t, job.dest)
		var sides []int
		for _, f := range c.Frames {
			sides = append(sides, f.SideLength)
			by, err := os.ReadFile(filepath.Join(job.pngs, fmt.Sprintf("icon-%d.png", f.SideLength)))
			require.NoError(t, err)
			require.Equal(t, f.Data, by)
		}
		require.ElementsMatch(t, job.want, sides)
	}
	staging, err := os.ReadDir(g.TempDir)
	require.NoError(t, err)
	require.Empty(t, staging)
}

func TestProgressMonotonic(t *testing.T) {
	dir := t.TempDir()
	var (
		mu   sync.Mutex
		seen []int
	)
	_, err := generator(t).Generate(context.Background(), Request{
		Source: source(t, dir, "p.png", 128, 128),
		Sizes:  Sizes(16, 24, 32, 48, 64, 128),
		Dest:   filepath.Join(dir, "p.ico"),
		Progress: func(pct int) {
			mu.Lock()
			seen = append(seen, pct)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	require.Equal(t, 0, seen[0])
	for ii := 1; ii < len(seen); ii++ {
		require.Greater(t, seen[ii], seen[ii-1])
	}
	require.Equal(t, 100, seen[len(seen)-1])
}

func TestProgressNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	var got []int
	p := newProgress(func(pct int) {
		<-release
		got = append(got, pct)
	})
	for pct := 0; pct <= 100; pct += 10 {
		p.report(pct)
	}
	p.report(50)
	close(release)
	p.close()
	require.NotEmpty(t, got)
	require.Equal(t, 100, got[len(got)-1])
	for ii := 1; ii < len(got); ii++ {
		require.Greater(t, got[ii], got[ii-1])
	}
}

func TestCompanions(t *testing.T) {
	dir := t.TempDir()
	pngs := filepath.Join(dir, "pngs")
	dest := filepath.Join(dir, "app.ico")
	icnsPath := filepath.Join(dir, "app.icns")

	res, err := generator(t).Generate(context.Background(), Request{
		Source:   source(t, dir, "app.png", 64, 48),
		Sizes:    Sizes(16, 32),
		Dest:     dest,
		PNGDir:   pngs,
		ICNS:     icnsPath,
		Compress: true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(pngs, "app-16.png"),
		filepath.Join(pngs, "app-32.png"),
	}, res.PNGs)

	c := decode(t, dest)
	for _, f := range c.Frames {
		by, err := os.ReadFile(filepath.Join(pngs, fmt.Sprintf("app-%d.png", f.SideLength)))
		require.NoError(t, err)
		require.Equal(t, f.Data, by, "png companions match container frames")
	}

	by, err := os.ReadFile(icnsPath)
	require.NoError(t, err)
	require.Equal(t, "icns", string(by[:4]))
}

func TestWorkspace(t *testing.T) {
	dir := t.TempDir()
	g := generator(t)
	ws := NewWorkspace(g, 0)
	a := source(t, dir, "a.png", 40, 20)
	b := source(t, dir, "b.png", 64, 64)

	require.NoError(t, ws.Load(a))
	require.NoError(t, ws.Load(b))
	require.NoError(t, ws.Resize(32))
	src, size := ws.Current()
	require.Equal(t, 32, src.Width)
	require.Equal(t, 32, size.Width)

	require.NoError(t, ws.Undo())
	src, size = ws.Current()
	require.Equal(t, b, src.Path)
	require.Equal(t, 64, size.Width)
	require.NoError(t, ws.Undo())
	src, size = ws.Current()
	require.Equal(t, a, src.Path)
	require.Equal(t, 40, size.Width)
	require.Equal(t, 20, size.Height)

	require.NoError(t, ws.Redo())
	require.NoError(t, ws.Redo())
	src, _ = ws.Current()
	require.Equal(t, 32, src.Width)

	res, err := ws.Generate(context.Background(), Request{
		Sizes: Sizes(16, 32, 48),
		Dest:  filepath.Join(dir, "ws.ico"),
	})
	require.NoError(t, err)
	require.Equal(t, []int{16, 32}, res.Sides)
	require.Len(t, res.Skipped, 1)

	// A new change discards the redo history.
	require.NoError(t, ws.Undo())
	require.NoError(t, ws.Resize(16))
	require.Error(t, ws.Redo())
}

func pixels(t *testing.T, ws *Workspace) []byte {
	t.Helper()
	src, _ := ws.Current()
	require.NotNil(t, src)
	n, ok := src.Image.(*image.NRGBA)
	require.True(t, ok)
	return append([]byte(nil), n.Pix...)
}

func TestWorkspaceRepeatedResize(t *testing.T) {
	dir := t.TempDir()
	ws := NewWorkspace(generator(t), 0)
	require.NoError(t, ws.Load(source(t, dir, "x.png", 256, 256)))

	require.NoError(t, ws.Resize(32))
	first := pixels(t, ws)
	require.NoError(t, ws.Resize(8))
	require.NoError(t, ws.Resize(32))
	require.NotEqual(t, first, pixels(t, ws), "upscaled pixels differ from the first resize")

	require.NoError(t, ws.Undo())
	require.NoError(t, ws.Undo())
	require.Equal(t, first, pixels(t, ws))
	_, size := ws.Current()
	require.Equal(t, 32, size.Width)
}

func TestWorkspacePrunesUnreferenced(t *testing.T) {
	dir := t.TempDir()
	ws := NewWorkspace(generator(t), 2)
	require.NoError(t, ws.Load(source(t, dir, "x.png", 64, 64)))
	for _, side := range []int{16, 8, 4} {
		require.NoError(t, ws.Resize(side))
	}
	// The load fell off the bounded history.
	require.Equal(t, 3, ws.Len())

	// Clearing the redo stack releases the raster it pointed to.
	require.NoError(t, ws.Undo())
	require.NoError(t, ws.Resize(2))
	require.Equal(t, 3, ws.Len())
	require.NoError(t, ws.Undo())
	require.NoError(t, ws.Undo())
	src, _ := ws.Current()
	require.Equal(t, 16, src.Width)
}

func TestNoDestination(t *testing.T) {
	dir := t.TempDir()
	res, err := generator(t).Generate(context.Background(), Request{
		Source: source(t, dir, "ok.png", 32, 32),
	})
	require.ErrorIs(t, err, ErrNoDestination)
	require.Equal(t, Failed, res.State)
}
