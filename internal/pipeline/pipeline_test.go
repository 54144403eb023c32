package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/imgopt/internal/batch"
	"github.com/backmassage/imgopt/internal/config"
	"github.com/backmassage/imgopt/internal/imagetool"
	"github.com/backmassage/imgopt/internal/logging"
	"github.com/backmassage/imgopt/internal/special"
	"github.com/backmassage/imgopt/internal/term"
)

// --- Discovery tests ---

func TestFindTitles_Exclusions(t *testing.T) {
	public := t.TempDir()
	for _, d := range []string{"csm", "berserk", "csm-thumbnails", ".git", "index.html"} {
		require.NoError(t, os.MkdirAll(filepath.Join(public, d), 0o755))
	}
	touch(t, public, "readme.txt")

	titles, err := FindTitles(public, "-thumbnails")
	require.NoError(t, err)
	assert.Equal(t, []string{"berserk", "csm"}, titles)
}

func TestFindTitles_MissingPublicDir(t *testing.T) {
	titles, err := FindTitles(filepath.Join(t.TempDir(), "nope"), "-thumbnails")
	require.NoError(t, err)
	assert.Empty(t, titles)
}

func TestFindImages_RecursiveSortedCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vol2"), 0o755))
	touch(t, dir, "b.png")
	touch(t, dir, "A.JPG")
	touch(t, dir, "c.jpeg")
	touch(t, dir, "d.webp")
	touch(t, dir, "notes.txt")
	touch(t, filepath.Join(dir, "vol2"), "e.Png")

	files, err := FindImages(dir, sourceExts...)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.JPG", "b.png", "c.jpeg", "vol2/e.Png"}, rel(t, dir, files))

	webp, err := FindImages(dir, webpExts...)
	require.NoError(t, err)
	assert.Equal(t, []string{"d.webp"}, rel(t, dir, webp))
}

func TestFindImages_DuplicateExtsDeduped(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.png")
	files, err := FindImages(dir, ".png", ".PNG", ".png")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestHasOriginal(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.webp")
	touch(t, dir, "b.gif")
	touch(t, dir, "b.jpeg")

	assert.False(t, hasOriginal(filepath.Join(dir, "a.webp")))
	assert.True(t, hasOriginal(filepath.Join(dir, "b.gif")))
}

// --- RunTitle tests ---

func TestRunTitle_MissingDir(t *testing.T) {
	env := newEnv(t, nil)
	_, err := env.pipeline.RunTitle(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTitleNotFound))
	assert.Zero(t, env.runner.count())
	assert.Contains(t, env.errOut.String(), `Error processing "ghost"`)
}

func TestRunTitle_AllStages(t *testing.T) {
	env := newEnv(t, map[string][]string{"demo": {"box.png"}})
	main := env.title("demo", "a.png", "sub/b.jpg", "box.png", "orphan.gif", "has.webp", "has.png")

	stats, err := env.pipeline.RunTitle(context.Background(), "demo")
	require.NoError(t, err)

	assert.Equal(t, batch.Result{Attempted: 2, Succeeded: 2, Skipped: 1}, stats.Orphans)
	assert.FileExists(t, filepath.Join(main, "orphan.png"))

	// orphan.png produced by stage 1 is picked up by later stages.
	assert.Equal(t, batch.Result{Attempted: 5, Succeeded: 5}, stats.Thumbnails)
	assert.FileExists(t, filepath.Join(env.cfg.ThumbDir("demo"), "sub", "b.webp"))

	assert.Equal(t, batch.Result{Attempted: 1, Succeeded: 1}, stats.Special)
	assert.Equal(t, batch.Result{Attempted: 4, Succeeded: 4}, stats.Main)

	assert.Equal(t, 5, stats.MainWebPCount)
	assert.Equal(t, 5, stats.ThumbWebPCount)
	assert.Positive(t, stats.MainWebPBytes)
	assert.True(t, stats.Files().OK())

	boxCmds := env.runner.commandsFor(filepath.Join(main, "box.png"))
	require.Len(t, boxCmds, 2, "thumbnail pass then special pass")
	assert.Contains(t, boxCmds[1].Args, "WEBP:"+filepath.Join(main, "box.webp"))

	mainCmds := env.runner.commandsFor(filepath.Join(main, "a.png"))
	require.Len(t, mainCmds, 2, "thumbnail pass then magick pass")
	cw := env.runner.commandsFor(filepath.Join(main, "a.webp"))
	require.Len(t, cw, 1)
	assert.Equal(t, "cwebp", cw[0].Name)

	out := env.out.String()
	assert.Contains(t, out, "Processing Title: \"demo\"")
	assert.Contains(t, out, "Completed converting 4/4 main images")
	assert.Contains(t, out, "Size Report")
}

func TestRunTitle_SecondRunSkipsEverything(t *testing.T) {
	env := newEnv(t, map[string][]string{"demo": {"box.png"}})
	main := env.title("demo", "a.png", "box.png", "orphan.webp")

	_, err := env.pipeline.RunTitle(context.Background(), "demo")
	require.NoError(t, err)

	backdateSources(t, main)
	env.runner.reset()

	stats, err := env.pipeline.RunTitle(context.Background(), "demo")
	require.NoError(t, err)
	assert.Zero(t, env.runner.count())
	files := stats.Files()
	assert.Equal(t, files.Attempted, files.Skipped)
}

func TestRunTitle_ForceReprocesses(t *testing.T) {
	env := newEnv(t, nil)
	main := env.title("demo", "a.png")

	_, err := env.pipeline.RunTitle(context.Background(), "demo")
	require.NoError(t, err)
	backdateSources(t, main)
	env.runner.reset()

	env.cfg.Force = true
	stats, err := env.pipeline.RunTitle(context.Background(), "demo")
	require.NoError(t, err)
	assert.Zero(t, stats.Thumbnails.Skipped)
	assert.Zero(t, stats.Main.Skipped)
	// a.webp from the first run has a.png beside it; force does not apply
	// to the has-original rule.
	assert.Equal(t, batch.Result{Attempted: 1, Succeeded: 1, Skipped: 1}, stats.Orphans)
	assert.Equal(t, 3, env.runner.count(), "thumbnail + two main passes")
}

func TestRunTitle_OrphanScanFailureSkipsStage(t *testing.T) {
	env := newEnv(t, nil)
	env.title("demo", "a.png", "b.gif")
	failScan(t, func(exts []string) bool { return contains(exts, ".gif") })

	stats, err := env.pipeline.RunTitle(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, batch.Result{}, stats.Orphans)
	out := env.out.String()
	assert.Contains(t, out, "Cannot scan")
	assert.NotContains(t, out, "No orphan images to convert")
	assert.NotContains(t, out, "Converting orphan images to PNG")
	assert.Equal(t, 1, stats.Main.Attempted)
}

func TestRunTitle_WebPScanFailureWarns(t *testing.T) {
	env := newEnv(t, nil)
	env.title("demo", "a.png")
	failScan(t, func(exts []string) bool { return len(exts) == 1 && exts[0] == ".webp" })

	stats, err := env.pipeline.RunTitle(context.Background(), "demo")
	require.NoError(t, err)
	assert.Zero(t, stats.MainWebPCount)
	assert.Equal(t, 3, strings.Count(env.out.String(), "[WARN] Cannot scan"),
		"header count plus both size report scans")
}

func TestRunTitle_NoSpecialEntry(t *testing.T) {
	env := newEnv(t, nil)
	env.title("demo", "a.png")

	stats, err := env.pipeline.RunTitle(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, batch.Result{}, stats.Special)
	assert.Contains(t, env.out.String(), "No special images for title: demo")
	assert.NotContains(t, env.out.String(), "Processing special images")
}

func TestRunTitle_MissingSpecialFileFails(t *testing.T) {
	env := newEnv(t, map[string][]string{"demo": {"missing.png"}})
	env.title("demo", "a.png")

	stats, err := env.pipeline.RunTitle(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, batch.Result{Attempted: 1, Failed: 1}, stats.Special)
	assert.False(t, stats.Files().OK())
}

func TestRunTitle_MainFailureRemovesDest(t *testing.T) {
	env := newEnv(t, nil)
	main := env.title("demo", "a.png", "b.png")
	env.runner.failIf = func(c batch.Command) bool {
		return c.Name == "cwebp" && strings.HasSuffix(c.Args[len(c.Args)-1], "b.webp")
	}

	stats, err := env.pipeline.RunTitle(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, batch.Result{Attempted: 2, Succeeded: 1, Failed: 1}, stats.Main)
	assert.FileExists(t, filepath.Join(main, "a.webp"))
	assert.NoFileExists(t, filepath.Join(main, "b.webp"))
	assert.Contains(t, env.errOut.String(), "Failed to optimize main image: b.png")
}

func TestRunTitle_CancelledBeforeStages(t *testing.T) {
	env := newEnv(t, nil)
	env.title("demo", "a.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.pipeline.RunTitle(ctx, "demo")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, env.runner.count())
}

// --- RunAll tests ---

func TestRunAll_NoTitles(t *testing.T) {
	env := newEnv(t, nil)
	_, err := env.pipeline.RunAll(context.Background())
	assert.ErrorIs(t, err, ErrNoTitles)
	assert.Contains(t, env.errOut.String(), "No anime titles found")
}

func TestRunAll_ProcessesEveryTitle(t *testing.T) {
	env := newEnv(t, nil)
	env.title("beta", "x.png")
	env.title("alpha", "y.jpg", "z.png")

	stats, err := env.pipeline.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Titles)
	assert.Equal(t, 2, stats.Processed)
	assert.True(t, stats.OK())
	assert.Equal(t, 6, stats.Files.Attempted, "3 thumbnails + 3 main images")

	out := env.out.String()
	assert.Less(t, strings.Index(out, `"alpha"`), strings.Index(out, `"beta"`))
	assert.Contains(t, out, "Source images found: 3")
	assert.Contains(t, out, "Successfully processed 2/2 titles!")
}

func TestRunAll_Cancelled(t *testing.T) {
	env := newEnv(t, nil)
	env.title("alpha", "a.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := env.pipeline.RunAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Processed)
	assert.False(t, stats.OK())
}

// --- Integration test with the real tools ---

func TestRunTitle_RealTools(t *testing.T) {
	for _, bin := range []string{"magick", "cwebp"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}

	env := newEnv(t, nil)
	main := env.title("demo")
	gen := exec.Command("magick", "-size", "1600x900", "gradient:red-blue", filepath.Join(main, "wide.png"))
	require.NoError(t, gen.Run())

	p := New(env.cfg, env.log, imagetool.Executor{}, special.Default())
	stats, err := p.RunTitle(context.Background(), "demo")
	require.NoError(t, err)
	assert.True(t, stats.Files().OK())
	assert.FileExists(t, filepath.Join(main, "wide.webp"))
	assert.FileExists(t, filepath.Join(env.cfg.ThumbDir("demo"), "wide.webp"))
}

// --- Helpers ---

type env struct {
	t        *testing.T
	cfg      *config.Config
	log      *logging.Logger
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	runner   *writingRunner
	pipeline *Pipeline
}

func newEnv(t *testing.T, titles map[string][]string) *env {
	t.Helper()
	term.Configure(config.ColorNever)

	cfg := config.DefaultConfig()
	cfg.PublicDir = t.TempDir()
	cfg.Workers = 2
	cfg.Verbose = true

	var out, errOut bytes.Buffer
	log, err := logging.New(&cfg, &out, &errOut)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	runner := &writingRunner{}
	manifest := &special.Manifest{Titles: titles}
	return &env{
		t:        t,
		cfg:      &cfg,
		log:      log,
		out:      &out,
		errOut:   &errOut,
		runner:   runner,
		pipeline: New(&cfg, log, runner, manifest),
	}
}

// title creates the main dir for name with the given files and returns it.
func (e *env) title(name string, files ...string) string {
	e.t.Helper()
	dir := e.cfg.MainDir(name)
	require.NoError(e.t, os.MkdirAll(dir, 0o755))
	for _, f := range files {
		path := filepath.Join(dir, f)
		require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(e.t, os.WriteFile(path, []byte("img:"+f), 0o644))
	}
	return dir
}

// writingRunner stands in for magick and cwebp: a magick command with a
// missing input fails, otherwise the output file is written and failIf
// decides the exit status.
type writingRunner struct {
	mu     sync.Mutex
	calls  []batch.Command
	failIf func(batch.Command) bool
}

func (r *writingRunner) Run(_ context.Context, c batch.Command) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()

	if c.Name != "cwebp" {
		if _, err := os.Stat(strings.TrimSuffix(c.Args[0], "[0]")); err != nil {
			return err
		}
	}
	dest := strings.TrimPrefix(c.Args[len(c.Args)-1], "WEBP:")
	if err := os.WriteFile(dest, []byte("encoded"), 0o644); err != nil {
		return err
	}
	if r.failIf != nil && r.failIf(c) {
		return errors.New(c.Name + ": exit status 1")
	}
	return nil
}

func (r *writingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *writingRunner) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// commandsFor returns the recorded commands whose input is path.
func (r *writingRunner) commandsFor(path string) []batch.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []batch.Command
	for _, c := range r.calls {
		in := c.Args[0]
		if c.Name == "cwebp" {
			in = c.Args[len(c.Args)-3]
		}
		if strings.TrimSuffix(in, "[0]") == path {
			out = append(out, c)
		}
	}
	return out
}

// backdateSources moves every non-WebP file under dir an hour into the past
// so outputs written by a previous run are strictly newer.
func backdateSources(t *testing.T, dir string) {
	t.Helper()
	past := time.Now().Add(-time.Hour)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) == ".webp" {
			return err
		}
		return os.Chtimes(path, past, past)
	})
	require.NoError(t, err)
}

// failScan makes findImages fail whenever fail(exts) holds.
func failScan(t *testing.T, fail func(exts []string) bool) {
	t.Helper()
	orig := findImages
	t.Cleanup(func() { findImages = orig })
	findImages = func(dir string, exts ...string) ([]string, error) {
		if fail(exts) {
			return nil, errors.New("walk interrupted")
		}
		return orig(dir, exts...)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{}, 0o644))
}

func rel(t *testing.T, base string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(base, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}
