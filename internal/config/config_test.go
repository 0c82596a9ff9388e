package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"git.sr.ht/~jackmordaunt/icogen"
	"git.sr.ht/~jackmordaunt/icogen/internal/util"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "icogen.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"ICOGEN_CONFIG", "ICOGEN_LOG_LEVEL", "ICOGEN_WORKERS"} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, icogen.DefaultSides, cfg.Sizes)
	require.Equal(t, "catmull-rom", cfg.Filter)
	require.Equal(t, runtime.NumCPU(), cfg.Workers)
}

func TestFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := write(t, `
sizes = [16, 32]
filter = "lanczos"
compress = true
workers = 2
log_level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []int{16, 32}, cfg.Sizes)
	require.Equal(t, "lanczos", cfg.Filter)
	require.True(t, cfg.Compress)
	require.Equal(t, 2, cfg.Workers)
	require.Equal(t, 0.5, cfg.Sharpen)

	t.Setenv("ICOGEN_WORKERS", "7")
	t.Setenv("ICOGEN_LOG_LEVEL", "trace")
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Workers)
	require.Equal(t, "trace", cfg.LogLevel)
}

func TestConfigFromEnvPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("ICOGEN_CONFIG", write(t, `sizes = [48]`))
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, []int{48}, cfg.Sizes)
}

func TestErrors(t *testing.T) {
	clearEnv(t)
	for name, tt := range map[string]struct {
		body string
		env  string
	}{
		"unknown key": {body: `colour = "red"`},
		"bad size":    {body: `sizes = [512]`},
		"no sizes":    {body: `sizes = []`},
		"bad workers": {body: `workers = 0`},
		"syntax":      {body: `sizes = [`},
		"bad env":     {body: ``, env: "many"},
		"neg sharpen": {body: `sharpen = -1.0`},
		"bad filter":  {body: `filter = "box"`},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv("ICOGEN_WORKERS", tt.env)
			_, err := Load(write(t, tt.body))
			require.Error(t, err)
		})
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Sizes = []int{0, 300}
	cfg.Workers = 0
	err := cfg.Validate()
	require.Error(t, err)
	var errs util.MultiError
	require.ErrorAs(t, err, &errs)
	require.Len(t, errs, 3)
}
