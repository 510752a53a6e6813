package config

import (
	"nrscrawler/internal/scrapers/nrs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0777))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0666))
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, DefaultFile))
	require.NoError(t, err)

	require.Equal(t, 100, cfg.PageSize)
	require.Equal(t, 2, cfg.FirstPageRequestNumber)
	require.True(t, *cfg.DiscardPrimingPage)
	require.True(t, *cfg.Output.EchoStdout)
	require.Equal(t, filepath.Join(dir, "data", "state.db"), cfg.Store.File)
	require.Equal(t, filepath.Join(dir, "data", "records.jsonl"), cfg.Output.File)
	require.Equal(t, filepath.Join(dir, "templates", "seed.raw"), cfg.Templates.Seed)

	retry := cfg.RetryOptions()
	require.Equal(t, 5, retry.MaxRetries)
	require.Equal(t, 5*time.Second, retry.BackoffUnit)
	require.Equal(t, time.Minute, cfg.HttpOptions().Timeout)
	require.Equal(t, "Previous Name:", cfg.Protocol.PreviousNameLabel)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	writeFile(t, path, `{
		// the staging deployment serves page 1 normally
		source_url: "https://staging.example.test/search.aspx",
		first_page_request_number: 1,
		discard_priming_page: false,
		output: { file: "/tmp/out.jsonl", echo_stdout: false },
		protocol: { pager_control: "ctl00$main$pager%d" },
	}`)
	writeFile(t, filepath.Join(dir, "nrscrawler.local.json5"), `{
		page_size: 50,
		store: { file: "local.db" },
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://staging.example.test/search.aspx", cfg.SourceUrl)
	require.Equal(t, 50, cfg.PageSize)
	require.Equal(t, 1, cfg.FirstPageRequestNumber)
	require.False(t, *cfg.DiscardPrimingPage)
	require.False(t, *cfg.Output.EchoStdout)
	require.Equal(t, "/tmp/out.jsonl", cfg.Output.File)
	require.Equal(t, filepath.Join(dir, "local.db"), cfg.Store.File)

	// unset protocol fields keep their defaults
	require.Equal(t, "ctl00$main$pager%d", cfg.Protocol.PagerControl)
	require.Equal(t, "__VIEWSTATE", cfg.Protocol.ViewStateField)

	opts := cfg.WalkerOptions(nrs.Templates{})
	require.False(t, opts.DiscardPrimingPage)
	require.Equal(t, 50, opts.PageSize)
}

func TestLoadExplicitZeros(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	writeFile(t, path, `{
		retry: { max_retries: 0, backoff_unit_ms: 0 },
		http: { timeout_seconds: 0 },
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	retry := cfg.RetryOptions()
	require.Equal(t, 0, retry.MaxRetries)
	require.Equal(t, time.Duration(0), retry.BackoffUnit)
	require.Equal(t, time.Duration(0), cfg.HttpOptions().Timeout)

	// a zero in the local override wins over the base file
	writeFile(t, path, `{ retry: { max_retries: 3 } }`)
	writeFile(t, filepath.Join(dir, "nrscrawler.local.json5"), `{ retry: { max_retries: 0 } }`)

	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, 0, cfg.RetryOptions().MaxRetries)
	require.Equal(t, 5*time.Second, cfg.RetryOptions().BackoffUnit)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
	})
}

func TestLoadNearest(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, DefaultFile), `{ page_size: 25 }`)
	nested := filepath.Join(dir, "runs", "2024")
	require.NoError(t, os.MkdirAll(nested, 0777))
	chdir(t, nested)

	cfg, path, err := LoadNearest(DefaultFile)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, DefaultFile), path)
	require.Equal(t, 25, cfg.PageSize)
	// relative paths resolve against the directory the file was found in
	require.Equal(t, filepath.Join(dir, "data", "state.db"), cfg.Store.File)
	require.Equal(t, filepath.Join(dir, "templates", "seed.raw"), cfg.Templates.Seed)
}

func TestLoadNearestMissing(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, path, err := LoadNearest("nrscrawler-missing.json5")
	require.NoError(t, err)
	require.Equal(t, "nrscrawler-missing.json5", path)
	require.Equal(t, 100, cfg.PageSize)
	require.Equal(t, filepath.Join("data", "state.db"), cfg.Store.File)
}

func TestValidate(t *testing.T) {
	valid, err := resolve(Config{}, t.TempDir())
	require.NoError(t, err)

	cases := []struct {
		name   string
		modify func(cfg *Config)
	}{
		{"scheme", func(cfg *Config) { cfg.SourceUrl = "ftp://example.test" }},
		{"page size", func(cfg *Config) { cfg.PageSize = -1 }},
		{"first page", func(cfg *Config) { cfg.FirstPageRequestNumber = -2 }},
		{"retries", func(cfg *Config) { cfg.Retry.MaxRetries = ptr(-1) }},
		{"backoff", func(cfg *Config) { cfg.Retry.BackoffUnitMs = ptr(-1) }},
		{"timeout", func(cfg *Config) { cfg.Http.TimeoutSeconds = ptr(-30) }},
		{"pager control", func(cfg *Config) { cfg.Protocol.PagerControl = "ctl00$main$pager" }},
		{"rate", func(cfg *Config) { cfg.Http.RequestsPerSecond = -0.5 }},
		{"timezone", func(cfg *Config) { cfg.Timezone = "Mars/Olympus_Mons" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := valid
			c.modify(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadTemplates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "templates", "seed.raw"), "page=[PAGE_NUMBER]&vs=[VIEW_STATE]&ev=[VALIDATION]&gen=[GENERATOR]\r\n")
	writeFile(t, filepath.Join(dir, "templates", "continue.raw"), "next=[PAGE_NUMBER]&vs=[VIEW_STATE]&ev=[VALIDATION]&gen=[GENERATOR]\n")
	writeFile(t, filepath.Join(dir, "templates", "control.raw"), "target=[CONTROL_ID]&vs=[VIEW_STATE]&ev=[VALIDATION]&gen=[GENERATOR]")

	cfg, err := Load(filepath.Join(dir, DefaultFile))
	require.NoError(t, err)
	templates, err := cfg.LoadTemplates()
	require.NoError(t, err)
	require.Equal(t, "page=[PAGE_NUMBER]&vs=[VIEW_STATE]&ev=[VALIDATION]&gen=[GENERATOR]", templates.Seed)
	require.Equal(t, "next=[PAGE_NUMBER]&vs=[VIEW_STATE]&ev=[VALIDATION]&gen=[GENERATOR]", templates.Continue)
}
