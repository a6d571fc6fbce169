package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir        string
	workspace  string
	configPath string
}

// newTestEnv writes a config using the static LLM provider, which always
// answers with plan.
func newTestEnv(t *testing.T, plan string, extra map[string]interface{}) *testEnv {
	t.Helper()
	dir := t.TempDir()
	ws := filepath.Join(dir, "ws")
	require.NoError(t, os.MkdirAll(ws, 0755))

	cfg := map[string]interface{}{
		"data_dir": filepath.Join(dir, "data"),
		"logging":  map[string]interface{}{"level": "debug", "console": false, "redaction": false},
		"llm":      map[string]interface{}{"provider": "static", "static_response": plan},
		"policy":   map[string]interface{}{"require_confirmation": true},
		"metrics":  map[string]interface{}{"addr": ""},
	}
	for k, v := range extra {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	configPath := filepath.Join(dir, "followgpt.json")
	require.NoError(t, os.WriteFile(configPath, data, 0644))

	return &testEnv{dir: dir, workspace: ws, configPath: configPath}
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.workspace, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return execute(t, append([]string{"--config", e.configPath}, args...)...)
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := GetRootCmd()
	resetFlags(cmd)

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	t.Cleanup(func() {
		cmd.SetArgs(nil)
		cmd.SetOut(nil)
		cmd.SetErr(nil)
		cmd.SetIn(nil)
	})

	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		out, err := execute(t, "--version")
		require.NoError(t, err)
		assert.Contains(t, out, "followgpt version")
		assert.Contains(t, out, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		out, err := execute(t, "--help")
		require.NoError(t, err)
		assert.Contains(t, out, "FollowGPT")
		assert.Contains(t, out, "confirmation")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "", logLevelFlag.DefValue)
	})

	t.Run("subcommands registered", func(t *testing.T) {
		names := map[string]bool{}
		for _, c := range GetRootCmd().Commands() {
			names[c.Name()] = true
		}
		for _, want := range []string{"run", "tools", "macro", "index", "search", "runs", "schedule", "status", "stop", "configure", "tags"} {
			assert.True(t, names[want], "missing command %s", want)
		}
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestRunCommand(t *testing.T) {
	findPlan := `{"summary":"Find PDFs","steps":[{"tool":"find_pdfs","input":{},"rationale":"look around"}]}`

	t.Run("plan only", func(t *testing.T) {
		env := newTestEnv(t, findPlan, nil)

		out, err := env.run(t, "run", "--plan-only", "find", "my", "pdfs")
		require.NoError(t, err)
		assert.Contains(t, out, "Plan: Find PDFs")
		assert.Contains(t, out, "1. find_pdfs {}")
		assert.Contains(t, out, "look around")

		runs, err := env.run(t, "runs")
		require.NoError(t, err)
		assert.Contains(t, runs, "No runs recorded.")
	})

	t.Run("executes and logs the run", func(t *testing.T) {
		env := newTestEnv(t, findPlan, nil)
		env.write(t, "a.pdf", "%PDF")
		env.write(t, "sub/B.PDF", "%PDF")
		env.write(t, "notes.txt", "x")

		out, err := env.run(t, "run", "--cwd", env.workspace, "find my pdfs")
		require.NoError(t, err)
		assert.Contains(t, out, "find_pdfs ok")
		assert.Contains(t, out, `"count":2`)

		runs, err := env.run(t, "runs")
		require.NoError(t, err)
		assert.Contains(t, runs, `"find my pdfs"`)
		assert.Contains(t, runs, "ok")
	})

	t.Run("json output", func(t *testing.T) {
		env := newTestEnv(t, findPlan, nil)

		out, err := env.run(t, "run", "--json", "--cwd", env.workspace, "pdfs")
		require.NoError(t, err)

		var result struct {
			Plan    struct{ Summary string }
			Results []map[string]interface{}
		}
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, "Find PDFs", result.Plan.Summary)
		assert.Len(t, result.Results, 1)
	})

	t.Run("failed steps are reported and later steps still run", func(t *testing.T) {
		plan := `{"summary":"mixed","steps":[{"tool":"launch_rocket","input":{}},{"tool":"find_pdfs","input":{}}]}`
		env := newTestEnv(t, plan, nil)

		out, err := env.run(t, "run", "--cwd", env.workspace, "do things")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2 steps failed")
		assert.Contains(t, out, "1. launch_rocket failed: unknown tool")
		assert.Contains(t, out, "2. find_pdfs ok")

		runs, err := env.run(t, "runs", "--json")
		require.NoError(t, err)
		assert.Contains(t, runs, "launch_rocket")
	})

	t.Run("unparseable model output fails before execution", func(t *testing.T) {
		env := newTestEnv(t, "I cannot help with that", nil)

		_, err := env.run(t, "run", "--cwd", env.workspace, "anything")
		require.Error(t, err)

		runs, err := env.run(t, "runs")
		require.NoError(t, err)
		assert.Contains(t, runs, "No runs recorded.")
	})

	t.Run("policy denies paths outside allow list", func(t *testing.T) {
		env := newTestEnv(t, findPlan, map[string]interface{}{
			"policy": map[string]interface{}{"allow_paths": []string{"/nonexistent-root"}},
		})

		out, err := env.run(t, "run", "--cwd", env.workspace, "pdfs")
		require.Error(t, err)
		assert.Contains(t, out, "find_pdfs failed")
	})

	t.Run("mutating tool with --yes", func(t *testing.T) {
		plan := `{"summary":"tag","steps":[{"tool":"tag_file","input":{"file":"notes.txt","tag":"work"}}]}`
		env := newTestEnv(t, plan, nil)
		notes := env.write(t, "notes.txt", "hello")

		_, err := env.run(t, "run", "--yes", "--cwd", env.workspace, "tag my notes")
		require.NoError(t, err)

		out, err := env.run(t, "tags", notes)
		require.NoError(t, err)
		assert.Contains(t, out, "work")
	})
}

func TestToolsCommand(t *testing.T) {
	env := newTestEnv(t, `{"summary":"","steps":[]}`, nil)

	out, err := env.run(t, "tools")
	require.NoError(t, err)
	for _, name := range []string{"find_pdfs", "disk_report", "dedupe_files", "zip_files", "search_index", "run_macro", "tag_file"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "files.delete")

	out, err = env.run(t, "tools", "find_pdfs")
	require.NoError(t, err)
	assert.Contains(t, out, "Name:         find_pdfs")
	assert.Contains(t, out, "Mutates:      no")
	assert.Contains(t, out, "Input schema:")
	assert.Contains(t, out, "Output schema:")

	_, err = env.run(t, "tools", "launch_rocket")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool: launch_rocket")
}

func TestMacroCommands(t *testing.T) {
	env := newTestEnv(t, `{"summary":"","steps":[]}`, nil)
	env.write(t, "report.pdf", "%PDF")

	macroFile := filepath.Join(env.dir, "macros.yaml")
	require.NoError(t, os.WriteFile(macroFile, []byte(`name: hello
steps:
  - kind: shell
    command: echo hi
  - kind: tool
    tool: find_pdfs
    input: {}
---
name: broken
steps:
  - kind: tool
    tool: launch_rocket
    input: {}
  - kind: shell
    command: echo never
`), 0644))

	out, err := env.run(t, "macro", "import", macroFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 macros")

	out, err = env.run(t, "macro", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "hello (2 steps)")
	assert.Contains(t, out, "shell: echo hi")
	assert.Contains(t, out, "broken (2 steps)")

	t.Run("run", func(t *testing.T) {
		out, err := env.run(t, "macro", "run", "--cwd", env.workspace, "hello")
		require.NoError(t, err)
		assert.Contains(t, out, "hi")
		assert.Contains(t, out, `"count":1`)
		assert.Contains(t, out, "Macro hello completed (2 steps)")
	})

	t.Run("run stops at first failure", func(t *testing.T) {
		out, err := env.run(t, "macro", "run", "--cwd", env.workspace, "broken")
		require.Error(t, err)
		assert.NotContains(t, out, "never")
	})

	t.Run("run unknown", func(t *testing.T) {
		_, err := env.run(t, "macro", "run", "nope")
		assert.Error(t, err)
	})

	t.Run("export", func(t *testing.T) {
		out, err := env.run(t, "macro", "export", "hello")
		require.NoError(t, err)
		assert.Contains(t, out, "name: hello")
		assert.Contains(t, out, "command: echo hi")
		assert.NotContains(t, out, "broken")

		target := filepath.Join(env.dir, "all.yaml")
		out, err = env.run(t, "macro", "export", "-o", target)
		require.NoError(t, err)
		assert.Contains(t, out, "Exported 2 macros")
		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Contains(t, string(data), "name: broken")
	})

	t.Run("delete", func(t *testing.T) {
		_, err := env.run(t, "macro", "delete", "broken")
		require.NoError(t, err)

		_, err = env.run(t, "macro", "delete", "broken")
		assert.Error(t, err)

		out, err := env.run(t, "macro", "list")
		require.NoError(t, err)
		assert.NotContains(t, out, "broken")
	})
}

func TestIndexAndSearch(t *testing.T) {
	env := newTestEnv(t, `{"summary":"","steps":[]}`, nil)
	notes := env.write(t, "docs/notes.txt", "the quick brown fox jumps")
	env.write(t, "docs/other.txt", "nothing to see here")

	out, err := env.run(t, "index", "--cwd", env.workspace, "docs/**/*.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 files")

	out, err = env.run(t, "search", "fox")
	require.NoError(t, err)
	assert.Contains(t, out, notes)
	assert.NotContains(t, out, "other.txt")

	out, err = env.run(t, "search", "--limit", "5", "zebra")
	require.NoError(t, err)
	assert.Contains(t, out, "No matches.")
}

func TestScheduleCommands(t *testing.T) {
	t.Run("no schedules", func(t *testing.T) {
		env := newTestEnv(t, `{"summary":"","steps":[]}`, nil)

		out, err := env.run(t, "schedule", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "No schedules configured.")

		_, err = env.run(t, "schedule")
		assert.Error(t, err)
	})

	t.Run("list and run now", func(t *testing.T) {
		env := newTestEnv(t, `{"summary":"","steps":[]}`, map[string]interface{}{
			"schedules": []map[string]string{
				{"name": "nightly", "macro": "greet", "cron": "0 2 * * *"},
			},
		})
		macroFile := filepath.Join(env.dir, "greet.yaml")
		require.NoError(t, os.WriteFile(macroFile, []byte("name: greet\nsteps:\n  - kind: shell\n    command: echo scheduled\n"), 0644))
		_, err := env.run(t, "macro", "import", macroFile)
		require.NoError(t, err)

		out, err := env.run(t, "schedule", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "nightly")
		assert.Contains(t, out, "greet")
		assert.Contains(t, out, "0 2 * * *")

		out, err = env.run(t, "schedule", "run", "--cwd", env.workspace, "nightly")
		require.NoError(t, err)
		assert.Contains(t, out, "Schedule nightly completed")

		_, err = env.run(t, "schedule", "run", "missing")
		assert.Error(t, err)
	})

	t.Run("hooks fire on completion", func(t *testing.T) {
		marker := filepath.Join(t.TempDir(), "hook.txt")
		env := newTestEnv(t, `{"summary":"","steps":[]}`, map[string]interface{}{
			"schedules": []map[string]string{
				{"name": "nightly", "macro": "greet", "cron": "@daily"},
			},
			"hooks": []map[string]string{
				{"event": "schedule:finished", "command": "echo $FOLLOWGPT_JOB:$FOLLOWGPT_STATUS > " + marker},
			},
		})
		macroFile := filepath.Join(env.dir, "greet.yaml")
		require.NoError(t, os.WriteFile(macroFile, []byte("name: greet\nsteps:\n  - kind: shell\n    command: echo scheduled\n"), 0644))
		_, err := env.run(t, "macro", "import", macroFile)
		require.NoError(t, err)

		_, err = env.run(t, "schedule", "run", "--cwd", env.workspace, "nightly")
		require.NoError(t, err)

		content, err := os.ReadFile(marker)
		require.NoError(t, err)
		assert.Equal(t, "nightly:ok\n", string(content))
	})

	t.Run("invalid cron rejected", func(t *testing.T) {
		env := newTestEnv(t, `{"summary":"","steps":[]}`, map[string]interface{}{
			"schedules": []map[string]string{{"name": "bad", "macro": "m", "cron": "every tuesday"}},
		})

		_, err := env.run(t, "schedule", "list")
		assert.Error(t, err)
	})
}

func TestStatusAndStop(t *testing.T) {
	env := newTestEnv(t, `{"summary":"","steps":[]}`, nil)

	out, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: stopped")

	out, err = env.run(t, "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "not running")

	t.Run("stale pid file", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "followgpt.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid"), 0644))
		assert.False(t, isRunning(pidFile))
	})

	t.Run("own process counts as running", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "followgpt.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))
		assert.True(t, isRunning(pidFile))
	})
}

func TestWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	wd, err := os.Getwd()
	require.NoError(t, err)

	got, err := workingDir("")
	require.NoError(t, err)
	assert.Equal(t, wd, got)

	got, err = workingDir(".")
	require.NoError(t, err)
	assert.Equal(t, wd, got)

	got, err = workingDir("ws")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "ws"), got)
}

func TestRunDeniesRelativeCwdUnderDenyRoot(t *testing.T) {
	plan := `{"summary":"Find PDFs","steps":[{"tool":"find_pdfs","input":{}}]}`
	env := newTestEnv(t, plan, nil)
	secret := env.write(t, "secret/a.pdf", "%PDF")
	denyRoot, err := filepath.EvalSymlinks(filepath.Dir(secret))
	require.NoError(t, err)
	data, err := json.Marshal(map[string]interface{}{
		"data_dir": filepath.Join(env.dir, "data"),
		"logging":  map[string]interface{}{"console": false, "redaction": false},
		"llm":      map[string]interface{}{"provider": "static", "static_response": plan},
		"policy":   map[string]interface{}{"deny_paths": []string{denyRoot}},
		"metrics":  map[string]interface{}{"addr": ""},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.configPath, data, 0644))

	t.Chdir(env.workspace)
	out, err := env.run(t, "run", "--cwd", "secret", "find pdfs")
	require.Error(t, err)
	assert.Contains(t, out, "find_pdfs failed: denied path")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		seconds  int
		expected string
	}{
		{name: "seconds", seconds: 45, expected: "45s"},
		{name: "minutes", seconds: 125, expected: "2m5s"},
		{name: "hours", seconds: 3725, expected: "1h2m5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(time.Duration(tt.seconds) * time.Second))
		})
	}
}

func TestConfigureCommand(t *testing.T) {
	env := newTestEnv(t, `{"summary":"","steps":[]}`, nil)

	cmd := GetRootCmd()
	resetFlags(cmd)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("static\n\n/srv/docs\nn\nwarn\n"))
	cmd.SetArgs([]string{"--config", env.configPath, "configure"})
	t.Cleanup(func() {
		cmd.SetArgs(nil)
		cmd.SetIn(nil)
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Configuration saved to: "+env.configPath)

	data, err := os.ReadFile(env.configPath)
	require.NoError(t, err)
	var saved map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &saved))
	policy := saved["policy"].(map[string]interface{})
	assert.Equal(t, []interface{}{"/srv/docs"}, policy["allow_paths"])
	assert.Equal(t, false, policy["require_confirmation"])
	assert.Equal(t, "warn", saved["logging"].(map[string]interface{})["level"])
}
