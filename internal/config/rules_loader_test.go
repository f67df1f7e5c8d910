package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedRule struct {
	name, policy, priority, cpus, pattern string
}

type fakeAdder struct {
	mu    sync.Mutex
	rules []recordedRule
	fail  map[string]error
}

func (a *fakeAdder) Add(name, policy, priority, cpus, pattern string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err, ok := a.fail[name]; ok {
		return err
	}
	a.rules = append(a.rules, recordedRule{name, policy, priority, cpus, pattern})
	return nil
}

func (a *fakeAdder) names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, r := range a.rules {
		out = append(out, r.name)
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rtrules")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRulesFile(t *testing.T) {
	path := writeFile(t, `# comment line

   # indented comment
rtWorkers:fifo:50:0-1:^worker
bump:*:+5:*:net.*scan
pinned:*:*:2:pat:with:colons
`)
	adder := &fakeAdder{}
	n, err := LoadRulesFile(testLogger(), adder, path)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []string{"rtWorkers", "bump", "pinned"}, adder.names())
	// The pattern is the remainder of the line, colons included.
	require.Equal(t, "pat:with:colons", adder.rules[2].pattern)
}

func TestLoadRulesFileStripsCarriageReturn(t *testing.T) {
	path := writeFile(t, "dos:fifo:10:*:worker\r\n")
	adder := &fakeAdder{}
	n, err := LoadRulesFile(testLogger(), adder, path)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "worker", adder.rules[0].pattern)
}

func TestLoadRulesFileBadLineStopsFile(t *testing.T) {
	path := writeFile(t, `ok1:*:*:*:a
ok2:*:*:*:b
short:only:three
never:*:*:*:c
`)
	adder := &fakeAdder{}
	n, err := LoadRulesFile(testLogger(), adder, path)
	require.Error(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"ok1", "ok2"}, adder.names())
}

func TestLoadRulesFileMissing(t *testing.T) {
	adder := &fakeAdder{}
	n, err := LoadRulesFile(testLogger(), adder, filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
	require.Equal(t, 0, n)
}

func TestLoadRulesFileSkipsFailedAdds(t *testing.T) {
	path := writeFile(t, `good:*:*:*:a
bad:*:*:*:broken[
tail:*:*:*:c
`)
	adder := &fakeAdder{fail: map[string]error{"bad": errors.New("compile error")}}
	n, err := LoadRulesFile(testLogger(), adder, path)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"good", "tail"}, adder.names())
}

func TestLoadRulesSystemThenUser(t *testing.T) {
	dir := t.TempDir()
	system := filepath.Join(dir, "rtrules")
	require.NoError(t, os.WriteFile(system, []byte("sys:*:*:*:a\n"), 0o644))

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("RTTUNE_USERCONFIG", "my-rtrules")
	require.NoError(t, os.WriteFile(filepath.Join(home, "my-rtrules"), []byte("user:*:*:*:b\n"), 0o644))

	adder := &fakeAdder{}
	total := LoadRules(testLogger(), adder, RulesConfig{
		SystemFile:      system,
		UserFileEnv:     "RTTUNE_USERCONFIG",
		UserFileDefault: ".rtrules",
	})
	require.Equal(t, 2, total)
	require.Equal(t, []string{"sys", "user"}, adder.names())
}

func TestLoadRulesSurvivesMissingFiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("RTTUNE_USERCONFIG", "")

	adder := &fakeAdder{}
	total := LoadRules(testLogger(), adder, RulesConfig{
		SystemFile:      filepath.Join(t.TempDir(), "absent"),
		UserFileEnv:     "RTTUNE_USERCONFIG",
		UserFileDefault: ".rtrules",
	})
	require.Equal(t, 0, total)
}
