package launcher

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/harrylevesque/aviator/internal/utils"
)

func TestSplitArgs(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "   ", want: nil},
		{in: "--fast", want: []string{"--fast"}},
		{in: `-a "b c"`, want: []string{"-a", "b c"}},
		{in: `-a 'b c' -d`, want: []string{"-a", "b c", "-d"}},
		{in: "--bg #000 --fast", want: []string{"--bg", "#000", "--fast"}},
		{in: "-title # --windowed", want: []string{"-title", "#", "--windowed"}},
		// Unterminated quote falls back to whitespace splitting.
		{in: `-a "b c`, want: []string{"-a", `"b`, "c"}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, SplitArgs(tc.in)); diff != "" {
			t.Errorf("SplitArgs(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestRunMissingPathIsNotFound(t *testing.T) {
	l := New(nil, nil)
	missing := filepath.Join(t.TempDir(), "no-such-binary")

	pid, err := l.Run(missing, "--fast")
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("Run() err = %v, want NotFound", err)
	}
	if pid != 0 {
		t.Fatalf("Run() pid = %d for missing binary", pid)
	}
}

func writeScript(t *testing.T, dir, body string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "app.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), mode); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func waitForFile(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && strings.HasSuffix(string(data), "done\n") {
			return string(data)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s was not written by the launched process", path)
	return ""
}

func TestRunStartsProcessInItsDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}
	dir := t.TempDir()
	script := writeScript(t, dir, `{ pwd; printf '%s\n' "$@"; echo done; } > out.txt`, 0o755)

	pid, err := New(nil, nil).Run(script, `-a "b c"`)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	if pid <= 0 {
		t.Fatalf("Run() pid = %d", pid)
	}

	out := waitForFile(t, filepath.Join(dir, "out.txt"))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("unexpected output %q", out)
	}
	wantDir, _ := filepath.EvalSymlinks(dir)
	gotDir, _ := filepath.EvalSymlinks(lines[0])
	if gotDir != wantDir {
		t.Fatalf("working dir = %q, want %q", gotDir, wantDir)
	}
	if diff := cmp.Diff([]string{"-a", "b c"}, lines[1:3]); diff != "" {
		t.Fatalf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestRunNonExecutableIsLaunchFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec permission bits are unix-only")
	}
	script := writeScript(t, t.TempDir(), "echo done", 0o644)

	_, err := New(nil, nil).Run(script, "")
	if err == nil {
		t.Fatalf("Run() of non-executable file succeeded")
	}
	if utils.KindOf(err) != utils.KindLaunch {
		t.Fatalf("Run() err kind = %v, want LaunchFailure", utils.KindOf(err))
	}
}

func TestRunResolvesRelativePathFromWorkingDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}
	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	if err := os.Mkdir(binDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	script := filepath.Join(binDir, "game")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n{ pwd; echo done; } > out.txt\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(root); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	pid, err := New(nil, nil).Run(filepath.Join("bin", "game"), "")
	if err != nil {
		t.Fatalf("Run(bin/game) err = %v", err)
	}
	if pid <= 0 {
		t.Fatalf("Run(bin/game) pid = %d", pid)
	}

	out := waitForFile(t, filepath.Join(binDir, "out.txt"))
	wantDir, _ := filepath.EvalSymlinks(binDir)
	gotDir, _ := filepath.EvalSymlinks(strings.SplitN(out, "\n", 2)[0])
	if gotDir != wantDir {
		t.Fatalf("working dir = %q, want %q", gotDir, wantDir)
	}
}
