package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reaper-go/internal/config"
	"reaper-go/internal/testutil"
)

func runShell(t *testing.T, a *ReaperApp, script string) string {
	t.Helper()

	var out bytes.Buffer
	sh := NewShell(a, strings.NewReader(script), &out, true, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sh.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return out.String()
}

func TestShell_ScanBanishUndo(t *testing.T) {
	cfg, home := newTestConfig(t, "file")
	cfg.Undo.Window = config.Duration(time.Minute)
	a := newTestApp(t, cfg, Options{Command: "shell", Undo: true})
	ghost := testutil.WriteFile(t, home, "old.txt", "x", longAgo)

	out := runShell(t, a, "scan\nbanish 1\npending\nundo\nlog\nquit\nscan\n")

	grave := filepath.Join(cfg.GraveyardDir, "old.txt")
	for _, want := range []string{
		"1 files scanned, 1 classified",
		"  1  ghost",
		ghost + " → " + grave,
		"undo ",
		"old.txt  (",
		"✓ restored " + ghost,
		"restore    " + ghost,
		"banish     " + ghost,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "files scanned") != 1 {
		t.Error("commands after quit were run")
	}
	if testutil.ReadFile(t, ghost) != "x" {
		t.Error("file not back after undo")
	}
}

func TestShell_BanishRenumbersResults(t *testing.T) {
	cfg, home := newTestConfig(t, "memory")
	a := newTestApp(t, cfg, Options{})
	first := testutil.WriteFile(t, home, "a/old.txt", "x", longAgo)
	second := testutil.WriteFile(t, home, "b/old.txt", "y", longAgo)

	out := runShell(t, a, "scan\nbanish 1\nbanish 1\nlist\n")

	if strings.Contains(out, "✗") {
		t.Fatalf("unexpected error:\n%s", out)
	}
	for _, want := range []string{first + " → ", second + " → "} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "nothing to reap") {
		t.Errorf("list after banishing every result should be empty:\n%s", out)
	}
}

func TestShell_ClearPendingUndo(t *testing.T) {
	cfg, home := newTestConfig(t, "memory")
	cfg.Undo.Window = config.Duration(time.Minute)
	a := newTestApp(t, cfg, Options{Command: "shell", Undo: true})
	ghost := testutil.WriteFile(t, home, "old.txt", "x", longAgo)

	out := runShell(t, a, "scan\nbanish 1\nclear\npending\nundo\nclear nope\n")

	for _, want := range []string{
		"✓ cleared 1 pending undo(s)",
		"nothing to undo",
		"✗ nothing to undo",
		"✗ clear undo",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(ghost); !os.IsNotExist(err) {
		t.Error("cleared banish should leave the file in the graveyard")
	}
}

func TestShell_Resurrect(t *testing.T) {
	cfg, home := newTestConfig(t, "memory")
	a := newTestApp(t, cfg, Options{})
	ghost := testutil.WriteFile(t, home, "old.txt", "x", longAgo)

	out := runShell(t, a, "scan\nresurrect 1\nlist\nwhitelist\nscan\nlog resurrect\n")

	if !strings.Contains(out, "✓ resurrected "+ghost) {
		t.Errorf("output missing resurrect confirmation:\n%s", out)
	}
	if strings.Count(out, "nothing to reap") != 2 {
		t.Errorf("list and second scan should both find nothing:\n%s", out)
	}
	if !strings.Contains(out, "resurrect  "+ghost+"  ghost") {
		t.Errorf("log missing resurrect entry with its label:\n%s", out)
	}
}

func TestShell_Errors(t *testing.T) {
	cfg, _ := newTestConfig(t, "memory")
	a := newTestApp(t, cfg, Options{})

	tests := []struct {
		line string
		want string
	}{
		{"frobnicate", `✗ unknown command "frobnicate"`},
		{"list", "✗ nothing scanned yet"},
		{"banish", "✗ usage: banish N|PATH"},
		{"banish 3", "✗ nothing scanned yet"},
		{"undo", "✗ nothing to undo"},
		{"restore only-one", "✗ usage: restore GRAVE ORIG"},
		{"log sideways", "✗ unknown action"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			out := runShell(t, a, tt.line+"\n")
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want it to contain %q", out, tt.want)
			}
		})
	}
}

func TestShell_Graveyard(t *testing.T) {
	cfg, home := newTestConfig(t, "memory")
	a := newTestApp(t, cfg, Options{})
	src := testutil.WriteFile(t, home, "sub/a.txt", "x", time.Time{})

	out := runShell(t, a, "graveyard\nbanish "+src+"\ngraveyard\n")

	if !strings.Contains(out, "empty") {
		t.Errorf("first listing should be empty:\n%s", out)
	}
	if !strings.Contains(out, "  "+filepath.Join("sub", "a.txt")) {
		t.Errorf("second listing missing banished file:\n%s", out)
	}
}

func TestShell_DefaultRoot(t *testing.T) {
	cfg, _ := newTestConfig(t, "memory")
	a := newTestApp(t, cfg, Options{})
	other := t.TempDir()
	testutil.WriteFile(t, other, "old.txt", "x", longAgo)

	var out bytes.Buffer
	sh := NewShell(a, strings.NewReader("scan\n"), &out, true, false)
	sh.Root = other
	if err := sh.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), other+": 1 files scanned, 1 classified") {
		t.Errorf("output = %q", out.String())
	}
}
