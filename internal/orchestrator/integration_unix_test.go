//go:build !windows

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msto63/appstore/internal/procmgr"
	"github.com/msto63/appstore/internal/runner"
)

// fakePython logs its argv, warns on stderr and fails the upgrade when
// UPGRADE_EXIT is set
const fakePython = `#!/bin/sh
echo "pip $*"
echo "warning from $3" 1>&2
case "$*" in
  *--upgrade*) exit ${UPGRADE_EXIT:-0} ;;
esac
exit 0
`

func writeFakePython(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "python")
	if err := os.WriteFile(path, []byte(fakePython), 0755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func runInstall(t *testing.T) []runner.Message {
	t.Helper()

	q := runner.NewQueue()
	exec := runner.NewExecutor(q, procmgr.New(procmgr.DefaultConfig()))
	o := New(context.Background(), Config{Interpreter: writeFakePython(t), StorePackage: "store_pkg"}, exec, q)

	if _, err := o.Install(testEntry); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	o.Wait()
	return q.Drain()
}

func summaries(msgs []runner.Message) []string {
	var out []string
	for _, m := range msgs {
		if d, ok := m.(runner.OperationDone); ok {
			out = append(out, d.Summary())
		}
	}
	return out
}

func TestIntegration_InstallSuccess(t *testing.T) {
	msgs := runInstall(t)

	want := []string{
		"Operation on store_pkg SUCCESS (Return Code: 0).",
		"Operation on x-pkg SUCCESS (Return Code: 0).",
	}
	if got := summaries(msgs); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("summaries = %v, want %v", got, want)
	}
	if countFinished(msgs) != 1 {
		t.Errorf("WorkerFinished count = %d, want 1", countFinished(msgs))
	}
	if _, ok := msgs[len(msgs)-1].(runner.WorkerFinished); !ok {
		t.Errorf("last message = %T, want WorkerFinished", msgs[len(msgs)-1])
	}

	// stderr lines keep their error tag in the log
	log := strings.Join(rendered(msgs), "\n")
	if !strings.Contains(log, "[ERROR] warning from install") {
		t.Errorf("log missing tagged stderr line:\n%s", log)
	}
	if !strings.Contains(log, "pip -m pip install x-pkg") {
		t.Errorf("log missing target install output:\n%s", log)
	}
}

func TestIntegration_UpgradeFails(t *testing.T) {
	t.Setenv("UPGRADE_EXIT", "1")

	msgs := runInstall(t)

	want := []string{"Operation on store_pkg FAILED (Return Code: 1)."}
	if got := summaries(msgs); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("summaries = %v, want %v", got, want)
	}

	log := strings.Join(rendered(msgs), "\n")
	if strings.Contains(log, "pip -m pip install x-pkg") {
		t.Errorf("target install ran after failed upgrade:\n%s", log)
	}
	if !strings.Contains(log, "[ERROR] Failed to install/upgrade store_pkg. Aborting installation of x-pkg.") {
		t.Errorf("log missing abort line:\n%s", log)
	}
	if countFinished(msgs) != 1 {
		t.Errorf("WorkerFinished count = %d, want 1", countFinished(msgs))
	}
}

func TestIntegration_MissingInterpreter(t *testing.T) {
	q := runner.NewQueue()
	exec := runner.NewExecutor(q, nil)
	o := New(context.Background(), Config{Interpreter: "/nonexistent/python", StorePackage: "store_pkg"}, exec, q)

	o.Uninstall(testEntry, true)
	o.Wait()

	msgs := q.Drain()
	log := strings.Join(rendered(msgs), "\n")
	if !strings.Contains(log, "[ERROR] Command not found. Make sure Python and pip are in your PATH.") {
		t.Errorf("log missing not-found line:\n%s", log)
	}
	if got := summaries(msgs); len(got) != 1 || got[0] != "Operation on x-pkg FAILED (Return Code: 1)." {
		t.Errorf("summaries = %v", got)
	}
	if countFinished(msgs) != 1 {
		t.Errorf("WorkerFinished count = %d, want 1", countFinished(msgs))
	}
}
