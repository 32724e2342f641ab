//go:build e2e

// Package e2e drives the steppe binary through testscript scenarios in testdata.
package e2e_test

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

const e2eVersion = "0.0.0-e2e"

// binDir holds the steppe binary built once for every scenario.
var binDir string

func TestMain(m *testing.M) {
	os.Exit(runTests(m))
}

func runTests(m *testing.M) int {
	dir, err := os.MkdirTemp("", "steppe-e2e-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, "create bin dir:", err)
		return 1
	}
	defer func() { _ = os.RemoveAll(dir) }()

	ldflags := "-X go.trai.ch/steppe/internal/build.Version=" + e2eVersion
	//nolint:gosec // Building binary with static arguments, not user input
	build := exec.Command("go", "build", "-ldflags", ldflags, "-o", filepath.Join(dir, "steppe"), "./cmd/steppe")
	build.Dir = ".."
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "build steppe:", err)
		return 1
	}

	binDir = dir
	return m.Run()
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir:                 "testdata",
		Setup:               setupEnv,
		RequireExplicitExec: true,
	})
}

// setupEnv puts steppe on PATH and strips terminal styling so output is stable.
func setupEnv(env *testscript.Env) error {
	env.Setenv("PATH", binDir+string(os.PathListSeparator)+env.Getenv("PATH"))
	env.Setenv("NO_COLOR", "1")
	env.Setenv("CI", "true")
	env.Setenv("HOME", filepath.Join(env.WorkDir, ".home"))
	return os.MkdirAll(env.Getenv("HOME"), 0o750)
}
