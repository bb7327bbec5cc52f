package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

const mismatch = "There must be the same number of input means and standard deviations."

// runMain runs the command in a child process of the test binary and returns its exit code and stderr.
func runMain(t *testing.T, name string, args ...string) (int, string) {
	if os.Getenv("GAN_NORMAL_MAIN") == name {
		os.Args = append([]string{"gan_normal"}, strings.Split(os.Getenv("GAN_NORMAL_MAIN_ARGS"), "\n")...)
		main()
		os.Exit(0)
	}
	cmd := exec.Command(os.Args[0], "-test.run=^"+name+"$")
	cmd.Env = append(os.Environ(), "GAN_NORMAL_MAIN="+name, "GAN_NORMAL_MAIN_ARGS="+strings.Join(args, "\n"))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return 0, stderr.String()
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatal(err)
	}
	return exitErr.ExitCode(), stderr.String()
}

func TestMismatchExit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exp")
	code, stderr := runMain(t, "TestMismatchExit", "--experiment_dir", dir,
		"--input_mean", "1", "--input_mean", "2", "--input_stddev", "1")
	if code != 1 {
		t.Errorf("exit code %d", code)
	}
	if !strings.Contains(stderr, mismatch) {
		t.Errorf("stderr: %s", stderr)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("experiment dir created: %v", err)
	}
}

func TestMissingDirExit(t *testing.T) {
	code, stderr := runMain(t, "TestMissingDirExit", "--max_steps", "1")
	if code != 1 || !strings.Contains(stderr, "--experiment_dir") {
		t.Errorf("exit code %d: %s", code, stderr)
	}
}

