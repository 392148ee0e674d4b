package steps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/systemstart/secrets-bootstrap/pkg/command"
	"github.com/systemstart/secrets-bootstrap/pkg/command/commandtest"
)

func TestCheckCluster(t *testing.T) {
	rec := commandtest.New().On("kubectl cluster-info", commandtest.Response{
		Stdout: "Kubernetes control plane is running at https://127.0.0.1:6443\n",
	})

	if err := CheckCluster(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines := rec.Lines(); len(lines) != 1 || lines[0] != "kubectl cluster-info" {
		t.Errorf("commands = %v", lines)
	}
}

func TestCheckCluster_Unreachable(t *testing.T) {
	rec := commandtest.New().On("kubectl cluster-info", commandtest.Response{
		ExitCode: 1,
		Stderr:   "The connection to the server localhost:8080 was refused",
	})

	err := CheckCluster(context.Background(), rec)
	if !errors.Is(err, ErrClusterUnreachable) {
		t.Fatalf("expected ErrClusterUnreachable, got %v", err)
	}
	var exitErr *command.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode != 1 {
		t.Errorf("expected wrapped exit error, got %v", err)
	}
}

func TestCheckCluster_MissingKubectl(t *testing.T) {
	rec := commandtest.New().On("kubectl", commandtest.Response{SpawnErr: errors.New("executable file not found in $PATH")})

	err := CheckCluster(context.Background(), rec)
	if !errors.Is(err, ErrClusterUnreachable) {
		t.Fatalf("expected ErrClusterUnreachable, got %v", err)
	}
	var spawnErr *command.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Errorf("expected spawn error, got %T", err)
	}
}

func TestPreflightStep_HungClusterInfo(t *testing.T) {
	rec := commandtest.New().On("kubectl cluster-info", commandtest.Response{Hang: true})
	sc := testStepContext(rec)
	sc.Settings.CommandTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err := NewPreflightStep().Run(context.Background(), sc)
	if !errors.Is(err, ErrClusterUnreachable) {
		t.Fatalf("expected ErrClusterUnreachable, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("preflight took %v", elapsed)
	}
}

func TestPreflightStep_HungKubectlProcessTree(t *testing.T) {
	bin := t.TempDir()
	shim := "#!/bin/sh\nsleep 5 | cat\n"
	if err := os.WriteFile(filepath.Join(bin, "kubectl"), []byte(shim), 0o700); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	sc := testStepContext(command.NewRunner())
	sc.Settings.CommandTimeout = 100 * time.Millisecond

	start := time.Now()
	_, err := NewPreflightStep().Run(context.Background(), sc)
	if !errors.Is(err, ErrClusterUnreachable) {
		t.Fatalf("expected ErrClusterUnreachable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("preflight took %v; the kubectl process tree outlived its deadline", elapsed)
	}
}
