// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runnableCmds  map[string]bool // "bin arg1 arg2" -> whether RunSilent succeeds
	outputFunc    func(name string, args []string, stdout io.Writer) error
	calls         []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	m.calls = append(m.calls, key)
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunOutput(name string, args []string, stdout io.Writer) error {
	m.calls = append(m.calls, name+" "+strings.Join(args, " "))
	if m.outputFunc != nil {
		return m.outputFunc(name, args, stdout)
	}
	return nil
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback when docker missing",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name:    "neither available",
			exec:    &mockExecutor{},
			wantErr: true,
		},
		{
			name: "docker on PATH but info fails, podman works",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(tt.exec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), "no container runtime available") {
					t.Errorf("error should mention no runtime available, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rt.Name() != tt.wantName {
				t.Errorf("got runtime %q, want %q", rt.Name(), tt.wantName)
			}
		})
	}
}

func TestImageExists(t *testing.T) {
	tests := []struct {
		name    string
		mkRT    func(*mockExecutor) Runtime
		cmds    map[string]bool
		wantErr bool
	}{
		{
			name: "docker image exists",
			mkRT: func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			cmds: map[string]bool{"docker image inspect postgres:16-alpine": true},
		},
		{
			name:    "docker image not found",
			mkRT:    func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			wantErr: true,
		},
		{
			name: "podman image exists",
			mkRT: func(e *mockExecutor) Runtime { return newPodmanRuntime(e) },
			cmds: map[string]bool{"podman image exists postgres:16-alpine": true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := tt.mkRT(&mockExecutor{runnableCmds: tt.cmds})
			err := rt.ImageExists("postgres:16-alpine")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), "postgres:16-alpine") {
					t.Errorf("error should mention image name, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestStart(t *testing.T) {
	spec := Spec{
		Name:  "harvest-pg",
		Image: "postgres:16-alpine",
		Env:   map[string]string{"POSTGRES_USER": "harvest", "POSTGRES_PASSWORD": "harvest"},
		Ports: map[int]int{55432: 5432},
	}

	var gotArgs []string
	exec := &mockExecutor{outputFunc: func(name string, args []string, stdout io.Writer) error {
		if name != "podman" {
			return errors.New("expected podman binary")
		}
		gotArgs = args
		_, _ = stdout.Write([]byte("4f2a9c\n"))
		return nil
	}}

	var out bytes.Buffer
	if err := newPodmanRuntime(exec).Start(spec, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"run", "-d", "--rm", "--name", "harvest-pg",
		"-e", "POSTGRES_PASSWORD=harvest", "-e", "POSTGRES_USER=harvest",
		"-p", "55432:5432",
		"postgres:16-alpine",
	}
	if !reflect.DeepEqual(gotArgs, want) {
		t.Errorf("got args %q, want %q", gotArgs, want)
	}
	if out.String() != "4f2a9c\n" {
		t.Errorf("runtime output not forwarded, got %q", out.String())
	}
}

func TestStartFailures(t *testing.T) {
	failing := &mockExecutor{outputFunc: func(string, []string, io.Writer) error {
		return errors.New("port already allocated")
	}}
	err := newDockerRuntime(failing).Start(Spec{Name: "pg", Image: "postgres"}, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "port already allocated") {
		t.Errorf("expected wrapped start error, got %v", err)
	}

	idle := &mockExecutor{}
	if err := newDockerRuntime(idle).Start(Spec{Image: "postgres"}, io.Discard); err == nil {
		t.Error("expected error for a spec without a name")
	}
	if len(idle.calls) != 0 {
		t.Errorf("invalid spec should not reach the runtime, got calls %v", idle.calls)
	}
}

func TestStop(t *testing.T) {
	exec := &mockExecutor{runnableCmds: map[string]bool{"docker rm -f harvest-pg": true}}
	rt := newDockerRuntime(exec)
	if err := rt.Stop("harvest-pg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rt.Stop("other"); err == nil {
		t.Error("expected error when rm fails")
	}
}
