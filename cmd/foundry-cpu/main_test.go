package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"foundrygate/internal/foundry"
	"foundrygate/internal/tactile"
	"foundrygate/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T) string {
	t.Helper()
	art, err := foundry.WriteArtifact(t.TempDir(), types.CanonicalRequest{
		Model: "phi-3.5-mini",
		Turns: []types.ConversationTurn{{Role: "user", Content: "Hi"}},
	})
	require.NoError(t, err)
	return art.Path
}

type recorder struct {
	cmd tactile.Command
	res *tactile.ExecutionResult
	err error
}

func (r *recorder) Execute(_ context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
	r.cmd = cmd
	return r.res, r.err
}

func newWrapper(exec tactile.Executor, environ ...string) (*wrapper, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &wrapper{executor: exec, environ: environ, stdout: &stdout, stderr: &stderr}, &stdout, &stderr
}

func TestRun_ForcesCPU(t *testing.T) {
	artifact := writeArtifact(t)
	rec := &recorder{res: &tactile.ExecutionResult{Stdout: "Hi there", Stderr: "loading"}}
	w, stdout, stderr := newWrapper(rec,
		"FOUNDRY_MODEL=phi-3.5-mini",
		"FOUNDRY_BINARY=/opt/foundry/foundry",
		"FOUNDRY_CUDA_VERSION_OVERRIDE=12.0\n      4",
		"CUDA_VISIBLE_DEVICES=0",
		"HOME=/home/dev",
	)

	require.Equal(t, 0, w.run(context.Background(), artifact))

	assert.Equal(t, "Hi there", stdout.String())
	assert.Contains(t, stderr.String(), banner)
	assert.Contains(t, stderr.String(), "loading")

	assert.Equal(t, "/opt/foundry/foundry", rec.cmd.Binary)
	assert.Equal(t, []string{"model", "run", "phi-3.5-mini", "--device", "cpu", "--input", artifact}, rec.cmd.Arguments)
	assert.Contains(t, rec.cmd.Environment, "FOUNDRY_CUDA_VERSION_OVERRIDE=12.0.4")
	assert.Contains(t, rec.cmd.Environment, "CUDA_VERSION=12.0.4")
	assert.Contains(t, rec.cmd.Environment, "CUDA_VISIBLE_DEVICES=-1")
	assert.Contains(t, rec.cmd.Environment, "FOUNDRY_EXECUTION_PROVIDER=CPUExecutionProvider")
	assert.Contains(t, rec.cmd.Environment, "HOME=/home/dev")
}

func TestRun_Defaults(t *testing.T) {
	artifact := writeArtifact(t)
	rec := &recorder{res: &tactile.ExecutionResult{}}
	w, _, _ := newWrapper(rec, "FOUNDRY_MODEL=phi", "FOUNDRY_CPU_ARGS=run {model} {artifact}", "FOUNDRY_TIMEOUT=5s")

	require.Equal(t, 0, w.run(context.Background(), artifact))
	assert.Equal(t, "foundry", rec.cmd.Binary)
	assert.Equal(t, []string{"run", "phi", artifact}, rec.cmd.Arguments)
	assert.Equal(t, int64(5000), rec.cmd.Limits.TimeoutMs)
	assert.Contains(t, rec.cmd.Environment, "CUDA_VERSION=12.0.0")
}

func TestRun_ExitCodes(t *testing.T) {
	notFound := &tactile.LaunchError{Binary: "foundry", Err: os.ErrNotExist}
	tests := []struct {
		name string
		res  *tactile.ExecutionResult
		err  error
		want int
	}{
		{"mirrors child", &tactile.ExecutionResult{ExitCode: 3}, nil, 3},
		{"binary missing", nil, notFound, 127},
		{"launch refused", nil, &tactile.LaunchError{Binary: "foundry", Err: assert.AnError}, 126},
		{"timeout", &tactile.ExecutionResult{ExitCode: -1, Killed: true, TimedOut: true}, nil, 124},
		{"canceled", &tactile.ExecutionResult{ExitCode: -1, Killed: true}, nil, 130},
		{"wait failure", &tactile.ExecutionResult{Error: "exec: WaitDelay expired"}, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, _ := newWrapper(&recorder{res: tt.res, err: tt.err}, "FOUNDRY_MODEL=phi")
			assert.Equal(t, tt.want, w.run(context.Background(), writeArtifact(t)))
		})
	}
}

func TestRun_InvalidArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"messages":[{"role":1}]}`), 0o600))

	rec := &recorder{}
	w, _, stderr := newWrapper(rec, "FOUNDRY_MODEL=phi")
	assert.Equal(t, 1, w.run(context.Background(), path))
	assert.Contains(t, stderr.String(), "invalid request")
	assert.Empty(t, rec.cmd.Binary, "nothing is launched")
}

func TestRun_MissingModel(t *testing.T) {
	w, _, stderr := newWrapper(&recorder{})
	assert.Equal(t, 2, w.run(context.Background(), writeArtifact(t)))
	assert.Contains(t, stderr.String(), "FOUNDRY_MODEL")
}

func TestLookupEnv(t *testing.T) {
	env := []string{"A=1", "B", "A=2", "C=x=y"}
	assert.Equal(t, "2", lookupEnv(env, "A"))
	assert.Equal(t, "x=y", lookupEnv(env, "C"))
	assert.Equal(t, "", lookupEnv(env, "B"))
}

func TestNewRuntimeExecutor_SharesProcessGroup(t *testing.T) {
	assert.True(t, newRuntimeExecutor().Config().InheritProcessGroup)
}
