//go:build !windows

package tactile

import (
	"context"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func processGroup() int {
	return syscall.Getpgrp()
}

func TestDirectExecutor_NewProcessGroupByDefault(t *testing.T) {
	result, err := NewDirectExecutor().Execute(context.Background(), helperCommand("pgid"))
	require.NoError(t, err)

	pgid, err := strconv.Atoi(result.Stdout)
	require.NoError(t, err)
	assert.NotEqual(t, syscall.Getpgrp(), pgid, "child leads its own group")
}

func TestDirectExecutor_InheritProcessGroup(t *testing.T) {
	cfg := DefaultExecutorConfig()
	cfg.InheritProcessGroup = true

	result, err := NewDirectExecutorWithConfig(cfg).Execute(context.Background(), helperCommand("pgid"))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(syscall.Getpgrp()), result.Stdout)
}

func TestDirectExecutor_InheritProcessGroupTimeout(t *testing.T) {
	cfg := DefaultExecutorConfig()
	cfg.InheritProcessGroup = true

	cmd := helperCommand("sleep")
	cmd.Limits = &ResourceLimits{TimeoutMs: 200}

	result, err := NewDirectExecutorWithConfig(cfg).Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, result.TimedOut, "only the child is killed, the test process survives")
}

func TestDirectExecutor_ResourceUsage(t *testing.T) {
	result, err := NewDirectExecutor().Execute(context.Background(), helperCommand("stdout", "HELPER_OUTPUT=x"))
	require.NoError(t, err)

	require.NotNil(t, result.ResourceUsage)
	assert.Positive(t, result.ResourceUsage.MaxRSSBytes)
	assert.Equal(t, result.ResourceUsage.UserTimeMs+result.ResourceUsage.SystemTimeMs, result.ResourceUsage.TotalCPUTimeMs())
}
