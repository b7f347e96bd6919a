//go:build !windows

package foundry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// processAlive reports whether pid exists and is not a zombie.
func processAlive(pid int) bool {
	if err := syscall.Kill(pid, 0); err != nil {
		return false
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	// The state field follows the parenthesised command name.
	if i := bytes.LastIndexByte(data, ')'); i >= 0 && i+2 < len(data) {
		return data[i+2] != 'Z'
	}
	return true
}

func TestRun_FallbackTimeoutKillsWrappedRuntime(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns subprocesses")
	}
	dir := t.TempDir()
	pidfile := filepath.Join(t.TempDir(), "runtime.pid")

	s := NewSupervisor(Options{
		Binary:  os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--", "{artifact}"},
		Timeout: 2 * time.Second,
		TempDir: dir,
		Environ: func() []string {
			return append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=wrap", "HELPER_PIDFILE="+pidfile)
		},
		Fallback: &stubLocator{ok: true, target: FallbackTarget{
			Path:     "foundry-cpu",
			Launcher: []string{os.Args[0], "-test.run=TestHelperProcess", "--"},
		}},
	})

	start := time.Now()
	out, err := s.Run(context.Background(), helloRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, TierFallback, out.Tier)
	assert.Less(t, time.Since(start), 15*time.Second)
	assertNoArtifacts(t, dir)

	data, err := os.ReadFile(pidfile)
	require.NoError(t, err, "the wrapped runtime must have started")
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return !processAlive(pid) }, 5*time.Second, 50*time.Millisecond,
		"runtime %d outlived the fallback timeout", pid)
}
