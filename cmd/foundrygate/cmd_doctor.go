package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"foundrygate/internal/config"
	"foundrygate/internal/foundry"
	"foundrygate/internal/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the runtime and its fallback can be launched",
	Long: `Runs the gateway's preflight checks concurrently: configuration, primary
binary lookup, fallback discovery, version sanitization and artifact storage.

A missing primary binary or fallback is a warning because the other tier may
still serve requests. Any failed check makes the command exit non-zero.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

type checkStatus int

const (
	checkOK checkStatus = iota
	checkWarn
	checkFail
)

type checkResult struct {
	Name   string
	Status checkStatus
	Detail string
}

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EAB308")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	nameStyle   = lipgloss.NewStyle().Width(18)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

func (r checkResult) render() string {
	var mark string
	switch r.Status {
	case checkOK:
		mark = okStyle.Render("✓")
	case checkWarn:
		mark = warnStyle.Render("!")
	default:
		mark = failStyle.Render("✗")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, mark, " ", nameStyle.Render(r.Name), detailStyle.Render(r.Detail))
}

// doctorChecks returns the checks in display order.
func doctorChecks(c *config.Config) []func() checkResult {
	return []func() checkResult{
		func() checkResult { return checkConfig(c) },
		func() checkResult { return checkPrimary(c) },
		func() checkResult { return checkFallback(c) },
		func() checkResult { return checkVersion(c) },
		func() checkResult { return checkTempDir(c) },
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	results, err := runChecks(cmd.Context(), doctorChecks(cfg))
	if err != nil {
		return err
	}

	failures := 0
	for _, r := range results {
		fmt.Fprintln(cmd.OutOrStdout(), r.render())
		if r.Status == checkFail {
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("doctor: %d check(s) failed", failures)
	}
	return nil
}

// runChecks runs every check concurrently and keeps the input order.
func runChecks(ctx context.Context, checks []func() checkResult) ([]checkResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]checkResult, len(checks))
	g, ctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = check()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkConfig(c *config.Config) checkResult {
	if err := c.Validate(); err != nil {
		return checkResult{"config", checkFail, strings.ReplaceAll(err.Error(), "\n", "; ")}
	}
	return checkResult{"config", checkOK, fmt.Sprintf("provider=%s model=%s", c.ProviderName, c.ProviderModel)}
}

func checkPrimary(c *config.Config) checkResult {
	path, err := exec.LookPath(c.Foundry.Binary)
	if err != nil {
		return checkResult{"primary binary", checkWarn, fmt.Sprintf("%s not found", c.Foundry.Binary)}
	}
	return checkResult{"primary binary", checkOK, path}
}

func checkFallback(c *config.Config) checkResult {
	target, ok := foundry.NewFallbackLocator(c.Foundry.Fallback).Locate()
	if !ok {
		return checkResult{"cpu fallback", checkWarn, "not present"}
	}
	bin, _ := target.Command("")
	detail := target.Path
	if bin != target.Path {
		detail = bin + " " + target.Path
	}
	return checkResult{"cpu fallback", checkOK, detail}
}

func checkVersion(c *config.Config) checkResult {
	raw := c.Foundry.CUDAVersion
	if strings.TrimSpace(raw) == "" {
		raw = foundry.DefaultRuntimeVersion
	}
	v := foundry.Sanitizer{MaxGroupDigits: c.Foundry.GetMaxVersionDigits()}.Sanitize(raw)
	if v == foundry.FallbackVersion {
		return checkResult{"runtime version", checkWarn, fmt.Sprintf("%q is unusable, injecting %s", raw, v)}
	}
	if strings.TrimSpace(raw) != v.String() {
		return checkResult{"runtime version", checkOK, fmt.Sprintf("%q sanitized to %s", raw, v)}
	}
	return checkResult{"runtime version", checkOK, v.String()}
}

func checkTempDir(c *config.Config) checkResult {
	dir := c.Foundry.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	art, err := foundry.WriteArtifact(c.Foundry.TempDir, types.CanonicalRequest{Model: c.ProviderModel})
	if err != nil {
		return checkResult{"artifact storage", checkFail, fmt.Sprintf("%s: %v", dir, err)}
	}
	if err := art.Remove(); err != nil {
		return checkResult{"artifact storage", checkFail, fmt.Sprintf("%s: cleanup: %v", dir, err)}
	}
	return checkResult{"artifact storage", checkOK, dir}
}
