// Package sandbox launches the single-use, isolated container that runs
// one submitted program. The host never executes user code itself: it
// hands the program (prefixed by a sys.path stub pointing at the
// compiled-modules mount) to the sandbox image's entrypoint, which
// executes it under restricted builtins and prints the JSON envelope.
// The concrete container runtime is testcontainers-go wrapping a
// Docker-compatible backend.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Limits mirrors the resource ceilings of the execution pipeline.
type Limits struct {
	Image           string
	MemoryBytes     int64 // memory + equal swap cap
	CPUQuotaPercent int64 // e.g. 50 for "50% of one CPU"
	NetworkMode     string
	TmpfsSizeBytes  int64
}

// DefaultLimits is 256 MiB memory with an equal swap cap, 50% of one
// CPU, and a 64 MiB tmpfs scratch area.
func DefaultLimits(image, networkMode string) Limits {
	return Limits{
		Image:           image,
		MemoryBytes:     256 * 1024 * 1024,
		CPUQuotaPercent: 50,
		NetworkMode:     networkMode,
		TmpfsSizeBytes:  64 * 1024 * 1024,
	}
}

// RunResult is what the sandbox observed: exit code and the exec's
// combined stdout/stderr stream, already truncated to the caller's
// ceiling.
type RunResult struct {
	ExitCode int
	Stdout   []byte
	TimedOut bool
}

// Sandbox image contract: the image ships a stdin-reading entrypoint at
// entrypointPath (executes the program under restricted builtins,
// resolves the main()/result convention, prints the JSON envelope), and
// the host's compiled modules are mounted read-only at compiledMount.
const (
	entrypointPath = "/opt/mfp/entrypoint.py"
	compiledMount  = "/compiled"
	programPath    = "/tmp/program.py"
)

// buildPayload prepends the sys.path stub so generated server packages
// under the compiled mount are importable by the user program.
func buildPayload(program string) string {
	return fmt.Sprintf("import sys as _sys\n_sys.path.insert(0, %q)\n\n%s", compiledMount, program)
}

// Run starts an isolated container per Limits, delivers the stubbed
// program to the image entrypoint's standard input, waits up to
// timeout, and force-removes the container on every exit path (the
// defer runs even if Exec panics or returns early).
func Run(ctx context.Context, limits Limits, env map[string]string, hostCompiledDir, program string, timeout time.Duration, maxStdoutBytes int) (*RunResult, error) {
	absCompiled, err := filepath.Abs(hostCompiledDir)
	if err != nil {
		return nil, fmt.Errorf("resolving compiled directory: %w", err)
	}

	req := testcontainers.ContainerRequest{
		Image:      limits.Image,
		Env:        env,
		Cmd:        []string{"sleep", "infinity"}, // container stays up for the one Exec call below
		WaitingFor: wait.ForExec([]string{"true"}).WithStartupTimeout(10 * time.Second),
		HostConfigModifier: func(hc *dockercontainer.HostConfig) {
			hc.NetworkMode = dockercontainer.NetworkMode(limits.NetworkMode)
			hc.Binds = append(hc.Binds, absCompiled+":"+compiledMount+":ro")
			hc.ReadonlyRootfs = true
			hc.Tmpfs = map[string]string{"/tmp": fmt.Sprintf("size=%d,mode=1777", limits.TmpfsSizeBytes)}
			hc.Memory = limits.MemoryBytes
			hc.MemorySwap = limits.MemoryBytes // equal swap cap
			hc.CPUPeriod = 100000
			hc.CPUQuota = limits.CPUQuotaPercent * 1000 // 100ms period, quota in microseconds
			hc.SecurityOpt = []string{"no-new-privileges"}
			hc.PublishAllPorts = false
		},
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("starting sandbox container: %w", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = c.Terminate(cleanupCtx)
	}()

	payload := buildPayload(program)
	if err := c.CopyToContainer(ctx, []byte(payload), programPath, 0o400); err != nil {
		return nil, fmt.Errorf("copying program into sandbox: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The entrypoint reads the program from stdin; the tmpfs copy is
	// redirected into it so the delivery matches the image contract
	// without holding an attach socket open.
	cmd := []string{"sh", "-c", fmt.Sprintf("python3 %s < %s", entrypointPath, programPath)}

	// Multiplexed strips Docker's stream-framing headers; without it the
	// reader interleaves 8-byte frame prefixes into the JSON envelope.
	exitCode, reader, err := c.Exec(runCtx, cmd, tcexec.Multiplexed())
	if err != nil {
		if runCtx.Err() != nil {
			return &RunResult{TimedOut: true, ExitCode: 124}, nil
		}
		return nil, fmt.Errorf("executing sandboxed program: %w", err)
	}

	stdout := readAllCapped(reader, maxStdoutBytes)
	return &RunResult{ExitCode: exitCode, Stdout: stdout}, nil
}

func readAllCapped(r io.Reader, max int) []byte {
	if r == nil {
		return nil
	}
	buf := new(bytes.Buffer)
	_, _ = io.CopyN(buf, r, int64(max))
	return buf.Bytes()
}
