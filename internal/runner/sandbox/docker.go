// Package sandbox runs generated scripts inside resource-limited containers
// via the docker CLI. The mounted workspace is the only writable surface the
// executed code sees besides the network; nothing is retained between calls
// except the built image cache.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrServiceUnavailable means the execution substrate is absent or
// unreachable. No attempt can succeed, so the whole run is fatal.
var ErrServiceUnavailable = errors.New("docker is not available")

// BuildError carries the raw build log so a dependency-repair call can quote
// the failing resolver output.
type BuildError struct {
	Image string
	Log   string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %v", e.Image, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

type Result struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

type Docker struct {
	// Binary defaults to "docker"; tests point it at a fake.
	Binary string

	// BaseImage is the pre-built research sandbox image that experiment
	// images layer dependencies onto.
	BaseImage string

	MemoryLimit string
	CPUs        string
	MountPath   string
}

func NewDocker() *Docker {
	return &Docker{
		Binary:      "docker",
		BaseImage:   "autoresearchlab-sandbox",
		MemoryLimit: "2g",
		CPUs:        "1",
		MountPath:   "/home/researcher/workspace",
	}
}

func (d *Docker) binary() string {
	if d.Binary != "" {
		return d.Binary
	}
	return "docker"
}

// Available verifies the docker daemon answers. Called once at run start;
// failure maps to ErrServiceUnavailable.
func (d *Docker) Available(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.binary(), "version", "--format", "{{.Server.Version}}")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", ErrServiceUnavailable, strings.TrimSpace(string(out)))
	}
	return nil
}

// BuildExperimentImage layers the workspace requirements.txt onto the base
// image and returns the resulting tag. With no manifest present the base
// image is returned unchanged. Idempotent: a repaired manifest rebuilds from
// the same base layer under the same tag.
func (d *Docker) BuildExperimentImage(ctx context.Context, experimentID, workspace string) (string, error) {
	reqPath := filepath.Join(workspace, "requirements.txt")
	if _, err := os.Stat(reqPath); errors.Is(err, os.ErrNotExist) {
		return d.BaseImage, nil
	}

	tag := "autoresearchlab/exp_" + strings.ToLower(experimentID)
	dockerfile := filepath.Join(workspace, "Dockerfile.exp")
	content := fmt.Sprintf("FROM %s\nWORKDIR %s\nCOPY requirements.txt .\nRUN pip install --no-cache-dir -r requirements.txt\n",
		d.BaseImage, d.MountPath)
	if err := os.WriteFile(dockerfile, []byte(content), 0o644); err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(dockerfile) }()

	cmd := exec.CommandContext(ctx, d.binary(), "build", "-f", dockerfile, "-t", tag, workspace)
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined
	if err := cmd.Run(); err != nil {
		return "", &BuildError{Image: tag, Log: combined.String(), Err: err}
	}
	return tag, nil
}

// Execute materializes script into the workspace as scriptName and runs it
// inside image with bounded CPU/memory and a wall-clock timeout. Network
// stays enabled for dataset downloads. Timeouts return a synthetic non-zero
// result, not an error, so the repair loop treats them like any failure.
func (d *Docker) Execute(ctx context.Context, image, workspace, scriptName, script string, timeout time.Duration) (Result, error) {
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(filepath.Join(workspace, scriptName), []byte(script), 0o644); err != nil {
		return Result{}, err
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	containerName := "autolab-" + strings.ToLower(ulid.Make().String())
	args := []string{
		"run", "--rm",
		"--name", containerName,
		"--network", "bridge",
		"--memory", d.MemoryLimit,
		"--cpus", d.CPUs,
		"-v", workspace + ":" + d.MountPath,
		"-w", d.MountPath,
		image,
		"python3", scriptName,
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, d.binary(), args...)
	// Own process group so the whole client tree dies on timeout or cancel.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 3 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		// Killing the CLI does not stop the container; remove it explicitly.
		_ = exec.Command(d.binary(), "rm", "-f", containerName).Run()
		return Result{
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   fmt.Sprintf("execution timed out after %s", timeout),
			TimedOut: true,
		}, nil
	}
	if ctx.Err() != nil {
		_ = exec.Command(d.binary(), "rm", "-f", containerName).Run()
		return Result{}, context.Cause(ctx)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}, nil
		}
		return Result{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return Result{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
