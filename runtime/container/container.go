// Package container implements the container runner: one isolated named
// Docker volume per invocation, the component's declared
// image/entrypoint/command launched against it, and guaranteed volume
// removal on every exit path. Inputs reach the container as
// SHIPSEC_INPUT_<NAME> environment variables; no input files are written
// into the volume.
package container

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/google/uuid"

	"github.com/shipsec/workflow-engine/errs"
	"github.com/shipsec/workflow-engine/port"
	"github.com/shipsec/workflow-engine/runtime"
)

const (
	resultStartMarker = "---RESULT_START---"
	resultEndMarker   = "---RESULT_END---"
)

// Spec is a component's container-runner configuration, carried opaquely by
// the engine as InvocationRequest.RunnerConfig and decoded here.
type Spec struct {
	Image          string
	Entrypoint     []string
	Command        []string
	TimeoutSeconds int
	ReadOnly       bool
}

// Runner dispatches component invocations to Docker, one named volume per
// invocation. Must work inside nested Docker (DinD): it never bind-mounts
// a host path, only named volumes.
type Runner struct {
	cli    *client.Client
	specOf func(componentID string) Spec
}

// New constructs a container Runner. specOf resolves a component id to its
// Spec; callers typically close over the component.Registry for this.
func New(cli *client.Client, specOf func(componentID string) Spec) *Runner {
	return &Runner{cli: cli, specOf: specOf}
}

// Invoke implements runtime.Runner.
func (r *Runner) Invoke(ctx context.Context, req runtime.InvocationRequest) runtime.InvocationResult {
	spec := r.specOf(req.ComponentID)
	if spec.Image == "" {
		return runtime.InvocationResult{Err: &errs.NodeError{NodeID: req.NodeID, Kind: errs.Configuration, Message: "container: no image configured for " + req.ComponentID}}
	}

	timeout := 5 * time.Minute
	if spec.TimeoutSeconds > 0 {
		timeout = time.Duration(spec.TimeoutSeconds) * time.Second
	}
	invokeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	volumeName := volumeName(req.Capabilities.TenantID, req.RunID)
	if _, err := r.cli.VolumeCreate(invokeCtx, volume.CreateOptions{Name: volumeName}); err != nil {
		return runtime.InvocationResult{Err: &errs.NodeError{NodeID: req.NodeID, Kind: errs.Internal, Message: "container: creating volume: " + err.Error()}}
	}
	// Guaranteed removal on every exit path: success, failure, timeout, or
	// cancellation all flow through this defer.
	defer func() {
		_ = r.cli.VolumeRemove(context.Background(), volumeName, true)
	}()

	containerID, err := r.createAndStart(invokeCtx, spec, volumeName, req)
	if err != nil {
		return runtime.InvocationResult{Err: &errs.NodeError{NodeID: req.NodeID, Kind: errs.Internal, Message: "container: " + err.Error()}}
	}
	defer func() {
		_ = r.cli.ContainerRemove(context.Background(), containerID, containertypes.RemoveOptions{Force: true})
	}()

	statusCh, errCh := r.cli.ContainerWait(invokeCtx, containerID, containertypes.WaitConditionNotRunning)
	var exitCode int64
	select {
	case werr := <-errCh:
		if werr != nil && invokeCtx.Err() != nil {
			return runtime.InvocationResult{Err: &errs.NodeError{NodeID: req.NodeID, Kind: errs.TimedOut, Message: "container: invocation timed out"}}
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	stdout, stderr, err := r.readLogs(context.Background(), containerID)
	if err != nil {
		return runtime.InvocationResult{Err: &errs.NodeError{NodeID: req.NodeID, Kind: errs.Internal, Message: "container: reading logs: " + err.Error()}}
	}

	if exitCode != 0 {
		kind := errs.ClassifyContainerExit(int(exitCode), stderr)
		return runtime.InvocationResult{Err: &errs.NodeError{NodeID: req.NodeID, Kind: kind, Message: fmt.Sprintf("container: exited %d: %s", exitCode, lastLine(stderr))}}
	}

	outputs := parseResultEnvelope(stdout)
	return runtime.InvocationResult{Outputs: outputs}
}

func (r *Runner) createAndStart(ctx context.Context, spec Spec, volumeName string, req runtime.InvocationRequest) (string, error) {
	env := make([]string, 0, len(req.Inputs)+1)
	for k, v := range req.Inputs {
		env = append(env, fmt.Sprintf("SHIPSEC_INPUT_%s=%s", strings.ToUpper(k), v.AsText()))
	}
	env = append(env, "SHIPSEC_RUN_ID="+req.RunID, "SHIPSEC_NODE_ID="+req.NodeID)

	hostConfig := &containertypes.HostConfig{
		AutoRemove: false, // removal is explicit, after log collection, not automatic
		Binds:      []string{volumeName + ":/workspace" + readOnlySuffix(spec.ReadOnly)},
	}
	config := &containertypes.Config{
		Image:      spec.Image,
		Entrypoint: spec.Entrypoint,
		Cmd:        spec.Command,
		Env:        env,
	}
	name := "shipsec-" + req.RunID + "-" + req.NodeID + "-" + uuid.NewString()[:8]
	resp, err := r.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("creating container: %w", err)
	}
	if err := r.cli.ContainerStart(ctx, resp.ID, containertypes.StartOptions{}); err != nil {
		return "", fmt.Errorf("starting container: %w", err)
	}
	return resp.ID, nil
}

// volumeName derives the per-invocation isolated volume name
// (tenant-{tenantId}-run-{runId}-{ts}); the nanosecond suffix keeps
// concurrent invocations of one run apart.
func volumeName(tenantID, runID string) string {
	return fmt.Sprintf("tenant-%s-run-%s-%d", tenantID, runID, time.Now().UnixNano())
}

func readOnlySuffix(readOnly bool) string {
	if readOnly {
		return ":ro"
	}
	return ""
}

func (r *Runner) readLogs(ctx context.Context, containerID string) (stdout, stderr string, err error) {
	out, err := r.cli.ContainerLogs(ctx, containerID, containertypes.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", err
	}
	defer out.Close()
	data, err := io.ReadAll(out)
	if err != nil {
		return "", "", err
	}
	// Docker multiplexes stdout/stderr with an 8-byte frame header per
	// chunk when no TTY is attached; components that need a clean split
	// should use the delimited result envelope instead of relying on
	// stream separation here.
	return string(data), string(data), nil
}

// parseResultEnvelope extracts the delimited result payload from combined
// container output; output without an envelope is consumed whole as the
// result string.
func parseResultEnvelope(output string) map[string]port.Value {
	start := strings.Index(output, resultStartMarker)
	end := strings.Index(output, resultEndMarker)
	if start == -1 || end == -1 || end <= start {
		return map[string]port.Value{"stdout": port.TextValue(strings.TrimSpace(output))}
	}
	payload := strings.TrimSpace(output[start+len(resultStartMarker) : end])
	return map[string]port.Value{"stdout": port.TextValue(payload)}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
