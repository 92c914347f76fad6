package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "evalia",
		Subsystem: "sandbox",
		Name:      "run_duration_seconds",
		Help:      "Duration of sandboxed submission runs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"image"})

	runTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evalia",
		Subsystem: "sandbox",
		Name:      "run_timeouts_total",
		Help:      "Number of sandboxed runs that hit the timeout",
	}, []string{"image"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evalia",
		Subsystem: "sandbox",
		Name:      "run_failures_total",
		Help:      "Number of sandboxed runs that resulted in an error",
	}, []string{"image"})
)

// Executor runs untrusted submission code inside an isolated container.
type Executor interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// RunRequest describes one sandboxed execution of submission code.
type RunRequest struct {
	Image         string
	Cmd           []string
	Env           []string
	Timeout       time.Duration
	Workspace     string
	WorkingDir    string
	MemoryLimitMB int64
	CPUShares     int64
	ReadOnlyFS    bool
}

// RunResult summarises the outcome of a sandboxed run.
type RunResult struct {
	Stdout           string
	Stderr           string
	ExitCode         int
	Duration         time.Duration
	TimedOut         bool
	MemoryUsageBytes int64
}

// Config groups executor configuration values.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	WorkingDir    string
	Logger        zerolog.Logger
}

// DockerExecutor implements Executor using Docker containers. Submissions
// always run with networking disabled.
type DockerExecutor struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerExecutor constructs a Docker backed executor.
func NewDockerExecutor(cfg Config) (*DockerExecutor, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "/workspace"
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &DockerExecutor{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/evalia-edu/evalia-api/pkg/sandbox"),
		logger: logger,
	}, nil
}

// Run executes the provided command inside a sandboxed Docker container.
func (e *DockerExecutor) Run(parent context.Context, req RunRequest) (RunResult, error) {
	image := req.Image
	if image == "" {
		return RunResult{}, errors.New("image is required")
	}

	ctx, span := e.tracer.Start(parent, "sandbox.run", trace.WithAttributes(
		attribute.String("sandbox.image", image),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	hostCfg := &container.HostConfig{
		AutoRemove: false,
		Resources: container.Resources{
			Memory:    req.MemoryLimitMB * 1024 * 1024,
			CPUShares: req.CPUShares,
		},
		NetworkMode:    "none",
		ReadonlyRootfs: req.ReadOnlyFS,
	}

	if req.Workspace != "" {
		hostCfg.Mounts = append(hostCfg.Mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: req.Workspace,
			Target: e.cfg.WorkingDir,
		})
	}

	if hostCfg.Resources.Memory == 0 && e.cfg.MemoryLimitMB > 0 {
		hostCfg.Resources.Memory = e.cfg.MemoryLimitMB * 1024 * 1024
	}

	if hostCfg.Resources.CPUShares == 0 && e.cfg.CPUShares > 0 {
		hostCfg.Resources.CPUShares = e.cfg.CPUShares
	}

	config := &container.Config{
		Image:        image,
		Cmd:          req.Cmd,
		Env:          req.Env,
		WorkingDir:   req.WorkingDir,
		AttachStdout: true,
		AttachStderr: true,
	}

	if config.WorkingDir == "" {
		config.WorkingDir = e.cfg.WorkingDir
	}

	start := time.Now()
	result := RunResult{}

	resp, err := e.client.ContainerCreate(ctx, config, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		runFailures.WithLabelValues(image).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("container create: %w", err)
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		runFailures.WithLabelValues(image).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("container start: %w", err)
	}

	statusCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)

	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	duration := time.Since(start)
	result.Duration = duration
	runDuration.WithLabelValues(image).Observe(duration.Seconds())

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			runTimeouts.WithLabelValues(image).Inc()
			killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := e.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
				e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
			}
			span.RecordError(waitErr)
			span.SetStatus(codes.Error, "run timed out")
		} else if !errors.Is(waitErr, context.Canceled) {
			runFailures.WithLabelValues(image).Inc()
			span.RecordError(waitErr)
			span.SetStatus(codes.Error, waitErr.Error())
			return result, fmt.Errorf("container wait: %w", waitErr)
		}
	}

	logReader, err := e.client.ContainerLogs(parent, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err == nil {
		defer logReader.Close()
		stdout, stderr, err := splitContainerLogs(logReader)
		if err != nil {
			e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to read container logs")
		} else {
			result.Stdout = stdout
			result.Stderr = stderr
		}
	} else {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to fetch container logs")
	}

	statsCtx, cancelStats := context.WithTimeout(parent, 2*time.Second)
	defer cancelStats()
	stats, err := e.client.ContainerStatsOneShot(statsCtx, containerID)
	if err == nil {
		defer stats.Body.Close()
		var data types.StatsJSON
		if decodeErr := json.NewDecoder(stats.Body).Decode(&data); decodeErr == nil {
			result.MemoryUsageBytes = int64(data.MemoryStats.Usage)
		}
	}

	if result.TimedOut {
		return result, fmt.Errorf("run timed out after %s", timeout)
	}

	return result, nil
}

func splitContainerLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the executor's underlying client.
func (e *DockerExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
