package subprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/agentbridge/internal/config"
	"github.com/wagiedev/agentbridge/internal/errors"
	"github.com/wagiedev/agentbridge/internal/launcher"
	"github.com/wagiedev/agentbridge/internal/message"
	"github.com/wagiedev/agentbridge/internal/pump"
	"github.com/wagiedev/agentbridge/internal/sink"
)

// maxStderrTail is how many trailing stderr lines are kept for exit reports.
const maxStderrTail = 20

// State is the lifecycle state of the agent runtime.
type State int

const (
	// StateNotStarted means no spawn has been attempted.
	StateNotStarted State = iota
	// StateRunning means a child process is alive.
	StateRunning
	// StateExited means the child process terminated and was reaped.
	StateExited
	// StateSpawnFailed means the last spawn attempt failed.
	StateSpawnFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateSpawnFailed:
		return "spawn_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Supervisor owns at most one running agent runtime process.
type Supervisor struct {
	log     *slog.Logger
	options *config.Options
	sink    sink.Sink

	// wrap, if set, interposes on the child's output streams. Tests use it
	// to inject read faults.
	wrap func(source message.Source, r io.Reader) io.Reader

	mu          sync.Mutex
	current     *Process
	spawnFailed bool
}

// NewSupervisor creates a supervisor. Events decoded from the child are
// published to s; if s is nil, options.Sink is used.
func NewSupervisor(log *slog.Logger, options *config.Options, s sink.Sink) *Supervisor {
	options = options.WithDefaults()

	if s == nil {
		s = options.Sink
	}

	return &Supervisor{
		log:     log.With("component", "supervisor"),
		options: options,
		sink:    s,
	}
}

// Spawn starts the child described by spec and begins pumping its output.
//
// Spawn returns as soon as the process has started; it does not wait for
// the runtime to report readiness. While a previous child is still running,
// Spawn fails with a *errors.SpawnError wrapping errors.ErrAlreadyRunning
// and leaves that child untouched.
func (s *Supervisor) Spawn(ctx context.Context, spec launcher.Spec) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.State() == StateRunning {
		s.log.Warn("Spawn rejected, agent already running", "process_id", s.current.ID())

		return nil, &errors.SpawnError{Err: errors.ErrAlreadyRunning}
	}

	if err := ctx.Err(); err != nil {
		return nil, &errors.SpawnError{Err: err}
	}

	p, err := s.start(spec)
	if err != nil {
		s.spawnFailed = true

		return nil, &errors.SpawnError{Err: err}
	}

	s.current = p
	s.spawnFailed = false

	return p, nil
}

func (s *Supervisor) start(spec launcher.Spec) (*Process, error) {
	s.log.Info("Starting agent runtime", "path", spec.Path, "args", spec.Args, "dir", spec.Dir)

	// The child outlives the spawn call, so it is not bound to a context.
	//nolint:gosec // G204: the runtime command comes from configuration
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		s.log.Error("Failed to start agent runtime", "error", err)

		return nil, fmt.Errorf("start process: %w", err)
	}

	id := ulid.Make().String()
	log := s.log.With("process_id", id, "pid", cmd.Process.Pid)

	p := &Process{
		id:      id,
		log:     log,
		cmd:     cmd,
		channel: NewRequestChannel(log, stdin),
		stdout:  stdout,
		stderr:  stderr,
		state:   StateRunning,
		done:    make(chan struct{}),
	}

	log.Info("Agent runtime started")

	s.runPumps(p)

	return p, nil
}

// runPumps starts one pump per output stream and a waiter that reaps the
// process once both pumps have reported their outcome.
func (s *Supervisor) runPumps(p *Process) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	base := pump.Config{
		ChunkSize:            s.options.ReadChunkSize,
		MaxBufferSize:        s.options.MaxBufferSize,
		RetryDelay:           s.options.ReadRetryDelay,
		MaxConsecutiveErrors: max(s.options.MaxConsecutiveReadErrors, 0),
	}

	stderrCfg := base
	stderrCfg.Tap = func(line string) {
		p.recordStderr(line)

		if s.options.Stderr != nil {
			s.options.Stderr(line)
		}
	}

	pumps := []*pump.Pump{
		pump.New(p.log, message.SourceStdout, s.reader(message.SourceStdout, p.stdout), s.sink, base),
		pump.New(p.log, message.SourceStderr, s.reader(message.SourceStderr, p.stderr), s.sink, stderrCfg),
	}

	outcomes := make(chan pump.Outcome, len(pumps))

	var g errgroup.Group

	for _, pp := range pumps {
		g.Go(func() error {
			out := pp.Run(ctx)
			outcomes <- out

			return out.Err
		})
	}

	go s.wait(p, &g, outcomes, len(pumps))
}

func (s *Supervisor) reader(source message.Source, r io.Reader) io.Reader {
	if s.wrap == nil {
		return r
	}

	return s.wrap(source, r)
}

// wait collects pump outcomes, reaps the process and records its exit.
//
// A pump that gives up leaves its pipe undrained, and a child blocked
// writing to it would never exit, so the child is killed.
func (s *Supervisor) wait(p *Process, g *errgroup.Group, outcomes <-chan pump.Outcome, n int) {
	for range n {
		out := <-outcomes
		p.addOutcome(out)

		if readErr, ok := stderrors.AsType[*errors.ReadError](out.Err); ok {
			p.log.Error("Stream abandoned, killing agent runtime", "source", out.Source, "error", readErr)
			p.abandon(readErr)

			if err := p.Kill(); err != nil {
				p.log.Error("Failed to kill agent runtime", "error", err)
			}
		} else if out.Err != nil {
			p.log.Warn("Stream pump stopped abnormally", "source", out.Source, "error", out.Err)
		} else {
			p.log.Debug("Stream pump finished", "source", out.Source, "lines", out.Lines)
		}
	}

	if err := g.Wait(); err != nil {
		p.log.Debug("Pump group finished with error", "error", err)
	}

	// Both streams are drained, so Wait may now close the pipes.
	waitErr := p.cmd.Wait()
	p.cancel()

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}

	info := config.ExitInfo{
		ProcessID: p.id,
		PID:       p.PID(),
		ExitCode:  code,
		Stderr:    p.stderrTail(),
	}

	switch fault := p.fault(); {
	case fault != nil:
		info.Err = &errors.ProcessError{ExitCode: code, Stderr: info.Stderr, Err: fault}
		p.log.Error("Agent runtime killed after read fault", "exit_code", code, "error", fault)
	case waitErr == nil:
		p.log.Info("Agent runtime exited", "exit_code", code)
	case p.killed.Load():
		p.log.Info("Agent runtime terminated", "exit_code", code)
	default:
		info.Err = &errors.ProcessError{ExitCode: code, Stderr: info.Stderr, Err: waitErr}
		p.log.Error("Agent runtime exited with error", "exit_code", code, "stderr", info.Stderr)
	}

	p.finish(code, info.Err)

	if s.options.OnExit != nil {
		s.options.OnExit(info)
	}

	// Waiters are released only after OnExit has run.
	close(p.done)
}

// Current returns the most recently spawned process, or nil if none.
func (s *Supervisor) Current() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// State reports the state of the most recent spawn attempt.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.spawnFailed:
		return StateSpawnFailed
	case s.current == nil:
		return StateNotStarted
	default:
		return s.current.State()
	}
}

// Shutdown stops the current child: its input is closed, it is given the
// configured grace period to exit and is then killed. Shutdown returns once
// the child has been reaped or ctx is done.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	p := s.Current()
	if p == nil || p.State() != StateRunning {
		return nil
	}

	p.log.Info("Shutting down agent runtime")

	if err := p.CloseInput(); err != nil {
		p.log.Debug("Failed to close agent input", "error", err)
	}

	grace := time.NewTimer(s.options.ShutdownGrace)
	defer grace.Stop()

	select {
	case <-p.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-grace.C:
	}

	p.log.Warn("Agent runtime did not exit after input closed, killing")

	if err := p.Kill(); err != nil {
		return err
	}

	select {
	case <-p.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// joinLines renders the stderr tail for reports.
func joinLines(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
