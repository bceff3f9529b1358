package subprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/wagiedev/agentbridge/internal/message"
	"github.com/wagiedev/agentbridge/internal/pump"
)

// Process is the handle to one spawned agent runtime.
type Process struct {
	id      string
	log     *slog.Logger
	cmd     *exec.Cmd
	channel *RequestChannel
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	cancel  context.CancelFunc
	done    chan struct{}
	killed  atomic.Bool

	mu       sync.Mutex // Protects the fields below
	state    State
	exitCode int
	exitErr  error
	readErr  error // set when a stream was abandoned
	outcomes []pump.Outcome
	tail     []string // last stderr lines
}

// ID returns the bridge-assigned identifier of this process.
func (p *Process) ID() string {
	return p.id
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Channel returns the request channel writing to the child's input.
func (p *Process) Channel() *RequestChannel {
	return p.channel
}

// Send writes one request to the child.
func (p *Process) Send(ctx context.Context, req message.Request) error {
	return p.channel.Send(ctx, req)
}

// State returns StateRunning until the process has been reaped, then
// StateExited.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// ExitCode returns the exit code and true once the process has been reaped.
// A process killed by a signal reports -1.
func (p *Process) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.exitCode, p.state == StateExited
}

// Err returns a *errors.ProcessError if the process exited unsuccessfully
// without being killed by the bridge, or was killed because one of its
// streams could not be read. It is nil while running.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.exitErr
}

// Done is closed once the process has been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process has been reaped or ctx is done.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcomes returns the outcomes of the stream pumps that have finished.
func (p *Process) Outcomes() []pump.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.outcomes)
}

// CloseInput closes the child's standard input. A well-behaved runtime
// exits on end-of-input.
func (p *Process) CloseInput() error {
	return p.channel.Close()
}

// Kill forcefully terminates the process. It is safe to call Kill multiple
// times or on a process that has already exited.
func (p *Process) Kill() error {
	if p.State() != StateRunning {
		return nil
	}

	p.killed.Store(true)
	p.log.Debug("Killing agent runtime")

	if err := p.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill agent runtime (pid %d): %w", p.PID(), err)
	}

	// Output pipes may be held open by the runtime's own children; closing
	// them ends both pumps.
	_ = p.stdout.Close()
	_ = p.stderr.Close()
	_ = p.channel.Close()

	return nil
}

// abandon records the read fault that made the supervisor give up on the
// process. The first fault wins.
func (p *Process) abandon(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readErr == nil {
		p.readErr = err
	}
}

func (p *Process) fault() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.readErr
}

func (p *Process) addOutcome(out pump.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.outcomes = append(p.outcomes, out)
}

func (p *Process) recordStderr(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.tail) == maxStderrTail {
		p.tail = slices.Delete(p.tail, 0, 1)
	}

	p.tail = append(p.tail, line)
}

func (p *Process) stderrTail() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return joinLines(p.tail)
}

// finish records the exit. The supervisor closes done afterwards.
func (p *Process) finish(code int, err error) {
	p.mu.Lock()
	p.state = StateExited
	p.exitCode = code
	p.exitErr = err
	p.mu.Unlock()
}
