package runner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned by Start while a process is owned.
var ErrAlreadyRunning = errors.New("journey runner is already running")

const defaultKillGrace = 5 * time.Second

// Options configures how the runner process is spawned.
type Options struct {
	// Command is the executable; Args passed to Start follow CommandArgs.
	Command     string
	CommandArgs []string
	Dir         string
	// Env is appended to the current environment.
	Env []string
}

// Process is a spawned runner with its standard streams connected.
type Process struct {
	cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	waitOnce sync.Once
	waitErr  error
	done     chan struct{}
}

// Pid returns the OS process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait reaps the process. It must only be called after Stdout and Stderr
// have been read to EOF. Safe to call more than once.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.done)
	})
	return p.waitErr
}

// Exited reports whether Wait has returned.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Supervisor owns at most one runner process at a time.
type Supervisor struct {
	// KillGrace is how long Stop waits after SIGTERM before sending SIGKILL.
	KillGrace time.Duration

	mu   sync.Mutex
	proc *Process
}

// NewSupervisor returns an idle supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{KillGrace: defaultKillGrace}
}

// Start spawns the runner with args. It fails with ErrAlreadyRunning when a
// process is already owned, in which case nothing is spawned.
func (s *Supervisor) Start(args []string, opts Options) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil {
		return nil, ErrAlreadyRunning
	}
	if opts.Command == "" {
		return nil, fmt.Errorf("runner: missing command")
	}

	argv := append(append([]string{}, opts.CommandArgs...), args...)
	cmd := exec.Command(opts.Command, argv...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)
	configureProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("runner: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("runner: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("runner: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("runner: start %s: %w", opts.Command, err)
	}

	p := &Process{
		cmd:    cmd,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		done:   make(chan struct{}),
	}
	s.proc = p
	slog.Info("journey runner started", "pid", cmd.Process.Pid, "command", opts.Command, "args", argv)
	return p, nil
}

// IsActive reports whether a process is owned.
func (s *Supervisor) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil
}

// Stop terminates the owned process, if any, and clears ownership even when
// the signal cannot be delivered. Safe to call repeatedly and concurrently.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	p := s.proc
	s.proc = nil
	s.mu.Unlock()

	s.terminate(p)
}

// Release stops p only if it is still the owned process. Cleanup paths use
// it so a late release never terminates a newer run.
func (s *Supervisor) Release(p *Process) {
	s.mu.Lock()
	if p == nil || s.proc != p {
		s.mu.Unlock()
		return
	}
	s.proc = nil
	s.mu.Unlock()

	s.terminate(p)
}

func (s *Supervisor) terminate(p *Process) {
	if p == nil || p.Exited() {
		return
	}

	pid := p.Pid()
	if err := signalTerm(p.cmd); err != nil {
		slog.Warn("unable to stop journey runner", "pid", pid, "error", err)
		return
	}
	slog.Info("journey runner stop requested", "pid", pid)

	grace := s.KillGrace
	if grace <= 0 {
		grace = defaultKillGrace
	}
	go func() {
		select {
		case <-p.done:
		case <-time.After(grace):
			slog.Warn("journey runner did not exit, sending SIGKILL", "pid", pid)
			if err := signalKill(p.cmd); err != nil {
				slog.Debug("journey runner kill failed", "pid", pid, "error", err)
			}
		}
	}()
}
