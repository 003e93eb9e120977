package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status is the lifecycle state of a supervised daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusFailed   Status = "failed"
)

// ErrAlreadyRunning is returned by Start while the daemon is running.
var ErrAlreadyRunning = errors.New("process: already running")

// Config describes one supervised daemon.
type Config struct {
	// Name identifies the daemon in logs.
	Name string

	Binary string
	Args   []string

	// Env is appended to the parent environment when non-nil.
	Env []string

	// RestartOnFailure restarts the daemon after an unexpected exit, up
	// to MaxRestartAttempts times (0 means unlimited).
	RestartOnFailure   bool
	RestartDelay       time.Duration
	MaxRestartAttempts int

	// GracefulTimeout bounds the wait between SIGTERM and SIGKILL.
	GracefulTimeout time.Duration

	// OnExit is called after every exit, with nil for a requested stop.
	OnExit func(err error)
}

// Logger defines the logging interface for the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager supervises a single daemon process.
//
// Start returns once the process has been spawned; waiting, restarting
// and output capture happen on background goroutines. Stop blocks until
// the process has exited.
type Manager struct {
	config Config
	logger Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	status   Status
	restarts int
	lastErr  error
	stopping bool
	done     chan struct{}
}

// NewManager creates a Manager. Zero durations get defaults.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 2 * time.Second
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 5 * time.Second
	}
	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start spawns the daemon.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StatusRunning || m.status == StatusStopping {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}

	m.stopping = false
	m.restarts = 0
	m.lastErr = nil
	if err := m.spawnLocked(ctx); err != nil {
		m.status = StatusFailed
		m.lastErr = err
		return err
	}

	m.done = make(chan struct{})
	go m.supervise(ctx, m.done)
	return nil
}

func (m *Manager) spawnLocked(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...) //nolint:gosec // Binary comes from validated config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe for %s: %w", m.config.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe for %s: %w", m.config.Name, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	go m.pipeLines("stdout", stdout)
	go m.pipeLines("stderr", stderr)

	m.cmd = cmd
	m.status = StatusRunning
	m.logger.Info("process started", "name", m.config.Name, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) pipeLines(stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		m.logger.Debug("process output",
			"name", m.config.Name,
			"stream", stream,
			"line", sc.Text(),
		)
	}
}

func (m *Manager) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		m.mu.Lock()
		cmd := m.cmd
		m.mu.Unlock()

		err := cmd.Wait()

		m.mu.Lock()
		if m.stopping || ctx.Err() != nil {
			m.status = StatusStopped
			m.mu.Unlock()
			m.logger.Info("process stopped", "name", m.config.Name)
			m.notifyExit(nil)
			return
		}

		if err == nil {
			err = fmt.Errorf("%s exited", m.config.Name)
		}
		m.status = StatusFailed
		m.lastErr = err
		m.restarts++
		attempt := m.restarts
		m.mu.Unlock()

		m.logger.Warn("process exited unexpectedly", "name", m.config.Name, "error", err)
		m.notifyExit(err)

		if !m.config.RestartOnFailure {
			return
		}
		if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
			m.logger.Error("giving up on process", "name", m.config.Name, "attempts", attempt-1)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.config.RestartDelay):
		}

		m.mu.Lock()
		if m.stopping {
			m.status = StatusStopped
			m.mu.Unlock()
			return
		}
		m.logger.Info("restarting process", "name", m.config.Name, "attempt", attempt)
		if err := m.spawnLocked(ctx); err != nil {
			m.status = StatusFailed
			m.lastErr = err
			m.mu.Unlock()
			m.logger.Error("restart failed", "name", m.config.Name, "error", err)
			return
		}
		m.mu.Unlock()
	}
}

func (m *Manager) notifyExit(err error) {
	if m.config.OnExit != nil {
		m.config.OnExit(err)
	}
}

// Signal delivers sig to the running daemon.
func (m *Manager) Signal(sig syscall.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusRunning || m.cmd == nil || m.cmd.Process == nil {
		return fmt.Errorf("%s is not running", m.config.Name)
	}
	return m.cmd.Process.Signal(sig)
}

// Stop terminates the daemon's process group, escalating to SIGKILL after
// GracefulTimeout. Stopping a stopped daemon is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.status != StatusRunning && m.status != StatusFailed {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	done := m.done
	var pid int
	if m.status == StatusRunning && m.cmd != nil && m.cmd.Process != nil {
		pid = m.cmd.Process.Pid
		m.status = StatusStopping
	}
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	if pid == 0 {
		// Between restarts; the supervisor sees stopping and exits.
		<-done
		return nil
	}

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("SIGTERM failed", "name", m.config.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful stop timed out, killing", "name", m.config.Name)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing %s: %w", m.config.Name, err)
	}
	<-done
	return nil
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsRunning reports whether the daemon is running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// RestartCount returns the number of unexpected exits since the last Start.
func (m *Manager) RestartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restarts
}

// LastError returns the error from the most recent unexpected exit.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// PID returns the daemon's process ID, or 0 when not running.
func (m *Manager) PID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusRunning && m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Pid
	}
	return 0
}
