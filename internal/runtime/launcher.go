package runtime

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"

	"github.com/kode4food/swfcatalog/pkg/log"
)

// Launcher runs the local workflow runtime as a child process and relays
// its output to the logger, one record per line
type Launcher struct {
	command string
	dir     string
	logger  *slog.Logger
	cmd     *exec.Cmd
	done    chan struct{}
	err     error
	mu      sync.Mutex
}

var (
	ErrCommandRequired = errors.New("runtime command is required")
	ErrAlreadyStarted  = errors.New("runtime already started")
	ErrNotStarted      = errors.New("runtime not started")
)

// NewLauncher creates a launcher for a shell command line. dir may be
// empty to inherit the working directory
func NewLauncher(command, dir string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command: command,
		dir:     dir,
		logger:  logger.With(slog.String("component", "runtime")),
	}
}

// Start spawns the runtime process without waiting for it to exit
func (l *Launcher) Start() error {
	if l.command == "" {
		return ErrCommandRequired
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cmd != nil {
		return ErrAlreadyStarted
	}

	cmd := exec.Command("sh", "-c", l.command)
	cmd.Dir = l.dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	l.cmd = cmd
	l.done = make(chan struct{})
	l.logger.Info("Runtime started",
		slog.String("command", l.command),
		slog.Int("pid", cmd.Process.Pid))

	var streams sync.WaitGroup
	streams.Go(func() { l.relay(stdout, slog.LevelInfo) })
	streams.Go(func() { l.relay(stderr, slog.LevelWarn) })

	go func() {
		streams.Wait()
		err := cmd.Wait()
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		if err != nil {
			l.logger.Warn("Runtime exited", log.Error(err))
		} else {
			l.logger.Info("Runtime exited")
		}
		close(l.done)
	}()
	return nil
}

// Stop asks the runtime to terminate and waits for it to exit. If the
// context ends first, the process group is killed
func (l *Launcher) Stop(ctx context.Context) error {
	l.mu.Lock()
	cmd, done := l.cmd, l.done
	l.mu.Unlock()
	if cmd == nil {
		return ErrNotStarted
	}

	select {
	case <-done:
		return nil
	default:
	}

	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return ctx.Err()
	}
}

// Wait blocks until the runtime exits and returns its exit error
func (l *Launcher) Wait() error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done == nil {
		return ErrNotStarted
	}
	<-done

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Launcher) relay(r io.Reader, level slog.Level) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		l.logger.Log(context.Background(), level, scanner.Text())
	}
}
