// Package sandbox runs a project's file tree on the local machine: the
// tree is mounted into a working directory, dependencies are installed and
// the start command is kept running until the next run or Stop.
package sandbox

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"

	"github.com/dmitrijs2005/coderoom/internal/filex"
	"github.com/dmitrijs2005/coderoom/internal/logging"
)

var (
	DefaultInstall = []string{"npm", "install"}
	DefaultStart   = []string{"npm", "start"}

	ErrNotReady = errors.New("start step exited before reporting a preview url")

	urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// waitDelay bounds how long Wait lingers on output pipes held open by
// grandchildren after the start process is gone.
const waitDelay = 2 * time.Second

// ParseCommand splits a shell-like command line into an argument vector.
// An empty line yields nil.
func ParseCommand(line string) ([]string, error) {
	argv, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", line, err)
	}
	if len(argv) == 0 {
		return nil, nil
	}
	return argv, nil
}

// Runner owns one working directory and at most one running start step.
type Runner struct {
	dir    string
	out    io.Writer
	logger logging.Logger

	mu   sync.Mutex
	proc *Process
}

// New creates dir if needed. Step output is copied to out.
func New(dir string, out io.Writer, logger logging.Logger) (*Runner, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{dir: abs, out: out, logger: logger.With("module", "sandbox")}, nil
}

// Dir is the absolute working directory.
func (r *Runner) Dir() string { return r.dir }

// Run stops any previous start step, runs install to completion and then
// launches start. Empty argv selects the defaults. ctx bounds the install
// step only; the start step lives until Stop or the next Run.
func (r *Runner) Run(ctx context.Context, install, start []string) (*Process, error) {
	r.Stop()

	if len(install) == 0 {
		install = DefaultInstall
	}
	if len(start) == 0 {
		start = DefaultStart
	}

	r.logger.Info(ctx, "install step", "command", strings.Join(install, " "))
	cmd := exec.CommandContext(ctx, install[0], install[1:]...)
	cmd.Dir = r.dir
	cmd.Stdout = r.out
	cmd.Stderr = r.out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("install step %q: %w", strings.Join(install, " "), err)
	}

	r.logger.Info(ctx, "start step", "command", strings.Join(start, " "))
	p, err := r.launch(start)
	if err != nil {
		return nil, fmt.Errorf("start step %q: %w", strings.Join(start, " "), err)
	}

	r.mu.Lock()
	r.proc = p
	r.mu.Unlock()
	return p, nil
}

// Stop kills the running start step, if any, and waits for it to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	p := r.proc
	r.proc = nil
	r.mu.Unlock()

	if p != nil {
		p.kill()
	}
}

// Running returns the current start step, or nil.
func (r *Runner) Running() *Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proc
}

func (r *Runner) launch(argv []string) (*Process, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = r.dir
	cmd.WaitDelay = waitDelay

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return nil, err
	}

	p := &Process{
		cmd:   cmd,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}

	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		p.scan(pr, r.out)
	}()
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		<-scanned
		p.err = err
		close(p.done)
	}()
	return p, nil
}

// Process is a running start step.
type Process struct {
	cmd   *exec.Cmd
	ready chan struct{}
	url   string
	done  chan struct{}
	err   error
}

// Ready is closed once a preview URL has been seen in the output.
func (p *Process) Ready() <-chan struct{} { return p.ready }

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// URL is the preview URL, valid after Ready is closed.
func (p *Process) URL() string {
	select {
	case <-p.ready:
		return p.url
	default:
		return ""
	}
}

// Err is the exit error, valid after Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// WaitReady blocks until the preview URL shows up, the process exits or
// ctx ends.
func (p *Process) WaitReady(ctx context.Context) (string, error) {
	select {
	case <-p.ready:
		return p.url, nil
	default:
	}

	select {
	case <-p.ready:
		return p.url, nil
	case <-p.done:
		if p.err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotReady, p.err)
		}
		return "", ErrNotReady
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Process) scan(r io.Reader, out io.Writer) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	found := false
	for sc.Scan() {
		line := sc.Text()
		fmt.Fprintln(out, line)
		if found {
			continue
		}
		if u := urlPattern.FindString(line); u != "" {
			p.url = u
			found = true
			close(p.ready)
		}
	}
	// drain so the child never blocks on a full pipe
	_, _ = io.Copy(io.Discard, r)
}

// kill is a no-op on an already exited process apart from the wait.
func (p *Process) kill() {
	_ = p.cmd.Process.Kill()
	<-p.done
}
