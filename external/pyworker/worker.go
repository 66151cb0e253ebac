// Package pyworker runs a long-lived helper process that speaks newline-delimited
// JSON over stdin and stdout. Inference libraries that only exist for Python are
// driven through it.
//
// The worker must print {"type":"ready"} once it is able to serve requests, or a
// single {"type":"error","code":...,"message":...} line and exit. After that it
// reads one request per line and answers with one or more message lines.
package pyworker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	maxLineBytes     = 4 << 20
	stderrTailLines  = 20
	closeGracePeriod = 5 * time.Second
)

// CodeModelNotFound is reported at startup by a worker asked to load a model
// that has no usable local copy.
const CodeModelNotFound = "model_not_found"

var ErrClosed = errors.New("pyworker: worker closed")

type Spec struct {
	Name    string
	Command string
	Args    []string
	// Env is appended to the environment of the current process.
	Env []string
	Dir string
}

// Message is one line printed by the worker.
type Message struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	raw []byte
}

// Decode unmarshals the full line into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.raw, v)
}

// RemoteError is an {"type":"error"} message reported by the worker.
type RemoteError struct {
	Worker  string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("pyworker %s: %s: %s", e.Worker, e.Code, e.Message)
}

// HasCode reports whether err is a RemoteError carrying code.
func HasCode(err error, code string) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Code == code
}

type Worker struct {
	name  string
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan []byte

	sem      chan struct{}
	closing  chan struct{}
	exited   chan struct{}
	waitErr  error
	stderr   *tail
	stopOnce sync.Once
}

// Start launches the worker and waits for its ready message. Cancelling ctx
// aborts the startup; it has no effect once Start has returned.
func Start(ctx context.Context, spec Spec) (*Worker, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Dir = spec.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("pyworker %s: stdin pipe: %w", spec.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pyworker %s: stdout pipe: %w", spec.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("pyworker %s: stderr pipe: %w", spec.Name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("pyworker %s: start %s: %w", spec.Name, spec.Command, err)
	}

	w := &Worker{
		name:    spec.Name,
		cmd:     cmd,
		stdin:   stdin,
		lines:   make(chan []byte),
		sem:     make(chan struct{}, 1),
		closing: make(chan struct{}),
		exited:  make(chan struct{}),
		stderr:  newTail(stderrTailLines),
	}
	slog.Info("worker process started", "worker", w.name, "pid", cmd.Process.Pid)

	var stderrDone sync.WaitGroup
	stderrDone.Add(1)
	go func() {
		defer stderrDone.Done()
		w.forwardStderr(stderr)
	}()
	go func() {
		w.readStdout(stdout)
		stderrDone.Wait()
		w.waitErr = cmd.Wait()
		slog.Info("worker process exited", "worker", w.name, "error", w.waitErr)
		close(w.exited)
	}()

	type startResult struct {
		msg Message
		err error
	}
	ready := make(chan startResult, 1)
	go func() {
		msg, err := w.next()
		ready <- startResult{msg: msg, err: err}
	}()

	select {
	case r := <-ready:
		if r.err != nil {
			w.kill()
			return nil, r.err
		}
		if r.msg.Type != "ready" {
			w.kill()
			return nil, fmt.Errorf("pyworker %s: expected ready message, got %q", w.name, r.msg.Type)
		}
	case <-ctx.Done():
		w.kill()
		<-ready
		return nil, ctx.Err()
	}
	slog.Info("worker ready", "worker", w.name)
	return w, nil
}

func (w *Worker) Name() string {
	return w.name
}

// Exited reports whether the process has terminated.
func (w *Worker) Exited() bool {
	select {
	case <-w.exited:
		return true
	default:
		return false
	}
}

// Exchange is exclusive access to the worker for one request and its replies.
type Exchange struct {
	w    *Worker
	once sync.Once
}

// Acquire waits until no other exchange is in progress.
func (w *Worker) Acquire(ctx context.Context) (*Exchange, error) {
	select {
	case <-w.closing:
		return nil, ErrClosed
	default:
	}
	select {
	case w.sem <- struct{}{}:
		return &Exchange{w: w}, nil
	case <-w.closing:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (x *Exchange) Send(req any) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("pyworker %s: encode request: %w", x.w.name, err)
	}
	b = append(b, '\n')
	if _, err := x.w.stdin.Write(b); err != nil {
		if x.w.Exited() {
			return x.w.exitError()
		}
		return fmt.Errorf("pyworker %s: write request: %w", x.w.name, err)
	}
	return nil
}

// Next blocks until the worker prints its next message. Error messages are
// returned as *RemoteError together with the message itself.
func (x *Exchange) Next() (Message, error) {
	return x.w.next()
}

func (x *Exchange) Release() {
	x.once.Do(func() {
		<-x.w.sem
	})
}

// Call sends req and returns the single reply.
func (w *Worker) Call(ctx context.Context, req any) (Message, error) {
	x, err := w.Acquire(ctx)
	if err != nil {
		return Message{}, err
	}
	defer x.Release()
	if err := x.Send(req); err != nil {
		return Message{}, err
	}
	return x.Next()
}

// Close waits for the exchange in progress, closes stdin so the worker can exit on
// its own, and kills it after a grace period.
func (w *Worker) Close() error {
	var err error
	w.stopOnce.Do(func() {
		w.sem <- struct{}{}
		close(w.closing)
		if cerr := w.stdin.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			slog.Debug("worker stdin close failed", "worker", w.name, "error", cerr)
		}
		go w.drain()
		select {
		case <-w.exited:
		case <-time.After(closeGracePeriod):
			slog.Warn("worker did not exit in time; killing", "worker", w.name)
			err = w.cmd.Process.Kill()
			<-w.exited
		}
	})
	return err
}

func (w *Worker) kill() {
	w.stopOnce.Do(func() {
		close(w.closing)
		_ = w.stdin.Close()
		_ = w.cmd.Process.Kill()
		go w.drain()
		<-w.exited
	})
}

func (w *Worker) drain() {
	for range w.lines {
	}
}

func (w *Worker) next() (Message, error) {
	for {
		line, ok := <-w.lines
		if !ok {
			<-w.exited
			return Message{}, w.exitError()
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil || msg.Type == "" {
			slog.Debug("ignoring non-protocol worker output", "worker", w.name, "line", string(line))
			continue
		}
		msg.raw = line
		if msg.Type == "error" {
			return msg, &RemoteError{Worker: w.name, Code: msg.Code, Message: msg.Message}
		}
		return msg, nil
	}
}

func (w *Worker) exitError() error {
	if tail := w.stderr.String(); tail != "" {
		return fmt.Errorf("pyworker %s exited: %v: %s", w.name, w.waitErr, tail)
	}
	return fmt.Errorf("pyworker %s exited: %v", w.name, w.waitErr)
}

func (w *Worker) readStdout(r io.Reader) {
	defer close(w.lines)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		w.lines <- append([]byte(nil), sc.Bytes()...)
	}
	if err := sc.Err(); err != nil {
		slog.Error("worker stdout read failed", "worker", w.name, "error", err)
		_ = w.cmd.Process.Kill()
		_, _ = io.Copy(io.Discard, r)
	}
}

func (w *Worker) forwardStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Text()
		w.stderr.Add(line)
		slog.Debug("worker stderr", "worker", w.name, "line", line)
	}
}

type tail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTail(max int) *tail {
	return &tail{max: max}
}

func (t *tail) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
