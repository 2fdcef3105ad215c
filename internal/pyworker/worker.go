package pyworker

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Script is the worker program run with "<python> -c"
//
//go:embed worker.py
var Script string

// Worker modes
const (
	ModeTranslate     = "translate"
	ModeSentencePiece = "sentencepiece"
)

const (
	stderrTailSize = 4096
	closeGrace     = 5 * time.Second
)

var (
	// ErrClosed is returned when the worker has been closed
	ErrClosed = errors.New("worker closed")
	// ErrExited is returned when the worker process died
	ErrExited = errors.New("worker exited")
	// ErrStartup is returned when the worker could not be started
	ErrStartup = errors.New("worker failed to start")
)

// Config holds the settings for starting a worker
type Config struct {
	Python string
	// Command replaces "<python> -c <Script>"; the mode and its arguments are
	// appended
	Command []string
	// Env is added to the worker environment
	Env          []string
	StartTimeout time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Python:       "python3",
		StartTimeout: 2 * time.Minute,
	}
}

type request struct {
	ID   int64  `json:"id"`
	Op   string `json:"op"`
	Args any    `json:"args,omitempty"`
}

type response struct {
	ID     int64           `json:"id"`
	Ready  bool            `json:"ready,omitempty"`
	Info   json.RawMessage `json:"info,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Worker is a running worker process. Calls are serialised.
type Worker struct {
	mu     sync.Mutex
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan []byte
	exited chan struct{}
	stderr *tailBuffer
	nextID int64
	closed bool
	broken error
	log    zerolog.Logger
}

// Start launches the worker in mode and waits for its ready line. The ready
// line's info object is decoded into info when it is not nil. name prefixes
// errors reported by the worker.
func Start(ctx context.Context, config *Config, name, mode string, args []string, info any, log zerolog.Logger) (*Worker, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var argv []string
	if len(config.Command) > 0 {
		argv = append(argv, config.Command...)
	} else {
		python := config.Python
		if python == "" {
			python = "python3"
		}
		argv = []string{python, "-c", Script}
	}
	argv = append(argv, mode)
	argv = append(argv, args...)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), config.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartup, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartup, err)
	}
	stderr := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStartup, argv[0], err)
	}

	w := &Worker{
		name:   name,
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan []byte, 1),
		exited: make(chan struct{}),
		stderr: stderr,
		log:    log.With().Str("worker", name).Logger(),
	}
	go w.readLoop(stdout)

	w.log.Debug().Str("mode", mode).Int("pid", cmd.Process.Pid).Msg("worker started")

	if config.StartTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.StartTimeout)
		defer cancel()
	}

	resp, err := w.next(ctx, 0)
	if err == nil && !resp.Ready {
		msg := resp.Error
		if msg == "" {
			msg = "worker did not report ready"
		}
		err = errors.New(msg)
	}
	if err == nil && info != nil && len(resp.Info) > 0 {
		if jsonErr := json.Unmarshal(resp.Info, info); jsonErr != nil {
			err = fmt.Errorf("invalid ready line: %v", jsonErr)
		}
	}
	if err != nil {
		w.kill()
		return nil, fmt.Errorf("%w: %v%s", ErrStartup, err, w.stderrSuffix())
	}

	return w, nil
}

// Call sends op with args and decodes the worker's result into result
func (w *Worker) Call(ctx context.Context, op string, args, result any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.broken != nil {
		return w.broken
	}

	w.nextID++
	req := request{ID: w.nextID, Op: op, Args: args}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	payload = append(payload, '\n')

	if _, err := w.stdin.Write(payload); err != nil {
		w.broken = fmt.Errorf("%w: write: %v%s", ErrExited, err, w.stderrSuffix())
		return w.broken
	}

	resp, err := w.next(ctx, req.ID)
	if err != nil {
		if errors.Is(err, ErrExited) {
			<-w.exited
			w.broken = fmt.Errorf("%w%s", err, w.stderrSuffix())
			return w.broken
		}
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%s: %s", w.name, resp.Error)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: invalid %s result: %w", w.name, op, err)
	}
	return nil
}

// Close stops the worker, killing it if it does not exit within the grace period
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.stdin.Close()
	go w.drain()

	select {
	case <-w.exited:
	case <-time.After(closeGrace):
		w.log.Warn().Msg("worker did not exit, killing it")
		w.cmd.Process.Kill()
		<-w.exited
	}
	return nil
}

// next waits for the response with the given id, skipping stale responses of
// requests whose caller gave up
func (w *Worker) next(ctx context.Context, id int64) (*response, error) {
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return nil, ErrExited
			}
			var resp response
			if err := json.Unmarshal(line, &resp); err != nil {
				w.log.Warn().Str("line", string(line)).Msg("ignoring unparseable worker output")
				continue
			}
			if id != 0 && resp.ID != id {
				continue
			}
			return &resp, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (w *Worker) readLoop(stdout io.Reader) {
	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadBytes('\n')
		if len(strings.TrimSpace(string(line))) > 0 {
			w.lines <- line
		}
		if err != nil {
			break
		}
	}
	close(w.lines)
	w.cmd.Wait()
	close(w.exited)
}

func (w *Worker) kill() {
	w.stdin.Close()
	w.cmd.Process.Kill()
	go w.drain()
	<-w.exited
}

// drain discards unread output so readLoop can reach EOF
func (w *Worker) drain() {
	for range w.lines {
	}
}

func (w *Worker) stderrSuffix() string {
	if tail := strings.TrimSpace(w.stderr.String()); tail != "" {
		return "\nworker stderr: " + tail
	}
	return ""
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
