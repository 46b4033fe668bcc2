package model

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// WorkerScriptName is the file the worker script is written to inside ScriptDir.
const WorkerScriptName = "mbart_worker.py"

// SubprocessConfig configures the Python subprocess backend.
type SubprocessConfig struct {
	// PythonPath is the interpreter, "python3" by default.
	PythonPath string
	// ScriptDir receives the generated worker script.
	ScriptDir string
}

// SubprocessLoader runs the model inside a long-lived Python process and talks
// to it over stdin/stdout, one JSON document per line.
type SubprocessLoader struct {
	cfg    SubprocessConfig
	logger *logrus.Logger

	// spawn starts the worker; replaced in tests.
	spawn func(scriptPath string) (*workerConn, io.Closer, error)
}

// NewSubprocessLoader creates a subprocess loader.
func NewSubprocessLoader(cfg SubprocessConfig, logger *logrus.Logger) *SubprocessLoader {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.PythonPath == "" {
		cfg.PythonPath = "python3"
	}
	l := &SubprocessLoader{cfg: cfg, logger: logger}
	l.spawn = l.startProcess
	return l
}

// Name implements Loader.
func (l *SubprocessLoader) Name() string {
	return string(BackendSubprocess)
}

// Load writes the worker script, starts the interpreter and asks it to build
// the model and tokenizer.
func (l *SubprocessLoader) Load(ctx context.Context, artifact, cacheDir string) (*Handle, error) {
	scriptPath, err := l.writeScript()
	if err != nil {
		return nil, err
	}

	conn, closer, err := l.spawn(scriptPath)
	if err != nil {
		return nil, err
	}

	r := &remote{call: conn.call}
	if err := r.do(ctx, workerRequest{Op: opLoad, Model: artifact, CacheDir: cacheDir}, nil); err != nil {
		closer.Close()
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"artifact": artifact,
		"script":   scriptPath,
	}).Info("Python model worker ready")
	return NewHandle(artifact, l.Name(), r, r, closer), nil
}

func (l *SubprocessLoader) writeScript() (string, error) {
	dir := l.cfg.ScriptDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create script dir: %w", err)
	}
	path := filepath.Join(dir, WorkerScriptName)
	if err := os.WriteFile(path, []byte(workerScript), 0o644); err != nil {
		return "", fmt.Errorf("failed to write worker script: %w", err)
	}
	return path, nil
}

// startProcess launches the interpreter. The process outlives any single
// request, so it is not bound to a request context.
func (l *SubprocessLoader) startProcess(scriptPath string) (*workerConn, io.Closer, error) {
	cmd := exec.Command(l.cfg.PythonPath, scriptPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr := l.logger.WriterLevel(logrus.WarnLevel)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stderr.Close()
		return nil, nil, fmt.Errorf("failed to start Python process: %w", err)
	}

	l.logger.WithFields(logrus.Fields{
		"python": l.cfg.PythonPath,
		"pid":    cmd.Process.Pid,
	}).Info("Python model worker started")

	conn := newWorkerConn(stdin, stdout)
	return conn, &workerProcess{cmd: cmd, conn: conn, stderr: stderr}, nil
}

// workerConn frames requests and responses over a pair of streams. Calls are
// serialized: the worker handles one operation at a time.
type workerConn struct {
	mu sync.Mutex
	w  io.WriteCloser
	r  *bufio.Reader
}

func newWorkerConn(w io.WriteCloser, r io.Reader) *workerConn {
	return &workerConn{w: w, r: bufio.NewReader(r)}
}

func (c *workerConn) call(ctx context.Context, req workerRequest) (workerResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return workerResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return workerResponse{}, err
	}

	if _, err := c.w.Write(append(payload, '\n')); err != nil {
		return workerResponse{}, fmt.Errorf("failed to write to worker: %w", err)
	}

	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return workerResponse{}, fmt.Errorf("failed to read worker response: %w", err)
	}

	var resp workerResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return workerResponse{}, fmt.Errorf("failed to unmarshal worker response: %w", err)
	}
	return resp, nil
}

func (c *workerConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Close()
}

// workerProcess owns the running interpreter.
type workerProcess struct {
	cmd    *exec.Cmd
	conn   *workerConn
	stderr io.Closer
}

// Close closes stdin so the worker loop ends, then kills the process if it
// has not exited after a grace period.
func (p *workerProcess) Close() error {
	p.conn.Close()
	defer p.stderr.Close()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		if err := p.cmd.Process.Kill(); err != nil {
			return err
		}
		<-done
		return nil
	}
}
