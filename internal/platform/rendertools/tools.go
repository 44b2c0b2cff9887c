package rendertools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/familytree-backend/internal/platform/ctxutil"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

// Tools is the glue around the two external binaries that turn tree-text
// into an image.
//
// REQUIRED BINARIES at runtime:
// - the tree converter (familytreemaker, usually run through python3):
//   tree-text -> graph description on stdout
// - dot (graphviz): graph description -> raster image
type Tools interface {
	AssertReady(ctx context.Context) error

	ConvertTree(ctx context.Context, req ConvertRequest) (*StageResult, error)
	Rasterize(ctx context.Context, req RasterizeRequest) (*StageResult, error)
}

type Stage string

const (
	StageConvert   Stage = "convert"
	StageRasterize Stage = "rasterize"
)

type Config struct {
	// ConverterBin is executed directly; ConverterScript, when set, is
	// passed as its first argument (python3 familytreemaker.py ...).
	ConverterBin    string
	ConverterScript string
	// ConverterMode is the leading positional flag, "-a" for all ancestors.
	ConverterMode string

	RasterizerBin string
	Format        string
	Charset       string
	// CanvasSize is graphviz's size attribute, e.g. "200!".
	CanvasSize string
	DPI        int

	WorkDir string
	Timeout time.Duration
	// WaitDelay bounds how long a killed stage may hold its output pipes.
	WaitDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConverterBin == "" {
		c.ConverterBin = "python3"
	}
	if c.ConverterMode == "" {
		c.ConverterMode = "-a"
	}
	if c.RasterizerBin == "" {
		c.RasterizerBin = "dot"
	}
	if c.Format == "" {
		c.Format = "png"
	}
	if c.Charset == "" {
		c.Charset = "UTF-8"
	}
	if c.CanvasSize == "" {
		c.CanvasSize = "200!"
	}
	if c.DPI <= 0 {
		c.DPI = 100
	}
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = 2 * time.Second
	}
	return c
}

type ConvertRequest struct {
	// RootLabel must already be free of parentheses.
	RootLabel string
	TreePath  string
	OutPath   string
}

type RasterizeRequest struct {
	GraphPath string
	OutPath   string
}

// StageResult describes one finished process run.
type StageResult struct {
	Stage    Stage
	Args     []string
	ExitCode int
	// Output is stderr for the converter (stdout is the artifact) and the
	// combined output for the rasterizer.
	Output   []byte
	Duration time.Duration
}

// StageError is returned when a stage cannot start, exits non-zero, times
// out or leaves no usable output file.
type StageError struct {
	Stage       Stage
	ExitCode    int
	Output      []byte
	TimedOut    bool
	SpawnFailed bool
	Err         error
}

func (e *StageError) Error() string {
	switch {
	case e.SpawnFailed:
		return fmt.Sprintf("%s stage could not start: %v", e.Stage, e.Err)
	case e.TimedOut:
		return fmt.Sprintf("%s stage timed out: %v", e.Stage, e.Err)
	default:
		return fmt.Sprintf("%s stage failed (exit %d): %v; out=%s", e.Stage, e.ExitCode, e.Err, strings.TrimSpace(string(e.Output)))
	}
}

func (e *StageError) Unwrap() error { return e.Err }

type tools struct {
	log *logger.Logger
	cfg Config
}

func New(cfg Config, log *logger.Logger) Tools {
	return &tools{
		log: log.With("service", "RenderTools"),
		cfg: cfg.withDefaults(),
	}
}

func (t *tools) AssertReady(ctx context.Context) error {
	ctx = ctxutil.Default(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, bin := range []string{t.cfg.ConverterBin, t.cfg.RasterizerBin} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	if t.cfg.ConverterScript != "" {
		if _, err := os.Stat(t.cfg.ConverterScript); err != nil {
			return fmt.Errorf("converter script: %w", err)
		}
	}
	if err := os.MkdirAll(t.cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	return nil
}

func (t *tools) ConvertTree(ctx context.Context, req ConvertRequest) (*StageResult, error) {
	ctx = ctxutil.Default(ctx)
	if req.TreePath == "" || req.OutPath == "" {
		return nil, fmt.Errorf("tree and output paths required")
	}
	args := make([]string, 0, 4)
	if t.cfg.ConverterScript != "" {
		args = append(args, t.cfg.ConverterScript)
	}
	args = append(args, t.cfg.ConverterMode, req.RootLabel, req.TreePath)

	out, err := os.Create(req.OutPath)
	if err != nil {
		return nil, &StageError{Stage: StageConvert, SpawnFailed: true, Err: fmt.Errorf("create graph file: %w", err)}
	}
	defer out.Close()

	var stderr bytes.Buffer
	res, err := t.run(ctx, StageConvert, t.cfg.ConverterBin, args, func(cmd *exec.Cmd) {
		cmd.Stdout = out
		cmd.Stderr = &stderr
	}, &stderr)
	if err != nil {
		return res, err
	}
	if err := out.Sync(); err != nil {
		return res, &StageError{Stage: StageConvert, Output: res.Output, Err: fmt.Errorf("flush graph file: %w", err)}
	}
	if err := nonEmpty(req.OutPath); err != nil {
		return res, &StageError{Stage: StageConvert, Output: res.Output, Err: err}
	}
	return res, nil
}

func (t *tools) Rasterize(ctx context.Context, req RasterizeRequest) (*StageResult, error) {
	ctx = ctxutil.Default(ctx)
	if req.GraphPath == "" || req.OutPath == "" {
		return nil, fmt.Errorf("graph and output paths required")
	}
	args := []string{
		"-T" + t.cfg.Format,
		req.GraphPath,
		"-o", req.OutPath,
		"-Gcharset=" + t.cfg.Charset,
		"-Gsize=" + t.cfg.CanvasSize,
		"-Gdpi=" + strconv.Itoa(t.cfg.DPI),
	}
	var combined bytes.Buffer
	res, err := t.run(ctx, StageRasterize, t.cfg.RasterizerBin, args, func(cmd *exec.Cmd) {
		cmd.Stdout = &combined
		cmd.Stderr = &combined
	}, &combined)
	if err != nil {
		return res, err
	}
	if err := nonEmpty(req.OutPath); err != nil {
		return res, &StageError{Stage: StageRasterize, Output: res.Output, Err: err}
	}
	return res, nil
}

// run executes one stage under the configured timeout. The process is
// killed when the timeout fires.
func (t *tools) run(ctx context.Context, stage Stage, bin string, args []string, wire func(*exec.Cmd), output *bytes.Buffer) (*StageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = t.cfg.WorkDir
	cmd.WaitDelay = t.cfg.WaitDelay
	wire(cmd)

	start := time.Now()
	err := cmd.Run()
	res := &StageResult{
		Stage:    stage,
		Args:     args,
		ExitCode: exitCode(cmd, err),
		Output:   output.Bytes(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	se := &StageError{Stage: stage, ExitCode: res.ExitCode, Output: res.Output, Err: err}
	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		se.TimedOut = true
	case cmd.ProcessState == nil && !errors.As(err, &exitErr):
		se.SpawnFailed = true
	}
	return res, se
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func nonEmpty(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output not found at %s: %w", path, err)
	}
	if st.Size() == 0 {
		return fmt.Errorf("output at %s is empty", path)
	}
	return nil
}
