// Package raster wraps the external GraphicsMagick tool behind a narrow
// capability interface so the pipeline, and its tests, never depend on the
// binary being installed.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// PageInfo describes a counted multi-frame document.
type PageInfo struct {
	PageCount    int
	AbsolutePath string
}

// Rasterizer is the capability surface of the external raster tool.
type Rasterizer interface {
	// CountPages determines how many pages a document contains.
	CountPages(ctx context.Context, path string) (PageInfo, error)
	// ConvertPage rasterizes one zero-indexed page of a document to a JPEG
	// written at outPath.
	ConvertPage(ctx context.Context, path string, pageIndex int, outPath string) error
	// ConvertImage re-encodes a single image of any supported format to a
	// JPEG written at outPath.
	ConvertImage(ctx context.Context, path, outPath string) error
}

// ErrPageCountUndetermined is returned when the identify output cannot be
// decoded into a page count.
var ErrPageCountUndetermined = errors.New("page count undetermined")

// SpawnError means the external tool could not be started at all.
type SpawnError struct {
	Binary string
	Err    error
	Hint   string
}

func (e *SpawnError) Error() string {
	msg := fmt.Sprintf("failed to start %s: %v", e.Binary, e.Err)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError means the external tool started but exited non-zero.
type ExitError struct {
	Op     string
	Input  string
	Code   int
	Stderr string
	Hint   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s %s: exit code %d", e.Op, e.Input, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// Tool runs the GraphicsMagick binary.
type Tool struct {
	// Binary is the executable name or path, normally "gm".
	Binary string
	// Density is the DPI used when rasterizing document pages.
	Density int
}

// NewTool returns a Tool with the given binary and density, falling back to
// "gm" at 300 DPI.
func NewTool(binary string, density int) *Tool {
	if binary == "" {
		binary = "gm"
	}
	if density <= 0 {
		density = 300
	}
	return &Tool{Binary: binary, Density: density}
}

// CountPages invokes "gm identify -format %n", which prints the total frame
// count once per frame with no separator, and decodes that output.
func (t *Tool) CountPages(ctx context.Context, path string) (PageInfo, error) {
	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return PageInfo{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	stdout, _, err := t.run(ctx, absolutePath, "identify", "-format", "%n", absolutePath)
	if err != nil {
		return PageInfo{}, err
	}

	firstLine := strings.TrimSpace(stdout)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	if firstLine == "" {
		return PageInfo{}, fmt.Errorf("identify produced empty output for %s: %w", absolutePath, ErrPageCountUndetermined)
	}

	pageCount, err := DecodePageCount(firstLine)
	if err != nil {
		return PageInfo{}, fmt.Errorf("identify output %q for %s: %w", firstLine, absolutePath, err)
	}
	return PageInfo{PageCount: pageCount, AbsolutePath: absolutePath}, nil
}

// ConvertPage invokes "gm convert -density <d> path[pageIndex] outPath".
func (t *Tool) ConvertPage(ctx context.Context, path string, pageIndex int, outPath string) error {
	input := fmt.Sprintf("%s[%d]", path, pageIndex)
	_, _, err := t.run(ctx, input, "convert", "-density", strconv.Itoa(t.Density), input, outPath)
	return err
}

// ConvertImage invokes "gm convert path outPath"; the JPEG encoding is implied
// by the output extension.
func (t *Tool) ConvertImage(ctx context.Context, path, outPath string) error {
	_, _, err := t.run(ctx, path, "convert", path, outPath)
	return err
}

func (t *Tool) run(ctx context.Context, input string, args ...string) (string, string, error) {
	if _, err := exec.LookPath(t.Binary); err != nil {
		return "", "", &SpawnError{
			Binary: t.Binary,
			Err:    err,
			Hint:   "ensure GraphicsMagick is installed and on PATH",
		}
	}

	cmd := exec.CommandContext(ctx, t.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", "", &ExitError{
				Op:     t.Binary + " " + args[0],
				Input:  input,
				Code:   exitErr.ExitCode(),
				Stderr: strings.TrimSpace(stderr.String()),
				Hint:   exitHint(stderr.String()),
			}
		}
		return "", "", &SpawnError{Binary: t.Binary, Err: err}
	}
	return stdout.String(), stderr.String(), nil
}

func exitHint(stderr string) string {
	if strings.Contains(stderr, "NoDecodeDelegateForThisImageFormat") {
		return "the file may not be a valid document, or GraphicsMagick lacks the delegate (e.g. Ghostscript) to read it"
	}
	return ""
}
