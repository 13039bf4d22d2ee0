// Package guestfs manages the private scratch directory mounted as a
// sandbox's guest filesystem root: a real, host-backed temporary
// directory mounted read-write. The host reads back only output.json
// after each invocation and then removes it; the guest is not prevented
// from creating, reading or removing other files in the directory.
//
// An earlier revision of this package implemented wazero's
// experimental/sys.FS and File interfaces directly to serve an
// in-memory virtual directory. That surface is still evolving between
// wazero releases and is not exposed through any stable, documented
// mount path on wazero.FSConfig. A genuine OS directory mounted via
// wazero.NewFSConfig().WithDirMount — wazero's ordinary, stable WASI
// preopen mechanism — carries the output file without depending on that
// surface, at the cost of the one-file restriction: every other
// directory operation inside the mount is allowed, not denied.
package guestfs

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// OutputFileName is the file the guest writes its EvaluationResult
// document to per invocation.
const OutputFileName = "output.json"

// Dir is one sandbox context's private scratch directory, mounted as
// its guest filesystem root for the lifetime of the sandbox.
type Dir struct {
	path string
}

// NewDir creates a fresh, empty temporary directory for one sandbox
// context. The caller must Close it when the sandbox is torn down.
func NewDir() (*Dir, error) {
	path, err := os.MkdirTemp("", "sandboxd-guestfs-*")
	if err != nil {
		return nil, fmt.Errorf("guestfs: create scratch directory: %w", err)
	}
	return &Dir{path: path}, nil
}

// Path is the host-side directory to mount at the guest's "/".
func (d *Dir) Path() string { return d.path }

func (d *Dir) outputPath() string {
	return filepath.Join(d.path, OutputFileName)
}

// ReadOutput returns the current contents of output.json, or "" if the
// guest did not write one this invocation. Fails if the guest wrote
// bytes that are not valid UTF-8, mirroring iopipe's own sink contract.
func (d *Dir) ReadOutput() (string, error) {
	data, err := os.ReadFile(d.outputPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("guestfs: read output file: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("guestfs: output file is not valid UTF-8")
	}
	return string(data), nil
}

// Reset removes any output.json left by the previous invocation so a
// stale result can never leak into the next one on a reused context.
func (d *Dir) Reset() error {
	if err := os.Remove(d.outputPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("guestfs: reset output file: %w", err)
	}
	return nil
}

// Close removes the scratch directory and everything left in it.
func (d *Dir) Close() error {
	return os.RemoveAll(d.path)
}
