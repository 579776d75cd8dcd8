package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Exporter hands serialized bytes to the host environment: a browser
// download, a file on disk.
type Exporter interface {
	// Acquire opens a temporary export handle named after fileName.
	Acquire(fileName string) (ExportHandle, error)
}

// ExportHandle is a temporary export resource. Release must always be
// called, whether or not Trigger succeeded.
type ExportHandle interface {
	io.Writer
	// Trigger delivers what was written (starts the download, publishes the file).
	Trigger() error
	// Release frees the handle. It is safe to call after a failed Trigger.
	Release() error
}

// export writes data through a handle acquired from exp and always
// releases it.
func export(exp Exporter, fileName string, data []byte) (err error) {
	h, err := exp.Acquire(fileName)
	if err != nil {
		return fmt.Errorf("acquire export handle: %w", err)
	}
	defer func() {
		if rerr := h.Release(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release export handle: %w", rerr))
		}
	}()

	if _, err := h.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if err := h.Trigger(); err != nil {
		return fmt.Errorf("trigger export: %w", err)
	}
	return nil
}

// FileExporter writes exports into Dir. Each export is staged in a
// temporary file and renamed over the target on Trigger. Name overrides the
// target file name when set.
type FileExporter struct {
	Dir  string
	Name string
}

// Acquire creates the staging file.
func (e FileExporter) Acquire(fileName string) (ExportHandle, error) {
	name := fileName
	if e.Name != "" {
		name = e.Name
	}
	target := filepath.Join(e.Dir, filepath.Base(name))

	tmp, err := os.CreateTemp(filepath.Dir(target), ".export-*")
	if err != nil {
		return nil, err
	}
	return &fileHandle{tmp: tmp, target: target}, nil
}

type fileHandle struct {
	tmp       *os.File
	target    string
	triggered bool
	closed    bool
}

func (h *fileHandle) Write(p []byte) (int, error) {
	return h.tmp.Write(p)
}

func (h *fileHandle) Trigger() error {
	if err := h.close(); err != nil {
		return err
	}
	if err := os.Rename(h.tmp.Name(), h.target); err != nil {
		return err
	}
	h.triggered = true
	return nil
}

func (h *fileHandle) Release() error {
	cerr := h.close()
	if h.triggered {
		return cerr
	}
	if err := os.Remove(h.tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Join(cerr, err)
	}
	return cerr
}

func (h *fileHandle) close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.tmp.Close()
}
