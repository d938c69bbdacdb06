package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/okian/streamrec/pkg/logger"
)

const (
	consoleDirPerm  = 0o755
	consoleFilePerm = 0o644
)

// console copies everything printed during a run into the run folder.
type console struct {
	Stdout io.Writer
	Stderr io.Writer
	files  []*os.File
}

// teeConsole opens stdout_<start>.txt and stderr_<start>.txt in dir and
// routes the process output and the logger through them.
func teeConsole(dir, start string, stdout, stderr io.Writer) (*console, error) {
	if err := os.MkdirAll(dir, consoleDirPerm); err != nil {
		return nil, fmt.Errorf("create run folder: %w", err)
	}
	out, err := os.OpenFile(filepath.Join(dir, "stdout_"+start+".txt"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, consoleFilePerm)
	if err != nil {
		return nil, fmt.Errorf("open stdout copy: %w", err)
	}
	errFile, err := os.OpenFile(filepath.Join(dir, "stderr_"+start+".txt"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, consoleFilePerm)
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("open stderr copy: %w", err)
	}

	c := &console{
		Stdout: io.MultiWriter(stdout, out),
		Stderr: io.MultiWriter(stderr, errFile),
		files:  []*os.File{out, errFile},
	}
	logger.SetOutput(c.Stdout)
	return c, nil
}

// Close restores the logger output and closes both copies.
func (c *console) Close() error {
	logger.SetOutput(os.Stdout)
	var errs []error
	for _, f := range c.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}
