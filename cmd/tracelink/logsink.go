package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// logSink is the writer behind the CLI logger. While the terminal belongs to
// the watch UI it holds log output, in memory or in a file, instead of
// writing over the screen.
type logSink struct {
	mu   sync.Mutex
	out  io.Writer
	held *bytes.Buffer
	file *os.File
}

func newLogSink(out io.Writer) *logSink {
	return &logSink{out: out}
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.file != nil:
		return s.file.Write(p)
	case s.held != nil:
		return s.held.Write(p)
	default:
		return s.out.Write(p)
	}
}

// hold diverts log output to path, or to memory when path is empty.
func (s *logSink) hold(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path == "" {
		s.held = &bytes.Buffer{}
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	s.file = f
	return nil
}

// release restores the original writer. Output held in memory is written
// to it first.
func (s *logSink) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	if s.held != nil {
		held := s.held
		s.held = nil
		if _, err := s.out.Write(held.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
