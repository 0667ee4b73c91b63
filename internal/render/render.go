// Package render delivers frames to the bar. A Dispatcher owns the targets
// on one goroutine so callers never block on slow consumers.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Frame is one rendered update. Class is one of playing/paused/stopped.
// Its JSON form matches the waybar custom module protocol.
type Frame struct {
	Text    string `json:"text"`
	Alt     string `json:"alt"`
	Class   string `json:"class"`
	Tooltip string `json:"tooltip,omitempty"`
}

// Target receives frames.
type Target interface {
	Render(f Frame) error
}

// TargetFunc adapts a function to Target.
type TargetFunc func(Frame) error

func (fn TargetFunc) Render(f Frame) error { return fn(f) }

type multi []Target

// Multi fans a frame out to every target, collecting all errors.
func Multi(targets ...Target) Target {
	return multi(targets)
}

func (m multi) Render(f Frame) error {
	var errs []error
	for _, t := range m {
		if err := t.Render(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Writer prints frames line by line, either as JSON objects or plain text.
type Writer struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

func NewWriter(w io.Writer, asJSON bool) *Writer {
	return &Writer{w: w, json: asJSON}
}

func (w *Writer) Render(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.json {
		_, err := fmt.Fprintln(w.w, f.Text)
		return err
	}
	line, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = w.w.Write(append(line, '\n'))
	return err
}
