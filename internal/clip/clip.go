// Package clip puts generated prompts on the user's clipboard.
package clip

import (
	"errors"
	"fmt"
	"io"
	"os"

	atotto "github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"
)

// Method records how the text was made available.
type Method string

const (
	MethodNative Method = "native"
	MethodOSC52  Method = "osc52"
	// MethodFile means no clipboard was reachable and the text was saved to
	// a temp file instead.
	MethodFile Method = "file"
)

type Result struct {
	Method   Method
	FilePath string
}

// osc52MaxBytes keeps payloads below what common terminals accept.
const osc52MaxBytes = 100_000

var ErrEmpty = errors.New("clip: nothing to copy")

// Copier tries the native clipboard, then an OSC52 escape on a terminal,
// then a temp file.
type Copier struct {
	Native   func(string) error
	Terminal io.Writer
	IsTTY    func(io.Writer) bool
	Getenv   func(string) string
	TempDir  string
}

// NewCopier returns a copier bound to the process clipboard and stderr.
func NewCopier() *Copier {
	return &Copier{
		Native:   atotto.WriteAll,
		Terminal: os.Stderr,
		IsTTY:    isTTY,
		Getenv:   os.Getenv,
	}
}

// WriteAll copies text using the process clipboard and terminal.
func WriteAll(text string) (Result, error) {
	return NewCopier().WriteAll(text)
}

func (c *Copier) WriteAll(text string) (Result, error) {
	if text == "" {
		return Result{}, ErrEmpty
	}
	if c.Native != nil && c.Native(text) == nil {
		return Result{Method: MethodNative}, nil
	}
	if c.osc52(text) == nil {
		return Result{Method: MethodOSC52}, nil
	}
	path, err := c.tempFile(text)
	if err != nil {
		return Result{}, fmt.Errorf("clip: fallback file: %w", err)
	}
	return Result{Method: MethodFile, FilePath: path}, nil
}

func (c *Copier) osc52(text string) error {
	if c.Terminal == nil || c.IsTTY == nil || !c.IsTTY(c.Terminal) {
		return errors.New("no terminal")
	}
	if len(text) > osc52MaxBytes {
		return fmt.Errorf("%d bytes exceeds OSC52 limit", len(text))
	}
	seq := osc52.New(text).Limit(osc52MaxBytes)
	switch {
	case c.env("TMUX") != "":
		seq = seq.Tmux()
	case c.env("STY") != "":
		seq = seq.Screen()
	}
	_, err := seq.WriteTo(c.Terminal)
	return err
}

func (c *Copier) env(key string) string {
	if c.Getenv == nil {
		return ""
	}
	return c.Getenv(key)
}

func (c *Copier) tempFile(text string) (path string, err error) {
	f, err := os.CreateTemp(c.TempDir, "apiprompt-prompt-*.md")
	if err != nil {
		return "", err
	}
	path = f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if _, err = f.WriteString(text); err != nil {
		_ = f.Close()
		return "", err
	}
	if err = f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
