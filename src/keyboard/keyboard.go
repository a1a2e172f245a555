// Package keyboard turns terminal key presses into note gates.
//
// A terminal reports key presses but never key releases, so keys act as
// toggles: pressing the sounding key again (or space) releases it.
package keyboard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// physical keys of the original keymap, one per note
const noteKeys = "qzsedftgyhuj"

// virtual keys, pressed like on-screen buttons
const virtualKeys = "1234567890-="

const (
	keyCtrlC = 0x03
	keyEsc   = 0x1b
	keySpace = ' '
)

// Target receives gates as control commands, e.g. Synth.Update.
type Target func(command []string) error

// Keyboard ...
type Keyboard struct {
	target  Target
	note    int
	pressed bool
	virtual bool
}

// New ...
func New(target Target) *Keyboard {
	return &Keyboard{target: target, note: -1}
}

// Run reads keys from r until EOF, Esc, Ctrl-C or ctx is done.
func (k *Keyboard) Run(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		b, err := reader.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := k.Press(b)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// Press handles one key and reports whether it asked to quit.
func (k *Keyboard) Press(key byte) (bool, error) {
	switch key {
	case keyCtrlC, keyEsc:
		return true, k.release()
	case keySpace:
		return false, k.release()
	}
	if i := strings.IndexByte(noteKeys, key); i >= 0 {
		return false, k.toggle(i, false)
	}
	if i := strings.IndexByte(virtualKeys, key); i >= 0 {
		return false, k.toggle(i, true)
	}
	return false, nil
}

func (k *Keyboard) toggle(note int, virtual bool) error {
	if k.pressed && k.note == note && k.virtual == virtual {
		return k.release()
	}
	if k.pressed && k.virtual != virtual {
		if err := k.release(); err != nil {
			return err
		}
	}
	command := "note_on"
	if virtual {
		command = "mouse_on"
	}
	if err := k.target([]string{command, fmt.Sprint(note)}); err != nil {
		return err
	}
	k.note = note
	k.pressed = true
	k.virtual = virtual
	return nil
}

func (k *Keyboard) release() error {
	if !k.pressed {
		return nil
	}
	k.pressed = false
	if k.virtual {
		return k.target([]string{"mouse_off"})
	}
	return k.target([]string{"note_off", fmt.Sprint(k.note)})
}

// MakeRaw puts the terminal on f into raw mode and returns its restore func.
func MakeRaw(f *os.File) (func() error, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s is not a terminal", f.Name())
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() error {
		return term.Restore(fd, state)
	}, nil
}
