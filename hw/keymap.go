package hw

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Keymap maps a panel key code to a MIDI note. Negative values mark the
// record control.
type Keymap map[int]int

// ReadKeymap parses "keycode:note" lines. Blank lines and lines starting with
// '#' are skipped.
func ReadKeymap(r io.Reader) (Keymap, error) {
	keymap := Keymap{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		s := strings.Split(text, ":")
		if len(s) != 2 {
			return nil, fmt.Errorf("keymap line %d: %q is not keycode:note", line, text)
		}
		code, err := strconv.Atoi(strings.TrimSpace(s[0]))
		if err != nil {
			return nil, fmt.Errorf("keymap line %d: %w", line, err)
		}
		note, err := strconv.Atoi(strings.TrimSpace(s[1]))
		if err != nil {
			return nil, fmt.Errorf("keymap line %d: %w", line, err)
		}
		if code < 0 || code > 255 || note > 127 {
			return nil, fmt.Errorf("keymap line %d: %d:%d out of range", line, code, note)
		}
		keymap[code] = note
	}
	return keymap, scanner.Err()
}

func LoadKeymap(filename string) (Keymap, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadKeymap(file)
}
