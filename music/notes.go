package music

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

const (
	// NUM_NOTES is the number of keys on the instrument, one chromatic octave.
	NUM_NOTES = 12
	// MAX_OFFSET is the top of the pitch-bend scale.
	MAX_OFFSET = 200
	// NoNote marks a silent instrument.
	NoNote = -1
	// BASE_KEY is the MIDI key of note index 0 (C4).
	BASE_KEY = 60
)

type Note struct {
	Name    string
	Nominal int // Hz
	Lower   int // Hz, inclusive
	Upper   int // Hz, exclusive except at full bend
}

// Notes is the static note table. Bend ranges are contiguous:
// Notes[i].Upper == Notes[i+1].Lower.
var Notes = [NUM_NOTES]Note{
	{"C4", 261, 261, 269},
	{"C#4", 277, 269, 285},
	{"D4", 293, 285, 302},
	{"D#4", 311, 302, 320},
	{"E4", 329, 320, 339},
	{"F4", 349, 339, 359},
	{"F#4", 369, 359, 380},
	{"G4", 392, 380, 403},
	{"G#4", 415, 403, 428},
	{"A4", 440, 428, 453},
	{"A#4", 466, 453, 480},
	{"B4", 493, 480, 523},
}

func ValidNote(note int) bool {
	return note >= 0 && note < NUM_NOTES
}

func NoteName(note int) string {
	if !ValidNote(note) {
		return "-"
	}
	return Notes[note].Name
}

// Key returns the MIDI key played for a note index.
func Key(note int) midi.Note {
	return midi.Note(BASE_KEY + note)
}

// NoteOfKey folds any MIDI key onto the instrument's octave.
func NoteOfKey(key uint8) int {
	return int(key) % NUM_NOTES
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > MAX_OFFSET {
		return MAX_OFFSET
	}
	return offset
}

// ResolveFrequency maps a note and a pitch-bend offset (0..MAX_OFFSET) to the
// sounding frequency by linear interpolation across the note's bend range.
// Live play, recording capture and the display all go through here so that a
// replayed note sounds exactly as it did when it was recorded.
func ResolveFrequency(note, offset int) int {
	if !ValidNote(note) {
		return 0
	}
	n := Notes[note]
	return n.Lower + (n.Upper-n.Lower)*clampOffset(offset)/MAX_OFFSET
}

// Deviation is the signed distance in Hz between freq and the note's nominal
// frequency.
func Deviation(note, freq int) int {
	if !ValidNote(note) {
		return 0
	}
	return freq - Notes[note].Nominal
}

func (n Note) String() string {
	return fmt.Sprintf("%-3s %3dHz [%d,%d)", n.Name, n.Nominal, n.Lower, n.Upper)
}
