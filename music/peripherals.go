package music

import "math/bits"

// Keys is the membership set of pressed note keys, bit i for note i.
type Keys uint16

const allKeys = Keys(1<<NUM_NOTES - 1)

func (k Keys) Pressed(note int) bool {
	return ValidNote(note) && k&(1<<note) != 0
}

func (k Keys) With(note int) Keys {
	if !ValidNote(note) {
		return k
	}
	return k | 1<<note
}

func (k Keys) Without(note int) Keys {
	if !ValidNote(note) {
		return k
	}
	return k &^ (1 << note)
}

func (k Keys) Any() bool { return k&allKeys != 0 }

func (k Keys) Count() int { return bits.OnesCount16(uint16(k & allKeys)) }

// KeySource reads the twelve note keys. On a partial failure it returns the
// banks it could read together with the error; unread banks are unpressed.
type KeySource interface {
	ReadKeys() (Keys, error)
}

// AnalogSource reads the pitch-bend control, 0..FullScale().
type AnalogSource interface {
	ReadRaw() (int, error)
	FullScale() int
}

// ButtonSource is the record/play control input.
type ButtonSource interface {
	Pressed() bool
}

// ToneSink drives the tone generator. It must cope with being called at the
// tone task's poll rate.
type ToneSink interface {
	SetFrequency(hz int) error
	Mute() error
}

// NoteListener is told about every note on (index) and off (NoNote)
// transition, outside the state lock.
type NoteListener interface {
	NoteChanged(note int)
}

type NoteListeners []NoteListener

func (ls NoteListeners) NoteChanged(note int) {
	for _, l := range ls {
		if l != nil {
			l.NoteChanged(note)
		}
	}
}

func publish(l NoteListener, notes []int) {
	if l == nil {
		return
	}
	for _, n := range notes {
		l.NoteChanged(n)
	}
}
