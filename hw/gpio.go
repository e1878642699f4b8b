package hw

import (
	"errors"
	"fmt"
	"io"

	"github.com/JeanRibes/piano/music"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var ErrBusRead = errors.New("hw: bus read failed")

// InputPin is the part of a periph GPIO the panel uses.
type InputPin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// Tx is an I²C device transaction.
type Tx interface {
	Tx(w, r []byte) error
}

// GPIOPanel reads the first notes from active-low GPIO keys and the rest from a
// PCF8574 expander, P7 being the first expander note.
type GPIOPanel struct {
	keys     []InputPin
	expander Tx
}

func NewGPIOPanel(keys []InputPin, expander Tx) (*GPIOPanel, error) {
	if len(keys)+8 < music.NUM_NOTES {
		return nil, fmt.Errorf("hw: %d keys and an expander can't cover %d notes", len(keys), music.NUM_NOTES)
	}
	for i, k := range keys {
		if err := k.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("hw: key %d: %w", i, err)
		}
	}
	return &GPIOPanel{keys: keys, expander: expander}, nil
}

// ReadKeys returns the GPIO bank even when the expander can't be read.
func (p *GPIOPanel) ReadKeys() (music.Keys, error) {
	var k music.Keys
	for i, pin := range p.keys {
		if pin.Read() == gpio.Low {
			k = k.With(i)
		}
	}
	var b [1]byte
	if err := p.expander.Tx(nil, b[:]); err != nil {
		return k, fmt.Errorf("%w: expander: %v", ErrBusRead, err)
	}
	return k | ExpanderKeys(b[0], len(p.keys)), nil
}

// ExpanderKeys decodes a PCF8574 port byte: low bits are pressed keys, P7
// maps to note first, P6 to first+1 and so on.
func ExpanderKeys(port byte, first int) music.Keys {
	var k music.Keys
	for i := 0; i < 8; i++ {
		if port&(1<<(7-i)) == 0 {
			k = k.With(first + i)
		}
	}
	return k
}

// Button is an active-low push button.
type Button struct {
	pin InputPin
}

func NewButton(pin InputPin) (*Button, error) {
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, err
	}
	return &Button{pin: pin}, nil
}

func (b *Button) Pressed() bool { return b.pin.Read() == gpio.Low }

// ADC reads one channel of a PCF8591 converter.
type ADC struct {
	dev     Tx
	Channel byte
}

func NewADC(dev Tx, channel byte) *ADC {
	return &ADC{dev: dev, Channel: channel}
}

func (a *ADC) ReadRaw() (int, error) {
	// the first byte is the previous conversion
	var r [2]byte
	if err := a.dev.Tx([]byte{0x40 | a.Channel&0x03}, r[:]); err != nil {
		return 0, fmt.Errorf("%w: adc: %v", ErrBusRead, err)
	}
	return int(r[1]), nil
}

func (a *ADC) FullScale() int { return 255 }

// PWMPin is a GPIO able to output a square wave.
type PWMPin interface {
	PWM(duty gpio.Duty, f physic.Frequency) error
	Out(l gpio.Level) error
}

// Buzzer drives a passive buzzer with a 50% duty square wave.
type Buzzer struct {
	pin PWMPin
}

func NewBuzzer(pin PWMPin) *Buzzer { return &Buzzer{pin: pin} }

func (b *Buzzer) SetFrequency(hz int) error {
	return b.pin.PWM(gpio.DutyHalf, physic.Frequency(hz)*physic.Hertz)
}

func (b *Buzzer) Mute() error { return b.pin.Out(gpio.Low) }

// Board holds the peripherals of the GPIO build.
type Board struct {
	Keys   *GPIOPanel
	Record *Button
	Pitch  *ADC
	Buzzer *Buzzer
	bus    io.Closer
}

type BoardConfig struct {
	Keys         []string
	Record       string
	Bus          string
	ExpanderAddr uint16
	ADCAddr      uint16
	Buzzer       string
}

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("hw: no pin %q", name)
	}
	return p, nil
}

// OpenBoard initializes the host drivers and claims the configured pins.
func OpenBoard(c BoardConfig) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(c.Bus)
	if err != nil {
		return nil, err
	}
	b := &Board{bus: bus}
	var keys []InputPin
	for _, name := range c.Keys {
		p, err := pinByName(name)
		if err != nil {
			bus.Close()
			return nil, err
		}
		keys = append(keys, p)
	}
	if b.Keys, err = NewGPIOPanel(keys, &i2c.Dev{Addr: c.ExpanderAddr, Bus: bus}); err != nil {
		bus.Close()
		return nil, err
	}
	rec, err := pinByName(c.Record)
	if err != nil {
		bus.Close()
		return nil, err
	}
	if b.Record, err = NewButton(rec); err != nil {
		bus.Close()
		return nil, err
	}
	b.Pitch = NewADC(&i2c.Dev{Addr: c.ADCAddr, Bus: bus}, 0)
	buzz, err := pinByName(c.Buzzer)
	if err != nil {
		bus.Close()
		return nil, err
	}
	b.Buzzer = NewBuzzer(buzz)
	return b, nil
}

func (b *Board) Close() error {
	return errors.Join(b.Buzzer.Mute(), b.bus.Close())
}
