package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/JeanRibes/piano/music"
	"gopkg.in/yaml.v3"
)

// Duration reads "50ms"-style values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) D() time.Duration { return time.Duration(d) }

type Config struct {
	LogLevel string `yaml:"log_level"`
	Capacity int    `yaml:"capacity"`
	Tone     struct {
		MinHz int `yaml:"min_hz"`
		MaxHz int `yaml:"max_hz"`
	} `yaml:"tone"`
	Periods struct {
		Scan     Duration `yaml:"scan"`
		Pitch    Duration `yaml:"pitch"`
		Tone     Duration `yaml:"tone"`
		Recorder Duration `yaml:"recorder"`
		Playback Duration `yaml:"playback"`
		Display  Duration `yaml:"display"`
		Notify   Duration `yaml:"notify"`
	} `yaml:"periods"`
	Input struct {
		Driver     string `yaml:"driver"`
		SerialPort string `yaml:"serial_port"`
		Baud       int    `yaml:"baud"`
		Keymap     string `yaml:"keymap"`
		MidiIn     string `yaml:"midi_in"`
		RecordCC   uint8  `yaml:"record_cc"`
	} `yaml:"input"`
	GPIO struct {
		Keys         []string `yaml:"keys"`
		Record       string   `yaml:"record"`
		ExpanderAddr uint16   `yaml:"expander_addr"`
		ADCAddr      uint16   `yaml:"adc_addr"`
		I2CBus       string   `yaml:"i2c_bus"`
		Buzzer       string   `yaml:"buzzer"`
	} `yaml:"gpio"`
	Output struct {
		Driver  string `yaml:"driver"`
		MidiOut string `yaml:"midi_out"`
		Channel uint8  `yaml:"channel"`
	} `yaml:"output"`
	Display struct {
		Driver string `yaml:"driver"`
	} `yaml:"display"`
	Remote struct {
		URL      string   `yaml:"url"`
		DeviceID string   `yaml:"device_id"`
		Timeout  Duration `yaml:"timeout"`
		MaxNames int      `yaml:"max_names"`
	} `yaml:"remote"`
	SSE struct {
		Addr       string   `yaml:"addr"`
		MaxClients int      `yaml:"max_clients"`
		Heartbeat  Duration `yaml:"heartbeat"`
	} `yaml:"sse"`
	Echo struct {
		SerialPort string `yaml:"serial_port"`
		Baud       int    `yaml:"baud"`
	} `yaml:"echo"`
}

func Default() Config {
	var c Config
	c.LogLevel = "info"
	c.Capacity = music.DEFAULT_CAPACITY
	c.Tone.MinHz = music.TONE_MIN_HZ
	c.Tone.MaxHz = music.TONE_MAX_HZ

	p := music.DefaultPeriods()
	c.Periods.Scan = Duration(p.Scan)
	c.Periods.Pitch = Duration(p.Pitch)
	c.Periods.Tone = Duration(p.Tone)
	c.Periods.Recorder = Duration(p.Recorder)
	c.Periods.Playback = Duration(p.Playback)
	c.Periods.Display = Duration(100 * time.Millisecond)
	c.Periods.Notify = Duration(500 * time.Millisecond)

	c.Input.Driver = "gpio"
	c.Input.SerialPort = "/dev/ttyACM0"
	c.Input.Baud = 115200
	c.Input.Keymap = "keymap.txt"
	c.Input.RecordCC = 64

	c.GPIO.Keys = []string{"GPIO13", "GPIO12", "GPIO14", "GPIO27"}
	c.GPIO.Record = "GPIO26"
	c.GPIO.ExpanderAddr = 0x24
	c.GPIO.ADCAddr = 0x48
	c.GPIO.Buzzer = "GPIO18"

	c.Output.Driver = "gpio"
	c.Display.Driver = "terminal"

	c.Remote.DeviceID = "piano"
	c.Remote.Timeout = Duration(15 * time.Second)
	c.Remote.MaxNames = 20

	c.SSE.Addr = ":8080"
	c.SSE.MaxClients = 4
	c.SSE.Heartbeat = Duration(3 * time.Second)

	c.Echo.Baud = 115200
	return c
}

// Load reads filename over the defaults. A missing file is not an error.
func Load(filename string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("%s: %w", filename, err)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("capacity must be positive, got %d", c.Capacity))
	}
	if c.Tone.MinHz <= 0 || c.Tone.MinHz > c.Tone.MaxHz {
		errs = append(errs, fmt.Errorf("tone band [%d,%d] Hz is empty", c.Tone.MinHz, c.Tone.MaxHz))
	}
	periods := map[string]Duration{
		"scan":     c.Periods.Scan,
		"pitch":    c.Periods.Pitch,
		"tone":     c.Periods.Tone,
		"recorder": c.Periods.Recorder,
		"playback": c.Periods.Playback,
		"display":  c.Periods.Display,
		"notify":   c.Periods.Notify,
	}
	for name, d := range periods {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("period %s must be positive", name))
		}
	}
	switch c.Input.Driver {
	case "gpio", "serial", "midi":
	default:
		errs = append(errs, fmt.Errorf("unknown input driver %q", c.Input.Driver))
	}
	switch c.Output.Driver {
	case "gpio", "midi", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown output driver %q", c.Output.Driver))
	}
	switch c.Display.Driver {
	case "terminal", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown display driver %q", c.Display.Driver))
	}
	if c.Input.Driver == "gpio" && len(c.GPIO.Keys) > music.NUM_NOTES {
		errs = append(errs, fmt.Errorf("%d gpio keys for %d notes", len(c.GPIO.Keys), music.NUM_NOTES))
	}
	return errors.Join(errs...)
}

// MusicPeriods returns the periods of the core tasks.
func (c Config) MusicPeriods() music.Periods {
	return music.Periods{
		Scan:     c.Periods.Scan.D(),
		Pitch:    c.Periods.Pitch.D(),
		Tone:     c.Periods.Tone.D(),
		Recorder: c.Periods.Recorder.D(),
		Playback: c.Periods.Playback.D(),
	}
}
