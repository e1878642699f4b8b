package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/JeanRibes/piano/config"
	"github.com/JeanRibes/piano/hw"
	"github.com/JeanRibes/piano/music"
	"github.com/JeanRibes/piano/remote"
	"github.com/JeanRibes/piano/shared"
	"github.com/JeanRibes/piano/ui"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type silent struct{}

func (silent) SetFrequency(int) error { return nil }
func (silent) Mute() error            { return nil }

func runRun(cmd *cobra.Command, args []string) error {
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := charmlog.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	if debug {
		level = charmlog.DebugLevel
	}
	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           level,
		ReportCaller:    debug,
		ReportTimestamp: true,
		Prefix:          "piano",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = charmlog.WithContext(ctx, logger)

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}()

	hub := remote.NewBroadcaster(conf.SSE.MaxClients)
	p := music.Peripherals{Listener: hub}
	var background []func(context.Context) error

	var board *hw.Board
	if conf.Input.Driver == "gpio" || conf.Output.Driver == "gpio" {
		board, err = hw.OpenBoard(hw.BoardConfig{
			Keys:         conf.GPIO.Keys,
			Record:       conf.GPIO.Record,
			Bus:          conf.GPIO.I2CBus,
			ExpanderAddr: conf.GPIO.ExpanderAddr,
			ADCAddr:      conf.GPIO.ADCAddr,
			Buzzer:       conf.GPIO.Buzzer,
		})
		if err != nil {
			return fmt.Errorf("opening board: %w", err)
		}
		closers = append(closers, board)
	}

	switch conf.Input.Driver {
	case "gpio":
		p.Keys, p.Pitch, p.Control = board.Keys, board.Pitch, board.Record
	case "serial":
		keymap, err := hw.LoadKeymap(conf.Input.Keymap)
		if err != nil {
			return err
		}
		panel, err := hw.OpenSerialPanel(conf.Input.SerialPort, conf.Input.Baud, keymap, logger.WithPrefix("serial"))
		if err != nil {
			return err
		}
		p.Keys, p.Pitch, p.Control = panel, panel, panel
		background = append(background, panel.Run)
	case "midi":
		panel := hw.NewMIDIPanel(conf.Input.RecordCC, logger.WithPrefix("midi"))
		if err := panel.Listen(conf.Input.MidiIn); err != nil {
			return err
		}
		defer panel.Close()
		p.Keys, p.Pitch, p.Control = panel, panel, panel
	}

	switch conf.Output.Driver {
	case "gpio":
		p.Sink = board.Buzzer
	case "midi":
		sink, err := hw.OpenMIDISink(conf.Output.MidiOut, conf.Output.Channel, logger.WithPrefix("synth"))
		if err != nil {
			return err
		}
		defer sink.Mute()
		p.Sink = sink
	default:
		p.Sink = silent{}
	}

	in := music.NewInstrument(conf.Capacity, p, logger)
	in.Tone.MinHz, in.Tone.MaxHz = conf.Tone.MinHz, conf.Tone.MaxHz
	tasks := in.Tasks(conf.MusicPeriods())

	bus := make(chan shared.Message, 8)
	if conf.Remote.URL != "" {
		notifier := remote.NewNotifier(conf.Remote.URL, conf.Remote.DeviceID, conf.Remote.Timeout.D(), conf.Remote.MaxNames)
		tasks = append(tasks, music.Task{
			Name:   "notify",
			Period: conf.Periods.Notify.D(),
			Poller: remote.NewNotifyTask(in.State, notifier, bus, logger.WithPrefix("remote")),
		})
	}
	if conf.SSE.Addr != "" {
		srv := remote.NewServer(conf.SSE.Addr, conf.SSE.Heartbeat.D(), hub, logger.WithPrefix("sse"))
		background = append(background, srv.Run)
	}
	if conf.Echo.SerialPort != "" {
		echo, port, err := remote.OpenEcho(conf.Echo.SerialPort, conf.Echo.Baud, hub, logger.WithPrefix("echo"))
		if err != nil {
			return err
		}
		closers = append(closers, port)
		background = append(background, echo.Run)
	}

	var display ui.DisplaySink = ui.Discard{}
	if conf.Display.Driver == "terminal" {
		display = ui.NewTerminal(cmd.OutOrStdout())
	}
	presenter := ui.NewPresenter(in.State, display, logger.WithPrefix("display"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	errs := make(chan error, len(background))
	for _, run := range background {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil {
				errs <- err
				shared.Post(bus, shared.Message{Type: shared.Error, String: err.Error()})
			}
		}(run)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ui.Loop(ctx, presenter, conf.Periods.Display.D(), bus, logger.WithPrefix("display"))
	}()

	logger.Info("start", "input", conf.Input.Driver, "output", conf.Output.Driver, "capacity", conf.Capacity)
	music.Run(ctx, tasks...)
	cancel()
	wg.Wait()
	close(errs)

	var failures []error
	for err := range errs {
		failures = append(failures, err)
	}
	return errors.Join(failures...)
}
