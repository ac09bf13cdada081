package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	display "github.com/BeatGlow/inkpet"
	"github.com/BeatGlow/inkpet/internal/button"
	"github.com/BeatGlow/inkpet/internal/config"
	"github.com/BeatGlow/inkpet/internal/inbox"
	"github.com/BeatGlow/inkpet/internal/orchestrator"
	"github.com/BeatGlow/inkpet/internal/printer"
	"github.com/BeatGlow/inkpet/internal/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the display process",
	Long: `Run the display process until SIGINT or SIGTERM.

It owns the e-paper panel and the buttons, consumes the flags deposited in
paths.flag_dir and queues outgoing pokes in paths.outbox_dir. With
mock_hardware (or INKPET_MOCK_HARDWARE=1) no GPIO or SPI is touched and
frames are optionally written as PNG files to display.snapshot_dir.`,
	Args: cobra.NoArgs,
	RunE: runDisplay,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDisplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	location, err := cfg.Location()
	if err != nil {
		return printer.Error("Invalid device.timezone", err.Error(),
			"Use an IANA zone name such as America/Mexico_City")
	}
	mock := cfg.DriverName() == config.DriverMock
	if cfg.Debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	if !mock {
		if _, err = host.Init(); err != nil {
			return printer.Error("GPIO host initialization failed", err.Error(),
				"Run on a Raspberry Pi with SPI enabled",
				"Set mock_hardware: true to run without the panel",
			)
		}
	}

	store, err := state.Open(cfg.Paths.DataDir, state.Defaults{
		PetName:    cfg.Device.PetName,
		PetType:    cfg.Device.PetType,
		TimeFormat: cfg.Device.TimeFormat,
	})
	if err != nil {
		return printer.Error("Cannot open the data directory", err.Error(),
			fmt.Sprintf("Check that %s is writable", cfg.Paths.DataDir))
	}

	var pins button.Pins
	if !mock {
		if pins, err = buttonPins(cfg.Buttons); err != nil {
			return printer.Error("Invalid button configuration", err.Error())
		}
	}

	surface, err := openSurface(cfg)
	if err != nil {
		return printer.Error("Cannot open the display", err.Error(),
			"Check the SPI bus and the reset, dc and busy pins",
			"Set mock_hardware: true to run without the panel",
		)
	}

	engine, err := orchestrator.New(orchestrator.Config{
		Tick:                cfg.Timing.Tick,
		Settle:              cfg.Timing.Settle,
		FullRefreshInterval: cfg.Timing.FullRefreshInterval,
		FailureThreshold:    cfg.Timing.FailureThreshold,
		ClockInterval:       cfg.Timing.ClockInterval,
		AnimationInterval:   cfg.Timing.AnimationInterval,
		PetUpdateInterval:   cfg.Timing.PetUpdateInterval,
		StatsFlushInterval:  cfg.Timing.StatsFlushInterval,
		QueueSize:           cfg.QueueSize,
		OutboxDir:           cfg.Paths.OutboxDir,
		Device:              cfg.Device.Name,
		Location:            location,
		Debug:               cfg.Debug,
	}, surface, store)
	if err != nil {
		_ = surface.Close()
		return printer.Error("Unsupported display", err.Error())
	}

	watcher := inbox.NewWatcher(cfg.Paths.FlagDir, store, cfg.Timing.FlagPollInterval)
	watcher.Notify = engine.NotifyFlag
	watcher.Malformed = func(string, error) { engine.NoteMalformed() }

	buttons := button.NewHandler(button.Config{
		Debounce:        cfg.Buttons.Debounce,
		AdvanceThrottle: cfg.Buttons.AdvanceThrottle,
		Debug:           cfg.Debug,
	}, engine.Busy, engine.EnqueueButton)
	engine.Dropped = buttons.Dropped

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := watcher.Run(ctx); err != nil {
			log.Printf("[ERROR] %v", err)
		}
	}()
	if !mock {
		edge := gpio.FallingEdge
		if cfg.Buttons.Edge == config.EdgeRising {
			edge = gpio.RisingEdge
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := buttons.Watch(ctx, pins, edge); err != nil {
				log.Printf("[ERROR] %v", err)
			}
		}()
	}

	log.Printf("[INFO] inkpet: %s starting on %s (flags %s, outbox %s)",
		cfg.Device.Name, surface, cfg.Paths.FlagDir, cfg.Paths.OutboxDir)
	err = engine.Start(ctx)
	stop()
	wg.Wait()

	if errors.Is(err, orchestrator.ErrInit) {
		_ = surface.Close()
		return printer.Error("Display initialization failed", err.Error(),
			"Check the panel cable and the busy pin",
			"Set mock_hardware: true to run without the panel",
		)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return printer.Error("Display process failed", err.Error())
	}
	return nil
}

// openSurface opens the configured display driver.
func openSurface(cfg *config.Config) (display.Surface, error) {
	surfaceConfig := cfg.Display.SurfaceConfig()
	if cfg.DriverName() == config.DriverMock {
		return display.Mock(surfaceConfig), nil
	}

	spi := display.DefaultSPIConfig
	spi.Bus = cfg.Display.SPIBus
	spi.Device = cfg.Display.SPIDevice
	spi.SpeedHz = cfg.Display.SPISpeedHz
	spi.Reset = gpioreg.ByName(cfg.Display.ResetPin)
	spi.DC = gpioreg.ByName(cfg.Display.DCPin)
	spi.Busy = gpioreg.ByName(cfg.Display.BusyPin)

	c, err := display.OpenSPI(&spi)
	if err != nil {
		return nil, err
	}
	surface, err := display.EPD2in13(c, surfaceConfig)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return surface, nil
}

// buttonPins resolves the button GPIO names.
func buttonPins(c config.ButtonsConfig) (pins button.Pins, err error) {
	for line, name := range map[button.Line]string{
		button.Return: c.ReturnPin,
		button.Action: c.ActionPin,
		button.Go:     c.GoPin,
	} {
		p := gpioreg.ByName(name)
		if p == nil {
			return pins, fmt.Errorf("%s button: unknown GPIO %q", line, name)
		}
		pins[line] = p
	}
	return pins, nil
}
