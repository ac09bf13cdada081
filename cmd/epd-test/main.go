// Command epd-test exercises an e-paper panel: a full refresh with a test
// pattern, then a counter redrawn with partial refreshes.
package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	display "github.com/BeatGlow/inkpet"
	"github.com/BeatGlow/inkpet/conn"
	"github.com/BeatGlow/inkpet/draw"
	"github.com/BeatGlow/inkpet/pixel"
)

func main() {
	spiBusFlag := flag.Int("spi-bus", display.DefaultSPIConfig.Bus, "SPI bus")
	spiDeviceFlag := flag.Int("spi-dev", display.DefaultSPIConfig.Device, "SPI device")
	spiSpeedFlag := flag.Uint("spi-speed", uint(display.DefaultSPIConfig.SpeedHz), "SPI speed in Hz")
	resetPinFlag := flag.String("reset", display.DefaultResetPin, "Reset GPIO pin")
	dcPinFlag := flag.String("dc", display.DefaultDCPin, "Data/Command GPIO pin (DC)")
	busyPinFlag := flag.String("busy", display.DefaultBusyPin, "Busy GPIO pin")
	rotateFlag := flag.String("rotate", "90", "Display rotation")
	cyclesFlag := flag.Int("cycles", 10, "Number of partial refreshes")
	intervalFlag := flag.Duration("interval", time.Second, "Time between partial refreshes")
	probeFlag := flag.Bool("probe", false, "Only open and close the SPI bus")
	mockFlag := flag.Bool("mock", false, "Use the mock display")
	snapshotFlag := flag.String("snapshots", "", "Directory for mock PNG snapshots")
	flag.Parse()

	if *probeFlag {
		probe(*spiBusFlag, *spiDeviceFlag)
		return
	}

	rotation, err := display.ParseRotation(*rotateFlag)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("using rotation: %s\n", rotation)

	config := &display.Config{
		Rotation:    rotation,
		BusyTimeout: 10 * time.Second,
		SnapshotDir: *snapshotFlag,
	}

	var output display.Surface
	if *mockFlag {
		output = display.Mock(config)
	} else {
		if _, err = host.Init(); err != nil {
			fatal(err)
		}

		spi := display.DefaultSPIConfig
		spi.Bus = *spiBusFlag
		spi.Device = *spiDeviceFlag
		spi.SpeedHz = uint32(*spiSpeedFlag)
		spi.Reset = gpioreg.ByName(*resetPinFlag)
		spi.DC = gpioreg.ByName(*dcPinFlag)
		spi.Busy = gpioreg.ByName(*busyPinFlag)

		c, err := display.OpenSPI(&spi)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("using connection: %s\n", c)

		if output, err = display.EPD2in13(c, config); err != nil {
			_ = c.Close()
			fatal(err)
		}
	}
	defer output.Close()
	fmt.Printf("using driver: %s\n", output)

	start := time.Now()
	if err = output.Init(); err != nil {
		fatal(err)
	}
	fmt.Printf("init took %s\n", time.Since(start).Round(time.Millisecond))

	var (
		r       = output.Bounds()
		frame   = pixel.NewMonoImage(r.Dx(), r.Dy())
		face    = draw.MustFace(28, true)
		counter = image.Rect(r.Dx()/2-50, r.Dy()/2-20, r.Dx()/2+50, r.Dy()/2+20)
	)
	testPattern(frame, counter)

	start = time.Now()
	if err = output.FullRefresh(frame); err != nil {
		fatal(err)
	}
	if err = output.SetBaseImage(frame); err != nil {
		fatal(err)
	}
	fmt.Printf("full refresh took %s\n", time.Since(start).Round(time.Millisecond))

	ticker := time.NewTicker(*intervalFlag)
	defer ticker.Stop()

	for i := 1; i <= *cyclesFlag; i++ {
		<-ticker.C

		// Alternate ink and paper backgrounds to show ghosting.
		bg, fg := pixel.Paper, pixel.Ink
		if i%2 == 0 {
			bg, fg = fg, bg
		}
		draw.Draw(frame, counter.Inset(1), image.NewUniform(bg), image.Point{}, draw.Src)
		draw.TextCentered(frame, face, counter, 0, fmt.Sprintf("%d", i), fg)

		start = time.Now()
		if err = output.PartialRefresh(frame, counter); err != nil {
			fatal(err)
		}
		fmt.Printf("partial refresh %d/%d took %s\n", i, *cyclesFlag, time.Since(start).Round(time.Millisecond))
	}

	if err = output.Sleep(); err != nil {
		fatal(err)
	}
	fmt.Println("panel asleep")
}

// testPattern draws a border, a checker strip and the counter box.
func testPattern(frame *pixel.MonoImage, counter image.Rectangle) {
	r := frame.Bounds()
	frame.Fill(pixel.Paper)
	draw.Rectangle(frame, r, pixel.Ink)
	draw.RoundedRectangle(frame, r.Inset(3), 6, pixel.Ink)

	for x := 8; x < r.Max.X-8; x += 8 {
		for y := 8; y < 16; y++ {
			if (x/8+y/4)%2 == 0 {
				draw.HorizontalLine(frame, x, y, 8, pixel.Ink)
			}
		}
	}
	draw.Line(frame, image.Pt(8, r.Max.Y-9), image.Pt(r.Max.X-9, 20), pixel.Ink)
	draw.Text(frame, draw.Small, image.Pt(10, r.Max.Y-24), "inkpet epd-test", pixel.Ink)
	draw.Box(frame, counter, pixel.Paper)
	draw.Rectangle(frame, counter, pixel.Ink)
}

// probe opens and closes the spidev device.
func probe(bus, device int) {
	c, err := conn.OpenSPI(bus, device)
	if err != nil {
		log.Fatalln("open failed: ", err)
	}
	fmt.Println("connected using", c)
	if err = c.Close(); err != nil {
		log.Fatalln("close failed: ", err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fatal: "+err.Error())
	os.Exit(1)
}
