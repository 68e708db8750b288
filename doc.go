// Package ssd1306 controls a SSD1306 monochrome OLED display via I²C or SPI.
//
// The SSD1306 is a 1-bit dot-matrix controller driving panels up to 128×64
// pixels. This driver implements the display.Drawer interface from periph.io.
//
// # Transports
//
// The driver core is transport agnostic: all controller traffic goes through
// the Transport interface (SendCmd, SendData, Reset), implemented once for
// each supported bus.
//
//   - I²C: address-selected, the command/data direction travels in-band as a
//     control byte prefixed to every burst.
//   - 4-wire SPI: chip-select addressed, the direction is carried by a
//     dedicated D/C GPIO line asserted before every transfer. The D/C pin is
//     mandatory in this mode.
//
// Both transports optionally own a reset pin and pulse it during binding and
// on explicit Reset calls. Large buffers are split into bounded chunks; a
// failed transfer aborts the remaining chunks.
//
// # Basic Usage
//
// Over I²C:
//
//	package main
//
//	import (
//		"log"
//
//		"github.com/edvall/ssd1306"
//		"periph.io/x/conn/v3/i2c/i2creg"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		if _, err := host.Init(); err != nil {
//			log.Fatal(err)
//		}
//		b, err := i2creg.Open("")
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer b.Close()
//
//		dev, err := ssd1306.NewI2C(b, &ssd1306.Opts{W: 128, H: 64})
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer dev.Unbind()
//
//		dev.DrawText(0, 0, "Hello!", true)
//		dev.Display()
//	}
//
// Over SPI, pass the port and the D/C pin instead:
//
//	p, _ := spireg.Open("")
//	dc := gpioreg.ByName("GPIO25")
//	dev, err := ssd1306.NewSPI(p, dc, &ssd1306.Opts{W: 128, H: 64})
//
// # Hardware Reset Pin (Optional)
//
// If the display's RES pin is wired to a GPIO, provide it in Opts:
//
//	dev, _ := ssd1306.NewI2C(b, &ssd1306.Opts{W: 128, H: 64, RST: rstPin})
//
// The driver then performs a power-on reset sequence during binding. Without
// it, the driver relies on the panel's own power-on reset.
//
// # Drawing
//
// Drawing primitives (DrawPixel, DrawLine, DrawRect, DrawCircle, DrawText)
// mutate an in-memory framebuffer and track a dirty bounding box; Display
// transfers only the changed region. Draw and Write update the panel
// immediately and accept standard image.Image sources via the image1bit
// subpackage.
//
// # Concurrency
//
// Neither Dev nor the transports are internally synchronized. Use one logical
// owner per handle and serialize calls.
//
// # Datasheet
//
// https://cdn-shop.adafruit.com/datasheets/SSD1306.pdf
package ssd1306
