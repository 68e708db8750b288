package ssd1306

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

const (
	// DefaultSPIClock is applied when SPIOpts.Clock is zero or negative.
	DefaultSPIClock = 8 * physic.MegaHertz

	// Commands are tiny; the bound is conservative, not a hardware limit.
	defaultCmdChunk = 32
	// Sized to typical framebuffer transfers (a 128x64 frame is 1024 bytes).
	defaultDataChunk = 1024
)

// SPIOpts is the configuration for an SPI transport.
type SPIOpts struct {
	// Clock is the SPI clock rate. DefaultSPIClock is used when zero or
	// negative.
	Clock physic.Frequency

	// RST is the optional hardware reset pin. When set, bind performs a
	// power-on reset pulse and Reset becomes operative.
	RST gpio.PinIO

	// CmdChunk and DataChunk bound the bytes per transfer for SendCmd and
	// SendData respectively. Defaults are 32 and 1024.
	CmdChunk  int
	DataChunk int
}

// spiTransport drives the controller in 4-wire SPI mode. The D/C pin carries
// the command/data direction and must be re-asserted before every transfer:
// the port may be shared with sibling devices, so a level set once at bind
// time could be clobbered between calls. All direction state lives in this
// struct, never in a package variable, so multiple instances on one port
// coexist safely.
type spiTransport struct {
	p     spi.Port
	c     conn.Conn
	dc    gpio.PinOut
	rst   gpio.PinIO
	clock physic.Frequency

	cmdChunk  int
	dataChunk int

	closed bool
}

// NewSPITransport binds a transport to a device on the SPI port p.
//
// The D/C pin is mandatory: 4-wire mode is the only supported SPI wiring.
// The port is configured for Mode0 8-bit transfers at the requested clock.
// Chip select is handled by the port itself.
//
// If p implements spi.PortCloser the transport takes ownership and closes it
// on Close.
func NewSPITransport(p spi.Port, dc gpio.PinOut, opts *SPIOpts) (Transport, error) {
	if p == nil {
		return nil, errors.New("ssd1306: spi port is required")
	}
	if dc == nil || dc == gpio.INVALID {
		return nil, errors.New("ssd1306: D/C pin is required for 4-wire SPI")
	}
	o := SPIOpts{}
	if opts != nil {
		o = *opts
	}
	if o.Clock <= 0 {
		o.Clock = DefaultSPIClock
	}
	if o.CmdChunk <= 0 {
		o.CmdChunk = defaultCmdChunk
	}
	if o.DataChunk <= 0 {
		o.DataChunk = defaultDataChunk
	}

	// Control pins first: D/C low, RST released high.
	if err := dc.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("ssd1306: failed to configure D/C pin: %w", err)
	}
	if o.RST != nil {
		if err := o.RST.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("ssd1306: failed to configure RST pin: %w", err)
		}
	}

	// SSD1306 requires Mode0 (CPOL=0, CPHA=0).
	c, err := p.Connect(o.Clock, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}

	t := &spiTransport{
		p:         p,
		c:         c,
		dc:        dc,
		rst:       o.RST,
		clock:     o.Clock,
		cmdChunk:  o.CmdChunk,
		dataChunk: o.DataChunk,
	}
	if t.rst != nil {
		if err := powerOnReset(t.rst); err != nil {
			// Leave no half-bound device behind.
			_ = t.Close()
			return nil, fmt.Errorf("ssd1306: reset pulse failed: %w", err)
		}
	}
	return t, nil
}

func (t *spiTransport) String() string {
	return fmt.Sprintf("ssd1306.spi{%s, %s}", t.p, t.dc)
}

// SendCmd sends command bytes with the D/C line held low.
func (t *spiTransport) SendCmd(c []byte) error {
	return t.send(c, gpio.Low, t.cmdChunk)
}

// SendData sends pixel data bytes with the D/C line held high.
func (t *spiTransport) SendData(d []byte) error {
	return t.send(d, gpio.High, t.dataChunk)
}

func (t *spiTransport) send(b []byte, level gpio.Level, max int) error {
	if t.closed {
		return ErrNotBound
	}
	if len(b) == 0 {
		return nil
	}
	return writeChunked(b, max, func(chunk []byte) error {
		// Re-assert the direction for every chunk; see the type comment.
		if err := t.dc.Out(level); err != nil {
			return err
		}
		return t.c.Tx(chunk, nil)
	})
}

func (t *spiTransport) Reset() error {
	if t.closed {
		return ErrNotBound
	}
	if t.rst == nil {
		return nil
	}
	return pulseReset(t.rst)
}

func (t *spiTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	// Best effort: a port close failure is reported but the pins are still
	// neutralized rather than left driven.
	var err error
	if pc, ok := t.p.(spi.PortCloser); ok {
		err = pc.Close()
	}
	if e := t.dc.Halt(); e != nil && err == nil {
		err = e
	}
	if t.rst != nil {
		if e := t.rst.Halt(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
