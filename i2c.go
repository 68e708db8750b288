package ssd1306

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
)

// DefaultI2CAddr is the usual SSD1306 address; some boards strap 0x3D.
const DefaultI2CAddr uint16 = 0x3C

// I²C has no D/C pin; each burst starts with a control byte telling the
// controller whether a command or data stream follows.
const (
	i2cCtrlCmd  = 0x00
	i2cCtrlData = 0x40
)

// I2COpts is the configuration for an I²C transport.
type I2COpts struct {
	// Addr is the 7-bit device address. DefaultI2CAddr is used when zero.
	Addr uint16

	// RST is the optional hardware reset pin, with the same semantics as on
	// the SPI transport.
	RST gpio.PinIO

	// Chunk bounds the payload bytes per burst (excluding the control byte).
	// Defaults to 32.
	Chunk int
}

// i2cTransport drives the controller over an address-selected bus. The
// command/data direction travels in-band as a control byte, so no extra pin
// is needed.
type i2cTransport struct {
	c     conn.Conn
	rst   gpio.PinIO
	chunk int

	closed bool
}

// NewI2CTransport binds a transport to the device at opts.Addr on bus b.
//
// The bus stays owned by the caller; Close only releases the transport's own
// pin state.
func NewI2CTransport(b i2c.Bus, opts *I2COpts) (Transport, error) {
	if b == nil {
		return nil, errors.New("ssd1306: i2c bus is required")
	}
	o := I2COpts{}
	if opts != nil {
		o = *opts
	}
	if o.Addr == 0 {
		o.Addr = DefaultI2CAddr
	}
	if o.Chunk <= 0 {
		o.Chunk = defaultCmdChunk
	}
	if o.RST != nil {
		if err := o.RST.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("ssd1306: failed to configure RST pin: %w", err)
		}
	}

	t := &i2cTransport{
		c:     &i2c.Dev{Bus: b, Addr: o.Addr},
		rst:   o.RST,
		chunk: o.Chunk,
	}
	if t.rst != nil {
		if err := powerOnReset(t.rst); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("ssd1306: reset pulse failed: %w", err)
		}
	}
	return t, nil
}

func (t *i2cTransport) String() string {
	return fmt.Sprintf("ssd1306.i2c{%s}", t.c)
}

// SendCmd sends command bytes, each burst prefixed with the command control
// byte.
func (t *i2cTransport) SendCmd(c []byte) error {
	return t.send(c, i2cCtrlCmd)
}

// SendData sends pixel data bytes, each burst prefixed with the data control
// byte.
func (t *i2cTransport) SendData(d []byte) error {
	return t.send(d, i2cCtrlData)
}

func (t *i2cTransport) send(b []byte, ctrl byte) error {
	if t.closed {
		return ErrNotBound
	}
	if len(b) == 0 {
		return nil
	}
	buf := make([]byte, 1, 1+t.chunk)
	buf[0] = ctrl
	return writeChunked(b, t.chunk, func(chunk []byte) error {
		return t.c.Tx(append(buf[:1], chunk...), nil)
	})
}

func (t *i2cTransport) Reset() error {
	if t.closed {
		return ErrNotBound
	}
	if t.rst == nil {
		return nil
	}
	return pulseReset(t.rst)
}

func (t *i2cTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.rst != nil {
		return t.rst.Halt()
	}
	return nil
}
