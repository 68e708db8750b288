package ssd1306

import (
	"errors"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Transport is the physical bus access used by Dev to talk to the display
// controller. Exactly one implementation exists per supported bus (4-wire SPI
// and I²C); the upper layer never branches on the bus kind.
//
// SendCmd and SendData treat an empty or nil buffer as trivially satisfied
// and return nil without touching the bus. Both split larger buffers into
// bounded chunks and abort on the first failed transfer.
//
// A Transport is not safe for concurrent use; calls must be serialized by a
// single owner.
type Transport interface {
	// SendCmd writes command bytes to the controller.
	SendCmd(c []byte) error
	// SendData writes pixel data bytes to the controller RAM.
	SendData(d []byte) error
	// Reset pulses the hardware reset line, if one was configured. It is a
	// no-op (returning nil) otherwise. It blocks for the duration of the
	// pulse.
	Reset() error
	// Close releases the bus device and neutralizes the control pins the
	// transport owns. Cleanup is best effort: a deregistration failure is
	// reported but does not stop the pins from being released. Calling Close
	// more than once is a no-op.
	Close() error
}

var (
	// ErrNotBound is returned when an operation is issued on a handle or
	// transport that has been unbound or closed.
	ErrNotBound = errors.New("ssd1306: no transport bound")
	// ErrBound is returned by Dev.Bind when a transport is already bound.
	ErrBound = errors.New("ssd1306: transport already bound")
)

// sleep is swapped out in tests to verify reset pulse timing.
var sleep = time.Sleep

// writeChunked splits b into chunks of at most max bytes and hands them to tx
// in order. It stops at the first error.
func writeChunked(b []byte, max int, tx func(chunk []byte) error) error {
	for len(b) > 0 {
		n := len(b)
		if n > max {
			n = max
		}
		if err := tx(b[:n]); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// powerOnReset runs the bind-time reset sequence. The trailing 5ms settle
// gives the controller margin to come out of power-on or a rebind.
func powerOnReset(rst gpio.PinIO) error {
	if err := rst.Out(gpio.High); err != nil {
		return err
	}
	sleep(1 * time.Millisecond)
	if err := rst.Out(gpio.Low); err != nil {
		return err
	}
	sleep(1 * time.Millisecond)
	if err := rst.Out(gpio.High); err != nil {
		return err
	}
	sleep(5 * time.Millisecond)
	return nil
}

// pulseReset runs the explicit reset sequence for a display that is already
// powered and settled.
func pulseReset(rst gpio.PinIO) error {
	if err := rst.Out(gpio.Low); err != nil {
		return err
	}
	sleep(10 * time.Millisecond)
	if err := rst.Out(gpio.High); err != nil {
		return err
	}
	sleep(10 * time.Millisecond)
	return nil
}
