package ssd1306

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/edvall/ssd1306/image1bit"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Command bytes used by this driver. See the SSD1306 datasheet, section 9.
const (
	cmdDisplayOff      = 0xAE
	cmdDisplayOn       = 0xAF
	cmdMemoryMode      = 0x20
	cmdColumnAddr      = 0x21
	cmdPageAddr        = 0x22
	cmdSetMultiplex    = 0xA8
	cmdDisplayOffset   = 0xD3
	cmdStartLine       = 0x40
	cmdSegRemap        = 0xA1
	cmdComScanDec      = 0xC8
	cmdSetComPins      = 0xDA
	cmdSetContrast     = 0x81
	cmdResumeRAM       = 0xA4
	cmdNormalDisplay   = 0xA6
	cmdInvertDisplay   = 0xA7
	cmdClockDiv        = 0xD5
	cmdPrecharge       = 0xD9
	cmdVComDetect      = 0xDB
	cmdChargePump      = 0x8D
	cmdScrollRight     = 0x26
	cmdScrollLeft      = 0x27
	cmdActivateScroll  = 0x2F
	cmdDeactivScroll   = 0x2E
)

// Text layout spacing in pixels.
const (
	textHSpace = 1
	textVSpace = 2
)

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	W:    128,
	H:    64,
	Addr: DefaultI2CAddr,
}

// Opts is the configuration for the display.
type Opts struct {
	// Display dimensions in pixels. Both must be multiples of 8;
	// width up to 128, height up to 64.
	W int
	H int

	// Addr is the I²C address; only used by NewI2C. Defaults to 0x3C.
	Addr uint16

	// Clock is the SPI clock rate; only used by NewSPI. Defaults to 8MHz.
	Clock physic.Frequency

	// RST is the optional hardware reset pin (nil if not wired).
	RST gpio.PinIO
}

// Dev is the device handle for the SSD1306 display.
//
// A Dev owns exactly one bound Transport at a time. It keeps a page-packed
// framebuffer and a dirty bounding box so Display only transfers the region
// that changed since the last flush.
//
// Dev is not internally synchronized; it expects a single logical owner and
// serialized calls.
type Dev struct {
	// Communication; nil when unbound.
	t Transport

	// Display geometry
	rect image.Rectangle

	// Pixel buffer, 1bpp page-packed (8 vertical pixels per byte).
	buffer []byte
	font   *Font

	// Dirty bounding box since the last flush.
	dirty              bool
	dx0, dy0, dx1, dy1 int

	halted bool
}

var errHalted = errors.New("ssd1306: halted")

// New creates a device handle bound to the given transport and initializes
// the display: hardware reset pulse (when the transport has a reset pin
// configured) followed by the full initialization command sequence.
//
// opts can be nil to use defaults (128x64 display).
func New(t Transport, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.W < 8 || o.W > 128 || o.W%8 != 0 {
		return nil, fmt.Errorf("ssd1306: invalid width %d", o.W)
	}
	if o.H < 8 || o.H > 64 || o.H%8 != 0 {
		return nil, fmt.Errorf("ssd1306: invalid height %d", o.H)
	}

	d := &Dev{
		rect:   image.Rect(0, 0, o.W, o.H),
		buffer: make([]byte, o.W*o.H/8),
		font:   Font5x7,
	}
	d.dirtyReset()
	if err := d.Bind(t); err != nil {
		return nil, err
	}
	if err := t.Reset(); err != nil {
		_ = d.Unbind()
		return nil, err
	}
	if err := t.SendCmd(initSeq(o.H)); err != nil {
		_ = d.Unbind()
		return nil, err
	}
	return d, nil
}

// NewSPI creates a device handle connected via 4-wire SPI.
//
// The dc (Data/Command) pin is mandatory. Chip select is handled by the port.
// The port is configured for Mode0, 8-bit transfers at opts.Clock (8MHz when
// unset).
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	t, err := NewSPITransport(p, dc, &SPIOpts{Clock: o.Clock, RST: o.RST})
	if err != nil {
		return nil, err
	}
	d, err := New(t, &o)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return d, nil
}

// NewI2C creates a device handle connected via I²C.
func NewI2C(b i2c.Bus, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	t, err := NewI2CTransport(b, &I2COpts{Addr: o.Addr, RST: o.RST})
	if err != nil {
		return nil, err
	}
	d, err := New(t, &o)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return d, nil
}

// initSeq builds the power-up command sequence for the given panel height.
func initSeq(h int) []byte {
	// COM pin layout differs between short and tall panels.
	compins := byte(0x12)
	if h <= 32 {
		compins = 0x02
	}
	return []byte{
		cmdDisplayOff,
		cmdMemoryMode, 0x00, // horizontal addressing
		cmdSetMultiplex, byte(h - 1),
		cmdDisplayOffset, 0x00,
		cmdStartLine,
		cmdSegRemap,
		cmdComScanDec,
		cmdSetComPins, compins,
		cmdSetContrast, 0x7F,
		cmdResumeRAM,
		cmdNormalDisplay,
		cmdClockDiv, 0x80,
		cmdPrecharge, 0xF1, // 0x22 for external VCC
		cmdVComDetect, 0x40,
		cmdChargePump, 0x14, // 0x10 for external VCC
		cmdDisplayOn,
	}
}

// Bind attaches a transport to the handle. It fails with ErrBound when a
// transport is already attached; the caller must Unbind first rather than
// silently leaking the previous one.
func (d *Dev) Bind(t Transport) error {
	if t == nil {
		return errors.New("ssd1306: nil transport")
	}
	if d.t != nil {
		return ErrBound
	}
	d.t = t
	return nil
}

// Unbind releases the bound transport and its hardware resources. It is safe
// to call on an already unbound handle, in which case it is a no-op returning
// nil. A transport close failure is reported but the handle is unbound
// regardless.
func (d *Dev) Unbind() error {
	if d.t == nil {
		return nil
	}
	t := d.t
	d.t = nil
	return t.Close()
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("ssd1306.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements display.Drawer. Min is guaranteed to be {0, 0}.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// ----- Framebuffer drawing -----

// drawPixelFast writes one pixel without bounds checks.
func (d *Dev) drawPixelFast(x, y int, on bool) {
	page := y >> 3 // 8 vertical pixels per byte
	mask := byte(1) << uint(y&7)
	if on {
		d.buffer[page*d.rect.Dx()+x] |= mask
	} else {
		d.buffer[page*d.rect.Dx()+x] &^= mask
	}
}

func (d *Dev) dirtyReset() {
	d.dirty = false
	d.dx0, d.dy0 = d.rect.Dx(), d.rect.Dy()
	d.dx1, d.dy1 = -1, -1
}

// markDirty grows the dirty bounding box to include [x0,y0]-[x1,y1].
func (d *Dev) markDirty(x0, y0, x1, y1 int) {
	if !d.dirty {
		d.dirty = true
		d.dx0, d.dy0, d.dx1, d.dy1 = x0, y0, x1, y1
		return
	}
	if x0 < d.dx0 {
		d.dx0 = x0
	}
	if y0 < d.dy0 {
		d.dy0 = y0
	}
	if x1 > d.dx1 {
		d.dx1 = x1
	}
	if y1 > d.dy1 {
		d.dy1 = y1
	}
}

// Clear turns all pixels off.
func (d *Dev) Clear() error {
	if d.t == nil {
		return ErrNotBound
	}
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.markDirty(0, 0, d.rect.Dx()-1, d.rect.Dy()-1)
	return nil
}

// DrawPixel draws or clears a single pixel. Coordinates outside the display
// are an argument error.
func (d *Dev) DrawPixel(x, y int, on bool) error {
	if d.t == nil {
		return ErrNotBound
	}
	if x < 0 || x >= d.rect.Dx() || y < 0 || y >= d.rect.Dy() {
		return fmt.Errorf("ssd1306: pixel (%d,%d) out of bounds", x, y)
	}
	d.drawPixelFast(x, y, on)
	d.markDirty(x, y, x, y)
	return nil
}

// DrawLine draws a straight line between two points using Bresenham's
// algorithm. Out-of-bounds portions are clipped.
func (d *Dev) DrawLine(x0, y0, x1, y1 int, on bool) error {
	if d.t == nil {
		return ErrNotBound
	}
	w, h := d.rect.Dx(), d.rect.Dy()
	// Trivial reject when fully outside on one side.
	if (x0 < 0 && x1 < 0) || (y0 < 0 && y1 < 0) || (x0 >= w && x1 >= w) || (y0 >= h && y1 >= h) {
		return nil
	}

	bx0, by0, bx1, by1 := min(x0, x1), min(y0, y1), max(x0, x1), max(y0, y1)

	dx, dy := abs(x1-x0), abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	for {
		if x0 >= 0 && x0 < w && y0 >= 0 && y0 < h {
			d.drawPixelFast(x0, y0, on)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := err * 2
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
	d.markDirty(clampInt(bx0, 0, w-1), clampInt(by0, 0, h-1), clampInt(bx1, 0, w-1), clampInt(by1, 0, h-1))
	return nil
}

// DrawRect draws a rectangle, filled or outline. Out-of-bounds portions are
// clipped; a fully off-screen rectangle is a no-op.
func (d *Dev) DrawRect(x, y, w, h int, fill bool) error {
	if d.t == nil {
		return ErrNotBound
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("ssd1306: invalid rectangle %dx%d", w, h)
	}
	dw, dh := d.rect.Dx(), d.rect.Dy()
	x0, y0, x1, y1 := x, y, x+w-1, y+h-1
	if x0 >= dw || y0 >= dh || x1 < 0 || y1 < 0 {
		return nil
	}
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, dw-1), min(y1, dh-1)

	if !fill {
		for xx := x0; xx <= x1; xx++ {
			d.drawPixelFast(xx, y0, true)
			d.drawPixelFast(xx, y1, true)
		}
		for yy := y0; yy <= y1; yy++ {
			d.drawPixelFast(x0, yy, true)
			d.drawPixelFast(x1, yy, true)
		}
		d.markDirty(x0, y0, x1, y1)
		return nil
	}

	// Filled: whole-byte writes for fully covered pages, masks at the edges.
	firstPage, lastPage := y0>>3, y1>>3
	firstMask := byte(0xFF) << uint(y0&7)
	lastMask := byte(0xFF) >> uint(7-(y1&7))
	for page := firstPage; page <= lastPage; page++ {
		rowBase := page*dw + x0
		mask := byte(0xFF)
		switch {
		case firstPage == lastPage:
			mask = firstMask & lastMask
		case page == firstPage:
			mask = firstMask
		case page == lastPage:
			mask = lastMask
		}
		for i := 0; i <= x1-x0; i++ {
			d.buffer[rowBase+i] |= mask
		}
	}
	d.markDirty(x0, y0, x1, y1)
	return nil
}

// DrawCircle draws a circle, filled or outline, using the midpoint algorithm.
func (d *Dev) DrawCircle(xc, yc, r int, fill bool) error {
	if d.t == nil {
		return ErrNotBound
	}
	if r < 0 {
		return fmt.Errorf("ssd1306: invalid radius %d", r)
	}
	if r == 0 {
		if xc >= 0 && xc < d.rect.Dx() && yc >= 0 && yc < d.rect.Dy() {
			return d.DrawPixel(xc, yc, true)
		}
		return nil
	}

	x, y, err := r, 0, 1-r
	for x >= y {
		if fill {
			d.hlineClipped(xc-x, xc+x, yc+y)
			d.hlineClipped(xc-x, xc+x, yc-y)
			d.hlineClipped(xc-y, xc+y, yc+x)
			d.hlineClipped(xc-y, xc+y, yc-x)
		} else {
			d.plotIfVisible(xc+x, yc+y)
			d.plotIfVisible(xc+y, yc+x)
			d.plotIfVisible(xc-y, yc+x)
			d.plotIfVisible(xc-x, yc+y)
			d.plotIfVisible(xc-x, yc-y)
			d.plotIfVisible(xc-y, yc-x)
			d.plotIfVisible(xc+y, yc-x)
			d.plotIfVisible(xc+x, yc-y)
		}
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
	w, h := d.rect.Dx(), d.rect.Dy()
	d.markDirty(clampInt(xc-r, 0, w-1), clampInt(yc-r, 0, h-1), clampInt(xc+r, 0, w-1), clampInt(yc+r, 0, h-1))
	return nil
}

func (d *Dev) plotIfVisible(x, y int) {
	if x >= 0 && x < d.rect.Dx() && y >= 0 && y < d.rect.Dy() {
		d.drawPixelFast(x, y, true)
	}
}

func (d *Dev) hlineClipped(x0, x1, y int) {
	if y < 0 || y >= d.rect.Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 < 0 || x0 >= d.rect.Dx() {
		return
	}
	x0, x1 = max(x0, 0), min(x1, d.rect.Dx()-1)
	for x := x0; x <= x1; x++ {
		d.drawPixelFast(x, y, true)
	}
}

// SetFont sets the active font for DrawText. Passing nil disables text
// drawing until a font is set again.
func (d *Dev) SetFont(f *Font) error {
	if d.t == nil {
		return ErrNotBound
	}
	d.font = f
	return nil
}

// DrawText draws ASCII text with the current font at scale 1.
func (d *Dev) DrawText(x, y int, text string, on bool) error {
	return d.DrawTextScaled(x, y, text, on, 1)
}

// DrawTextScaled draws ASCII text with an integer scale factor.
//
// '\n' moves to the next line, '\r' is ignored and characters outside the
// font's range advance the cursor without drawing.
func (d *Dev) DrawTextScaled(x, y int, text string, on bool, scale int) error {
	if d.t == nil {
		return ErrNotBound
	}
	if d.font == nil {
		return errors.New("ssd1306: no font set")
	}
	if scale < 1 {
		scale = 1
	}

	f := d.font
	gw, gh := f.Width, f.Height
	curX, curY := x, y
	bx0, by0, bx1, by1 := curX, curY, curX-1, curY-1

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch == '\r' {
			continue
		}
		if ch == '\n' {
			curX = x
			curY += gh*scale + textVSpace
			continue
		}

		if glyph := f.glyph(ch); glyph != nil {
			for cx, col := range glyph {
				if col == 0 {
					continue
				}
				for ry := 0; ry < gh; ry++ {
					if col&(1<<uint(ry)) == 0 {
						continue
					}
					baseX := curX + cx*scale
					baseY := curY + ry*scale
					for sx := 0; sx < scale; sx++ {
						for sy := 0; sy < scale; sy++ {
							px, py := baseX+sx, baseY+sy
							if px >= 0 && px < d.rect.Dx() && py >= 0 && py < d.rect.Dy() {
								d.drawPixelFast(px, py, on)
							}
						}
					}
				}
			}
		}
		curX += gw*scale + textHSpace

		if gx1 := curX - 1; gx1 > bx1 {
			bx1 = gx1
		}
		if gy1 := curY + gh*scale - 1; gy1 > by1 {
			by1 = gy1
		}
	}

	if bx1 >= bx0 && by1 >= by0 {
		w, h := d.rect.Dx(), d.rect.Dy()
		d.markDirty(clampInt(bx0, 0, w-1), clampInt(by0, 0, h-1), clampInt(bx1, 0, w-1), clampInt(by1, 0, h-1))
	}
	return nil
}

// ----- Flushing -----

// setWindow selects the column and page address window for the next data
// stream. In horizontal addressing mode the controller wraps at the window
// edges on its own.
func (d *Dev) setWindow(x0, x1, p0, p1 int) error {
	return d.t.SendCmd([]byte{
		cmdColumnAddr, byte(x0), byte(x1),
		cmdPageAddr, byte(p0), byte(p1),
	})
}

// Display sends the dirty region of the framebuffer to the display. It is a
// no-op when nothing changed since the last flush.
func (d *Dev) Display() error {
	if d.t == nil {
		return ErrNotBound
	}
	if d.halted {
		return errHalted
	}
	if !d.dirty {
		return nil
	}

	w, h := d.rect.Dx(), d.rect.Dy()
	x0, y0 := max(d.dx0, 0), max(d.dy0, 0)
	x1, y1 := min(d.dx1, w-1), min(d.dy1, h-1)
	p0, p1 := y0>>3, y1>>3

	if err := d.setWindow(x0, x1, p0, p1); err != nil {
		return err
	}
	for p := p0; p <= p1; p++ {
		row := d.buffer[p*w+x0 : p*w+x1+1]
		if err := d.t.SendData(row); err != nil {
			return err
		}
	}
	d.dirtyReset()
	return nil
}

// Draw implements display.Drawer.
//
// It draws synchronously; once this function returns, the display is updated.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	if d.t == nil {
		return ErrNotBound
	}
	if d.halted {
		return errHalted
	}
	r = r.Intersect(d.rect)
	if r.Empty() {
		return nil
	}
	fb := &image1bit.VerticalLSB{Pix: d.buffer, Stride: d.rect.Dx(), Rect: d.rect}
	draw.Draw(fb, r, src, sp, draw.Src)
	d.markDirty(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1)
	return d.Display()
}

// Write writes a full frame of raw pixels to the display. The layout is the
// one of image1bit.VerticalLSB.Pix; the length must match exactly.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.t == nil {
		return 0, ErrNotBound
	}
	if d.halted {
		return 0, errHalted
	}
	if len(pixels) != len(d.buffer) {
		return 0, fmt.Errorf("ssd1306: invalid pixel stream length; expected %d bytes, got %d bytes", len(d.buffer), len(pixels))
	}
	copy(d.buffer, pixels)
	d.markDirty(0, 0, d.rect.Dx()-1, d.rect.Dy()-1)
	if err := d.Display(); err != nil {
		return 0, err
	}
	return len(pixels), nil
}

// ----- Controller state -----

// SetContrast sets the display contrast (0-255).
func (d *Dev) SetContrast(level byte) error {
	if d.t == nil {
		return ErrNotBound
	}
	if d.halted {
		return errHalted
	}
	return d.t.SendCmd([]byte{cmdSetContrast, level})
}

// Invert inverts the display colors (black becomes white and vice versa).
func (d *Dev) Invert(invert bool) error {
	if d.t == nil {
		return ErrNotBound
	}
	if d.halted {
		return errHalted
	}
	mode := byte(cmdNormalDisplay)
	if invert {
		mode = cmdInvertDisplay
	}
	return d.t.SendCmd([]byte{mode})
}

// Halt powers off the display panel. The handle stays bound; re-initialize
// with a new Dev to turn the panel back on.
func (d *Dev) Halt() error {
	if d.t == nil {
		return ErrNotBound
	}
	if err := d.t.SendCmd([]byte{cmdDisplayOff}); err != nil {
		return err
	}
	d.halted = true
	return nil
}

// FrameRate determines hardware scrolling speed, in display refresh frames
// between each one pixel shift. Lower frame counts scroll faster.
type FrameRate byte

// Possible scroll frame rates.
const (
	FrameRate2   FrameRate = 0x07
	FrameRate3   FrameRate = 0x04
	FrameRate4   FrameRate = 0x05
	FrameRate5   FrameRate = 0x00
	FrameRate25  FrameRate = 0x06
	FrameRate64  FrameRate = 0x01
	FrameRate128 FrameRate = 0x02
	FrameRate256 FrameRate = 0x03
)

// ScrollHorizontal starts hardware horizontal scrolling over the page range
// [startPage, endPage]. If right is true, content moves right.
func (d *Dev) ScrollHorizontal(startPage, endPage int, rate FrameRate, right bool) error {
	if d.t == nil {
		return ErrNotBound
	}
	if d.halted {
		return errHalted
	}
	pages := d.rect.Dy() / 8
	if startPage < 0 || endPage >= pages || startPage > endPage {
		return fmt.Errorf("ssd1306: invalid scroll page range %d-%d", startPage, endPage)
	}
	op := byte(cmdScrollLeft)
	if right {
		op = cmdScrollRight
	}
	return d.t.SendCmd([]byte{
		op,
		0x00, // dummy
		byte(startPage),
		byte(rate),
		byte(endPage),
		0x00, 0xFF, // dummy
		cmdActivateScroll,
	})
}

// StopScroll stops any scrolling previously set. The RAM content may need a
// redraw afterwards; the next Display call with a dirty buffer handles that.
func (d *Dev) StopScroll() error {
	if d.t == nil {
		return ErrNotBound
	}
	return d.t.SendCmd([]byte{cmdDeactivScroll})
}

// ----- Small helpers -----

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ display.Drawer = &Dev{}
