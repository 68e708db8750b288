package image1bit

import (
	"image"
	"image/color"
	"testing"
)

func TestNewVerticalLSB(t *testing.T) {
	img := NewVerticalLSB(image.Rect(0, 0, 128, 64))
	if img.Stride != 128 {
		t.Errorf("Stride = %d, want 128", img.Stride)
	}
	if len(img.Pix) != 128*8 {
		t.Errorf("len(Pix) = %d, want %d", len(img.Pix), 128*8)
	}
	if got := img.Bounds(); got != image.Rect(0, 0, 128, 64) {
		t.Errorf("Bounds() = %v", got)
	}
}

func TestNewVerticalLSBRoundsToBand(t *testing.T) {
	// 13 rows still need two full 8-pixel bands.
	img := NewVerticalLSB(image.Rect(0, 0, 10, 13))
	if len(img.Pix) != 10*2 {
		t.Errorf("len(Pix) = %d, want 20", len(img.Pix))
	}
}

func TestSetBitRoundTrip(t *testing.T) {
	img := NewVerticalLSB(image.Rect(0, 0, 16, 16))
	img.SetBit(3, 10, On)
	if !bool(img.BitAt(3, 10)) {
		t.Error("BitAt(3, 10) = Off after SetBit On")
	}
	// Byte layout: band 1 (y=10), column 3, bit 2.
	if img.Pix[img.Stride*1+3] != 1<<2 {
		t.Errorf("Pix byte = %#x, want 0x04", img.Pix[img.Stride*1+3])
	}
	img.SetBit(3, 10, Off)
	if bool(img.BitAt(3, 10)) {
		t.Error("BitAt(3, 10) = On after SetBit Off")
	}
}

func TestSetBitOutOfBounds(t *testing.T) {
	img := NewVerticalLSB(image.Rect(0, 0, 8, 8))
	img.SetBit(-1, 0, On)
	img.SetBit(0, 8, On)
	for i, b := range img.Pix {
		if b != 0 {
			t.Fatalf("Pix[%d] = %#x after out of bounds writes", i, b)
		}
	}
	if img.BitAt(100, 100) != Off {
		t.Error("out of bounds BitAt should be Off")
	}
}

func TestSetColorConversion(t *testing.T) {
	img := NewVerticalLSB(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.White)
	if !bool(img.BitAt(2, 2)) {
		t.Error("white did not convert to On")
	}
	img.Set(2, 2, color.Black)
	if bool(img.BitAt(2, 2)) {
		t.Error("black did not convert to Off")
	}
	if got := img.At(2, 2); got != color.Color(Off) {
		t.Errorf("At(2, 2) = %v, want Off", got)
	}
}

func TestBitModel(t *testing.T) {
	tests := []struct {
		in   color.Color
		want Bit
	}{
		{color.White, On},
		{color.Black, Off},
		{color.Gray{0xFF}, On},
		{color.Gray{0x00}, Off},
		{color.RGBA{0xFF, 0x00, 0x00, 0xFF}, Off}, // pure red is dark
		{color.RGBA{0x00, 0xFF, 0x00, 0xFF}, On},  // green dominates luma
	}
	for _, tt := range tests {
		if got := BitModel.Convert(tt.in); got != color.Color(tt.want) {
			t.Errorf("Convert(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBitColor(t *testing.T) {
	if got := On.String(); got != "On" {
		t.Errorf("On.String() = %q", got)
	}
	if got := Off.String(); got != "Off" {
		t.Errorf("Off.String() = %q", got)
	}
	r, g, b, a := On.RGBA()
	if r != 0xFFFF || g != 0xFFFF || b != 0xFFFF || a != 0xFFFF {
		t.Errorf("On.RGBA() = %d,%d,%d,%d", r, g, b, a)
	}
	r, g, b, a = Off.RGBA()
	if r != 0 || g != 0 || b != 0 || a != 0xFFFF {
		t.Errorf("Off.RGBA() = %d,%d,%d,%d", r, g, b, a)
	}
}
