package audio

import (
	"bytes"
	"testing"
)

func TestDecodeMulaw_Length(t *testing.T) {
	if got := DecodeMulaw(nil); len(got) != 0 {
		t.Errorf("Expected empty output for empty input, got %d bytes", len(got))
	}
	if got := DecodeMulaw(make([]byte, 160)); len(got) != 320 {
		t.Errorf("Expected 2 output bytes per input byte, got %d", len(got))
	}
}

func TestMulawSample_KnownValues(t *testing.T) {
	tests := []struct {
		in   byte
		want int16
	}{
		{0xFF, 0},     // positive silence
		{0x7F, 0},     // negative silence
		{0x00, -8031}, // largest negative magnitude
		{0x80, 8031},  // largest positive magnitude
	}
	for _, tt := range tests {
		if got := mulawSample(tt.in); got != tt.want {
			t.Errorf("mulawSample(%#02x) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMulawSample_SignSymmetry(t *testing.T) {
	// Codewords differing only in the sign bit decode to opposite samples.
	for b := byte(0); b < 0x80; b++ {
		neg := mulawSample(b)
		pos := mulawSample(b | 0x80)
		if pos != -neg {
			t.Fatalf("Codewords %#02x/%#02x decode to %d/%d, not mirrored", b, b|0x80, neg, pos)
		}
	}
}

func TestDecodeMulaw_SilenceFrame(t *testing.T) {
	frame := bytes.Repeat([]byte{0xFF}, 8)
	want := make([]byte, 16)
	if got := DecodeMulaw(frame); !bytes.Equal(got, want) {
		t.Errorf("Silence frame decoded to %v", got)
	}
}

func TestChunker_CoalescesSmallFrames(t *testing.T) {
	c := NewChunker(8)

	if chunks := c.Write([]byte{1, 2, 3}); chunks != nil {
		t.Fatalf("Expected no chunk yet, got %v", chunks)
	}
	if chunks := c.Write([]byte{4, 5, 6}); chunks != nil {
		t.Fatalf("Expected no chunk yet, got %v", chunks)
	}

	chunks := c.Write([]byte{7, 8, 9, 10})
	if len(chunks) != 1 {
		t.Fatalf("Expected one chunk, got %d", len(chunks))
	}
	if !bytes.Equal(chunks[0], []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("Chunk out of order: %v", chunks[0])
	}
	if c.Pending() != 2 {
		t.Errorf("Expected 2 pending bytes, got %d", c.Pending())
	}
}

func TestChunker_LargeFrameYieldsMultipleChunks(t *testing.T) {
	c := NewChunker(4)

	frame := make([]byte, 10)
	for i := range frame {
		frame[i] = byte(i)
	}
	chunks := c.Write(frame)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if !bytes.Equal(chunks[0], []byte{0, 1, 2, 3}) || !bytes.Equal(chunks[1], []byte{4, 5, 6, 7}) {
		t.Errorf("Unexpected chunks %v", chunks)
	}
}

func TestChunker_Flush(t *testing.T) {
	c := NewChunker(8)
	c.Write([]byte{1, 2, 3})

	rest := c.Flush()
	if !bytes.Equal(rest, []byte{1, 2, 3}) {
		t.Errorf("Expected pending bytes flushed, got %v", rest)
	}
	if c.Flush() != nil {
		t.Error("Second flush returned data")
	}
	if c.Pending() != 0 {
		t.Errorf("Expected empty chunker after flush, got %d pending", c.Pending())
	}
}

func TestChunker_DefaultSize(t *testing.T) {
	c := NewChunker(0)
	if chunks := c.Write(make([]byte, 3200)); len(chunks) != 1 {
		t.Errorf("Expected default chunk size 3200, got %d chunks", len(chunks))
	}
}
