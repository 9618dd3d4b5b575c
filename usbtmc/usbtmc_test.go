package usbtmc

import (
	"encoding/binary"
	"testing"
)

func TestBTagSkipsZero(t *testing.T) {
	g := &bTagGen{value: 0xfe}
	if got := g.next(); got != 0xff {
		t.Errorf("got %#x, want 0xff", got)
	}
	// wraparound must skip zero, per the standard
	if got := g.next(); got != 0x01 {
		t.Errorf("got %#x, want 0x01", got)
	}
}

func TestInvbTag(t *testing.T) {
	cases := map[byte]byte{0x00: 0xff, 0x01: 0xfe, 0xaa: 0x55}
	for in, want := range cases {
		if got := invbTag(in); got != want {
			t.Errorf("invbTag(%#x): got %#x, want %#x", in, got, want)
		}
	}
}

func TestEncBulkOutHeader(t *testing.T) {
	hdr := encBulkOutHeader(0x02, 1500)
	if hdr[0] != devDepMsgOut {
		t.Errorf("MsgID: got %#x, want %#x", hdr[0], devDepMsgOut)
	}
	if hdr[1] != 0x02 || hdr[2] != 0xfd {
		t.Errorf("bTag pair: got %#x %#x", hdr[1], hdr[2])
	}
	if got := binary.LittleEndian.Uint32(hdr[4:8]); got != 1500 {
		t.Errorf("transfer size: got %d, want 1500", got)
	}
	if hdr[8] != 0x01 {
		t.Error("EOM bit should be set")
	}
	if hdr[3] != 0 || hdr[9] != 0 || hdr[10] != 0 || hdr[11] != 0 {
		t.Error("reserved bytes must be zero")
	}
}

func TestEncBulkInHeaderWithTerminator(t *testing.T) {
	term := byte('\n')
	hdr := encBulkInHeader(0x05, 1500, &term)
	if hdr[0] != requestDevDepMsg {
		t.Errorf("MsgID: got %#x, want %#x", hdr[0], requestDevDepMsg)
	}
	if hdr[1] != 0x05 || hdr[2] != 0xfa {
		t.Errorf("bTag pair: got %#x %#x", hdr[1], hdr[2])
	}
	if hdr[8] != 0x02 {
		t.Error("TermCharEnabled bit should be set")
	}
	if hdr[9] != '\n' {
		t.Errorf("terminator byte: got %#x", hdr[9])
	}
}

func TestEncBulkInHeaderWithoutTerminator(t *testing.T) {
	hdr := encBulkInHeader(0x05, 1500, nil)
	if hdr[8] != 0 || hdr[9] != 0 {
		t.Error("terminator fields should be clear when no terminator is given")
	}
}
