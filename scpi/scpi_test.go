package scpi_test

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/omclab/oscacq/comm"
	"github.com/omclab/oscacq/scpi"
)

// fakeInstrument reads newline-terminated commands from a pipe and
// answers with canned responses
type fakeInstrument struct {
	conn net.Conn

	// handle maps a received command to response chunks, written in order;
	// a nil return means the command has no reply
	handle func(cmd string) [][]byte

	// received collects every command seen, guarded only by the
	// serialization of the pipe
	received []string
}

func (f *fakeInstrument) run() {
	r := bufio.NewReader(f.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		f.received = append(f.received, cmd)
		for _, chunk := range f.handle(cmd) {
			_, err = f.conn.Write(chunk)
			if err != nil {
				return
			}
		}
	}
}

func newFake(handle func(cmd string) [][]byte) (*scpi.SCPI, *fakeInstrument) {
	client, server := net.Pipe()
	fake := &fakeInstrument{conn: server, handle: handle}
	go fake.run()
	maker := func() (io.ReadWriteCloser, error) {
		return client, nil
	}
	pool := comm.NewPool(1, time.Hour, maker)
	return &scpi.SCPI{Pool: pool, Timeout: time.Second}, fake
}

func respond(s string) [][]byte {
	return [][]byte{[]byte(s)}
}

func TestReadString(t *testing.T) {
	s, fake := newFake(func(cmd string) [][]byte {
		if cmd == "*IDN?" {
			return respond("KEYSIGHT TECHNOLOGIES,DSO-X 3024T,MY1,07.50\n")
		}
		return nil
	})
	got, err := s.ReadString("*IDN?")
	if err != nil {
		t.Fatal(err)
	}
	want := "KEYSIGHT TECHNOLOGIES,DSO-X 3024T,MY1,07.50"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if len(fake.received) != 1 || fake.received[0] != "*IDN?" {
		t.Errorf("instrument saw %v", fake.received)
	}
}

func TestReadInt(t *testing.T) {
	s, _ := newFake(func(cmd string) [][]byte {
		return respond("+8\n")
	})
	got, err := s.ReadInt(":ACQuire:COUNt?")
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 {
		t.Errorf("got %d, want 8", got)
	}
}

func TestReadFloat(t *testing.T) {
	s, _ := newFake(func(cmd string) [][]byte {
		return respond("+1.0E+6\n")
	})
	got, err := s.ReadFloat(":WAVeform:POINts?")
	if err != nil {
		t.Fatal(err)
	}
	if got != 1e6 {
		t.Errorf("got %v, want 1e6", got)
	}
}

func TestWriteJoinsCommands(t *testing.T) {
	s, fake := newFake(func(cmd string) [][]byte {
		if cmd == "*IDN?" {
			return respond("ok\n")
		}
		return nil
	})
	err := s.Write(":WAVeform:SOURce", "CHANnel1")
	if err != nil {
		t.Fatal(err)
	}
	// one query so the write has been recorded before we look
	if _, err := s.ReadString("*IDN?"); err != nil {
		t.Fatal(err)
	}
	if len(fake.received) < 1 || fake.received[0] != ":WAVeform:SOURce CHANnel1" {
		t.Errorf("instrument saw %v", fake.received)
	}
}

func TestWriteHandshakingOK(t *testing.T) {
	s, fake := newFake(func(cmd string) [][]byte {
		if strings.HasSuffix(cmd, ":SYSTem:ERRor?") {
			return respond("+0,\"No error\"\n")
		}
		return nil
	})
	s.Handshaking = true
	err := s.Write(":RUN")
	if err != nil {
		t.Fatal(err)
	}
	if len(fake.received) != 1 || !strings.HasPrefix(fake.received[0], "*CLS;") {
		t.Errorf("handshaking should prepend *CLS;, instrument saw %v", fake.received)
	}
}

func TestWriteHandshakingSurfacesError(t *testing.T) {
	s, _ := newFake(func(cmd string) [][]byte {
		if strings.HasSuffix(cmd, ":SYSTem:ERRor?") {
			return respond("-113,\"Undefined header\"\n")
		}
		return nil
	})
	s.Handshaking = true
	err := s.Write(":BOGUS")
	if err == nil {
		t.Fatal("a non-empty error queue should fail the write")
	}
	if !strings.Contains(err.Error(), "-113") {
		t.Errorf("error should carry the instrument message, got %v", err)
	}
}

func TestPopError(t *testing.T) {
	queue := []string{"-410,\"Query INTERRUPTED\"", "+0,\"No error\""}
	s, _ := newFake(func(cmd string) [][]byte {
		resp := queue[0]
		if len(queue) > 1 {
			queue = queue[1:]
		}
		return respond(resp + "\n")
	})
	err := s.PopError()
	if err == nil || !strings.Contains(err.Error(), "-410") {
		t.Errorf("first pop should surface the queued error, got %v", err)
	}
	if err := s.PopError(); err != nil {
		t.Errorf("empty queue should pop nil, got %v", err)
	}
}

func TestAllErrorsString(t *testing.T) {
	queue := []string{"-410,\"Query INTERRUPTED\"", "-113,\"Undefined header\"", "+0,\"No error\""}
	s, _ := newFake(func(cmd string) [][]byte {
		resp := queue[0]
		if len(queue) > 1 {
			queue = queue[1:]
		}
		return respond(resp + "\n")
	})
	str, err := s.AllErrorsString()
	if err == nil {
		t.Fatal("drained errors should be reported")
	}
	lines := strings.Split(str, "\n")
	if len(lines) != 2 {
		t.Errorf("got %d errors, want 2: %q", len(lines), str)
	}
}

func TestReadBlockSingleChunk(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	s, _ := newFake(func(cmd string) [][]byte {
		blk := append([]byte("#15"), payload...)
		blk = append(blk, '\n')
		return [][]byte{blk}
	})
	got, err := s.ReadBlock(":WAVeform:DATA?")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("got % x, want % x", got, payload)
	}
}

func TestReadBlockSpansReads(t *testing.T) {
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}
	s, _ := newFake(func(cmd string) [][]byte {
		head := append([]byte("#41000"), payload[:100]...)
		return [][]byte{head, payload[100:600], append(payload[600:], '\n')}
	})
	got, err := s.ReadBlock(":WAVeform:DATA?")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(payload) {
		t.Fatalf("length: got %d, want %d", len(got), len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], payload[i])
		}
	}
}

func TestReadBlockRejectsBadHeader(t *testing.T) {
	s, _ := newFake(func(cmd string) [][]byte {
		return respond("not a block\n")
	})
	_, err := s.ReadBlock(":WAVeform:DATA?")
	if err == nil {
		t.Fatal("a response without the # sigil should be rejected")
	}
}

func TestReadBlockRejectsBadDigitCount(t *testing.T) {
	s, _ := newFake(func(cmd string) [][]byte {
		return respond("#01\n")
	})
	_, err := s.ReadBlock(":WAVeform:DATA?")
	if err == nil {
		t.Fatal("a zero digit count should be rejected")
	}
}

func TestRawRoutesQueries(t *testing.T) {
	s, fake := newFake(func(cmd string) [][]byte {
		if cmd == ":ACQuire:TYPE?" {
			return respond("HRES\n")
		}
		return nil
	})
	got, err := s.Raw(":ACQuire:TYPE?")
	if err != nil {
		t.Fatal(err)
	}
	if got != "HRES" {
		t.Errorf("got %q, want HRES", got)
	}
	got, err = s.Raw(":STOP")
	if err != nil || got != "" {
		t.Errorf("bare commands should return an empty string, got %q %v", got, err)
	}
	if len(fake.received) != 2 {
		t.Errorf("instrument saw %v", fake.received)
	}
}
