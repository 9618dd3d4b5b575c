package comm_test

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/omclab/oscacq/comm"
)

// rwBuf adapts two buffers into an io.ReadWriter for exercising wrappers
// without a socket
type rwBuf struct {
	rx *bytes.Buffer
	tx *bytes.Buffer
}

func (rw rwBuf) Read(p []byte) (int, error)  { return rw.rx.Read(p) }
func (rw rwBuf) Write(p []byte) (int, error) { return rw.tx.Write(p) }

func TestTerminatorAppendsOnWrite(t *testing.T) {
	rw := rwBuf{rx: &bytes.Buffer{}, tx: &bytes.Buffer{}}
	term := comm.NewTerminator(rw, '\n', '\n')
	n, err := term.Write([]byte("*IDN?"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("reported length should exclude the terminator, got %d", n)
	}
	if rw.tx.String() != "*IDN?\n" {
		t.Errorf("got %q on the wire", rw.tx.String())
	}
}

func TestTerminatorStripsOnRead(t *testing.T) {
	rw := rwBuf{rx: bytes.NewBufferString("WORD\r\n"), tx: &bytes.Buffer{}}
	term := comm.NewTerminator(rw, '\n', '\n')
	buf := make([]byte, 64)
	n, err := term.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "WORD" {
		t.Errorf("got %q, want WORD", string(buf[:n]))
	}
}

func TestTimeoutPassthroughForPlainReadWriters(t *testing.T) {
	rw := rwBuf{rx: &bytes.Buffer{}, tx: &bytes.Buffer{}}
	got, err := comm.NewTimeout(rw, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got != io.ReadWriter(rw) {
		t.Error("a ReadWriter without deadlines should pass through unmodified")
	}
}

func TestTimeoutExpiresOnConn(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	rw, err := comm.NewTimeout(client, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	_, err = rw.Read(buf)
	if err == nil {
		t.Fatal("read with nothing to read should time out")
	}
	nerr, ok := err.(net.Error)
	if !ok || !nerr.Timeout() {
		t.Errorf("expected a timeout error, got %v", err)
	}
}

func echoListener(t *testing.T) net.Listener {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal("could not listen:", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() { io.Copy(conn, conn) }()
		}
	}()
	return ln
}

func TestPoolReusesConnections(t *testing.T) {
	ln := echoListener(t)
	defer ln.Close()
	maker := func() (io.ReadWriteCloser, error) {
		return net.Dial("tcp", ln.Addr().String())
	}
	pool := comm.NewPool(1, time.Hour, maker)
	conn, err := pool.Get()
	if err != nil {
		t.Fatal("could not get connection:", err)
	}
	if pool.Active() != 1 || pool.Size() != 1 {
		t.Errorf("after Get: active %d size %d, want 1 1", pool.Active(), pool.Size())
	}
	pool.Put(conn)
	if pool.Active() != 0 || pool.Size() != 1 {
		t.Errorf("after Put: active %d size %d, want 0 1", pool.Active(), pool.Size())
	}
	again, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	if again != conn {
		t.Error("pool should hand back the idle connection, not dial a new one")
	}
	pool.Put(again)
}

func TestPoolDestroyShrinks(t *testing.T) {
	ln := echoListener(t)
	defer ln.Close()
	maker := func() (io.ReadWriteCloser, error) {
		return net.Dial("tcp", ln.Addr().String())
	}
	pool := comm.NewPool(1, time.Hour, maker)
	conn, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	pool.ReturnWithError(conn, io.ErrUnexpectedEOF)
	if pool.Size() != 0 {
		t.Errorf("size after destroy: got %d, want 0", pool.Size())
	}
	// the pool should recover by dialing a fresh connection
	conn, err = pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	pool.ReturnWithError(conn, nil)
	if pool.Size() != 1 {
		t.Errorf("size after recovery: got %d, want 1", pool.Size())
	}
}

func TestPoolEchoRoundTrip(t *testing.T) {
	ln := echoListener(t)
	defer ln.Close()
	maker := comm.BackingOffTCPConnMaker(ln.Addr().String(), time.Second)
	pool := comm.NewPool(1, time.Hour, maker)
	conn, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { pool.ReturnWithError(conn, err) }()
	rw, err := comm.NewTimeout(conn, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	term := comm.NewTerminator(rw, '\n', '\n')
	msg := ":WAVeform:FORMat WORD"
	_, err = term.Write([]byte(msg))
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 128)
	n, err := term.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != msg {
		t.Errorf("echo mismatch: got %q", string(buf[:n]))
	}
}

func TestPoolReclaimsIdleConnections(t *testing.T) {
	ln := echoListener(t)
	defer ln.Close()
	maker := func() (io.ReadWriteCloser, error) {
		return net.Dial("tcp", ln.Addr().String())
	}
	pool := comm.NewPool(1, 10*time.Millisecond, maker)
	conn, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	pool.Put(conn)
	time.Sleep(100 * time.Millisecond)
	if pool.Size() != 0 {
		t.Errorf("idle connections should be reclaimed, size %d", pool.Size())
	}
}
