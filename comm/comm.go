/*Package comm provides connection plumbing for communication with lab
instruments over TCP or serial.

The expected usage is to build a Pool with a connection maker for the
physical link, then wrap connections taken from the pool with NewTimeout
and NewTerminator before doing I/O:

	maker := comm.BackingOffTCPConnMaker("192.168.100.40:5025", time.Second)
	pool := comm.NewPool(1, time.Hour, maker)
	conn, err := pool.Get()
	// handle err
	defer pool.ReturnWithError(conn, err)
	rw, err := comm.NewTimeout(conn, 5*time.Second)
	// handle err
	rw = comm.NewTerminator(rw, '\n', '\n')
*/
package comm

import (
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

// Terminator wraps a ReadWriter, appending the Tx terminator to each write
// and stripping a trailing Rx terminator from each read.
type Terminator struct {
	rw io.ReadWriter
	rx byte
	tx byte
}

// NewTerminator returns a Terminator wrapping rw with the given
// receive and transmit termination bytes
func NewTerminator(rw io.ReadWriter, rx, tx byte) *Terminator {
	return &Terminator{rw: rw, rx: rx, tx: tx}
}

// Write sends b followed by the Tx terminator
func (t *Terminator) Write(b []byte) (int, error) {
	b2 := make([]byte, len(b)+1)
	copy(b2, b)
	b2[len(b)] = t.tx
	n, err := t.rw.Write(b2)
	if n > len(b) {
		n = len(b)
	}
	return n, err
}

// Read reads into b and strips a trailing Rx terminator, and a carriage
// return preceeding it, if present
func (t *Terminator) Read(b []byte) (int, error) {
	n, err := t.rw.Read(b)
	if err != nil {
		return n, err
	}
	if n > 0 && b[n-1] == t.rx {
		n--
	}
	if n > 0 && b[n-1] == '\r' {
		n--
	}
	return n, nil
}

// deadliner is the piece of net.Conn needed to impose timeouts
type deadliner interface {
	SetDeadline(time.Time) error
}

// NewTimeout imposes a read and write deadline of now+timeout on rw.
// The underlying type must support deadlines (net.Conn does), otherwise
// rw is returned unmodified.
func NewTimeout(rw io.ReadWriter, timeout time.Duration) (io.ReadWriter, error) {
	if d, ok := rw.(deadliner); ok {
		err := d.SetDeadline(time.Now().Add(timeout))
		if err != nil {
			return rw, err
		}
	}
	return rw, nil
}

// TCPSetup opens a new TCP connection and sets a timeout on connect, read, and write
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}

// BackingOffTCPConnMaker returns a CreationFunc that dials addr with
// exponential backoff.  Some instruments refuse connections for a moment
// after a previous connection is torn down and do not like being
// connection thrashed.
func BackingOffTCPConnMaker(addr string, timeout time.Duration) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		var conn net.Conn
		op := func() error {
			var err error
			conn, err = TCPSetup(addr, timeout)
			return err
		}
		err := backoff.Retry(op, &backoff.ExponentialBackOff{
			InitialInterval:     25 * time.Millisecond,
			RandomizationFactor: 0.,
			Multiplier:          2.,
			MaxInterval:         1 * time.Second,
			MaxElapsedTime:      3 * time.Second,
			Clock:               backoff.SystemClock})
		return conn, err
	}
}

// SerialConnMaker returns a CreationFunc that opens the serial port
// described by conf
func SerialConnMaker(conf *serial.Config) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		return serial.OpenPort(conf)
	}
}
