/*Package usbtmc implements datagram encoding and decoding for USB Test and
Measurement Class devices, enough to talk SCPI to a USB-attached
oscilloscope through the same connection pool used for TCP.

The Device type satisfies io.ReadWriteCloser.  Each Write is framed as one
DEV_DEP_MSG_OUT transfer, padded to the 4-byte alignment the standard
requires.  Each Read issues a REQUEST_DEV_DEP_MSG_IN transfer and strips
the 12-byte header from the reply; data beyond the caller's buffer is held
and drained by subsequent reads.

Multi-packet messaging and the chatter for data that does not fit the
remote's buffer are not implemented.
*/
package usbtmc

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/google/gousb"
)

const (
	// reserved is the byte the standard mandates for reserved offsets
	reserved = 0x00

	// header sizes and message IDs per USBTMC standard tables 1, 3, 4
	headerSize       = 12
	devDepMsgOut     = 0x01
	requestDevDepMsg = 0x02

	alignment = 4

	bufSize = 1500
)

// bTagGen is a concurrent-safe bTag sequence generator.  bTags identify
// transfers and must be nonzero and incrementing.
type bTagGen struct {
	sync.Mutex

	value byte
}

func (b *bTagGen) next() byte {
	b.Lock()
	defer b.Unlock()
	b.value++
	if b.value == 0 {
		b.value = 1
	}
	return b.value
}

// invbTag computes the bitwise inversion of a btag, per USBTMC standard
// table 1 offset 2
func invbTag(b byte) byte {
	return b ^ 0xff
}

// encBulkOutHeader creates the DEV_DEP_MSG_OUT header, USBTMC standard
// table 3.  The EOM bit is always set; every Write is a complete message.
func encBulkOutHeader(tag byte, datalen int) [headerSize]byte {
	out := [headerSize]byte{}
	out[0] = devDepMsgOut
	out[1] = tag
	out[2] = invbTag(tag)
	out[3] = reserved
	binary.LittleEndian.PutUint32(out[4:8], uint32(datalen))
	out[8] = 0x01 // EOM
	out[9] = reserved
	out[10] = reserved
	out[11] = reserved
	return out
}

// encBulkInHeader creates the REQUEST_DEV_DEP_MSG_IN header, USBTMC
// standard table 4.  if terminator is nil the termination character bit is
// left clear and the device ignores it.
func encBulkInHeader(tag byte, bufsize int, terminator *byte) [headerSize]byte {
	out := [headerSize]byte{}
	out[0] = requestDevDepMsg
	out[1] = tag
	out[2] = invbTag(tag)
	out[3] = reserved
	binary.LittleEndian.PutUint32(out[4:8], uint32(bufsize))
	if terminator != nil {
		out[8] = 0x02 // TermCharEnabled
		out[9] = *terminator
	} else {
		out[8] = 0x00
		out[9] = 0x00
	}
	out[10] = reserved
	out[11] = reserved
	return out
}

// Device is a USBTMC instrument endpoint pair exposed as an
// io.ReadWriteCloser
type Device struct {
	tagger  *bTagGen
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	device  *gousb.Device
	ctx     *gousb.Context
	closer  func()
	pending []byte
}

// Open opens the USB device with the given vendor and product ID and
// claims its default interface
func Open(vid, pid uint16) (*Device, error) {
	d := &Device{tagger: &bTagGen{}}
	var err error
	d.ctx = gousb.NewContext()
	d.device, err = d.ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		d.ctx.Close()
		return nil, err
	}
	if d.device == nil {
		d.ctx.Close()
		return nil, fmt.Errorf("usbtmc: no device with VID:PID %04x:%04x", vid, pid)
	}
	err = d.device.SetAutoDetach(true)
	if err != nil {
		d.Close()
		return nil, err
	}
	var iface *gousb.Interface
	iface, d.closer, err = d.device.DefaultInterface()
	if err != nil {
		d.Close()
		return nil, err
	}
	d.in, err = iface.InEndpoint(2)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.out, err = iface.OutEndpoint(2)
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// ConnMaker adapts Open to the connection pool's creation function
// signature
func ConnMaker(vid, pid uint16) func() (io.ReadWriteCloser, error) {
	return func() (io.ReadWriteCloser, error) {
		return Open(vid, pid)
	}
}

// Write frames b as a single device-dependent message and sends it
func (d *Device) Write(b []byte) (int, error) {
	hdr := encBulkOutHeader(d.tagger.next(), len(b))
	msg := append(hdr[:], b...)
	if residual := len(msg) % alignment; residual > 0 {
		msg = append(msg, make([]byte, alignment-residual)...)
	}
	_, err := d.out.Write(msg)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Read returns message bytes from the device, requesting a new message
// when no data from the previous one is left over
func (d *Device) Read(p []byte) (int, error) {
	if len(d.pending) == 0 {
		err := d.fill()
		if err != nil {
			return 0, err
		}
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// fill requests one device-dependent message and buffers its payload
func (d *Device) fill() error {
	term := byte('\n')
	hdr := encBulkInHeader(d.tagger.next(), bufSize, &term)
	n, err := d.out.Write(hdr[:])
	if err != nil {
		return err
	}
	if n < headerSize {
		return fmt.Errorf("usbtmc: wrote %d bytes, not the full %d required to transmit read request", n, headerSize)
	}
	buf := make([]byte, bufSize)
	n, err = d.in.Read(buf)
	if err != nil {
		return err
	}
	if n < headerSize {
		return fmt.Errorf("usbtmc: only received %d bytes, need at least %d to form header", n, headerSize)
	}
	// transferSize in the reply header bounds the real payload; the bulk
	// read can over-report due to alignment padding
	advertised := int(binary.LittleEndian.Uint32(buf[4:8]))
	payload := buf[headerSize:n]
	if advertised < len(payload) {
		payload = payload[:advertised]
	}
	d.pending = payload
	return nil
}

// Close releases the interface and the USB device
func (d *Device) Close() error {
	if d.closer != nil {
		d.closer()
	}
	var err error
	if d.device != nil {
		err = d.device.Close()
	}
	if d.ctx != nil {
		cerr := d.ctx.Close()
		if err == nil {
			err = cerr
		}
	}
	return err
}
