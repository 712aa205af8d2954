/*Package hostlink provides the serial/TCP transport between pmud and a
host tool, framing bytes through the wire package's frame parser.

It is the same shape as the teacher's comm.RemoteDevice: embed a
Link, Open it, and Send/OnFrame replace comm's terminator-delimited
Send/Recv with the length-prefixed binary framing of wire.Parser. The
connect retry and CloseEventually discipline carries over unchanged.
*/
package hostlink

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"

	"github.com/rakyury/pmu-30-sub009/wire"
)

var (
	// ErrNotConnected is returned by Send when Conn is nil.
	ErrNotConnected = errors.New("hostlink: not connected")

	// ErrSendBufferFull is returned by Send when the outbound ring is
	// saturated; the caller's frame is dropped rather than blocking the
	// control loop.
	ErrSendBufferFull = errors.New("hostlink: send buffer full")
)

const (
	sendBufferDepth = 64
	readChunkSize   = 256
)

// Link is a reconnecting transport that frames bytes through a
// wire.Parser. All state transitions are guarded by a mutex, mirroring
// comm.RemoteDevice's concurrency contract.
type Link struct {
	sync.Mutex

	Addr     string
	IsSerial bool
	Timeout  time.Duration
	SerCfg   *serial.Config

	// OnFrame/OnError are invoked from the pump goroutine for each
	// complete frame/parse error; they must not block.
	OnFrame func(cmd wire.Command, payload []byte)
	OnError func(kind wire.ErrorKind)

	conn    io.ReadWriteCloser
	parser  *wire.Parser
	sendCh  chan []byte
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New builds a Link ready to Open, with Timeout set to 3s.
func New(addr string, isSerial bool, serCfg *serial.Config) *Link {
	l := &Link{
		Addr:     addr,
		IsSerial: isSerial,
		Timeout:  3 * time.Second,
		SerCfg:   serCfg,
		sendCh:   make(chan []byte, sendBufferDepth),
	}
	l.parser = wire.NewParser()
	l.parser.OnFrame = func(cmd wire.Command, pl []byte) {
		if l.OnFrame != nil {
			l.OnFrame(cmd, pl)
		}
	}
	l.parser.OnError = func(kind wire.ErrorKind) {
		if l.OnError != nil {
			l.OnError(kind)
		}
	}
	return l
}

// Open establishes the underlying connection, retrying with an
// exponential backoff the same way comm.RemoteDevice.Open does, then
// starts the pump and writer goroutines.
func (l *Link) Open() error {
	l.Lock()
	defer l.Unlock()
	if l.conn != nil {
		return nil
	}

	op := func() error {
		conn, err := l.dial()
		if err != nil {
			return err
		}
		l.conn = conn
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock,
	})
	if err != nil {
		return err
	}

	l.closeCh = make(chan struct{})
	l.wg.Add(2)
	go l.pump()
	go l.writer()
	return nil
}

func (l *Link) dial() (io.ReadWriteCloser, error) {
	if l.IsSerial {
		if l.SerCfg == nil {
			return nil, errors.New("hostlink: serial connection requires SerCfg")
		}
		return serial.OpenPort(l.SerCfg)
	}
	conn, err := net.DialTimeout("tcp", l.Addr, l.Timeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Close tears down the pump/writer goroutines and the connection.
func (l *Link) Close() error {
	l.Lock()
	conn := l.conn
	l.conn = nil
	closeCh := l.closeCh
	l.closeCh = nil
	l.Unlock()

	if closeCh != nil {
		close(closeCh)
	}
	l.wg.Wait()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "closed") {
		return nil
	}
	return err
}

// Send enqueues a pre-built frame (see wire.Build) for transmission.
// It never blocks: if the outbound ring is full, the frame is dropped
// and ErrSendBufferFull is returned so callers can count drops rather
// than stall the control loop on a stuck link.
func (l *Link) Send(frame []byte) error {
	l.Lock()
	connected := l.conn != nil
	l.Unlock()
	if !connected {
		return ErrNotConnected
	}
	select {
	case l.sendCh <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// pump reads from the connection and feeds bytes to the frame parser
// until Close is called or the connection errors; on a non-timeout
// read error it clears the connection and returns without
// reconnecting, so Send reports ErrNotConnected until Open is called.
func (l *Link) pump() {
	defer l.wg.Done()
	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-l.closeCh:
			return
		default:
		}

		l.Lock()
		conn := l.conn
		l.Unlock()
		if conn == nil {
			return
		}
		if c, ok := conn.(net.Conn); ok {
			c.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		}
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			l.parser.Feed(buf[i])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			l.Lock()
			l.conn = nil
			l.Unlock()
			return
		}
	}
}

// writer drains the outbound ring into the connection.
func (l *Link) writer() {
	defer l.wg.Done()
	for {
		select {
		case <-l.closeCh:
			return
		case frame := <-l.sendCh:
			l.Lock()
			conn := l.conn
			l.Unlock()
			if conn == nil {
				return
			}
			conn.Write(frame)
		}
	}
}
