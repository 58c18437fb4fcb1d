package session

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/womat/debug"
)

const (
	InvalidArbIndex   = "ARB index must be 0 or 1"
	InvalidArbName    = "ARB name must not be empty or contain blanks or semicolons"
	InvalidBlock      = "invalid binary block"
	InvalidChannel    = "channel must be 1 or 2"
	InvalidDutyCycle  = "duty cycle must be in range 0-100%"
	InvalidParameter  = "invalid parameter"
	InvalidResource   = "invalid resource"
	InvalidSymmetry   = "symmetry must be in range 0-100%"
	NoArbLoaded       = "no ARB waveform loaded"
	NoDeviceFound     = "no UTG962 devices found"
	NotOpen           = "session is not open"
	UnsupportedFormat = "unsupported image format"
)

// DefaultTimeout is the time to wait for a response of the instrument
const DefaultTimeout = 2 * time.Second

// Session is a connection to one UTG962
type Session struct {
	// Timeout limits every read from the instrument
	Timeout time.Duration

	port   io.ReadWriteCloser
	reader *bufio.Reader
	locked bool
}

// instrument prevents to open the instrument twice
var instrument sync.Mutex

// New generates a session handler with the default timeout
func New() *Session {
	return &Session{Timeout: DefaultTimeout}
}

// newSession wraps an already connected port, e.g. a test double
func newSession(port io.ReadWriteCloser) *Session {
	return &Session{
		Timeout: DefaultTimeout,
		port:    port,
		reader:  bufio.NewReader(port),
	}
}

// Open connects to the instrument addressed by a resource string, see ParseResource
// e.g. "USB0::0x6656::0x0834::?*::INSTR", "TCPIP0::192.168.1.10::5025::SOCKET"
func (s *Session) Open(resource string) (err error) {
	var r Resource
	var port io.ReadWriteCloser

	if r, err = ParseResource(resource); err != nil {
		return
	}

	// instrument will be unlocked with the Close() function
	debug.TraceLog.Print("lock the instrument")
	instrument.Lock()
	debug.TraceLog.Print("instrument is locked")

	debug.TraceLog.Printf("open %v", r)
	if port, err = r.open(); err != nil {
		// in the event of an error, the instrument must never remain blocked!
		instrument.Unlock()
		return
	}

	s.port = port
	s.reader = bufio.NewReader(s.port)
	s.locked = true
	return
}

// Close closes the connection to the instrument
func (s *Session) Close() (err error) {
	if s.port == nil {
		return
	}

	err = s.port.Close()
	s.port = nil
	s.reader = nil

	if s.locked {
		s.locked = false
		instrument.Unlock()
		debug.TraceLog.Print("instrument is unlocked")
	}

	return
}

// checkOpen returns an error if the session has no connection
func (s *Session) checkOpen(op string) error {
	if s.port == nil {
		return errors.New("utg962." + op + ": " + NotOpen)
	}
	return nil
}
