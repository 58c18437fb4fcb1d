package session

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/womat/debug"
)

const (
	// appended to every command, raw blocks are sent as they are
	writeTermination = "\r\n"
	// Error Message for time out
	errTimeOut = "time out"
	// largest binary block accepted, a screenshot is about 400 KiB
	maxBlockSize = 4 << 20
)

// write sends a command to the instrument
func (s *Session) write(cmd string) error {
	debug.TraceLog.Printf("request: %v", cmd)
	return s.writeRaw([]byte(cmd + writeTermination))
}

// writeRaw sends bytes without termination
func (s *Session) writeRaw(b []byte) (err error) {
	if err = s.checkOpen("write"); err != nil {
		return
	}

	debug.TraceLog.Printf("write %v bytes", len(b))
	if _, err = s.port.Write(b); err != nil {
		debug.TraceLog.Printf("error to write instrument: %v", err)
	}
	return
}

// query sends a command and returns the trimmed response line
func (s *Session) query(cmd string) (response string, err error) {
	if err = s.write(cmd); err != nil {
		return
	}

	err = s.receive(func(r *bufio.Reader) (err error) {
		if response, err = r.ReadString('\n'); err == io.EOF && response != "" {
			err = nil
		}
		return
	})
	if err != nil {
		return "", err
	}

	response = strings.TrimSpace(response)
	debug.TraceLog.Printf("response: %v", response)
	return
}

// queryBlock sends a command and returns the binary block of the response
func (s *Session) queryBlock(cmd string) (data []byte, err error) {
	if err = s.write(cmd); err != nil {
		return
	}

	err = s.receive(func(r *bufio.Reader) (err error) {
		data, err = readBlock(r)
		return
	})
	if err != nil {
		return nil, err
	}

	debug.TraceLog.Printf("response: block of %v bytes", len(data))
	return
}

// receive runs a read with the session timeout. On time out the session is
// closed, the pending read would otherwise consume the next response.
func (s *Session) receive(read func(*bufio.Reader) error) error {
	if err := s.checkOpen("read"); err != nil {
		return err
	}

	start := time.Now()
	done := make(chan error, 1)
	r := s.reader

	go func() {
		done <- read(r)
	}()

	select {
	case err := <-done:
		if err != nil {
			debug.TraceLog.Printf("error to read instrument: %v", err)
			return err
		}
	case <-time.After(s.Timeout):
		err := errors.New(errTimeOut)
		debug.TraceLog.Printf("error to read instrument: %v", err)
		if cerr := s.Close(); cerr != nil {
			debug.WarningLog.Printf("close after time out: %v", cerr)
		}
		return err
	}

	debug.TraceLog.Printf("request runtime: %vms", time.Since(start).Milliseconds())
	return nil
}

// readBlock reads an IEEE 488.2 binary block "#<n><length><data>" and the
// terminator following it. "#0" blocks end with the terminator.
func readBlock(r *bufio.Reader) ([]byte, error) {
	if _, err := r.ReadBytes('#'); err != nil {
		return nil, err
	}

	c, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if c < '0' || c > '9' {
		return nil, errors.New("utg962.readBlock: " + InvalidBlock)
	}

	if c == '0' {
		data, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		return bytes.TrimRight(data, "\r\n"), nil
	}

	digits := make([]byte, c-'0')
	if _, err = io.ReadFull(r, digits); err != nil {
		return nil, err
	}

	length, err := strconv.Atoi(string(digits))
	if err != nil || length < 0 || length > maxBlockSize {
		return nil, errors.New("utg962.readBlock: " + InvalidBlock)
	}

	data := make([]byte, length)
	if _, err = io.ReadFull(r, data); err != nil {
		return nil, err
	}

	if _, err = r.ReadBytes('\n'); err != nil && err != io.EOF {
		return nil, err
	}

	return data, nil
}

// formatFloat formats a number without exponent, e.g. 1000, 0.5, 10000000
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
