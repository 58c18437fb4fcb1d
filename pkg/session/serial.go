package session

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/albenik/go-serial"
	"github.com/womat/debug"
	"github.com/womat/tools"
)

// serialPort sets DTR ON and RTS off while the line is open
type serialPort struct {
	serial.Port
}

// parseMode parses the parameter of a serial line: baudrate parity databits stopbits
// e.g. "9600 n 8 1"
func parseMode(connection string) (*serial.Mode, error) {
	var p, st string
	var b, d int

	parity := map[string]serial.Parity{
		"n": serial.NoParity,
		"o": serial.OddParity,
		"e": serial.EvenParity,
		"m": serial.MarkParity,
		"s": serial.SpaceParity,
	}

	stop := map[string]serial.StopBits{
		"1":   serial.OneStopBit,
		"1.5": serial.OnePointFiveStopBits,
		"2":   serial.TwoStopBits,
	}

	if _, err := fmt.Sscanf(connection, "%d %s %d %s", &b, &p, &d, &st); err != nil {
		return nil, errors.New(InvalidParameter)
	}

	p = strings.ToLower(p)
	if _, ok := parity[p]; !ok {
		return nil, errors.New(InvalidParameter)
	}
	if _, ok := stop[st]; !ok {
		return nil, errors.New(InvalidParameter)
	}
	if b <= 0 || !tools.In(d, 5, 6, 7, 8) {
		return nil, errors.New(InvalidParameter)
	}

	return &serial.Mode{
		BaudRate: b,
		Parity:   parity[p],
		DataBits: d,
		StopBits: stop[st],
	}, nil
}

// openSerial opens a serial device and set DTR ON and RTS off
func openSerial(device, connection string) (rwc io.ReadWriteCloser, err error) {
	var mode *serial.Mode
	var port serial.Port

	if mode, err = parseMode(connection); err != nil {
		return nil, errors.New("utg962.Open: " + err.Error())
	}

	debug.TraceLog.Printf("open serial line %v %v", device, connection)
	if port, err = serial.Open(device, mode); err != nil {
		return
	}

	func() {
		if err = port.SetRTS(false); err != nil {
			return
		}
		err = port.SetDTR(true)
	}()

	if err != nil {
		_ = port.Close()
		return nil, err
	}

	return &serialPort{Port: port}, nil
}

// Close resets the buffers and modem lines and closes the serial device
func (p *serialPort) Close() error {
	_ = p.Port.SetDTR(false)
	_ = p.Port.SetRTS(false)

	_ = p.Port.ResetInputBuffer()
	_ = p.Port.ResetOutputBuffer()

	return p.Port.Close()
}
