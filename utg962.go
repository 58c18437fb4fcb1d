// Package utg962 controls a UNI-T UTG962 arbitrary waveform generator with SCPI.
//
// Every function opens a connection to the instrument, runs one operation
// and closes the connection again.
//
// usage of parameter resource:
// "" (first UTG962 on USB), "USB0::0x6656::0x0834::<serial>::INSTR",
// "TCPIP0::<host>::5025::SOCKET", "ASRL/dev/ttyUSB0::9600 n 8 1" or "/dev/usbtmc0"
package utg962

import (
	"github.com/womat/debug"
	"github.com/womat/utg962/pkg/session"
	"github.com/womat/utg962/pkg/waveform"
)

// Timeout is the time to wait for a response of the instrument
var Timeout = session.DefaultTimeout

// run opens a session, calls f and closes the session
func run(resource string, f func(s *session.Session) error) (err error) {
	s := session.New()
	s.Timeout = Timeout

	debug.TraceLog.Printf("open resource %q", resource)
	if err = s.Open(resource); err != nil {
		return
	}
	defer s.Close()

	return f(s)
}

// List returns the UTG962 instruments connected via USB
func List() (l []session.Instrument, err error) {
	var all []session.Instrument

	if all, err = session.List(); err != nil {
		return
	}

	for _, i := range all {
		if i.Vendor == session.VendorID && i.Product == session.ProductID {
			l = append(l, i)
		}
	}
	return
}

// Identify returns the identification string of the instrument
// e.g. Identify("USB0::0x6656::0x0834::?*::INSTR")
func Identify(resource string) (id string, err error) {
	err = run(resource, func(s *session.Session) (err error) {
		id, err = s.Identify()
		return
	})
	return
}

// Reset sets the instrument to factory defaults
func Reset(resource string) error {
	return run(resource, func(s *session.Session) error {
		debug.TraceLog.Print("start to reset")
		return s.Reset()
	})
}

// SetSine sets a channel to a sine wave and enables the output
func SetSine(resource string, channel int, frequency, low, high float64) error {
	return run(resource, func(s *session.Session) error {
		return s.SetSine(channel, frequency, low, high)
	})
}

// SetSquare sets a channel to a square wave with a duty cycle in percent and enables the output
func SetSquare(resource string, channel int, frequency, low, high, dutyCycle float64) error {
	return run(resource, func(s *session.Session) error {
		return s.SetSquare(channel, frequency, low, high, dutyCycle)
	})
}

// SetRamp sets a channel to a ramp with a symmetry in percent and enables the output
func SetRamp(resource string, channel int, frequency, low, high, symmetry float64) error {
	return run(resource, func(s *session.Session) error {
		return s.SetRamp(channel, frequency, low, high, symmetry)
	})
}

// SetArb sets a channel to the arbitrary waveform at arbIndex and enables the output
func SetArb(resource string, channel, arbIndex int, frequency, low, high float64) error {
	return run(resource, func(s *session.Session) error {
		return s.SetArb(channel, arbIndex, frequency, low, high)
	})
}

// SetOutput enables or disables the output of a channel
func SetOutput(resource string, channel int, on bool) error {
	return run(resource, func(s *session.Session) error {
		return s.SetOutput(channel, on)
	})
}

// LoadArb loads samples in the range -1.0...+1.0 into the ARB memory at arbIndex.
// Note: the outputs might switch briefly to ARB mode during upload.
func LoadArb(resource string, arbIndex int, name string, samples waveform.Samples) error {
	// fail before the instrument is locked
	if err := samples.Validate(); err != nil {
		return err
	}

	return run(resource, func(s *session.Session) error {
		debug.TraceLog.Print("start to load waveform")
		return s.LoadArb(arbIndex, name, samples)
	})
}

// LoadArbFromFile loads an arbitrary waveform from a text or csv file.
// Text files contain one data point per line, lines beginning with # are ignored.
// Csv files are detected by extension, the first column holds the data points.
func LoadArbFromFile(resource string, arbIndex int, name, filename string) error {
	samples, err := waveform.Load(filename)
	if err != nil {
		return err
	}

	return LoadArb(resource, arbIndex, name, samples)
}

// SaveDisplay saves the display of the instrument to an image file (png, bmp, tiff, jpeg or gif)
func SaveDisplay(resource, filename string) error {
	return run(resource, func(s *session.Session) error {
		debug.TraceLog.Print("start to read display")
		return s.SaveDisplay(filename)
	})
}
