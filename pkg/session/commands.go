package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/womat/debug"
)

// maximum frequency of each waveform in Hz
const (
	maxSineFrequency   = 60e6
	maxSquareFrequency = 20e6
	maxRampFrequency   = 400e3
	maxArbFrequency    = 10e6
)

const (
	cmdReset    = "*RST"
	cmdIdentify = "*IDN?"
	// leaves the front panel usable after remote access
	cmdUnlock = ":SYSTEM:LOCK OFF"
)

const (
	wavSine   = "SIN"
	wavSquare = "SQU"
	wavRamp   = "RAMP"
	wavArb    = "ARB"
	arbSource = "EXT"
)

// Reset sets the instrument to factory defaults
func (s *Session) Reset() error {
	debug.DebugLog.Print("reset instrument")
	return s.write(cmdReset + ";" + cmdUnlock)
}

// Identify returns the identification string of the instrument
func (s *Session) Identify() (string, error) {
	return s.query(cmdIdentify)
}

// SetSine sets a channel to a sine wave and enables the output
func (s *Session) SetSine(channel int, frequency, low, high float64) error {
	if err := validate("SetSine", channel, maxSineFrequency, frequency); err != nil {
		return err
	}

	return s.write(join(
		channelCmd(channel, "BASE:WAV", wavSine),
		baseCmd(channel, frequency, low, high),
		channelCmd(channel, "OUTP", "ON"),
		cmdUnlock,
	))
}

// SetSquare sets a channel to a square wave and enables the output
func (s *Session) SetSquare(channel int, frequency, low, high, dutyCycle float64) error {
	if err := validate("SetSquare", channel, maxSquareFrequency, frequency); err != nil {
		return err
	}
	if dutyCycle < 0 || dutyCycle > 100 {
		return errors.New("utg962.SetSquare: " + InvalidDutyCycle)
	}

	return s.write(join(
		channelCmd(channel, "BASE:WAV", wavSquare),
		baseCmd(channel, frequency, low, high),
		channelCmd(channel, "BASE:DUTY", formatFloat(dutyCycle)),
		channelCmd(channel, "OUTP", "ON"),
		cmdUnlock,
	))
}

// SetRamp sets a channel to a ramp (sawtooth) and enables the output
func (s *Session) SetRamp(channel int, frequency, low, high, symmetry float64) error {
	if err := validate("SetRamp", channel, maxRampFrequency, frequency); err != nil {
		return err
	}
	if symmetry < 0 || symmetry > 100 {
		return errors.New("utg962.SetRamp: " + InvalidSymmetry)
	}

	return s.write(join(
		channelCmd(channel, "BASE:WAV", wavRamp),
		baseCmd(channel, frequency, low, high),
		channelCmd(channel, "RAMP:SYMM", formatFloat(symmetry)),
		channelCmd(channel, "OUTP", "ON"),
		cmdUnlock,
	))
}

// SetArb sets a channel to a previously loaded arbitrary waveform and enables the output.
// low is the voltage of a sample of -1.0, high the voltage of +1.0.
func (s *Session) SetArb(channel, arbIndex int, frequency, low, high float64) error {
	if err := validateChannel("SetArb", channel); err != nil {
		return err
	}
	if err := validateArbIndex("SetArb", arbIndex); err != nil {
		return err
	}
	if err := validate("SetArb", channel, maxArbFrequency, frequency); err != nil {
		return err
	}

	if err := s.write(join(
		channelCmd(channel, "BASE:WAV", wavArb),
		channelCmd(channel, "ARB:SOUR", arbSource),
	)); err != nil {
		return err
	}

	// the source stays internal if no waveform was ever loaded
	source, err := s.query(channelCmd(channel, "ARB:SOUR?", ""))
	if err != nil {
		return err
	}
	if !strings.HasPrefix(source, arbSource) {
		debug.WarningLog.Printf("ARB source of channel %v is %q", channel, source)
		return errors.New("utg962.SetArb: " + NoArbLoaded)
	}

	return s.write(join(
		channelCmd(channel, "ARB:IND", fmt.Sprint(arbIndex)),
		baseCmd(channel, frequency, low, high),
		channelCmd(channel, "OUTP", "ON"),
		cmdUnlock,
	))
}

// SetOutput enables or disables the output of a channel
func (s *Session) SetOutput(channel int, on bool) error {
	if err := validateChannel("SetOutput", channel); err != nil {
		return err
	}

	state := "OFF"
	if on {
		state = "ON"
	}

	return s.write(join(channelCmd(channel, "OUTP", state), cmdUnlock))
}

// channelCmd builds ":CHAN<channel>:<header> <value>"
func channelCmd(channel int, header, value string) string {
	if value == "" {
		return fmt.Sprintf(":CHAN%d:%s", channel, header)
	}
	return fmt.Sprintf(":CHAN%d:%s %s", channel, header, value)
}

// baseCmd sets frequency and voltage levels of a channel
func baseCmd(channel int, frequency, low, high float64) string {
	return join(
		channelCmd(channel, "BASE:FREQ", formatFloat(frequency)),
		channelCmd(channel, "BASE:LOW", formatFloat(low)),
		channelCmd(channel, "BASE:HIGH", formatFloat(high)),
	)
}

func join(cmds ...string) string {
	return strings.Join(cmds, ";")
}

func validate(op string, channel int, limit, frequency float64) error {
	if err := validateChannel(op, channel); err != nil {
		return err
	}
	if frequency < 0 || frequency > limit {
		return fmt.Errorf("utg962.%v: frequency must be in range 0-%v Hz", op, formatFloat(limit))
	}
	return nil
}

func validateChannel(op string, channel int) error {
	if channel != 1 && channel != 2 {
		return errors.New("utg962." + op + ": " + InvalidChannel)
	}
	return nil
}

func validateArbIndex(op string, arbIndex int) error {
	if arbIndex != 0 && arbIndex != 1 {
		return errors.New("utg962." + op + ": " + InvalidArbIndex)
	}
	return nil
}
