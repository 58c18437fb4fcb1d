package session

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/womat/debug"
	"github.com/womat/utg962/pkg/waveform"
)

// arbUpload restores the channel modes after a waveform was written to memory.
// The outputs might switch to ARB while the :WARB block is transferred.
type arbUpload struct {
	*Session
	index int
	name  string
	modes [2]string
}

// LoadArb loads an arbitrary waveform in the instrument memory at index 0 or 1.
// The name is shown in the display of the instrument.
func (s *Session) LoadArb(arbIndex int, name string, samples waveform.Samples) (err error) {
	var up *arbUpload
	var block []byte

	if err = validateArbIndex("LoadArb", arbIndex); err != nil {
		return
	}
	if !validArbName(name) {
		return errors.New("utg962.LoadArb: " + InvalidArbName)
	}
	if block, err = samples.Encode(); err != nil {
		return
	}

	debug.TraceLog.Print("start to save channel modes")
	if up, err = s.openUpload(arbIndex, name); err != nil {
		return
	}

	debug.TraceLog.Printf("start to write %v points to ARB%v", len(samples), arbIndex+1)
	if err = up.write(block); err != nil {
		return
	}

	debug.TraceLog.Print("start to restore channel modes")
	return up.closeUpload()
}

func validArbName(name string) bool {
	return name != "" && !strings.ContainsRune(name, ';') && strings.IndexFunc(name, unicode.IsSpace) < 0
}

// openUpload saves the mode of both channels
func (s *Session) openUpload(arbIndex int, name string) (up *arbUpload, err error) {
	up = &arbUpload{Session: s, index: arbIndex, name: name}

	for i := range up.modes {
		if up.modes[i], err = s.query(channelCmd(i+1, "BASE:WAV?", "")); err != nil {
			return nil, err
		}
	}

	debug.DebugLog.Printf("channel modes before upload: %v", up.modes)
	return up, nil
}

// write selects the memory slot and transfers the waveform block
func (up *arbUpload) write(block []byte) error {
	if err := up.Session.write(fmt.Sprintf(":WARB%d:CARRIER %s", up.index+1, up.name)); err != nil {
		return err
	}
	return up.writeRaw(block)
}

// closeUpload restores the mode of both channels. Doing this in one write is unreliable.
func (up *arbUpload) closeUpload() error {
	for i, mode := range up.modes {
		if err := up.Session.write(channelCmd(i+1, "BASE:WAV", mode)); err != nil {
			return err
		}
	}

	return up.Session.write(cmdUnlock)
}
