// Package waveform reads arbitrary waveform samples from files and encodes
// them into the block the UTG962 expects after a :WARB command.
package waveform

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/womat/debug"
	"gonum.org/v1/gonum/floats"
)

const (
	// MaxPoints is the maximum number of samples of one waveform
	MaxPoints = 4000
	// FullScale is the integer value of a sample of 1.0
	FullScale = 32767
)

const (
	NoDataPoints  = "at least one data point required"
	TooManyPoints = "too many data points, max 4000 allowed"
	OutOfRange    = "data points must be in the range -1.0...+1.0"
	InvalidSample = "invalid data point"
)

// header describes the sample format. MAX/MIN are used by the device to scale
// the data. RATEPOS/RATENEG must be present but are ignored.
var header = []byte("VPP:0\r\n" +
	"OFFSET:0\r\n" +
	"RATEPOS:0\r\n" +
	"RATENEG:0\r\n" +
	"MAX:32767\r\n" +
	"MIN:-32767\r\n")

// Samples are normalized waveform points in the range -1.0...+1.0
type Samples []float64

// Load reads samples from a file, CSV files are detected by extension
func Load(filename string) (Samples, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		debug.TraceLog.Printf("read csv waveform %v", filename)
		return ReadCSV(f)
	}

	debug.TraceLog.Printf("read text waveform %v", filename)
	return Read(f)
}

// Read parses one sample per line. Lines starting with # and blank lines are ignored.
func Read(r io.Reader) (s Samples, err error) {
	scanner := bufio.NewScanner(r)

	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if strings.HasPrefix(text, "#") {
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("waveform.Read: %v in line %d: %q", InvalidSample, line, text)
		}
		s = append(s, v)
	}

	return s, scanner.Err()
}

// ReadCSV parses the first column of each record
func ReadCSV(r io.Reader) (s Samples, err error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return nil, err
		}

		line, _ := reader.FieldPos(0)
		text := strings.TrimSpace(record[0])
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("waveform.ReadCSV: %v in line %d: %q", InvalidSample, line, text)
		}
		s = append(s, v)
	}
}

// Validate checks the number of samples and their range
func (s Samples) Validate() error {
	switch {
	case len(s) < 1:
		return errors.New("waveform.Validate: " + NoDataPoints)
	case len(s) > MaxPoints:
		return errors.New("waveform.Validate: " + TooManyPoints)
	case floats.Min(s) < -1.0 || floats.Max(s) > 1.0:
		return errors.New("waveform.Validate: " + OutOfRange)
	}

	return nil
}

// Scale converts the samples to the device integer range, truncating toward zero
func (s Samples) Scale() []int16 {
	scaled := make([]int16, len(s))
	for i, v := range s {
		scaled[i] = int16(FullScale * v)
	}
	return scaled
}

// Encode builds the raw waveform block: header intro, header, data intro and
// the samples as little endian int16.
func (s Samples) Encode() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "[HEAD]:%d\r\n", len(header))
	b.Write(header)
	fmt.Fprintf(&b, "[DATA]:%d\r\n", len(s))

	if err := binary.Write(&b, binary.LittleEndian, s.Scale()); err != nil {
		return nil, err
	}

	debug.DebugLog.Printf("waveform block: %v points, %v bytes", len(s), b.Len())
	return b.Bytes(), nil
}
