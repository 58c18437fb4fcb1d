package utg962

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const emulatorID = "UNI-T Technologies,UTG962,EMU0001,1.0"

type arbMemory struct {
	name string
	data []int16
}

// emulator is a UTG962 reachable as raw SCPI socket
type emulator struct {
	l      net.Listener
	served chan struct{}

	mu       sync.Mutex
	commands []string
	modes    [2]string
	sources  [2]string
	outputs  [2]bool
	arbs     [2]*arbMemory
	screen   []byte
	resets   int
}

func newEmulator(t *testing.T) *emulator {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	e := &emulator{l: l, served: make(chan struct{}, 16)}
	e.reset()
	go e.serve()

	t.Cleanup(func() { _ = l.Close() })
	return e
}

func (e *emulator) resource() string {
	return fmt.Sprintf("TCPIP0::127.0.0.1::%d::SOCKET", e.l.Addr().(*net.TCPAddr).Port)
}

// wait blocks until a connection is closed and all of its commands are handled
func (e *emulator) wait(t *testing.T) {
	select {
	case <-e.served:
	case <-time.After(2 * time.Second):
		t.Fatal("emulator: connection not closed")
	}
}

func (e *emulator) reset() {
	e.modes = [2]string{"SIN", "SIN"}
	e.sources = [2]string{"INT", "INT"}
	e.outputs = [2]bool{}
}

func (e *emulator) serve() {
	for {
		conn, err := e.l.Accept()
		if err != nil {
			return
		}
		go func() {
			defer func() { e.served <- struct{}{} }()
			defer conn.Close()
			e.handle(conn)
		}()
	}
}

func (e *emulator) handle(conn net.Conn) {
	r := bufio.NewReader(conn)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}

		upload := -1
		for _, cmd := range strings.Split(strings.TrimRight(line, "\r\n"), ";") {
			if slot := e.execute(cmd, conn); slot >= 0 {
				upload = slot
			}
		}

		if upload >= 0 {
			data, err := readArbBlock(r)
			if err != nil {
				return
			}
			e.mu.Lock()
			e.arbs[upload].data = data
			e.mu.Unlock()
		}
	}
}

// execute runs one command and returns the memory slot of a :WARB command, -1 otherwise
func (e *emulator) execute(cmd string, w io.Writer) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.commands = append(e.commands, cmd)
	header, value := cmd, ""
	if i := strings.IndexByte(cmd, ' '); i > 0 {
		header, value = cmd[:i], cmd[i+1:]
	}

	switch {
	case header == "*IDN?":
		fmt.Fprintf(w, "%s\n", emulatorID)
	case header == "*RST":
		e.resets++
		e.reset()
	case header == ":DISP?":
		n := strconv.Itoa(len(e.screen))
		fmt.Fprintf(w, "#%d%s%s\n", len(n), n, e.screen)
	case strings.HasPrefix(header, ":WARB"):
		slot := int(header[5] - '1')
		e.arbs[slot] = &arbMemory{name: value}
		// the outputs switch to ARB during an upload
		e.modes = [2]string{"ARB", "ARB"}
		return slot
	case strings.HasPrefix(header, ":CHAN"):
		ch := int(header[5] - '1')
		switch header[7:] {
		case "BASE:WAV?":
			fmt.Fprintf(w, "%s\n", e.modes[ch])
		case "BASE:WAV":
			e.modes[ch] = value
		case "ARB:SOUR":
			if e.arbs[0] != nil || e.arbs[1] != nil {
				e.sources[ch] = value
			}
		case "ARB:SOUR?":
			fmt.Fprintf(w, "%s\n", e.sources[ch])
		case "OUTP":
			e.outputs[ch] = value == "ON"
		}
	}

	return -1
}

// readArbBlock reads "[HEAD]:<n>\r\n<header>[DATA]:<n>\r\n<int16 samples>"
func readArbBlock(r *bufio.Reader) ([]int16, error) {
	n, err := readIntro(r, "[HEAD]:")
	if err != nil {
		return nil, err
	}
	if _, err = io.ReadFull(r, make([]byte, n)); err != nil {
		return nil, err
	}
	if n, err = readIntro(r, "[DATA]:"); err != nil {
		return nil, err
	}

	data := make([]int16, n)
	return data, binary.Read(r, binary.LittleEndian, data)
}

func readIntro(r *bufio.Reader, prefix string) (int, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, err
	}
	if !strings.HasPrefix(line, prefix) {
		return 0, fmt.Errorf("expected %v, got %q", prefix, line)
	}
	return strconv.Atoi(strings.TrimSpace(line[len(prefix):]))
}

func (e *emulator) state() (modes [2]string, outputs [2]bool, arbs [2]*arbMemory, commands []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modes, e.outputs, e.arbs, append([]string(nil), e.commands...)
}
