package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/womat/debug"
)

const (
	// VendorID is the USB vendor id of the UTG962 (UNI-T)
	VendorID = 0x6656
	// ProductID is the USB product id of the UTG962
	ProductID = 0x0834

	defaultSocketPort = 5025
	defaultSerialMode = "9600 n 8 1"
	dialTimeout       = 5 * time.Second
	anything          = "?*"
)

// Kind is the interface type of a resource
type Kind string

const (
	USB   Kind = "USB"
	TCPIP Kind = "TCPIP"
	ASRL  Kind = "ASRL"
	File  Kind = "FILE"
)

// sysfs locations of usbtmc character devices, replaced in tests
var (
	usbmiscClass = "/sys/class/usbmisc"
	devDir       = "/dev"
)

// Resource addresses an instrument
type Resource struct {
	Kind Kind
	// USB: zero ids and an empty serial match any device
	Vendor  uint16
	Product uint16
	Serial  string
	// TCPIP
	Host string
	Port int
	// ASRL and FILE
	Device string
	// ASRL: "baudrate parity databits stopbits", e.g. "9600 n 8 1"
	Mode string
}

// Instrument is a usbtmc device found in sysfs
type Instrument struct {
	Device  string
	Vendor  uint16
	Product uint16
	Serial  string
}

// ParseResource parses a VISA like resource string:
//
//	""                                     first UTG962 on USB
//	USB0::0x6656::0x0834[::serial]::INSTR  usbtmc device, ids in hex or decimal, ?* matches any
//	TCPIP0::host[::port]::SOCKET           raw SCPI socket, port defaults to 5025
//	ASRL/dev/ttyUSB0::INSTR                serial line with 9600 n 8 1
//	ASRL/dev/ttyUSB0::115200 n 8 1         serial line with explicit mode
//	/dev/usbtmc0                           usbtmc character device
func ParseResource(s string) (r Resource, err error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return Resource{Kind: USB, Vendor: VendorID, Product: ProductID}, nil
	}
	if strings.HasPrefix(s, "/") {
		return Resource{Kind: File, Device: s}, nil
	}

	parts := strings.Split(s, "::")
	head := strings.ToUpper(parts[0])

	switch {
	case strings.HasPrefix(head, string(USB)) && isBoard(head[len(USB):]):
		r, err = parseUSB(parts)
	case strings.HasPrefix(head, string(TCPIP)) && isBoard(head[len(TCPIP):]):
		r, err = parseTCPIP(parts)
	case strings.HasPrefix(head, string(ASRL)):
		r, err = parseASRL(parts)
	default:
		err = errors.New(InvalidResource)
	}

	if err != nil {
		return Resource{}, fmt.Errorf("utg962.ParseResource: %v %q", err, s)
	}
	return r, nil
}

func isBoard(s string) bool {
	return strings.Trim(s, "0123456789") == ""
}

func isSuffix(s, suffix string) bool {
	return strings.EqualFold(strings.TrimSpace(s), suffix)
}

func parseUSB(parts []string) (r Resource, err error) {
	r.Kind = USB

	switch {
	case len(parts) == 4 && isSuffix(parts[3], "INSTR"):
	case len(parts) == 5 && isSuffix(parts[4], "INSTR"):
		if parts[3] != anything {
			r.Serial = parts[3]
		}
	default:
		return r, errors.New(InvalidResource)
	}

	if r.Vendor, err = parseID(parts[1]); err != nil {
		return
	}
	r.Product, err = parseID(parts[2])
	return
}

func parseID(s string) (uint16, error) {
	if s == anything {
		return 0, nil
	}

	id, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, errors.New(InvalidResource)
	}
	return uint16(id), nil
}

func parseTCPIP(parts []string) (r Resource, err error) {
	r.Kind = TCPIP
	r.Port = defaultSocketPort

	switch {
	case len(parts) == 3 && isSuffix(parts[2], "SOCKET"):
	case len(parts) == 4 && isSuffix(parts[3], "SOCKET"):
		if r.Port, err = strconv.Atoi(parts[2]); err != nil || r.Port < 1 || r.Port > 65535 {
			return r, errors.New(InvalidResource)
		}
	default:
		return r, errors.New(InvalidResource)
	}

	if r.Host = parts[1]; r.Host == "" {
		return r, errors.New(InvalidResource)
	}
	return
}

func parseASRL(parts []string) (r Resource, err error) {
	r.Kind = ASRL
	r.Mode = defaultSerialMode

	if len(parts) != 2 {
		return r, errors.New(InvalidResource)
	}
	if r.Device = parts[0][len(ASRL):]; r.Device == "" {
		return r, errors.New(InvalidResource)
	}
	if !isSuffix(parts[1], "INSTR") {
		r.Mode = strings.TrimSpace(parts[1])
	}

	_, err = parseMode(r.Mode)
	return
}

// String returns the canonical resource string
func (r Resource) String() string {
	switch r.Kind {
	case USB:
		serial := r.Serial
		if serial == "" {
			serial = anything
		}
		return fmt.Sprintf("USB0::%v::%v::%v::INSTR", formatID(r.Vendor), formatID(r.Product), serial)
	case TCPIP:
		return fmt.Sprintf("TCPIP0::%v::%v::SOCKET", r.Host, r.Port)
	case ASRL:
		return fmt.Sprintf("ASRL%v::%v", r.Device, r.Mode)
	}
	return r.Device
}

func formatID(id uint16) string {
	if id == 0 {
		return anything
	}
	return fmt.Sprintf("0x%04X", id)
}

// match reports whether a discovered instrument is addressed by the resource
func (r Resource) match(i Instrument) bool {
	return (r.Vendor == 0 || r.Vendor == i.Vendor) &&
		(r.Product == 0 || r.Product == i.Product) &&
		(r.Serial == "" || r.Serial == i.Serial)
}

// open connects the transport of the resource
func (r Resource) open() (io.ReadWriteCloser, error) {
	switch r.Kind {
	case USB:
		device, err := r.find()
		if err != nil {
			return nil, err
		}
		return os.OpenFile(device, os.O_RDWR, 0)
	case File:
		return os.OpenFile(r.Device, os.O_RDWR, 0)
	case TCPIP:
		return net.DialTimeout("tcp", net.JoinHostPort(r.Host, strconv.Itoa(r.Port)), dialTimeout)
	case ASRL:
		return openSerial(r.Device, r.Mode)
	}

	return nil, errors.New("utg962.Open: " + InvalidResource)
}

// find returns the device path of the first matching usbtmc instrument
func (r Resource) find() (string, error) {
	list, err := List()
	if err != nil {
		return "", err
	}

	for _, i := range list {
		if r.match(i) {
			debug.DebugLog.Printf("found %v at %v", i.Resource(), i.Device)
			return i.Device, nil
		}
	}

	return "", errors.New("utg962.Open: " + NoDeviceFound)
}

// Resource returns the resource string of the instrument
func (i Instrument) Resource() string {
	return Resource{Kind: USB, Vendor: i.Vendor, Product: i.Product, Serial: i.Serial}.String()
}

// List returns all usbtmc instruments known to the kernel
func List() (list []Instrument, err error) {
	var paths []string

	if paths, err = filepath.Glob(filepath.Join(usbmiscClass, "usbtmc*")); err != nil {
		return
	}

	for _, p := range paths {
		// device links to the usb interface, the ids are attributes of its parent
		intf, err := filepath.EvalSymlinks(filepath.Join(p, "device"))
		if err != nil {
			debug.WarningLog.Printf("skip %v: %v", p, err)
			continue
		}
		usb := filepath.Dir(intf)

		i := Instrument{Device: filepath.Join(devDir, filepath.Base(p))}
		if i.Vendor, err = readID(filepath.Join(usb, "idVendor")); err != nil {
			debug.WarningLog.Printf("skip %v: %v", p, err)
			continue
		}
		if i.Product, err = readID(filepath.Join(usb, "idProduct")); err != nil {
			debug.WarningLog.Printf("skip %v: %v", p, err)
			continue
		}
		if b, err := os.ReadFile(filepath.Join(usb, "serial")); err == nil {
			i.Serial = strings.TrimSpace(string(b))
		}

		debug.TraceLog.Printf("usbtmc device %v: %v", i.Device, i.Resource())
		list = append(list, i)
	}

	return list, nil
}

// readID reads a hex id attribute, e.g. "6656"
func readID(file string) (uint16, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}

	id, err := strconv.ParseUint(strings.TrimSpace(string(b)), 16, 16)
	return uint16(id), err
}
