package session

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResource(t *testing.T) {
	tests := []struct {
		in   string
		want Resource
	}{
		{"", Resource{Kind: USB, Vendor: VendorID, Product: ProductID}},
		{"USB0::0x6656::0x0834::?*::INSTR", Resource{Kind: USB, Vendor: VendorID, Product: ProductID}},
		{"usb::26198::2100::INSTR", Resource{Kind: USB, Vendor: VendorID, Product: ProductID}},
		{"USB1::0x6656::0x0834::UTG9620001::INSTR", Resource{Kind: USB, Vendor: VendorID, Product: ProductID, Serial: "UTG9620001"}},
		{"USB0::?*::?*::INSTR", Resource{Kind: USB}},
		{"TCPIP0::192.168.1.10::SOCKET", Resource{Kind: TCPIP, Host: "192.168.1.10", Port: 5025}},
		{"TCPIP::gen.local::5555::SOCKET", Resource{Kind: TCPIP, Host: "gen.local", Port: 5555}},
		{"ASRL/dev/ttyUSB0::INSTR", Resource{Kind: ASRL, Device: "/dev/ttyUSB0", Mode: "9600 n 8 1"}},
		{"ASRLCOM3::115200 e 7 2", Resource{Kind: ASRL, Device: "COM3", Mode: "115200 e 7 2"}},
		{"/dev/usbtmc1", Resource{Kind: File, Device: "/dev/usbtmc1"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseResource(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r)
		})
	}
}

func TestParseResourceInvalid(t *testing.T) {
	for _, in := range []string{
		"GPIB0::1::INSTR",
		"USB0::0x6656::0x0834",
		"USB0::0x6656::0x0834::SER::RAW",
		"USB0::0x1FFFF::0x0834::INSTR",
		"USB0::0834::0x0834::INSTR",
		"USBX::0x6656::0x0834::INSTR",
		"TCPIP0::host::INSTR",
		"TCPIP0::::SOCKET",
		"TCPIP0::host::70000::SOCKET",
		"ASRL::INSTR",
		"ASRL/dev/ttyS0::9600 x 8 1",
		"ASRL/dev/ttyS0::9600 n 9 1",
		"ASRL/dev/ttyS0::9600 n 4 1",
		"ASRL/dev/ttyS0::fast",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseResource(in)
			assert.Error(t, err)
		})
	}
}

func TestResourceString(t *testing.T) {
	for _, in := range []string{
		"USB0::0x6656::0x0834::?*::INSTR",
		"USB0::0x6656::0x0834::UTG9620001::INSTR",
		"TCPIP0::10.0.0.2::5025::SOCKET",
		"ASRL/dev/ttyUSB0::9600 n 8 1",
		"/dev/usbtmc0",
	} {
		r, err := ParseResource(in)
		require.NoError(t, err)
		assert.Equal(t, in, r.String())
	}
}

// fakeSysfs builds a usbmisc class directory with usbtmc devices linked to
// their usb interfaces
func fakeSysfs(t *testing.T, devices map[string][3]string) {
	root := t.TempDir()
	class := filepath.Join(root, "class", "usbmisc")
	require.NoError(t, os.MkdirAll(class, 0o755))

	for name, attr := range devices {
		usb := filepath.Join(root, "devices", name)
		intf := filepath.Join(usb, name+":1.0")
		require.NoError(t, os.MkdirAll(intf, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(usb, "idVendor"), []byte(attr[0]+"\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(usb, "idProduct"), []byte(attr[1]+"\n"), 0o644))
		if attr[2] != "" {
			require.NoError(t, os.WriteFile(filepath.Join(usb, "serial"), []byte(attr[2]+"\n"), 0o644))
		}

		dir := filepath.Join(class, "usbtmc"+name[len(name)-1:])
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.Symlink(intf, filepath.Join(dir, "device")))
	}

	oldClass, oldDev := usbmiscClass, devDir
	usbmiscClass, devDir = class, "/dev"
	t.Cleanup(func() { usbmiscClass, devDir = oldClass, oldDev })
}

func TestList(t *testing.T) {
	fakeSysfs(t, map[string][3]string{
		"1-0": {"1ab1", "0588", "DS1ZA0001"},
		"1-1": {"6656", "0834", "UTG9620001"},
		"1-2": {"6656", "0834", ""},
	})

	list, err := List()

	require.NoError(t, err)
	assert.Equal(t, []Instrument{
		{Device: "/dev/usbtmc0", Vendor: 0x1ab1, Product: 0x0588, Serial: "DS1ZA0001"},
		{Device: "/dev/usbtmc1", Vendor: VendorID, Product: ProductID, Serial: "UTG9620001"},
		{Device: "/dev/usbtmc2", Vendor: VendorID, Product: ProductID},
	}, list)
	assert.Equal(t, "USB0::0x6656::0x0834::UTG9620001::INSTR", list[1].Resource())
}

func TestFind(t *testing.T) {
	fakeSysfs(t, map[string][3]string{
		"1-0": {"1ab1", "0588", "DS1ZA0001"},
		"1-1": {"6656", "0834", "UTG9620001"},
		"1-2": {"6656", "0834", "UTG9620002"},
	})

	tests := []struct {
		resource string
		device   string
	}{
		{"", "/dev/usbtmc1"},
		{"USB0::0x6656::0x0834::UTG9620002::INSTR", "/dev/usbtmc2"},
		{"USB0::0x1AB1::?*::INSTR", "/dev/usbtmc0"},
	}

	for _, tt := range tests {
		r, err := ParseResource(tt.resource)
		require.NoError(t, err)

		device, err := r.find()
		require.NoError(t, err)
		assert.Equal(t, tt.device, device)
	}

	r, err := ParseResource("USB0::0x6656::0x0834::UNKNOWN::INSTR")
	require.NoError(t, err)
	_, err = r.find()
	assert.EqualError(t, err, "utg962.Open: "+NoDeviceFound)
}

func TestListEmpty(t *testing.T) {
	fakeSysfs(t, nil)

	list, err := List()

	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestParseMode(t *testing.T) {
	for _, bits := range []int{5, 6, 7, 8} {
		m, err := parseMode(fmt.Sprintf("19200 o %d 2", bits))
		require.NoError(t, err)
		assert.Equal(t, bits, m.DataBits)
		assert.Equal(t, 19200, m.BaudRate)
	}
}
