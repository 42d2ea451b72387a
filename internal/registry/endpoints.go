package registry

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// filteredHIDManufacturers lists vendor strings the UI has no interest in
// ever offering as a telemetry source: the OS's own HID peripherals.
var filteredHIDManufacturers = map[string]bool{
	"Microsoft":  true,
	"Logitech":   true,
	"Apple Inc.": true,
	"Apple":      true,
	"":           true,
}

// scanSerialPorts lists the /dev/tty.usbserial-*, /dev/ttyUSB* and
// /dev/ttyACM* USB-serial device nodes; cu nodes are never listed.
// On macOS each USB serial adapter exposes both a /dev/cu.usbserial-* and a
// /dev/tty.usbserial-* node for the same physical port; the cu form is
// suppressed so the device appears once, reported under its tty name.
func scanSerialPorts() ([]Endpoint, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Endpoint
	for _, e := range entries {
		name := e.Name()
		switch {
		case runtime.GOOS == "darwin" && strings.HasPrefix(name, "cu.usbserial-"):
			continue
		case strings.HasPrefix(name, "tty.usbserial-"), strings.HasPrefix(name, "ttyUSB"), strings.HasPrefix(name, "ttyACM"):
			path := filepath.Join("/dev", name)
			out = append(out, Endpoint{DisplayName: path, OpaqueValue: path})
		}
	}
	return out, nil
}

// scanHIDDevices lists /dev/hidraw* nodes on Linux, resolving the USB
// manufacturer/product strings via sysfs and filtering out the OS's own
// keyboard/mouse/trackpad peripherals.
func scanHIDDevices() ([]Endpoint, error) {
	if runtime.GOOS != "linux" {
		return nil, nil
	}
	entries, err := os.ReadDir("/dev")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Endpoint
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "hidraw") {
			continue
		}
		path := filepath.Join("/dev", e.Name())
		manufacturer, product := hidSysfsStrings(e.Name())
		if filteredHIDManufacturers[manufacturer] {
			continue
		}
		display := path
		if product != "" {
			display = path + " (" + product + ")"
		}
		out = append(out, Endpoint{
			DisplayName:  display,
			OpaqueValue:  path,
			Manufacturer: manufacturer,
			Product:      product,
		})
	}
	return out, nil
}

// hidSysfsStrings reads the manufacturer and product strings the kernel
// exposes for a hidraw device's backing USB device, walking up from the
// hidraw class device (through the HID device and USB interface nodes) to
// the USB device node that carries plain-text "manufacturer"/"product"
// attribute files. Best effort: any failure yields empty strings rather
// than an error, since enumeration should never fail outright over one
// unreadable device.
func hidSysfsStrings(hidrawName string) (manufacturer, product string) {
	devicePath, err := filepath.EvalSymlinks(filepath.Join("/sys/class/hidraw", hidrawName, "device"))
	if err != nil {
		return "", ""
	}
	dir := devicePath
	for i := 0; i < 4; i++ {
		dir = filepath.Dir(dir)
		if m, ok := readSysfsAttr(filepath.Join(dir, "manufacturer")); ok {
			p, _ := readSysfsAttr(filepath.Join(dir, "product"))
			return m, p
		}
	}
	return "", ""
}

func readSysfsAttr(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), true
	}
	return "", false
}
