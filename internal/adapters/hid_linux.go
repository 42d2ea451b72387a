//go:build linux

package adapters

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// HID ioctl numbers from linux/hiddev.h / hidraw.h, 32-bit size variant.
const (
	hidiocgrdescsize = 0x80044801
	hidiocgrdesc     = 0x90044802
)

const hidReportSize = 64

// openHIDDevice is overridden in tests.
var openHIDDevice = func(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// HidEndpoint reads fixed 64-byte HID report frames from a Linux /dev/hidrawN
// device. Init issues a single HIDIOCGRDESCSIZE ioctl purely to confirm the
// node answers HID ioctls before the adapter is marked ready.
type HidEndpoint struct {
	base
	fd int
}

func NewHidEndpoint(cat *catalogue.Catalogue, clock telemetry.Clock) *HidEndpoint {
	return &HidEndpoint{base: newBase(cat, clock), fd: -1}
}

func (h *HidEndpoint) Kind() Kind { return KindHID }

func (h *HidEndpoint) Init(endpoint string, _ int) error {
	fd, err := openHIDDevice(endpoint)
	if err != nil {
		return fmt.Errorf("hid: open %s: %w", endpoint, err)
	}
	var size int32
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(hidiocgrdescsize), uintptr(unsafe.Pointer(&size))); errno != 0 {
		_ = unix.Close(fd)
		return fmt.Errorf("hid: HIDIOCGRDESCSIZE: %w", errno)
	}
	h.fd = fd
	h.initDone = true
	return nil
}

func (h *HidEndpoint) ReadRaw() ([]byte, error) {
	if h.fd < 0 {
		return nil, errors.New("adapter: not initialised")
	}
	var buf [hidReportSize]byte
	fds := []unix.PollFd{{Fd: int32(h.fd), Events: unix.POLLIN}}
	ready, err := unix.Poll(fds, int(readTimeout(KindHID).Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, err
	}
	if ready == 0 {
		return nil, nil
	}
	n, err := unix.Read(h.fd, buf[:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	h.fr.Push(buf[:n])
	return buf[:n], nil
}

func (h *HidEndpoint) Write(p []byte) error {
	if h.fd < 0 {
		return errors.New("adapter: not initialised")
	}
	_, err := unix.Write(h.fd, p)
	return err
}

func (h *HidEndpoint) Close() error {
	if h.fd < 0 {
		return nil
	}
	return unix.Close(h.fd)
}
