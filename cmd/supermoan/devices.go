//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// eviocgname builds the EVIOCGNAME ioctl request for a buffer of the given
// size: _IOC(_IOC_READ, 'E', 0x06, len).
func eviocgname(size int) uint {
	const (
		iocRead      = 2
		iocSizeShift = 16
		iocDirShift  = 30
	)
	return uint(iocRead<<iocDirShift | size<<iocSizeShift | int('E')<<8 | 0x06)
}

// deviceName queries the kernel-reported name of an evdev node.
func deviceName(f *os.File) (string, error) {
	buf := make([]byte, 256)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(eviocgname(len(buf))), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", errno
	}
	if i := strings.IndexByte(string(buf), 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

// listInputDevices prints every readable /dev/input/event* node with its
// kernel name. Nodes we cannot open (usually a permissions problem) are
// skipped silently, matching what the user can actually monitor.
func listInputDevices(w io.Writer) error {
	entries, err := os.ReadDir(devInputPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", devInputPath, err)
	}

	fmt.Fprintln(w, "Available input devices:")
	fmt.Fprintln(w, "------------------------")

	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), eventPrefix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(devInputPath, name)

		f, err := os.Open(path)
		if err != nil {
			continue
		}

		devName, err := deviceName(f)
		if err != nil {
			devName = "Unknown Device"
		}
		fmt.Fprintf(w, "Device: %-30s | Path: %s\n", devName, path)

		f.Close()
	}

	return nil
}
