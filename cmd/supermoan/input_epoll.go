//go:build linux

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// readInputEventsEpoll reads from one input device using epoll.
//
// A plain blocking read() on an evdev node cannot be interrupted by closing
// the file from another goroutine, so shutdown would hang until the user
// moved the mouse one last time. Instead the device fd and an eventfd are
// registered in one epoll set; canceling ctx writes the eventfd, epoll_wait
// returns, and the reader exits cleanly with a nil-free return.
//
// Errors and end-of-stream are reported on readErr exactly once.
func readInputEventsEpoll(ctx context.Context, f *os.File, events chan<- inputEvent, readErr chan<- error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		readErr <- fmt.Errorf("epoll_create1: %w", err)
		return
	}
	defer unix.Close(epfd)

	devFd := int(f.Fd())
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, devFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(devFd),
	}); err != nil {
		readErr <- fmt.Errorf("epoll_ctl_add device: %w", err)
		return
	}

	// Shutdown wake-up: ctx cancellation writes this eventfd.
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		readErr <- fmt.Errorf("eventfd: %w", err)
		return
	}
	defer unix.Close(wakeFd)

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFd),
	}); err != nil {
		readErr <- fmt.Errorf("epoll_ctl_add wake: %w", err)
		return
	}

	wakeDone := make(chan struct{})
	defer close(wakeDone)
	go func() {
		select {
		case <-ctx.Done():
			var one [8]byte
			binary.NativeEndian.PutUint64(one[:], 1)
			_, _ = unix.Write(wakeFd, one[:])
		case <-wakeDone:
		}
	}()

	// Reusable buffers
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize)
	reader := bytes.NewReader(buf)
	epollEvents := make([]unix.EpollEvent, 4)

	for {
		n, err := unix.EpollWait(epfd, epollEvents, -1)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			readErr <- fmt.Errorf("epoll_wait: %w", err)
			return
		}

		for i := 0; i < n; i++ {
			if int(epollEvents[i].Fd) == wakeFd {
				// Shutdown requested; not a device error.
				return
			}

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				readErr <- fmt.Errorf("device error/hangup: %s", f.Name())
				return
			}

			if _, err := f.Read(buf); err != nil {
				readErr <- fmt.Errorf("read from %s: %w", f.Name(), err)
				return
			}

			reader.Reset(buf)
			var ev inputEvent
			if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
				// Skip malformed events
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
