package serialmux

import "io"

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialPortOpener opens a serial port at path. Tests substitute it to avoid
// touching real hardware.
type SerialPortOpener func(path string, opts PortOptions) (SerialPorter, error)
