package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenPort opens a real serial port at path with opts.
func OpenPort(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return port, nil
}

// NewRealSerialMux creates a SerialMux backed by the serial port at path.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	return NewSerialMuxFromOpener(OpenPort, path, opts)
}

// NewSerialMuxFromOpener opens a port with open and wraps it in a SerialMux.
func NewSerialMuxFromOpener(open SerialPortOpener, path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	port, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewSerialMux(port), nil
}
