package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/goburrow/serial"
)

// Transport opens a byte stream to the upstream gateway device.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

// TransportError reports a failed connection or stream operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

type SerialParams struct {
	Address  string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
	Timeout  time.Duration
}

func EnsureSerialDefaults(sp *SerialParams) {
	if sp.BaudRate == 0 {
		sp.BaudRate = 115200
	}
	if sp.DataBits == 0 {
		sp.DataBits = 8
	}
	if sp.StopBits == 0 {
		sp.StopBits = 1
	}
	if sp.Parity == "" {
		sp.Parity = "N"
	}
	if sp.Timeout <= 0 {
		sp.Timeout = time.Second
	}
}

// SerialTransport talks to a gateway attached to a serial port.
type SerialTransport struct {
	Params SerialParams
}

func (t SerialTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sp := t.Params
	EnsureSerialDefaults(&sp)
	port, err := serial.Open(&serial.Config{
		Address:  sp.Address,
		BaudRate: sp.BaudRate,
		DataBits: sp.DataBits,
		StopBits: sp.StopBits,
		Parity:   sp.Parity,
		Timeout:  sp.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return serialPort{port}, nil
}

func (t SerialTransport) String() string { return "serial://" + t.Params.Address }

// serialPort turns read timeouts into empty reads so an idle line is not a disconnect.
type serialPort struct {
	serial.Port
}

func (p serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if errors.Is(err, serial.ErrTimeout) {
		return n, nil
	}
	return n, err
}

// TCPTransport talks to an ethernet gateway.
type TCPTransport struct {
	Address     string
	DialTimeout time.Duration
}

func (t TCPTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	d := net.Dialer{Timeout: t.DialTimeout, KeepAlive: 30 * time.Second}
	return d.DialContext(ctx, "tcp", t.Address)
}

func (t TCPTransport) String() string { return "tcp://" + t.Address }
