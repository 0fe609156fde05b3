// Package regbus provides register-level access to a peripheral sitting on a
// shared I2C bus.
package regbus

import (
	"fmt"

	"github.com/pkg/errors"
)

// Port is a register-addressed peripheral. A Port is not safe for
// concurrent use; its owner serializes access.
type Port interface {
	// ReadReg reads len(buf) bytes starting at reg.
	ReadReg(reg byte, buf []byte) error
	// WriteReg writes buf starting at reg. An empty buf sends the single
	// byte reg, which is how general-call commands are issued.
	WriteReg(reg byte, buf []byte) error
	// SetAddr re-targets subsequent transactions at another bus address.
	SetAddr(addr uint16) error
	Addr() uint16
	Close() error
}

const (
	BackendPeriph = "periph"
	BackendDevfs  = "devfs"
	BackendDummy  = "dummy"
)

// Open opens a Port using the named backend.
func Open(backend, name string, addr uint16) (Port, error) {
	switch backend {
	case BackendPeriph:
		return OpenPeriph(name, addr)
	case BackendDevfs:
		return OpenDevfs(name, addr)
	case BackendDummy:
		return NewMemory(addr), nil
	}
	return nil, errors.Errorf("unknown bus backend %q", backend)
}

func frame(reg byte, buf []byte) []byte {
	w := make([]byte, 0, len(buf)+1)
	w = append(w, reg)
	return append(w, buf...)
}

func addrString(addr uint16) string {
	return fmt.Sprintf("0x%02x", addr)
}
