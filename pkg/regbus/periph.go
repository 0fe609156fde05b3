package regbus

import (
	"github.com/pkg/errors"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

// PeriphPort talks to the device through a periph.io I2C bus.
type PeriphPort struct {
	bus i2c.BusCloser
	dev i2c.Dev
}

// OpenPeriph opens the named periph bus ("" selects the first one found).
func OpenPeriph(busName string, addr uint16) (*PeriphPort, error) {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errors.Wrapf(err, "open i2c bus %q", busName)
	}
	return &PeriphPort{
		bus: bus,
		dev: i2c.Dev{Bus: bus, Addr: addr},
	}, nil
}

var _ Port = (*PeriphPort)(nil)

func (p *PeriphPort) ReadReg(reg byte, buf []byte) error {
	return p.dev.Tx([]byte{reg}, buf)
}

func (p *PeriphPort) WriteReg(reg byte, buf []byte) error {
	return p.dev.Tx(frame(reg, buf), nil)
}

func (p *PeriphPort) SetAddr(addr uint16) error {
	p.dev.Addr = addr
	return nil
}

func (p *PeriphPort) Addr() uint16 {
	return p.dev.Addr
}

func (p *PeriphPort) Close() error {
	return p.bus.Close()
}
