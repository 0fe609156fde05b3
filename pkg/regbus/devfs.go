package regbus

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

// DevfsPort talks to the device through a /dev/i2c-N character device.
type DevfsPort struct {
	path string
	addr uint16
	dev  *i2c.Device
}

func OpenDevfs(path string, addr uint16) (*DevfsPort, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: path}, int(addr))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s at %s", path, addrString(addr))
	}
	return &DevfsPort{
		path: path,
		addr: addr,
		dev:  dev,
	}, nil
}

var _ Port = (*DevfsPort)(nil)

func (p *DevfsPort) ReadReg(reg byte, buf []byte) error {
	return p.dev.ReadReg(reg, buf)
}

func (p *DevfsPort) WriteReg(reg byte, buf []byte) error {
	if len(buf) == 0 {
		return p.dev.Write([]byte{reg})
	}
	return p.dev.WriteReg(reg, buf)
}

// SetAddr reopens the device file bound to the new address; the slave
// address is fixed per file descriptor.
func (p *DevfsPort) SetAddr(addr uint16) error {
	if addr == p.addr {
		return nil
	}
	dev, err := i2c.Open(&i2c.Devfs{Dev: p.path}, int(addr))
	if err != nil {
		return errors.Wrapf(err, "open %s at %s", p.path, addrString(addr))
	}
	old := p.dev
	p.dev = dev
	p.addr = addr
	return old.Close()
}

func (p *DevfsPort) Addr() uint16 {
	return p.addr
}

func (p *DevfsPort) Close() error {
	return p.dev.Close()
}
