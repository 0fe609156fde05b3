package hardware

import (
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/log"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/regbus"
)

// Dummy wraps a port and logs every register write, for dry runs without
// the chip attached.
type Dummy struct {
	regbus.Port
}

func NewDummy(port regbus.Port) *Dummy {
	return &Dummy{Port: port}
}

func (d *Dummy) WriteReg(reg byte, buf []byte) error {
	log.Debug("DHW: WriteReg", "addr", d.Port.Addr(), "reg", reg, "data", buf)
	return d.Port.WriteReg(reg, buf)
}

func (d *Dummy) SetAddr(addr uint16) error {
	log.Debug("DHW: SetAddr", "addr", addr)
	return d.Port.SetAddr(addr)
}

func (d *Dummy) Close() error {
	log.Info("DHW: Close")
	return d.Port.Close()
}

var _ regbus.Port = (*Dummy)(nil)
