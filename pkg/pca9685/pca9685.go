package pca9685

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/regbus"
)

var ErrRestart = errors.New("restart bit not set; channels cannot be restarted")

// BusError wraps a failed register transaction.
type BusError struct {
	Op  string
	Reg byte
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("pca9685: %s reg 0x%02x: %v", e.Op, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// Driver owns the register port of one PCA9685. Every register transaction
// is serialized on an internal lock; the lock is never held across a sleep,
// so a Driver may be shared by any number of Channels.
type Driver struct {
	lock sync.Mutex
	port regbus.Port
	addr uint16

	// Overridable for tests.
	sleep func(time.Duration)
}

func New(port regbus.Port) *Driver {
	return &Driver{
		port:  port,
		addr:  port.Addr(),
		sleep: time.Sleep,
	}
}

// SoftwareReset issues SWRST on the general-call address then waits for the
// chip to come back.
func (d *Driver) SoftwareReset() error {
	d.lock.Lock()
	err := d.softwareResetLocked()
	d.lock.Unlock()
	if err != nil {
		return err
	}
	d.sleep(ResetSettleTime)
	return nil
}

func (d *Driver) softwareResetLocked() (err error) {
	if err = d.port.SetAddr(GeneralCallAddr); err != nil {
		return &BusError{Op: "select general call", Err: err}
	}
	defer func() {
		// Always hand the bus back to our own address.
		if rErr := d.port.SetAddr(d.addr); rErr != nil && err == nil {
			err = &BusError{Op: "restore address", Err: rErr}
		}
	}()
	if err = d.port.WriteReg(SoftwareResetByte, nil); err != nil {
		return &BusError{Op: "software reset", Reg: SoftwareResetByte, Err: err}
	}
	return nil
}

// Build opts out of ALL-CALL addressing and programs the prescaler. The
// prescaler only accepts writes while the oscillator is off, so the caller
// puts the chip to Sleep first and Wakes it afterwards.
func (d *Driver) Build(oscClock uint32, updateRate uint16) error {
	if err := d.clearBits(RegMode1, Mode1AllCall); err != nil {
		return err
	}
	prescale, err := ComputePrescale(oscClock, updateRate)
	if err != nil {
		return err
	}
	return d.writeReg(RegPreScale, prescale)
}

func (d *Driver) Sleep() error {
	return d.setBits(RegMode1, Mode1Sleep)
}

// Wake starts the oscillator and waits for it to stabilise; outputs are not
// usable before that.
func (d *Driver) Wake() error {
	if err := d.clearBits(RegMode1, Mode1Sleep); err != nil {
		return err
	}
	d.sleep(OscillatorSettleTime)
	return nil
}

// Restart resumes the PWM channels after a sleep, following the restart
// sequence in section 7.3.1.1 of the datasheet.
func (d *Driver) Restart() error {
	mode1, err := d.ReadMode1()
	if err != nil {
		return err
	}
	if mode1&Mode1Restart == 0 {
		// The bit may take a moment to be set after sleep.
		d.sleep(OscillatorSettleTime)
		if mode1, err = d.ReadMode1(); err != nil {
			return err
		}
	}
	if mode1&Mode1Restart == 0 {
		return ErrRestart
	}

	if err := d.clearBits(RegMode1, Mode1Sleep); err != nil {
		return err
	}
	d.sleep(OscillatorSettleTime)

	// Writing a 1 clears RESTART and resumes all channels.
	return d.setBits(RegMode1, Mode1Restart)
}

func (d *Driver) ReadMode1() (byte, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.readRegLocked(RegMode1)
}

// WriteChannel writes the on and off counter values of one channel in a
// single auto-incremented transaction.
func (d *Driver) WriteChannel(channel uint8, on, off uint16) error {
	if channel >= NumChannels {
		return errors.Wrapf(ErrOutOfRange, "channel %d", channel)
	}
	if on > PWMMax || off > PWMMax {
		return errors.Wrapf(ErrOutOfRange, "on=%d off=%d exceeds %d", on, off, PWMMax)
	}

	addr := LEDAddr(channel)
	buf := []byte{byte(on & 0xff), byte(on >> 8), byte(off & 0xff), byte(off >> 8)}

	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.port.WriteReg(addr, buf); err != nil {
		return &BusError{Op: fmt.Sprintf("write channel %d", channel), Reg: addr, Err: err}
	}
	return nil
}

// WriteChannelDutyCycle clamps the duty cycle into [0, 1] rather than
// rejecting it; a transient out-of-range value must not stop actuation.
func (d *Driver) WriteChannelDutyCycle(channel uint8, dutyCycle float64) error {
	on, off := ComputeOnOffClamped(dutyCycle)
	return d.WriteChannel(channel, on, off)
}

// Channel returns a handle on one output of this driver.
func (d *Driver) Channel(channel uint8) (*Channel, error) {
	if channel >= NumChannels {
		return nil, errors.Wrapf(ErrOutOfRange, "channel %d", channel)
	}
	return &Channel{driver: d, channel: channel}, nil
}

func (d *Driver) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.port.Close()
}

func (d *Driver) writeReg(reg, value byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.port.WriteReg(reg, []byte{value}); err != nil {
		return &BusError{Op: "write", Reg: reg, Err: err}
	}
	return nil
}

func (d *Driver) readRegLocked(reg byte) (byte, error) {
	var buf [1]byte
	if err := d.port.ReadReg(reg, buf[:]); err != nil {
		return 0, &BusError{Op: "read", Reg: reg, Err: err}
	}
	return buf[0], nil
}

func (d *Driver) setBits(reg, mask byte) error {
	return d.modifyReg(reg, func(v byte) byte { return v | mask })
}

func (d *Driver) clearBits(reg, mask byte) error {
	return d.modifyReg(reg, func(v byte) byte { return v &^ mask })
}

// modifyReg is a read-modify-write under one lock hold.
func (d *Driver) modifyReg(reg byte, fn func(byte) byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	v, err := d.readRegLocked(reg)
	if err != nil {
		return err
	}
	if err := d.port.WriteReg(reg, []byte{fn(v)}); err != nil {
		return &BusError{Op: "write", Reg: reg, Err: err}
	}
	return nil
}
