package regbus

import (
	"sync"

	"github.com/pkg/errors"
)

// Tx is one transaction seen by a Memory port.
type Tx struct {
	Addr  uint16
	Reg   byte
	Write bool
	Data  []byte
}

// Memory is an in-memory register file standing in for real hardware. Only
// transactions at the home address touch the registers; everything else is
// just recorded. Multi-byte accesses auto-increment the register pointer.
type Memory struct {
	lock sync.Mutex

	home   uint16
	addr   uint16
	regs   [256]byte
	log    []Tx
	fail   func(Tx) error
	closed bool
}

func NewMemory(addr uint16) *Memory {
	return &Memory{
		home: addr,
		addr: addr,
	}
}

var _ Port = (*Memory)(nil)

var ErrPortClosed = errors.New("port closed")

func (m *Memory) ReadReg(reg byte, buf []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	tx := Tx{Addr: m.addr, Reg: reg}
	if err := m.check(tx); err != nil {
		return err
	}
	for i := range buf {
		buf[i] = m.regs[(int(reg)+i)%len(m.regs)]
	}
	tx.Data = append([]byte(nil), buf...)
	m.log = append(m.log, tx)
	return nil
}

func (m *Memory) WriteReg(reg byte, buf []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	tx := Tx{Addr: m.addr, Reg: reg, Write: true, Data: append([]byte(nil), buf...)}
	if err := m.check(tx); err != nil {
		return err
	}
	if m.addr == m.home {
		for i, b := range buf {
			m.regs[(int(reg)+i)%len(m.regs)] = b
		}
	}
	m.log = append(m.log, tx)
	return nil
}

func (m *Memory) check(tx Tx) error {
	if m.closed {
		return ErrPortClosed
	}
	if m.fail != nil {
		return m.fail(tx)
	}
	return nil
}

func (m *Memory) SetAddr(addr uint16) error {
	m.lock.Lock()
	m.addr = addr
	m.lock.Unlock()
	return nil
}

func (m *Memory) Addr() uint16 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.addr
}

func (m *Memory) Close() error {
	m.lock.Lock()
	m.closed = true
	m.lock.Unlock()
	return nil
}

// Poke sets registers directly, bypassing the transaction log.
func (m *Memory) Poke(reg byte, values ...byte) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for i, b := range values {
		m.regs[(int(reg)+i)%len(m.regs)] = b
	}
}

// Peek reads a register directly, bypassing the transaction log.
func (m *Memory) Peek(reg byte) byte {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.regs[reg]
}

// FailWith installs a hook consulted before every transaction; a non-nil
// result fails the transaction without touching the registers.
func (m *Memory) FailWith(fn func(Tx) error) {
	m.lock.Lock()
	m.fail = fn
	m.lock.Unlock()
}

// Transactions returns a copy of the transaction log.
func (m *Memory) Transactions() []Tx {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]Tx(nil), m.log...)
}

// Writes counts logged write transactions.
func (m *Memory) Writes() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	n := 0
	for _, tx := range m.log {
		if tx.Write {
			n++
		}
	}
	return n
}

func (m *Memory) ClearLog() {
	m.lock.Lock()
	m.log = nil
	m.lock.Unlock()
}
