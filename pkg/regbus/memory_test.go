package regbus

import (
	"testing"

	"github.com/pkg/errors"
)

func TestMemoryAutoIncrement(t *testing.T) {
	m := NewMemory(0x40)
	if err := m.WriteReg(0x06, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	if err := m.ReadReg(0x06, buf); err != nil {
		t.Fatal(err)
	}
	for i, b := range buf {
		if b != byte(i+1) {
			t.Fatalf("register 0x%02x = %d, expected %d", 0x06+i, b, i+1)
		}
	}
	if m.Writes() != 1 || len(m.Transactions()) != 2 {
		t.Fatalf("unexpected log: %v", m.Transactions())
	}
}

func TestMemoryOtherAddressDoesNotTouchRegisters(t *testing.T) {
	m := NewMemory(0x40)
	m.Poke(0x06, 0xaa)
	_ = m.SetAddr(0x00)
	if err := m.WriteReg(0x06, []byte{0x55}); err != nil {
		t.Fatal(err)
	}
	if m.Peek(0x06) != 0xaa {
		t.Fatalf("write at foreign address modified registers")
	}
	txs := m.Transactions()
	if len(txs) != 1 || txs[0].Addr != 0x00 {
		t.Fatalf("unexpected log: %v", txs)
	}
}

func TestMemoryFailureHook(t *testing.T) {
	m := NewMemory(0x40)
	boom := errors.New("boom")
	m.FailWith(func(tx Tx) error {
		if tx.Write {
			return boom
		}
		return nil
	})
	if err := m.WriteReg(0x00, []byte{1}); err != boom {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if m.Peek(0x00) != 0 {
		t.Fatalf("failed write modified registers")
	}
	if err := m.ReadReg(0x00, make([]byte, 1)); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory(0x40)
	_ = m.Close()
	if err := m.WriteReg(0, nil); err != ErrPortClosed {
		t.Fatalf("expected ErrPortClosed, got %v", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("carrier-pigeon", "", 0x40); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	p, err := Open(BackendDummy, "", 0x40)
	if err != nil {
		t.Fatal(err)
	}
	if p.Addr() != 0x40 {
		t.Fatalf("dummy port at %s", addrString(p.Addr()))
	}
}
