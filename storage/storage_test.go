package storage

import (
	"testing"
	"time"
)

type memBackend struct {
	data map[EntryType][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[EntryType][]byte)}
}

func (m *memBackend) Write(id EntryType, data []byte) bool {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[id] = cp
	return true
}

func (m *memBackend) Read(id EntryType) ([]byte, bool) {
	data, ok := m.data[id]
	return data, ok
}

func TestFileBackendRoundTrip(t *testing.T) {
	b, err := NewFileBackend(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	if !b.Write(EntryPreferredAddress, []byte{0x1C}) {
		t.Fatal("Write() = false")
	}
	data, ok := b.Read(EntryPreferredAddress)
	if !ok || len(data) != 1 || data[0] != 0x1C {
		t.Fatalf("Read() = %v, %v, want [0x1C], true", data, ok)
	}
	if _, ok := b.Read(EntryApplicationBase); ok {
		t.Fatal("Read() of an unwritten entry should report false")
	}
}

func TestInterfaceWriteThenRead(t *testing.T) {
	backend := newMemBackend()
	iface := NewInterface(backend, WithQueueSizes(4))
	if err := iface.RequestWrite(EntryPreferredAddress, []byte{0x40}); err != ErrNotRunning {
		t.Fatalf("RequestWrite before Start: %v, want ErrNotRunning", err)
	}
	if err := iface.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer iface.Stop()

	if err := iface.RequestWrite(EntryPreferredAddress, []byte{0x40}); err != nil {
		t.Fatalf("RequestWrite: %v", err)
	}

	resultCh := make(chan []byte, 1)
	if !iface.AddReadCallback(EntryPreferredAddress, func(id EntryType, data []byte, ok bool) {
		if ok {
			resultCh <- data
		} else {
			resultCh <- nil
		}
	}) {
		t.Fatal("AddReadCallback() = false on first registration")
	}
	if iface.AddReadCallback(EntryPreferredAddress, func(EntryType, []byte, bool) {}) {
		t.Fatal("AddReadCallback() = true on duplicate registration, want false")
	}

	if err := iface.RequestRead(EntryPreferredAddress); err != nil {
		t.Fatalf("RequestRead: %v", err)
	}

	select {
	case data := <-resultCh:
		if len(data) != 1 || data[0] != 0x40 {
			t.Fatalf("callback data = %v, want [0x40]", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for read callback")
	}

	if !iface.RemoveReadCallback(EntryPreferredAddress) {
		t.Fatal("RemoveReadCallback() = false, want true")
	}
	if iface.RemoveReadCallback(EntryPreferredAddress) {
		t.Fatal("RemoveReadCallback() of an already-removed entry = true, want false")
	}
}

func TestInterfaceReadMissingEntry(t *testing.T) {
	backend := newMemBackend()
	iface := NewInterface(backend)
	if err := iface.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer iface.Stop()

	resultCh := make(chan bool, 1)
	iface.AddReadCallback(EntryApplicationBase, func(id EntryType, data []byte, ok bool) {
		resultCh <- ok
	})
	if err := iface.RequestRead(EntryApplicationBase); err != nil {
		t.Fatalf("RequestRead: %v", err)
	}

	select {
	case ok := <-resultCh:
		if ok {
			t.Fatal("callback ok = true for a never-written entry")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for read callback")
	}
}
