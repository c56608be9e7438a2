package pools

import (
	"bytes"
	"sync"
	"testing"
)

func TestBytePool_Get(t *testing.T) {
	pool := NewBytePool()

	tests := []struct {
		name   string
		size   int
		minCap int
	}{
		{"tiny", 8, 8},
		{"tiny_exact", TinySize, TinySize},
		{"small", 32, 32},
		{"small_exact", SmallSize, SmallSize},
		{"medium", 128, 128},
		{"medium_exact", MediumSize, MediumSize},
		{"large", 512, 512},
		{"large_exact", LargeSize, LargeSize},
		{"huge", 2048, 2048},
		{"huge_exact", HugeSize, HugeSize},
		{"oversized", 10000, 10000}, // Allocated directly
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := pool.Get(tt.size)
			if len(b) != 0 {
				t.Errorf("Get(%d) length = %d, want 0", tt.size, len(b))
			}
			if cap(b) < tt.minCap {
				t.Errorf("Get(%d) capacity = %d, want >= %d", tt.size, cap(b), tt.minCap)
			}
		})
	}
}

func TestBytePool_GetSized(t *testing.T) {
	pool := NewBytePool()

	b := pool.GetSized(100)
	if len(b) != 100 {
		t.Errorf("GetSized(100) length = %d, want 100", len(b))
	}
	if cap(b) < 100 {
		t.Errorf("GetSized(100) capacity = %d, want >= 100", cap(b))
	}
}

func TestBytePool_PutAndReuse(t *testing.T) {
	pool := NewBytePool()

	for i := 0; i < 10; i++ {
		b := pool.Get(64)
		b = append(b, "row-key-bytes"...)
		pool.Put(b)
	}

	b := pool.Get(64)
	if len(b) != 0 {
		t.Errorf("After Put, Get returned slice with length %d, want 0", len(b))
	}
}

func TestBytePool_OversizedNotPooled(t *testing.T) {
	pool := NewBytePool()

	large := make([]byte, MaxPool+1000)
	pool.Put(large) // Should not panic
}

func TestBytePool_Concurrent(t *testing.T) {
	pool := NewBytePool()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				b := pool.Get(256)
				b = append(b, byte(j))
				pool.Put(b)
			}
		}()
	}
	wg.Wait()
}

func TestDefaultBytePool(t *testing.T) {
	b := GetBytes(100)
	if cap(b) < 100 {
		t.Errorf("GetBytes(100) capacity = %d, want >= 100", cap(b))
	}
	PutBytes(b)

	b2 := GetBytesSized(50)
	if len(b2) != 50 {
		t.Errorf("GetBytesSized(50) length = %d, want 50", len(b2))
	}
	PutBytes(b2)
}

func TestBufferBuilder_Frame(t *testing.T) {
	b := NewBufferBuilder(32)
	defer b.Release()

	b.WriteUint16BE(uint16(len("vertices")))
	b.WriteString("vertices")
	b.Write([]byte{0xCA, 0xFE})

	want := append([]byte{0x00, 0x08}, "vertices"...)
	want = append(want, 0xCA, 0xFE)
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("Frame = %x, want %x", b.Bytes(), want)
	}
	if b.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", b.Len(), len(want))
	}
}

func TestBufferBuilder_FixedWidthWriters(t *testing.T) {
	b := NewBufferBuilder(16)
	defer b.Release()

	b.WriteByte(0x01)
	b.WriteUint16BE(0x0203)
	b.WriteUint32BE(0x04050607)
	b.WriteUint64BE(0x08090A0B0C0D0E0F)

	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("Buffer = %x, want %x", b.Bytes(), want)
	}
}

func TestBufferBuilder_Reset(t *testing.T) {
	b := NewBufferBuilder(16)
	defer b.Release()

	b.WriteString("something")
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", b.Len())
	}

	b.WriteString("else")
	if string(b.Bytes()) != "else" {
		t.Errorf("Bytes() after Reset = %q, want %q", b.Bytes(), "else")
	}
}

func TestBufferBuilder_ReleaseIdempotent(t *testing.T) {
	b := NewBufferBuilder(16)
	b.WriteString("x")
	b.Release()
	b.Release() // Must not panic or double-pool
}
