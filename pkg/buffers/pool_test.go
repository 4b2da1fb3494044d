package buffers

import "testing"

func TestBufferPoolSize(t *testing.T) {
	p := NewBufferPool(12)
	b := p.Get()
	if len(b) != 12 {
		t.Fatalf("Expected 12 byte buffer, got %d", len(b))
	}
	b[0] = 42
	p.Put(b)
	again := p.Get()
	if len(again) != 12 {
		t.Errorf("Expected 12 byte buffer after Put, got %d", len(again))
	}
	p.Put(make([]byte, 3)) // dropped, not resized
	if got := p.Get(); len(got) != p.Size() {
		t.Errorf("Get after undersized Put returned %d bytes", len(got))
	}
}
