package util

import "testing"

func TestGetBuf_Size(t *testing.T) {
	b := GetBuf()
	defer PutBuf(b)
	if len(*b) != DefaultBufSize {
		t.Errorf("len = %d, want %d", len(*b), DefaultBufSize)
	}
}

func TestGetBuf_RestoresLength(t *testing.T) {
	b := GetBuf()
	*b = (*b)[:10]
	PutBuf(b)

	// the pool may or may not hand back the same buffer
	got := GetBuf()
	defer PutBuf(got)
	if len(*got) != DefaultBufSize {
		t.Errorf("len = %d after reuse", len(*got))
	}
}

func TestPutBuf_DropsUnfit(t *testing.T) {
	PutBuf(nil)
	small := make([]byte, 16)
	PutBuf(&small)

	b := GetBuf()
	defer PutBuf(b)
	if cap(*b) != DefaultBufSize {
		t.Errorf("pool returned a foreign buffer of cap %d", cap(*b))
	}
}

func TestPool_Keep(t *testing.T) {
	made := 0
	p := NewPool(func() []string { made++; return nil }, func(s []string) bool { return len(s) < 2 })

	p.Put([]string{"a", "b"})
	if got := p.Get(); len(got) != 0 {
		t.Errorf("rejected item came back: %v", got)
	}
	if made == 0 {
		t.Error("New was not called for an empty pool")
	}
}
