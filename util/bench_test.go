package util

import (
	"context"
	"strings"
	"testing"
)

// BenchmarkReadLines measures line splitting of console or bot input.
func BenchmarkReadLines(b *testing.B) {
	input := strings.Repeat("PRIVMSG #go :a line of bot output\n", 100)
	b.SetBytes(int64(len(input)))
	for i := 0; i < b.N; i++ {
		ReadLines(context.Background(), strings.NewReader(input), func(string) error { return nil }) //nolint:errcheck
	}
}

// BenchmarkReadBuffer compares one read buffer per connection with
// the shared pool.
func BenchmarkReadBuffer(b *testing.B) {
	b.Run("pooled", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			PutBuf(GetBuf())
		}
	})
	b.Run("fresh", func(b *testing.B) {
		b.ReportAllocs()
		var sink []byte
		for i := 0; i < b.N; i++ {
			sink = make([]byte, DefaultBufSize)
		}
		_ = sink
	})
}
