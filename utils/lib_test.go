package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToLower(t *testing.T) {
	assert.Equal(t, "hello", ToLower("HeLLo"))
	assert.Equal(t, "already", ToLower("already"))
	assert.Equal(t, "mixed123!", ToLower("MiXeD123!"))
	// multi-byte input passes through untouched
	assert.Equal(t, "渊协议", ToLower("渊协议"))
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "Hello World", []string{"hello", "world"}},
		{"punctuation", "foo,bar;baz!", []string{"foo", "bar", "baz"}},
		{"digits", "error 404 found", []string{"error", "404", "found"}},
		{"cjk kept whole", "渊协议 protocol", []string{"渊协议", "protocol"}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestToString(t *testing.T) {
	assert.Equal(t, "text", ToString("text"))
	assert.Equal(t, "bytes", ToString([]byte("bytes")))
	assert.Equal(t, "42", ToString(42))
	assert.Equal(t, "42", ToString(int64(42)))
	assert.Equal(t, "3.5", ToString(3.5))
	assert.Equal(t, "true", ToString(true))
	assert.Equal(t, "false", ToString(false))
}

func TestUnsafeRoundtrip(t *testing.T) {
	s := "roundtrip"
	assert.Equal(t, s, UnsafeString(UnsafeBytes(s)))
}

func TestBoundedLevenshtein(t *testing.T) {
	tests := []struct {
		a, b      string
		threshold int
		want      int
	}{
		{"shard", "shard", 2, 0},
		{"shard", "sharp", 2, 1},
		{"shard", "shared", 2, 1},
		{"kitten", "sitting", 3, 3},
		// past the threshold the exact distance no longer matters
		{"short", "completely", 2, 3},
		{"", "abc", 3, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BoundedLevenshtein(tt.a, tt.b, tt.threshold), "%s vs %s", tt.a, tt.b)
	}
}
