package utils

import (
	"unsafe"
)

// B2S converts a byte slice to a string without copying.
// The caller must not modify b afterwards.
func B2S(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// S2B converts a string to a byte slice without copying.
// The result must never be written to.
func S2B(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
