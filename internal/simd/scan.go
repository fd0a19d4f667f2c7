// Package simd provides SWAR-accelerated scanning for the structural bytes
// of a CSV stream: quotes, separators, and newlines.
//
// SWAR (SIMD Within A Register) processes 8 bytes per step using plain
// uint64 arithmetic, which keeps the package portable while still running
// close to memory bandwidth on large inputs.
package simd

import (
	"encoding/binary"
	"math/bits"
)

const (
	lowBytes  = 0x0101010101010101
	highBytes = 0x8080808080808080
)

// matchBytes returns a mask with the high bit set in every byte of w that
// equals b. Classic zero-byte detection applied to w XOR broadcast(b).
func matchBytes(w uint64, b byte) uint64 {
	x := w ^ (lowBytes * uint64(b))
	return (x - lowBytes) &^ x & highBytes
}

// Scan populates bitmaps for quotes, commas, and newlines.
//
// Each bit in the output slices corresponds to one byte of input: bit i of
// word i/64 is set when input[i] is the corresponding character. The bitmaps
// must be pre-allocated with length >= (len(input) + 63) / 64.
func Scan(input []byte, quotes, seps, newlines []uint64) {
	ScanWithSeparator(input, ',', quotes, seps, newlines)
}

// ScanWithSeparator is Scan with a configurable separator byte, for CSV
// files using semicolons, tabs, or other delimiters.
func ScanWithSeparator(input []byte, sep byte, quotes, seps, newlines []uint64) {
	n := len(input)
	i := 0

	for ; i+8 <= n; i += 8 {
		w := binary.LittleEndian.Uint64(input[i:])

		setMatches(quotes, i, matchBytes(w, '"'))
		setMatches(seps, i, matchBytes(w, sep))
		setMatches(newlines, i, matchBytes(w, '\n'))
	}

	// Scalar tail.
	for ; i < n; i++ {
		switch input[i] {
		case '"':
			quotes[i/64] |= 1 << uint(i%64)
		case sep:
			seps[i/64] |= 1 << uint(i%64)
		case '\n':
			newlines[i/64] |= 1 << uint(i%64)
		}
	}
}

// setMatches translates a SWAR match mask (one high bit per matching byte)
// into bitmap bits starting at input offset base.
func setMatches(bitmap []uint64, base int, mask uint64) {
	for mask != 0 {
		byteIdx := base + bits.TrailingZeros64(mask)>>3
		bitmap[byteIdx/64] |= 1 << uint(byteIdx%64)
		mask &= mask - 1
	}
}

// CountByte counts occurrences of b in data, 8 bytes per step.
func CountByte(data []byte, b byte) uint64 {
	var count uint64
	n := len(data)
	i := 0
	for ; i+8 <= n; i += 8 {
		w := binary.LittleEndian.Uint64(data[i:])
		count += uint64(bits.OnesCount64(matchBytes(w, b)))
	}
	for ; i < n; i++ {
		if data[i] == b {
			count++
		}
	}
	return count
}

// BitmapLen returns the number of uint64 words needed to cover n input bytes.
func BitmapLen(n int) int {
	return (n + 63) / 64
}
