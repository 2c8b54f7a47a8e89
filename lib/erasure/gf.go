// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package erasure

// GF(2^10) arithmetic with precomputed exponent and logarithm tables.
// Elements are the integers 0..1023; addition is XOR. The exponent
// table is doubled so products of two logarithms index it without a
// modulo reduction.

const (
	power     = 10
	fieldSize = 1 << power // 1024
)

// fieldPoly is the reduction applied when the generator walk
// overflows the field: x^10 = x + 1.
const fieldPoly = fieldSize | 0x3

var (
	expTable [2 * fieldSize]uint16
	logTable [fieldSize]uint16
)

func init() {
	expTable[0] = 1
	x := 1
	for i := 1; i < fieldSize-1; i++ {
		x <<= 1
		if x&fieldSize != 0 {
			x ^= fieldPoly
		}
		expTable[i] = uint16(x)
		logTable[x] = uint16(i)
	}
	for i := fieldSize - 1; i < 2*fieldSize; i++ {
		expTable[i] = expTable[i+1-fieldSize]
	}
	logTable[expTable[fieldSize-1]] = fieldSize - 1

	// The generator must enumerate every nonzero element exactly
	// once; a broken table would silently corrupt every codeword.
	for i := 1; i < fieldSize; i++ {
		if int(expTable[logTable[i]]) != i {
			panic("erasure: GF(2^10) table self-check failed")
		}
	}
}

// gfMul multiplies two field elements.
func gfMul(x, y int) int {
	if x == 0 || y == 0 {
		return 0
	}
	return int(expTable[int(logTable[x])+int(logTable[y])])
}

// gfDiv divides x by y. Panics on division by zero: evaluation
// points are distinct by construction, so a zero denominator is a
// programming error, not an input condition.
func gfDiv(x, y int) int {
	if y == 0 {
		panic("erasure: division by zero in GF(2^10)")
	}
	if x == 0 {
		return 0
	}
	return int(expTable[int(logTable[x])+fieldSize-1-int(logTable[y])])
}
