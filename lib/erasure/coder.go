// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package erasure

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Default fragment geometry: any 10 of the 50 fragments may be lost.
const (
	DefaultOriginals = 40
	DefaultParity    = 10
)

// ErrTooFewFragments is returned by [Coder.Recover] when fewer
// fragments survive than the geometry needs for reconstruction.
var ErrTooFewFragments = errors.New("erasure: too few fragments to reconstruct")

// Coder splits chunks into redundant fragments and reconstructs them.
// A Coder is immutable and safe for concurrent use.
type Coder struct {
	originals int
	parity    int

	// parityWeights[m][j] is the Lagrange basis value L_j(originals+m):
	// the contribution of data symbol j to parity symbol m. Parity is
	// then a matrix-vector product per stripe.
	parityWeights [][]int
}

// NewCoder creates a coder producing originals+parity fragments per
// chunk, any originals of which reconstruct it. Geometry errors are
// rejected here, not discovered during coding.
func NewCoder(originals, parity int) (*Coder, error) {
	if originals < 1 {
		return nil, fmt.Errorf("erasure: originals must be at least 1, got %d", originals)
	}
	if parity < 0 {
		return nil, fmt.Errorf("erasure: parity count %d is negative", parity)
	}
	if originals+parity > fieldSize {
		return nil, fmt.Errorf("erasure: %d fragments exceed the %d evaluation points of GF(2^10)",
			originals+parity, fieldSize)
	}

	coder := &Coder{originals: originals, parity: parity}
	coder.parityWeights = make([][]int, parity)
	for m := range coder.parityWeights {
		weights := make([]int, originals)
		for j := range weights {
			weights[j] = lagrangeBasis(j, originals+m, originals)
		}
		coder.parityWeights[m] = weights
	}
	return coder, nil
}

// lagrangeBasis evaluates the Lagrange basis polynomial through the
// data points 0..originals-1 for index j, at x.
func lagrangeBasis(j, x, originals int) int {
	result := 1
	for k := 0; k < originals; k++ {
		if k == j {
			continue
		}
		result = gfMul(result, gfDiv(x^k, j^k))
	}
	return result
}

// Split encodes data into originals+parity fragments. The first
// originals fragments are column stripes of the data (one byte per
// symbol, zero padded); parity fragments hold 10-bit field symbols,
// two bytes each, big endian.
func (c *Coder) Split(data []byte) [][]byte {
	stripes := (len(data) + c.originals - 1) / c.originals

	fragments := make([][]byte, c.originals+c.parity)
	for j := 0; j < c.originals; j++ {
		fragments[j] = make([]byte, stripes)
	}
	for m := 0; m < c.parity; m++ {
		fragments[c.originals+m] = make([]byte, 2*stripes)
	}

	symbols := make([]int, c.originals)
	for i := 0; i < stripes; i++ {
		for j := 0; j < c.originals; j++ {
			position := i*c.originals + j
			var value byte
			if position < len(data) {
				value = data[position]
			}
			fragments[j][i] = value
			symbols[j] = int(value)
		}
		for m := 0; m < c.parity; m++ {
			parity := 0
			weights := c.parityWeights[m]
			for j, symbol := range symbols {
				parity ^= gfMul(weights[j], symbol)
			}
			binary.BigEndian.PutUint16(fragments[c.originals+m][2*i:], uint16(parity))
		}
	}
	return fragments
}

// Recover reconstructs the original size bytes from surviving
// fragments. fragments must have originals+parity entries in fragment
// order, with nil marking a loss; any originals surviving entries
// suffice.
func (c *Coder) Recover(fragments [][]byte, size int) ([]byte, error) {
	if len(fragments) != c.originals+c.parity {
		return nil, fmt.Errorf("erasure: got %d fragment slots, want %d", len(fragments), c.originals+c.parity)
	}

	stripes, err := c.stripeCount(fragments)
	if err != nil {
		return nil, err
	}
	if size > stripes*c.originals {
		return nil, fmt.Errorf("erasure: %d bytes do not fit in %d stripes of %d", size, stripes, c.originals)
	}

	// Pick the reconstruction points, preferring originals: when all
	// data fragments survive, reassembly is a plain interleave.
	var points []int
	for j := 0; j < len(fragments) && len(points) < c.originals; j++ {
		if fragments[j] != nil {
			points = append(points, j)
		}
	}
	if len(points) < c.originals {
		return nil, fmt.Errorf("%w: %d of %d needed", ErrTooFewFragments, len(points), c.originals)
	}

	data := make([]byte, stripes*c.originals)
	allOriginals := points[c.originals-1] < c.originals

	if allOriginals {
		for j := 0; j < c.originals; j++ {
			for i := 0; i < stripes; i++ {
				data[i*c.originals+j] = fragments[j][i]
			}
		}
		return data[:size], nil
	}

	// coefficients[j][t] maps the t-th surviving symbol to data
	// symbol j. Depends only on which fragments survived, so it is
	// computed once and reused for every stripe.
	coefficients := make([][]int, c.originals)
	for j := 0; j < c.originals; j++ {
		if fragments[j] != nil {
			// Surviving originals are copied directly below.
			continue
		}
		row := make([]int, c.originals)
		for t, xt := range points {
			numerator, denominator := 1, 1
			for u, xu := range points {
				if u == t {
					continue
				}
				numerator = gfMul(numerator, j^xu)
				denominator = gfMul(denominator, xt^xu)
			}
			row[t] = gfDiv(numerator, denominator)
		}
		coefficients[j] = row
	}

	values := make([]int, c.originals)
	for i := 0; i < stripes; i++ {
		for t, x := range points {
			if x < c.originals {
				values[t] = int(fragments[x][i])
			} else {
				values[t] = int(binary.BigEndian.Uint16(fragments[x][2*i:]))
			}
		}
		for j := 0; j < c.originals; j++ {
			if coefficients[j] == nil {
				data[i*c.originals+j] = fragments[j][i]
				continue
			}
			symbol := 0
			for t, value := range values {
				symbol ^= gfMul(coefficients[j][t], value)
			}
			if symbol > 0xFF {
				return nil, fmt.Errorf("erasure: reconstructed symbol %#x outside byte range, fragment corruption", symbol)
			}
			data[i*c.originals+j] = byte(symbol)
		}
	}
	return data[:size], nil
}

// stripeCount derives the stripe count from the surviving fragments
// and checks they agree on it.
func (c *Coder) stripeCount(fragments [][]byte) (int, error) {
	stripes := -1
	for index, fragment := range fragments {
		if fragment == nil {
			continue
		}
		length := len(fragment)
		if index >= c.originals {
			if length%2 != 0 {
				return 0, fmt.Errorf("erasure: parity fragment %d has odd length %d", index, length)
			}
			length /= 2
		}
		if stripes == -1 {
			stripes = length
		} else if stripes != length {
			return 0, fmt.Errorf("erasure: fragment %d implies %d stripes, earlier fragments imply %d", index, length, stripes)
		}
	}
	if stripes == -1 {
		return 0, fmt.Errorf("%w: no fragments present", ErrTooFewFragments)
	}
	return stripes, nil
}
