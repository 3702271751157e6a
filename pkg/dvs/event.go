// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dvs

import (
	"errors"
	"fmt"
	"strings"
)

// Event is a single pixel change reported by the sensor.
type Event struct {
	X        uint8
	Y        uint8
	Polarity uint8 // 1 = on, 0 = off
}

// Resolution selects the spatial downsampling width.
type Resolution uint8

// Resolution values match the wire numbering used by the host console.
const (
	ResolutionFull    Resolution = 0 // 128x128, width 1
	ResolutionHalf    Resolution = 1 // 64x64, width 2
	ResolutionQuarter Resolution = 2 // 32x32, width 4
	ResolutionEighth  Resolution = 3 // 16x16, width 8
)

// ErrInvalidResolution is returned for resolution values outside 0..3.
var ErrInvalidResolution = errors.New("invalid resolution")

// Valid reports whether r is a known resolution.
func (r Resolution) Valid() bool {
	return r <= ResolutionEighth
}

// Width returns the block width in sensor pixels.
func (r Resolution) Width() uint8 {
	switch r {
	case ResolutionHalf:
		return 2
	case ResolutionQuarter:
		return 4
	case ResolutionEighth:
		return 8
	default:
		return 1
	}
}

// Side returns the number of output pixels per axis.
func (r Resolution) Side() int {
	return SensorWidth / int(r.Width())
}

func (r Resolution) String() string {
	switch r {
	case ResolutionFull:
		return "full"
	case ResolutionHalf:
		return "half"
	case ResolutionQuarter:
		return "quarter"
	case ResolutionEighth:
		return "eighth"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// ParseResolution accepts a name ("full", "half", "quarter", "eighth"),
// an output side ("128", "64", "32", "16") or a wire index ("0".."3").
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "128", "0":
		return ResolutionFull, nil
	case "half", "64", "1":
		return ResolutionHalf, nil
	case "quarter", "32", "2":
		return ResolutionQuarter, nil
	case "eighth", "16", "3":
		return ResolutionEighth, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
}
