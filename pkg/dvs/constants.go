// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dvs

// Sensor geometry
const (
	SensorWidth  = 128
	SensorHeight = 128
)

// Frame layout
const (
	FrameLength    = 2    // bytes per event frame
	FrameStartBit  = 0x80 // set on the first byte of every frame
	CoordinateMask = 0x7F
	PolarityBit    = 0x80 // polarity flag in the second byte
)

// DefaultAggregatorCapacity is the number of pending slots held by an Aggregator.
const DefaultAggregatorCapacity = 500
