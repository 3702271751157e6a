// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package console

import "github.com/Thermoquad/dvsbridge/pkg/host"

// Record lengths of the forwarding modes
const (
	EventRecordLength = 3 // x, y, polarity
	ValueRecordLength = 2 // big endian link value
)

// RecordJoiner rejoins fixed length records that were split into several
// lines because a data byte equals the terminator.
//
// Length selects the record being reassembled; zero passes every line
// through unchanged. Only shorter lines are buffered, so status lines and
// identify replies are never held back.
type RecordJoiner struct {
	Length   int
	fragment []byte
	pending  bool
}

// Add takes one line and returns the lines ready for processing
func (j *RecordJoiner) Add(line []byte) [][]byte {
	if j.Length == 0 {
		return [][]byte{line}
	}

	var out [][]byte
	if j.pending {
		joined := append(append(j.fragment, host.Terminator), line...)
		switch {
		case len(joined) == j.Length:
			j.reset()
			return [][]byte{joined}
		case len(joined) < j.Length:
			j.fragment = joined
			return nil
		}
		// Not a continuation: hand back the fragment as it arrived
		out = append(out, j.fragment)
		j.reset()
	}

	if len(line) < j.Length {
		j.fragment = append([]byte(nil), line...)
		j.pending = true
		return out
	}
	return append(out, line)
}

// Flush returns a buffered fragment, if any
func (j *RecordJoiner) Flush() []byte {
	if !j.pending {
		return nil
	}
	f := j.fragment
	j.reset()
	return f
}

func (j *RecordJoiner) reset() {
	j.fragment = nil
	j.pending = false
}
