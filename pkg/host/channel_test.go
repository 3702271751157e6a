// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package host

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("port gone") }

func TestChannelRecords(t *testing.T) {
	var buf bytes.Buffer
	c := NewChannel(&buf)

	if err := c.SendRecord(10, 30, 1); err != nil {
		t.Fatal(err)
	}
	if err := c.SendString("000 Success"); err != nil {
		t.Fatal(err)
	}
	if err := c.SendByte(0x60); err != nil {
		t.Fatal(err)
	}

	want := []byte{10, 30, 1, '\r'}
	want = append(want, "000 Success\r"...)
	want = append(want, 0x60)
	if diff := cmp.Diff(want, buf.Bytes()); diff != "" {
		t.Errorf("host bytes (-want +got):\n%s", diff)
	}
}

func TestChannelRecordsDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	c := NewChannel(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(v byte) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.SendRecord(v, v, v)
			}
		}(byte(i))
	}
	wg.Wait()

	data := buf.Bytes()
	if len(data) != 4*100*4 {
		t.Fatalf("got %d bytes", len(data))
	}
	for i := 0; i < len(data); i += 4 {
		r := data[i : i+4]
		if r[0] != r[1] || r[1] != r[2] || r[3] != Terminator {
			t.Fatalf("interleaved record at %d: %v", i, r)
		}
	}
}

func TestChannelWrapsWriteErrors(t *testing.T) {
	c := NewChannel(failingWriter{})
	if err := c.SendByte(1); err == nil {
		t.Fatal("expected error")
	}
}
