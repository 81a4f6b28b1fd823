/*
Copyright 2017 Luke Granger-Brown

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package byteio

import (
	"testing"

	"github.com/lukegb/casc/ngdp"
)

func TestUint32BEAndLE(t *testing.T) {
	r := New([]byte{0x01, 0x02, 0x03, 0x04})
	got, err := r.Uint32BE()
	if err != nil {
		t.Fatalf("Uint32BE: %v", err)
	}
	if want := uint32(0x01020304); got != want {
		t.Errorf("Uint32BE = %#x; want %#x", got, want)
	}

	r = New([]byte{0x01, 0x02, 0x03, 0x04})
	got, err = r.Uint32LE()
	if err != nil {
		t.Fatalf("Uint32LE: %v", err)
	}
	if want := uint32(0x04030201); got != want {
		t.Errorf("Uint32LE = %#x; want %#x", got, want)
	}
}

func TestUint24BE(t *testing.T) {
	r := New([]byte{0x00, 0x00, 0x06})
	got, err := r.Uint24BE()
	if err != nil {
		t.Fatalf("Uint24BE: %v", err)
	}
	if got != 6 {
		t.Errorf("Uint24BE = %d; want 6", got)
	}
}

func TestUint40BE(t *testing.T) {
	r := New([]byte{0x00, 0x00, 0x00, 0x00, 0x05})
	got, err := r.Uint40BE()
	if err != nil {
		t.Fatalf("Uint40BE: %v", err)
	}
	if got != 5 {
		t.Errorf("Uint40BE = %d; want 5", got)
	}
}

func TestOutOfRange(t *testing.T) {
	r := New([]byte{0x01, 0x02})
	if _, err := r.Uint32BE(); err == nil {
		t.Fatalf("Uint32BE: want error, got nil")
	} else if _, ok := err.(*ngdp.OutOfRangeError); !ok {
		t.Errorf("Uint32BE err = %T; want *ngdp.OutOfRangeError", err)
	}
}

func TestBitsAcrossByteBoundary(t *testing.T) {
	// 0b10110100 0b11000000 - read 4, 4, 4, 4 to check the boundary math.
	r := New([]byte{0xb4, 0xc0})
	want := []uint32{0xb, 0x4, 0xc, 0x0}
	for i, w := range want {
		got, err := r.Bits(4)
		if err != nil {
			t.Fatalf("Bits(4) #%d: %v", i, err)
		}
		if got != w {
			t.Errorf("Bits(4) #%d = %#x; want %#x", i, got, w)
		}
	}
}

func TestBitsThenByteRealigns(t *testing.T) {
	r := New([]byte{0xff, 0xAB})
	if _, err := r.Bits(4); err != nil {
		t.Fatalf("Bits(4): %v", err)
	}
	// A byte-oriented read after a partial bit offset must realign to
	// the next whole byte per spec.md §4.1.
	got, err := r.Uint8()
	if err != nil {
		t.Fatalf("Uint8: %v", err)
	}
	if got != 0xAB {
		t.Errorf("Uint8 = %#x; want %#x", got, 0xAB)
	}
}

func TestHexString(t *testing.T) {
	r := New([]byte{0xde, 0xad, 0xbe, 0xef})
	got, err := r.HexString(4)
	if err != nil {
		t.Fatalf("HexString: %v", err)
	}
	if got != "deadbeef" {
		t.Errorf("HexString = %q; want %q", got, "deadbeef")
	}
}

func TestRemainingAndEOF(t *testing.T) {
	r := New([]byte{1, 2, 3})
	if r.Remaining() != 3 {
		t.Errorf("Remaining = %d; want 3", r.Remaining())
	}
	if r.EOF() {
		t.Errorf("EOF = true; want false")
	}
	if _, err := r.Bytes(3); err != nil {
		t.Fatalf("Bytes(3): %v", err)
	}
	if !r.EOF() {
		t.Errorf("EOF = false; want true")
	}
}
