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

package root

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/lukegb/casc/ngdp"
)

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func i32le(v int32) []byte { return u32le(uint32(v)) }

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// buildMFSTVersion1 assembles a version-1 MFST manifest with no optional
// header (so the parser falls back to version 1, no name hashes
// suppressed), one block with three records, deltas [10, 0, 4].
func buildMFSTVersion1(cKeys [3]ngdp.CKey) []byte {
	var buf bytes.Buffer
	// possibleHeaderSize peek: use a totalFileCount value outside
	// [12,100] so the parser treats it as the no-header path.
	buf.Write(u32le(3))      // totalFileCount (doubles as the peek)
	buf.Write(u32le(3))      // namedFileCount
	buf.Write(u32le(3))      // numRecords
	buf.Write(u32le(0))      // contentFlags
	buf.Write(u32le(0x2))    // locale = enUS
	buf.Write(i32le(10))
	buf.Write(i32le(0))
	buf.Write(i32le(4))
	for _, k := range cKeys {
		buf.Write(k[:])
	}
	buf.Write(u64le(0))
	buf.Write(u64le(0))
	buf.Write(u64le(0))
	return buf.Bytes()
}

// buildMFSTVersion1WithMagic wraps buildMFSTVersion1's body in the real
// on-wire magic ("TSFM", which reads back as 0x4D465354 - "MFST" - as a
// little-endian uint32) so the result is only valid input to the public
// Decode, not decodeMFST directly.
func buildMFSTVersion1WithMagic(cKeys [3]ngdp.CKey) []byte {
	return append([]byte(mfstMagic), buildMFSTVersion1(cKeys)...)
}

func TestDecodeMFSTConsumesMagic(t *testing.T) {
	var k1, k2, k3 ngdp.CKey
	copy(k1[:], bytes.Repeat([]byte{0x01}, 16))
	copy(k2[:], bytes.Repeat([]byte{0x02}, 16))
	copy(k3[:], bytes.Repeat([]byte{0x03}, 16))

	cKeys := [3]ngdp.CKey{k1, k2, k3}
	m, err := Decode(buildMFSTVersion1WithMagic(cKeys))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.entries) != 3 {
		t.Fatalf("len(entries) = %d; want 3", len(m.entries))
	}

	wantIDs := []ngdp.FileDataID{10, 11, 16}
	for i, e := range m.entries {
		if e.FileDataID != wantIDs[i] {
			t.Errorf("entries[%d].FileDataID = %d; want %d", i, e.FileDataID, wantIDs[i])
		}
		if e.ContentKey != cKeys[i] {
			t.Errorf("entries[%d].ContentKey = %x; want %x", i, e.ContentKey, cKeys[i])
		}
	}
}

func TestDecodeMFSTDelta(t *testing.T) {
	var k1, k2, k3 ngdp.CKey
	copy(k1[:], bytes.Repeat([]byte{0x01}, 16))
	copy(k2[:], bytes.Repeat([]byte{0x02}, 16))
	copy(k3[:], bytes.Repeat([]byte{0x03}, 16))

	m, err := decodeMFST(buildMFSTVersion1([3]ngdp.CKey{k1, k2, k3}))
	if err != nil {
		t.Fatalf("decodeMFST: %v", err)
	}
	if len(m.entries) != 3 {
		t.Fatalf("len(entries) = %d; want 3", len(m.entries))
	}

	wantIDs := []ngdp.FileDataID{10, 11, 16}
	for i, e := range m.entries {
		if e.FileDataID != wantIDs[i] {
			t.Errorf("entries[%d].FileDataID = %d; want %d", i, e.FileDataID, wantIDs[i])
		}
		if ngdp.Locale(e.LocaleFlags)&ngdp.LocaleEnUS == 0 {
			t.Errorf("entries[%d] missing LocaleEnUS bit", i)
		}
	}
}

func TestGetEntryByCKey(t *testing.T) {
	var k1, k2, k3 ngdp.CKey
	copy(k1[:], bytes.Repeat([]byte{0x01}, 16))
	copy(k2[:], bytes.Repeat([]byte{0x02}, 16))
	copy(k3[:], bytes.Repeat([]byte{0x03}, 16))

	m, err := decodeMFST(buildMFSTVersion1([3]ngdp.CKey{k1, k2, k3}))
	if err != nil {
		t.Fatalf("decodeMFST: %v", err)
	}

	e, ok := m.GetEntryByCKey(k2)
	if !ok {
		t.Fatalf("GetEntryByCKey: not found")
	}
	if e.FileDataID != 11 {
		t.Errorf("FileDataID = %d; want 11", e.FileDataID)
	}
}

func TestDecodeWar3(t *testing.T) {
	eKeyHex := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	data := []byte("War3" + "Units\\Human.slk|" + eKeyHex + "|enUS\r\n")
	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.entries) != 1 {
		t.Fatalf("len(entries) = %d; want 1", len(m.entries))
	}
	e := m.entries[0]
	if e.NormalizedPath != "units/human.slk" {
		t.Errorf("NormalizedPath = %q; want %q", e.NormalizedPath, "units/human.slk")
	}
	wantKey, _ := ngdp.ParseCKey(eKeyHex)
	if e.ContentKey != wantKey {
		t.Errorf("ContentKey = %x; want %x", e.ContentKey, wantKey)
	}
	if ngdp.Locale(e.LocaleFlags) != ngdp.LocaleEnUS {
		t.Errorf("LocaleFlags = %#x; want LocaleEnUS", e.LocaleFlags)
	}
}

func TestDecodeWar3SkipsMalformedLines(t *testing.T) {
	data := []byte("War3" + "|eKeyOnly\r\n" + "path-only\r\n" + "\r\n")
	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.entries) != 0 {
		t.Errorf("len(entries) = %d; want 0", len(m.entries))
	}
}

func TestGetEntryByPathNormalization(t *testing.T) {
	eKeyHex := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	data := []byte("War3" + "Foo\\Bar|" + eKeyHex + "|enUS\r\n")
	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	a := m.GetEntryByPath("Foo\\Bar")
	b := m.GetEntryByPath("foo/bar")
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("len(a)=%d len(b)=%d; want 1, 1", len(a), len(b))
	}
	if a[0].ContentKey != b[0].ContentKey {
		t.Errorf("normalization mismatch: %x != %x", a[0].ContentKey, b[0].ContentKey)
	}
}
