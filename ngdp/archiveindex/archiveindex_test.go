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

package archiveindex

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/lukegb/casc/ngdp"
)

func buildEntry(eKeyByte byte, size, offset uint32) []byte {
	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{eKeyByte}, keySize))
	binary.Write(&buf, binary.BigEndian, size)
	binary.Write(&buf, binary.BigEndian, offset)
	return buf.Bytes()
}

func TestDecodeBasic(t *testing.T) {
	var data bytes.Buffer
	data.Write(buildEntry(0xAA, 100, 0))
	data.Write(buildEntry(0xBB, 200, 100))

	var archiveHash ngdp.ArchiveHash
	copy(archiveHash[:], bytes.Repeat([]byte{0x01}, 16))

	entries, err := Decode(data.Bytes(), archiveHash, ngdp.ArchiveSource)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d; want 2", len(entries))
	}

	var eKey ngdp.EKey
	copy(eKey[:], bytes.Repeat([]byte{0xBB}, 16))
	entry, ok := entries[eKey]
	if !ok {
		t.Fatalf("entries missing eKey %x", eKey)
	}
	if entry.Size != 200 || entry.Offset != 100 {
		t.Errorf("entry = %+v; want {Size:200 Offset:100}", entry)
	}
	if entry.ArchiveHash != archiveHash {
		t.Errorf("ArchiveHash = %x; want %x", entry.ArchiveHash, archiveHash)
	}
}

func TestDecodeStopsOnZeroPadding(t *testing.T) {
	var data bytes.Buffer
	data.Write(buildEntry(0xAA, 100, 0))
	data.Write(make([]byte, 24)) // zero-padded trailing entry: size == 0

	var archiveHash ngdp.ArchiveHash
	entries, err := Decode(data.Bytes(), archiveHash, ngdp.ArchiveSource)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d; want 1", len(entries))
	}
}

func TestDecodeStopsOnOversizeEntry(t *testing.T) {
	var data bytes.Buffer
	data.Write(buildEntry(0xAA, 100, 0))
	data.Write(buildEntry(0xCC, maxEntrySize+1, 0))

	var archiveHash ngdp.ArchiveHash
	entries, err := Decode(data.Bytes(), archiveHash, ngdp.ArchiveSource)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d; want 1", len(entries))
	}
}

func TestSplitExactMultipleKeepsAll(t *testing.T) {
	raw := make([]byte, pageSize*2)
	if got := Split(raw); len(got) != len(raw) {
		t.Errorf("len(Split) = %d; want %d", len(got), len(raw))
	}
}

func TestSplitTrimsFooter(t *testing.T) {
	raw := make([]byte, pageSize*2+100)
	got := Split(raw)
	if len(got) != pageSize*2 {
		t.Errorf("len(Split) = %d; want %d", len(got), pageSize*2)
	}
}
