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

// Package root decodes a CASC root manifest: the table that maps logical
// files, addressed by fileDataID or by path, to their content key.
//
// Two incompatible wire variants exist. Modern products ship the binary
// "MFST" layout, delta-coding fileDataIDs per block. Warcraft III: Reforged
// ships a pipe-delimited text table instead; Decode dispatches on the
// manifest's magic bytes.
package root

import (
	"strings"

	"github.com/lukegb/casc/ngdp"
	"github.com/lukegb/casc/ngdp/byteio"
)

// Manifest is a parsed root manifest, queryable by content key, fileDataID
// or path.
type Manifest struct {
	entries []ngdp.RootEntry
	byID    map[ngdp.FileDataID][]ngdp.RootEntry
}

func newManifest(entries []ngdp.RootEntry) *Manifest {
	m := &Manifest{entries: entries, byID: make(map[ngdp.FileDataID][]ngdp.RootEntry)}
	for _, e := range entries {
		m.byID[e.FileDataID] = append(m.byID[e.FileDataID], e)
	}
	return m
}

// GetEntryByCKey returns the first entry with the given content key.
func (m *Manifest) GetEntryByCKey(cKey ngdp.CKey) (ngdp.RootEntry, bool) {
	for _, e := range m.entries {
		if e.ContentKey == cKey {
			return e, true
		}
	}
	return ngdp.RootEntry{}, false
}

// EntriesByFileDataID returns every entry (one per locale/flag variant)
// carrying the given fileDataID.
func (m *Manifest) EntriesByFileDataID(id ngdp.FileDataID) []ngdp.RootEntry {
	return m.byID[id]
}

// GetEntryByPath returns every entry whose normalized path contains the
// normalized query as a substring.
func (m *Manifest) GetEntryByPath(path string) []ngdp.RootEntry {
	needle := normalizePath(path)
	var out []ngdp.RootEntry
	for _, e := range m.entries {
		if e.HasPath && strings.Contains(e.NormalizedPath, needle) {
			out = append(out, e)
		}
	}
	return out
}

// normalizePath lower-cases a path and collapses backslash runs to a
// single forward slash, so queries match regardless of separator style.
func normalizePath(path string) string {
	path = strings.ToLower(path)
	path = strings.ReplaceAll(path, "\\", "/")
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	return path
}

const (
	mfstMagic = "TSFM" // "MFST" read little-endian as a 4-byte magic
	war3Magic = "War3"
)

// Decode dispatches to the MFST or War3 parser based on the manifest's
// magic bytes, stripping the magic before handing off: decodeMFST and
// decodeWar3 both start reading at the first byte after it.
func Decode(data []byte) (*Manifest, error) {
	if len(data) >= 4 && string(data[:4]) == war3Magic {
		return decodeWar3(data[4:])
	}
	if len(data) >= 4 && string(data[:4]) == mfstMagic {
		return decodeMFST(data[4:])
	}
	return decodeMFST(data)
}

func decodeMFST(data []byte) (*Manifest, error) {
	r := byteio.New(data)

	headerSize := uint32(0)
	version := uint32(1)

	peek, err := r.Uint32LE()
	if err != nil {
		return nil, err
	}
	if peek >= 12 && peek <= 100 {
		v, err := r.Uint32LE()
		if err != nil {
			return nil, err
		}
		headerSize, version = peek, v
	} else {
		r.Seek(0)
	}

	totalFileCount, err := r.Uint32LE()
	if err != nil {
		return nil, err
	}
	namedFileCount, err := r.Uint32LE()
	if err != nil {
		return nil, err
	}
	if headerSize > 0 {
		r.Skip(4) // reserved
	}

	var entries []ngdp.RootEntry
	for {
		block, ok := parseMFSTBlock(r, version, totalFileCount, namedFileCount)
		if !ok {
			break
		}
		entries = append(entries, block...)
		if r.EOF() {
			break
		}
	}

	return newManifest(entries), nil
}

// parseMFSTBlock parses one block of the MFST variant: the numRecords and
// flags/locale header, then the three parallel per-record arrays. It
// returns ok == false on any structural read failure, per spec.md §4.5.1's
// "block iteration ends cleanly ... when a structural read fails mid-block".
func parseMFSTBlock(r *byteio.Reader, version, totalFileCount, namedFileCount uint32) ([]ngdp.RootEntry, bool) {
	numRecords, err := r.Uint32LE()
	if err != nil {
		return nil, false
	}

	var contentFlags ngdp.ContentFlag
	var locale uint32
	if version == 2 {
		l, err := r.Uint32LE()
		if err != nil {
			return nil, false
		}
		unk1, err := r.Uint32LE()
		if err != nil {
			return nil, false
		}
		unk2, err := r.Uint32LE()
		if err != nil {
			return nil, false
		}
		unk3, err := r.Uint8()
		if err != nil {
			return nil, false
		}
		locale = l
		contentFlags = ngdp.ContentFlag(unk1 | unk2 | uint32(unk3)<<17)
	} else {
		cf, err := r.Uint32LE()
		if err != nil {
			return nil, false
		}
		l, err := r.Uint32LE()
		if err != nil {
			return nil, false
		}
		contentFlags = ngdp.ContentFlag(cf)
		locale = l
	}

	hasNameHashes := !(totalFileCount != namedFileCount && contentFlags&ngdp.ContentFlagNoNameHash != 0)

	deltas := make([]int32, numRecords)
	for i := uint32(0); i < numRecords; i++ {
		d, err := r.Int32LE()
		if err != nil {
			return nil, false
		}
		deltas[i] = d
	}

	cKeys := make([]ngdp.CKey, numRecords)
	for i := uint32(0); i < numRecords; i++ {
		b, err := r.Bytes(16)
		if err != nil {
			return nil, false
		}
		copy(cKeys[i][:], b)
	}

	var nameHashes []ngdp.NameHash
	if hasNameHashes {
		nameHashes = make([]ngdp.NameHash, numRecords)
		for i := uint32(0); i < numRecords; i++ {
			h, err := r.Uint64LE()
			if err != nil {
				return nil, false
			}
			nameHashes[i] = ngdp.NameHash(h)
		}
	}

	entries := make([]ngdp.RootEntry, numRecords)
	var current int32
	for i := uint32(0); i < numRecords; i++ {
		if i == 0 {
			current = deltas[0]
		} else {
			current = current + 1 + deltas[i]
		}

		e := ngdp.RootEntry{
			FileDataID:   ngdp.FileDataID(current),
			ContentKey:   cKeys[i],
			LocaleFlags:  locale,
			ContentFlags: contentFlags,
		}
		if hasNameHashes {
			e.NameHash = nameHashes[i]
			e.HasNameHash = true
		}
		entries[i] = e
	}
	return entries, true
}

func decodeWar3(data []byte) (*Manifest, error) {
	text := string(data)
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var entries []ngdp.RootEntry
	for _, line := range lines {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 2 {
			continue
		}
		path, eKeyHex := fields[0], fields[1]
		if path == "" || eKeyHex == "" {
			continue
		}

		cKey, err := ngdp.ParseCKey(eKeyHex)
		if err != nil {
			continue
		}

		h := war3Hash(path)

		e := ngdp.RootEntry{
			FileDataID:     ngdp.FileDataID(h),
			ContentKey:     cKey,
			NameHash:       ngdp.NameHash(h),
			HasNameHash:    true,
			NormalizedPath: normalizePath(path),
			HasPath:        true,
		}

		if len(fields) >= 3 && fields[2] != "" {
			if l, ok := ngdp.ParseLocaleName(fields[2]); ok {
				e.LocaleFlags = uint32(l)
			}
		}

		scopeParts := strings.Split(path, ":")
		if len(scopeParts) > 1 {
			e.Scopes = scopeParts[:len(scopeParts)-1]
		}

		entries = append(entries, e)
	}

	return newManifest(entries), nil
}

// war3Hash reproduces the source's 32-bit positive path hash: a simple
// h = (h<<5) - h + c rolling hash, absoluted at the end.
func war3Hash(path string) uint32 {
	var h int32
	for _, c := range []byte(path) {
		h = (h << 5) - h + int32(c)
	}
	if h < 0 {
		h = -h
	}
	return uint32(h)
}
