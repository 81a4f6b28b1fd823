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

// Package archiveindex decodes .index files: the 4KiB-paged tables that
// locate each encoded key's bytes within a packed archive blob.
package archiveindex

import (
	"github.com/lukegb/casc/ngdp"
	"github.com/lukegb/casc/ngdp/byteio"
)

const (
	pageSize = 4096
	keySize  = 16

	// maxEntrySize bounds a valid entry's declared size; anything larger
	// marks the start of trailing page padding rather than a real entry.
	maxEntrySize = 2 * 1024 * 1024
)

// Decode parses the data region of a .index file (the footer page already
// excluded by the caller, see Split) into one IndexEntry per record,
// keyed by encoded key.
func Decode(data []byte, archiveHash ngdp.ArchiveHash, source ngdp.IndexSource) (map[ngdp.EKey]ngdp.IndexEntry, error) {
	r := byteio.New(data)
	entries := make(map[ngdp.EKey]ngdp.IndexEntry)
	for {
		if r.Remaining() < keySize+8 {
			return entries, nil
		}

		eKeyBytes, err := r.Bytes(keySize)
		if err != nil {
			return entries, nil
		}
		size, err := r.Uint32BE()
		if err != nil {
			return entries, nil
		}
		offset, err := r.Uint32BE()
		if err != nil {
			return entries, nil
		}
		if size == 0 || size > maxEntrySize {
			return entries, nil
		}

		var eKey ngdp.EKey
		copy(eKey[:], eKeyBytes)
		entries[eKey] = ngdp.IndexEntry{
			EKey:        eKey,
			Size:        size,
			Offset:      offset,
			ArchiveHash: archiveHash,
			Source:      source,
		}
	}
}

// Split trims the trailing footer page from a raw .index file, returning
// the data region Decode should parse.
//
// Per spec.md §4.4: when the input length isn't a multiple of 4096, the
// trailing partial page is the footer and is discarded; every whole page
// before it is kept as data. When the length is an exact multiple, the
// footer can't be distinguished from data, so the whole input is treated
// as data.
func Split(raw []byte) []byte {
	if len(raw)%pageSize == 0 {
		return raw
	}
	dataPages := len(raw) / pageSize
	return raw[:dataPages*pageSize]
}
