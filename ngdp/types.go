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

// Package ngdp holds the identifiers and wire-level types shared by every
// component of the CASC/NGDP client: the fixed-width content/encoded/archive
// keys, region and product codes, and the config structs decoded from the
// patch service.
package ngdp

import (
	"encoding/hex"
	"fmt"
)

// keySize is the width, in bytes, of a CKey, EKey or ArchiveHash as declared
// by the encoding table header. 16 is the value seen in every known product;
// the wire format allows it to vary, but this client only supports 16.
const keySize = 16

// CKey is a Content Key: the MD5-like fingerprint of a logical file's
// decompressed content. One per logical file.
type CKey [keySize]byte

// EKey is an Encoded Key: the fingerprint of one specific compressed
// encoding of a CKey. Multiple EKeys may map to the same CKey.
type EKey [keySize]byte

// ArchiveHash identifies a packed archive blob on the CDN.
type ArchiveHash [keySize]byte

// FileDataID is the stable numeric handle modern products use to address
// files, independent of their path.
type FileDataID uint32

// NameHash is the truncated Jenkins-96 hash modern products attach to a
// root entry; it is optional and zero when absent.
type NameHash uint64

func (k CKey) String() string        { return hex.EncodeToString(k[:]) }
func (k EKey) String() string        { return hex.EncodeToString(k[:]) }
func (k ArchiveHash) String() string { return hex.EncodeToString(k[:]) }

// ParseCKey decodes a lowercase-hex string into a CKey.
func ParseCKey(s string) (CKey, error) {
	var k CKey
	b, err := parseFixedHex(s, keySize)
	if err != nil {
		return k, fmt.Errorf("ngdp: parsing CKey %q: %w", s, err)
	}
	copy(k[:], b)
	return k, nil
}

// ParseEKey decodes a lowercase-hex string into an EKey.
func ParseEKey(s string) (EKey, error) {
	var k EKey
	b, err := parseFixedHex(s, keySize)
	if err != nil {
		return k, fmt.Errorf("ngdp: parsing EKey %q: %w", s, err)
	}
	copy(k[:], b)
	return k, nil
}

// ParseArchiveHash decodes a lowercase-hex string into an ArchiveHash.
func ParseArchiveHash(s string) (ArchiveHash, error) {
	var h ArchiveHash
	b, err := parseFixedHex(s, keySize)
	if err != nil {
		return h, fmt.Errorf("ngdp: parsing ArchiveHash %q: %w", s, err)
	}
	copy(h[:], b)
	return h, nil
}

func parseFixedHex(s string, n int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) < n {
		padded := make([]byte, n)
		copy(padded, b)
		return padded, nil
	}
	return b[:n], nil
}

// CDNInfo describes one entry of the patch service's "cdns" table: the set
// of CDN hosts and the content path prefix to use for a given region.
type CDNInfo struct {
	Name       Region
	Path       string
	Hosts      []string
	Servers    []string
	ConfigPath string
}

// VersionInfo describes one entry of the patch service's "versions" table:
// which build is currently live for a region.
type VersionInfo struct {
	Region        Region
	BuildConfig   CKey
	CDNConfig     CKey
	BuildID       int `configtable:"BuildId"`
	VersionsName  string
	ProductConfig CKey
}

// BuildConfigEncoding is the decoded form of the buildconfig "encoding" key:
// a content hash and, optionally, the encoded hash of the encoding table
// blob itself (the wire format is "<cKey> <eKey>").
type BuildConfigEncoding struct {
	ContentHash CKey
	EncodedHash EKey
	HasEncoded  bool
}

// BuildConfigEncodingSize is the decoded form of the "encoding-size" key.
type BuildConfigEncodingSize struct {
	UncompressedSize uint64
	CompressedSize   uint64
}

// BuildConfig is the decoded form of a buildconfig blob.
type BuildConfig struct {
	Root CKey

	Install     CKey
	InstallSize uint64

	Download     CKey
	DownloadSize uint64

	Encoding     BuildConfigEncoding
	EncodingSize BuildConfigEncodingSize

	Patch       CKey
	PatchSize   uint64
	PatchConfig CKey
}

// CDNConfig is the decoded form of a cdnconfig blob.
type CDNConfig struct {
	Archives     []ArchiveHash
	ArchiveGroup ArchiveHash

	PatchArchives     []ArchiveHash
	PatchArchiveGroup ArchiveHash
}

// EncodingEntry is one row of the encoding table: the set of encoded-key
// representations of a single logical file, plus its decompressed size.
//
// EKeys preserves the source table's insertion order; the first element is
// the canonical encoding.
type EncodingEntry struct {
	CKey     CKey
	EKeys    []EKey
	FileSize uint64
}

// IndexSource names which kind of archive index an IndexEntry was read
// from. This client only ever loads ArchiveSource entries.
type IndexSource string

const (
	ArchiveSource IndexSource = "archive"
	PatchSource   IndexSource = "patch"
)

// IndexEntry locates one encoded key's bytes within a packed archive blob.
type IndexEntry struct {
	EKey        EKey
	Size        uint32
	Offset      uint32
	ArchiveHash ArchiveHash
	Source      IndexSource
}

// RootEntry is one record of a root manifest: a fileDataID/content-key pair
// plus the flags that qualify it.
//
// NameHash and NormalizedPath are mutually present depending on manifest
// variant: the MFST variant carries NameHash but no path; the War3 variant
// derives both from the path. Scopes is populated only by the War3 variant.
type RootEntry struct {
	FileDataID     FileDataID
	ContentKey     CKey
	NameHash       NameHash
	HasNameHash    bool
	LocaleFlags    uint32
	ContentFlags   ContentFlag
	NormalizedPath string
	HasPath        bool
	Scopes         []string
}
