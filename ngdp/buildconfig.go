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

package ngdp

import (
	"fmt"
	"io"
	"strconv"

	"github.com/lukegb/casc/ngdp/keyvalue"
)

// rawBuildConfig mirrors the wire shape of a buildconfig blob closely enough
// for keyvalue.Decode: every multi-hash or multi-number key decodes into a
// []string first, then ParseBuildConfig converts each token into its typed
// form.
type rawBuildConfig struct {
	Root string

	Install     string
	InstallSize string `keyvalue:"install-size"`

	Download     string
	DownloadSize string `keyvalue:"download-size"`

	Encoding     []string
	EncodingSize []string `keyvalue:"encoding-size"`

	Patch       string
	PatchSize   string `keyvalue:"patch-size"`
	PatchConfig string `keyvalue:"patch-config"`
}

// ParseBuildConfig decodes a buildconfig blob's key=value body.
func ParseBuildConfig(r io.Reader) (*BuildConfig, error) {
	var raw rawBuildConfig
	if err := keyvalue.Decode(r, &raw); err != nil {
		return nil, fmt.Errorf("ngdp: parsing buildconfig: %w", err)
	}

	var bc BuildConfig
	var err error

	if raw.Root != "" {
		if bc.Root, err = ParseCKey(raw.Root); err != nil {
			return nil, fmt.Errorf("ngdp: buildconfig root: %w", err)
		}
	}
	if raw.Install != "" {
		if bc.Install, err = ParseCKey(raw.Install); err != nil {
			return nil, fmt.Errorf("ngdp: buildconfig install: %w", err)
		}
	}
	if bc.InstallSize, err = parseOptionalUint(raw.InstallSize); err != nil {
		return nil, fmt.Errorf("ngdp: buildconfig install-size: %w", err)
	}
	if raw.Download != "" {
		if bc.Download, err = ParseCKey(raw.Download); err != nil {
			return nil, fmt.Errorf("ngdp: buildconfig download: %w", err)
		}
	}
	if bc.DownloadSize, err = parseOptionalUint(raw.DownloadSize); err != nil {
		return nil, fmt.Errorf("ngdp: buildconfig download-size: %w", err)
	}
	if raw.Patch != "" {
		if bc.Patch, err = ParseCKey(raw.Patch); err != nil {
			return nil, fmt.Errorf("ngdp: buildconfig patch: %w", err)
		}
	}
	if bc.PatchSize, err = parseOptionalUint(raw.PatchSize); err != nil {
		return nil, fmt.Errorf("ngdp: buildconfig patch-size: %w", err)
	}
	if raw.PatchConfig != "" {
		if bc.PatchConfig, err = ParseCKey(raw.PatchConfig); err != nil {
			return nil, fmt.Errorf("ngdp: buildconfig patch-config: %w", err)
		}
	}

	switch len(raw.Encoding) {
	case 0:
		return nil, ErrNoEncodingHash
	case 1:
		if bc.Encoding.ContentHash, err = ParseCKey(raw.Encoding[0]); err != nil {
			return nil, fmt.Errorf("ngdp: buildconfig encoding: %w", err)
		}
	case 2:
		if bc.Encoding.ContentHash, err = ParseCKey(raw.Encoding[0]); err != nil {
			return nil, fmt.Errorf("ngdp: buildconfig encoding: %w", err)
		}
		if bc.Encoding.EncodedHash, err = ParseEKey(raw.Encoding[1]); err != nil {
			return nil, fmt.Errorf("ngdp: buildconfig encoding: %w", err)
		}
		bc.Encoding.HasEncoded = true
	default:
		return nil, fmt.Errorf("ngdp: buildconfig encoding: unexpected %d tokens", len(raw.Encoding))
	}

	switch len(raw.EncodingSize) {
	case 0:
		// Some buildconfigs omit this; leave both sizes zero.
	case 2:
		if bc.EncodingSize.UncompressedSize, err = strconv.ParseUint(raw.EncodingSize[0], 10, 64); err != nil {
			return nil, fmt.Errorf("ngdp: buildconfig encoding-size: %w", err)
		}
		if bc.EncodingSize.CompressedSize, err = strconv.ParseUint(raw.EncodingSize[1], 10, 64); err != nil {
			return nil, fmt.Errorf("ngdp: buildconfig encoding-size: %w", err)
		}
	default:
		return nil, fmt.Errorf("ngdp: buildconfig encoding-size: unexpected %d tokens", len(raw.EncodingSize))
	}

	return &bc, nil
}

func parseOptionalUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

// rawCDNConfig mirrors the wire shape of a cdnconfig blob.
type rawCDNConfig struct {
	Archives     []string
	ArchiveGroup string `keyvalue:"archive-group"`

	PatchArchives     []string `keyvalue:"patch-archives"`
	PatchArchiveGroup string   `keyvalue:"patch-archive-group"`
}

// ParseCDNConfig decodes a cdnconfig blob's key=value body.
func ParseCDNConfig(r io.Reader) (*CDNConfig, error) {
	var raw rawCDNConfig
	if err := keyvalue.Decode(r, &raw); err != nil {
		return nil, fmt.Errorf("ngdp: parsing cdnconfig: %w", err)
	}

	var cc CDNConfig
	var err error

	cc.Archives, err = parseArchiveHashes(raw.Archives)
	if err != nil {
		return nil, fmt.Errorf("ngdp: cdnconfig archives: %w", err)
	}
	cc.PatchArchives, err = parseArchiveHashes(raw.PatchArchives)
	if err != nil {
		return nil, fmt.Errorf("ngdp: cdnconfig patch-archives: %w", err)
	}
	if raw.ArchiveGroup != "" {
		if cc.ArchiveGroup, err = ParseArchiveHash(raw.ArchiveGroup); err != nil {
			return nil, fmt.Errorf("ngdp: cdnconfig archive-group: %w", err)
		}
	}
	if raw.PatchArchiveGroup != "" {
		if cc.PatchArchiveGroup, err = ParseArchiveHash(raw.PatchArchiveGroup); err != nil {
			return nil, fmt.Errorf("ngdp: cdnconfig patch-archive-group: %w", err)
		}
	}

	return &cc, nil
}

func parseArchiveHashes(tokens []string) ([]ArchiveHash, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	out := make([]ArchiveHash, len(tokens))
	for i, tok := range tokens {
		h, err := ParseArchiveHash(tok)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}
