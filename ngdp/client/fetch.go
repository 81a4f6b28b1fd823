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

package client

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lukegb/casc/blte"
	"github.com/lukegb/casc/ngdp"
	"github.com/lukegb/casc/ngdp/archiveindex"
)

const archiveConcurrentIndexFetches = 10

// loadArchiveIndices fetches every archive's .index file, in batches of at
// most archiveConcurrentIndexFetches concurrent requests, and merges the
// results into one eKey->IndexEntry map. A single archive's index failing
// to load or parse is not fatal; it is logged and skipped.
func (c *Client) loadArchiveIndices(ctx context.Context, archives []ngdp.ArchiveHash) (map[ngdp.EKey]ngdp.IndexEntry, error) {
	merged := make(map[ngdp.EKey]ngdp.IndexEntry)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(archiveConcurrentIndexFetches)
	for _, archiveHash := range archives {
		archiveHash := archiveHash
		g.Go(func() error {
			entries, err := c.loadOneArchiveIndex(ctx, archiveHash)
			if err != nil {
				glog.Warningf("client: loading archive index %s: %v", archiveHash, err)
				return nil
			}
			mu.Lock()
			for k, v := range entries {
				merged[k] = v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}

func (c *Client) loadOneArchiveIndex(ctx context.Context, archiveHash ngdp.ArchiveHash) (map[ngdp.EKey]ngdp.IndexEntry, error) {
	raw, err := c.fetchData(ctx, archiveHash, ".index")
	if err != nil {
		return nil, err
	}
	return archiveindex.Decode(archiveindex.Split(raw), archiveHash, ngdp.ArchiveSource)
}

// candidateEKeys returns the ordered set of EKeys a CKey could resolve to:
// its encoding-table entry, or the CKey itself reinterpreted as an EKey if
// the encoding table has no entry for it (this is how loose files, not
// packed into any archive's encoded form, are still addressable).
func (c *Client) candidateEKeys(cKey ngdp.CKey) []ngdp.EKey {
	if entry, ok := c.encoding[cKey]; ok {
		return entry.EKeys
	}
	return []ngdp.EKey{ngdp.EKey(cKey)}
}

// getFile resolves a single content key to its decompressed bytes through
// the archive index. It backs the public GetFile; the root manifest's
// loose blob is fetched by loadRoot instead.
func (c *Client) getFile(ctx context.Context, cKey ngdp.CKey) ([]byte, error) {
	for _, eKey := range c.candidateEKeys(cKey) {
		loc, ok := c.index[eKey]
		if !ok {
			continue
		}
		archiveData, err := c.fetchData(ctx, loc.ArchiveHash, "")
		if err != nil {
			return nil, errors.Wrapf(err, "client: fetching archive %s", loc.ArchiveHash)
		}
		end := int(loc.Offset) + int(loc.Size)
		if end > len(archiveData) {
			return nil, errors.Errorf("client: archive %s: index entry for %s out of range", loc.ArchiveHash, eKey)
		}
		data, err := blte.Decode(archiveData[loc.Offset:end])
		if err != nil {
			return nil, errors.Wrapf(err, "client: decoding %s from archive %s", eKey, loc.ArchiveHash)
		}
		return data, nil
	}
	return nil, nil
}

// GetFile fetches and BLTE-decodes the content addressed by cKey,
// initializing the client first if necessary. It returns ngdp.ErrNotFound
// if cKey cannot be resolved against the loaded encoding/index tables.
func (c *Client) GetFile(ctx context.Context, cKey ngdp.CKey) ([]byte, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	data, err := c.getFile(ctx, cKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ngdp.ErrNotFound
	}
	return data, nil
}

type resolvedLocation struct {
	cKey ngdp.CKey
	eKey ngdp.EKey
	loc  ngdp.IndexEntry
}

// GetFiles fetches and BLTE-decodes every resolvable cKey in cKeys,
// fetching each distinct backing archive blob only once. CKeys that fail
// to resolve against the index are simply absent from the result; a
// failure while fetching or decoding an archive that DID resolve is fatal
// to the whole call.
func (c *Client) GetFiles(ctx context.Context, cKeys []ngdp.CKey) (map[ngdp.CKey][]byte, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	var resolved []resolvedLocation
	for _, cKey := range cKeys {
		for _, eKey := range c.candidateEKeys(cKey) {
			if loc, ok := c.index[eKey]; ok {
				resolved = append(resolved, resolvedLocation{cKey: cKey, eKey: eKey, loc: loc})
				break
			}
		}
	}

	byArchive := make(map[ngdp.ArchiveHash][]resolvedLocation)
	for _, r := range resolved {
		byArchive[r.loc.ArchiveHash] = append(byArchive[r.loc.ArchiveHash], r)
	}

	out := make(map[ngdp.CKey][]byte, len(resolved))
	for archiveHash, locs := range byArchive {
		archiveData, err := c.fetchData(ctx, archiveHash, "")
		if err != nil {
			return nil, errors.Wrapf(err, "client: fetching archive %s", archiveHash)
		}
		for _, r := range locs {
			end := int(r.loc.Offset) + int(r.loc.Size)
			if end > len(archiveData) {
				return nil, errors.Errorf("client: archive %s: index entry for %s out of range", archiveHash, r.eKey)
			}
			data, err := blte.Decode(archiveData[r.loc.Offset:end])
			if err != nil {
				return nil, errors.Wrapf(err, "client: decoding %s from archive %s", r.eKey, archiveHash)
			}
			out[r.cKey] = data
		}
	}
	return out, nil
}
