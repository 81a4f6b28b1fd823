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

// Package client implements the resolver: the component that turns a
// (product, region) pair into a fully initialized view of a CASC build
// (configs, encoding table, archive index, root manifest) and then
// answers content-key and path lookups against it by talking to the CDN.
package client

import (
	"bytes"
	"context"
	"net/http"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lukegb/casc/blte"
	"github.com/lukegb/casc/ngdp"
	"github.com/lukegb/casc/ngdp/cache"
	"github.com/lukegb/casc/ngdp/encoding"
	"github.com/lukegb/casc/ngdp/root"
)

// getter abstracts http.Client so tests can substitute canned responses
// without a real network round trip.
type getter interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client resolves files for one (product, region) CASC build. The zero
// value is not usable; construct with New.
type Client struct {
	program ngdp.ProgramCode
	region  ngdp.Region

	http  getter
	cache cache.Cache

	inited      bool
	cdn         ngdp.CDNInfo
	version     ngdp.VersionInfo
	buildConfig *ngdp.BuildConfig
	cdnConfig   *ngdp.CDNConfig

	encoding map[ngdp.CKey]ngdp.EncodingEntry
	index    map[ngdp.EKey]ngdp.IndexEntry
	root     *root.Manifest
}

// Option configures a Client constructed by New.
type Option func(*Client)

// WithHTTPClient overrides the http.Client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache attaches a cache collaborator. Cache misses fall through to
// the network transparently; a nil Cache (the default) disables caching
// entirely.
func WithCache(ca cache.Cache) Option {
	return func(c *Client) { c.cache = ca }
}

// New creates a Client for the given product and region. Call Init (or
// let GetFile/GetFiles call it implicitly) before using it.
func New(program ngdp.ProgramCode, region ngdp.Region, opts ...Option) *Client {
	c := &Client{
		program: program,
		region:  region,
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init fetches and parses everything needed to resolve files: the CDN and
// version tables, the build and CDN configs, the encoding table, every
// archive index, and (if present) the root manifest. It is idempotent;
// later calls are no-ops once the first succeeds.
func (c *Client) Init(ctx context.Context) error {
	if c.inited {
		return nil
	}
	glog.Infof("client: initializing %s/%s", c.program, c.region)

	cdn, err := c.pickCDN(ctx)
	if err != nil {
		return err
	}
	c.cdn = cdn

	version, err := c.pickVersion(ctx)
	if err != nil {
		return err
	}
	c.version = version

	buildConfig, cdnConfig, err := c.fetchConfigs(ctx, version)
	if err != nil {
		return err
	}
	c.buildConfig = buildConfig
	c.cdnConfig = cdnConfig

	if !buildConfig.Encoding.HasEncoded {
		return ngdp.ErrNoEncodingHash
	}
	encodingData, err := c.fetchData(ctx, buildConfig.Encoding.EncodedHash, "")
	if err != nil {
		return errors.Wrap(err, "client: fetching encoding table")
	}
	encodingTable, err := encoding.Decode(encodingData)
	if err != nil {
		return errors.Wrap(err, "client: parsing encoding table")
	}
	c.encoding = encodingTable

	index, err := c.loadArchiveIndices(ctx, cdnConfig.Archives)
	if err != nil {
		return err
	}
	c.index = index

	var zeroCKey ngdp.CKey
	if buildConfig.Root != zeroCKey {
		m, err := c.loadRoot(ctx, buildConfig.Root)
		if err != nil {
			return err
		}
		c.root = m
	}

	c.inited = true
	return nil
}

// Root returns the parsed root manifest, if the build declared one.
func (c *Client) Root() (*root.Manifest, bool) {
	return c.root, c.root != nil
}

// CDNInfo returns the CDN entry selected during Init.
func (c *Client) CDNInfo() ngdp.CDNInfo { return c.cdn }

// VersionInfo returns the version entry selected during Init.
func (c *Client) VersionInfo() ngdp.VersionInfo { return c.version }

// BuildConfig returns the build config fetched during Init.
func (c *Client) BuildConfig() *ngdp.BuildConfig { return c.buildConfig }

// loadRoot fetches the root manifest directly from the CDN as a loose
// file. Unlike every other content key, the root blob lives under its
// EKey on its own, never packed inside an archive, so it is not resolved
// through the archive index the way getFile resolves ordinary content.
func (c *Client) loadRoot(ctx context.Context, rootCKey ngdp.CKey) (*root.Manifest, error) {
	eKeys := c.candidateEKeys(rootCKey)
	if len(eKeys) == 0 {
		return nil, ngdp.ErrNoEncodingHash
	}
	eKey := eKeys[0]

	raw, err := c.fetchData(ctx, eKey, "")
	if err != nil {
		return nil, errors.Wrap(err, "client: fetching root manifest")
	}
	data, err := blte.Decode(raw)
	if err != nil {
		return nil, errors.Wrap(err, "client: decoding root manifest")
	}
	m, err := root.Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, "client: parsing root manifest")
	}
	return m, nil
}

func (c *Client) pickCDN(ctx context.Context) (ngdp.CDNInfo, error) {
	cdns, err := c.fetchCDNs(ctx)
	if err != nil {
		return ngdp.CDNInfo{}, err
	}

	var fallback *ngdp.CDNInfo
	for i := range cdns {
		if cdns[i].Name == c.region {
			return cdns[i], nil
		}
		if cdns[i].Name == ngdp.RegionEurope {
			fallback = &cdns[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	if len(cdns) > 0 {
		return cdns[0], nil
	}
	return ngdp.CDNInfo{}, ngdp.ErrNoCDN
}

func (c *Client) pickVersion(ctx context.Context) (ngdp.VersionInfo, error) {
	versions, err := c.fetchVersions(ctx)
	if err != nil {
		return ngdp.VersionInfo{}, err
	}
	for _, v := range versions {
		if v.Region == c.region {
			return v, nil
		}
	}
	return ngdp.VersionInfo{}, ngdp.ErrNoVersion
}

func (c *Client) fetchConfigs(ctx context.Context, version ngdp.VersionInfo) (*ngdp.BuildConfig, *ngdp.CDNConfig, error) {
	var buildConfig *ngdp.BuildConfig
	var cdnConfig *ngdp.CDNConfig

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := c.fetchConfig(ctx, version.BuildConfig)
		if err != nil {
			return errors.Wrap(err, "client: fetching buildconfig")
		}
		bc, err := ngdp.ParseBuildConfig(bytes.NewReader(data))
		if err != nil {
			return errors.Wrap(err, "client: parsing buildconfig")
		}
		buildConfig = bc
		return nil
	})
	g.Go(func() error {
		data, err := c.fetchConfig(ctx, version.CDNConfig)
		if err != nil {
			return errors.Wrap(err, "client: fetching cdnconfig")
		}
		cc, err := ngdp.ParseCDNConfig(bytes.NewReader(data))
		if err != nil {
			return errors.Wrap(err, "client: parsing cdnconfig")
		}
		cdnConfig = cc
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return buildConfig, cdnConfig, nil
}
