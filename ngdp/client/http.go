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
	"fmt"
	"io"
	"net/http"

	"github.com/lukegb/casc/ngdp"
	"github.com/lukegb/casc/ngdp/configtable"
)

const patchService = "patch.battle.net"

func patchURL(program ngdp.ProgramCode, region ngdp.Region, suffix string) string {
	return fmt.Sprintf("http://%s.%s:1119/%s/%s", region, patchService, program, suffix)
}

// preferredHost picks the host to address the CDN by: Hosts wins over
// Servers when both are present, and within either list the first entry
// is used.
func preferredHost(cdn ngdp.CDNInfo) string {
	if len(cdn.Hosts) > 0 {
		return cdn.Hosts[0]
	}
	if len(cdn.Servers) > 0 {
		return cdn.Servers[0]
	}
	return ""
}

func dataURL(cdn ngdp.CDNInfo, contentType ngdp.ContentType, hash fmt.Stringer, suffix string) string {
	h := hash.String()
	return fmt.Sprintf("http://%s/%s/%s/%s/%s/%s%s", preferredHost(cdn), cdn.Path, contentType, h[0:2], h[2:4], h, suffix)
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func (c *Client) fetchCDNs(ctx context.Context) ([]ngdp.CDNInfo, error) {
	url := patchURL(c.program, c.region, "cdns")
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &ngdp.FetchFailedError{URL: url, StatusCode: resp.StatusCode}
	}

	var cdns []ngdp.CDNInfo
	d := configtable.NewDecoder(resp.Body)
	for {
		var cdn ngdp.CDNInfo
		if err := d.Decode(&cdn); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		cdns = append(cdns, cdn)
	}
	return cdns, nil
}

func (c *Client) fetchVersions(ctx context.Context) ([]ngdp.VersionInfo, error) {
	resp, err := c.do(ctx, patchURL(c.program, c.region, "versions"))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &ngdp.FetchFailedError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
	}

	var versions []ngdp.VersionInfo
	d := configtable.NewDecoder(resp.Body)
	for {
		var version ngdp.VersionInfo
		if err := d.Decode(&version); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, nil
}

// fetchConfig retrieves a config blob (buildconfig, cdnconfig, ...) by its
// content key, consulting and populating the cache under "config_<hash>".
func (c *Client) fetchConfig(ctx context.Context, key ngdp.CKey) ([]byte, error) {
	cacheKey := "config_" + key.String()
	if c.cache != nil {
		if data, ok := c.cache.Get(cacheKey); ok {
			return data, nil
		}
	}

	url := dataURL(c.cdn, ngdp.ContentTypeConfig, key, "")
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &ngdp.FetchFailedError{URL: url, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Put(cacheKey, data)
	}
	return data, nil
}

// fetchData retrieves a data blob (a loose file, an archive, or with
// suffix ".index" an archive index) by its hash, consulting and populating
// the cache under the hash followed by suffix.
func (c *Client) fetchData(ctx context.Context, key fmt.Stringer, suffix string) ([]byte, error) {
	cacheKey := key.String() + suffix
	if c.cache != nil {
		if data, ok := c.cache.Get(cacheKey); ok {
			return data, nil
		}
	}

	url := dataURL(c.cdn, ngdp.ContentTypeData, key, suffix)
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &ngdp.FetchFailedError{URL: url, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Put(cacheKey, data)
	}
	return data, nil
}
