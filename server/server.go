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

// Command server exposes a read-only HTTP introspection API over one or
// more tracked (product, region) CASC builds: the currently resolved
// version, and file lookup by path or fileDataID. It does not serve a web
// UI; every route returns JSON or the raw requested blob.
package main

import (
	"context"
	"flag"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/lukegb/casc/ngdp"
	"github.com/lukegb/casc/ngdp/cache"
	"github.com/lukegb/casc/ngdp/client"
)

var (
	trackRegionsStr  = flag.String("track-regions", "eu,us", "comma-separated list of regions to track")
	trackProgramsStr = flag.String("track-programs", "hero,herot", "comma-separated list of programs to track")

	listen       = flag.String("listen", ":8080", "HTTP listen address")
	updatePeriod = flag.Duration("update-period", 30*time.Minute, "how often to re-initialize tracked clients")
)

var ds *datastore

// ProgramSummary is the JSON shape returned for one tracked (product,
// region) pair: enough to tell which build is currently live without
// exposing the whole Client.
type ProgramSummary struct {
	Region      ngdp.Region      `json:"region"`
	Program     ngdp.ProgramCode `json:"program"`
	BuildID     int              `json:"build_id"`
	VersionName string           `json:"versions_name"`
	BuildConfig string           `json:"build_config"`
	CDNConfig   string           `json:"cdn_config"`
	CDNPath     string           `json:"cdn_path"`
	CDNHosts    []string         `json:"cdn_hosts"`
	HasRoot     bool             `json:"has_root"`
}

func summarize(t Tracked, c *client.Client) ProgramSummary {
	v := c.VersionInfo()
	cdn := c.CDNInfo()
	_, hasRoot := c.Root()
	return ProgramSummary{
		Region:      t.Region,
		Program:     t.Program,
		BuildID:     v.BuildID,
		VersionName: v.VersionsName,
		BuildConfig: v.BuildConfig.String(),
		CDNConfig:   v.CDNConfig.String(),
		CDNPath:     cdn.Path,
		CDNHosts:    cdn.Hosts,
		HasRoot:     hasRoot,
	}
}

func annotateHeaders(h http.Header, v ngdp.VersionInfo) {
	h.Set("Casc-Build-Config", v.BuildConfig.String())
	h.Set("Casc-Build-ID", strconv.Itoa(v.BuildID))
	h.Set("Casc-Version-Name", v.VersionsName)
}

func main() {
	flag.Parse()

	ds = newDatastore(cache.NewMemory())

	for _, region := range strings.Split(*trackRegionsStr, ",") {
		for _, program := range strings.Split(*trackProgramsStr, ",") {
			ds.Track(ngdp.Region(region), ngdp.ProgramCode(program))
		}
	}

	glog.Info("Performing initial datastore update...")
	if err := ds.Update(context.Background()); err != nil {
		glog.Errorf("initial update: %v", err)
	}
	go func() {
		for range time.Tick(*updatePeriod) {
			glog.Info("Performing scheduled datastore update")
			if err := ds.Update(context.Background()); err != nil {
				glog.Errorf("scheduled update: %v", err)
			}
		}
	}()

	rtr := mux.NewRouter()
	r := rtr.Methods("GET").Subrouter()
	r.HandleFunc("/programs", programsHandler)
	r.HandleFunc("/programs/{program}/{region}", programHandler)
	r.Handle("/programs/{program}/{region}/files/{filePath:.+}", gziphandler.GzipHandler(http.HandlerFunc(fileByPathHandler)))
	r.Handle("/programs/{program}/{region}/filedataid/{fileDataID:[0-9]+}", gziphandler.GzipHandler(http.HandlerFunc(fileByFileDataIDHandler)))

	glog.Infof("Listening on %q", *listen)
	glog.Exit(http.ListenAndServe(*listen, rtr))
}
