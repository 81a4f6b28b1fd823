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

package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/lukegb/casc/ngdp"
	"github.com/lukegb/casc/ngdp/client"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func programsHandler(w http.ResponseWriter, r *http.Request) {
	var out []ProgramSummary
	for _, t := range ds.Tracking() {
		c, ok := ds.Client(t.Region, t.Program)
		if !ok {
			continue
		}
		out = append(out, summarize(t, c))
	}
	writeJSON(w, out)
}

func programHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t := Tracked{Program: ngdp.ProgramCode(vars["program"]), Region: ngdp.Region(vars["region"])}

	c, ok := ds.Client(t.Region, t.Program)
	if !ok {
		http.Error(w, "no such program/region", http.StatusNotFound)
		return
	}
	annotateHeaders(w.Header(), c.VersionInfo())
	writeJSON(w, summarize(t, c))
}

func fileByPathHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t := Tracked{Program: ngdp.ProgramCode(vars["program"]), Region: ngdp.Region(vars["region"])}

	c, ok := ds.Client(t.Region, t.Program)
	if !ok {
		http.Error(w, "no such program/region", http.StatusNotFound)
		return
	}
	annotateHeaders(w.Header(), c.VersionInfo())

	rootManifest, ok := c.Root()
	if !ok {
		http.Error(w, ngdp.ErrRootNotAvailable.Error(), http.StatusNotFound)
		return
	}

	fp := vars["filePath"]
	entries := rootManifest.GetEntryByPath(fp)
	if len(entries) == 0 {
		http.Error(w, "no such file", http.StatusNotFound)
		return
	}
	serveEntry(w, r, c, entries[0])
}

func fileByFileDataIDHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t := Tracked{Program: ngdp.ProgramCode(vars["program"]), Region: ngdp.Region(vars["region"])}

	c, ok := ds.Client(t.Region, t.Program)
	if !ok {
		http.Error(w, "no such program/region", http.StatusNotFound)
		return
	}
	annotateHeaders(w.Header(), c.VersionInfo())

	rootManifest, ok := c.Root()
	if !ok {
		http.Error(w, ngdp.ErrRootNotAvailable.Error(), http.StatusNotFound)
		return
	}

	id, err := strconv.ParseUint(vars["fileDataID"], 10, 32)
	if err != nil {
		http.Error(w, "bad fileDataID", http.StatusBadRequest)
		return
	}
	entries := rootManifest.EntriesByFileDataID(ngdp.FileDataID(id))
	if len(entries) == 0 {
		http.Error(w, "no such file", http.StatusNotFound)
		return
	}
	serveEntry(w, r, c, entries[0])
}

func serveEntry(w http.ResponseWriter, r *http.Request, c *client.Client, entry ngdp.RootEntry) {
	calcetag := `"` + entry.ContentKey.String() + `"`
	if etag := r.Header.Get("If-None-Match"); etag == calcetag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := c.GetFile(r.Context(), entry.ContentKey)
	if err != nil {
		if err == ngdp.ErrNotFound {
			http.Error(w, "content key not resolvable", http.StatusNotFound)
			return
		}
		glog.Errorf("fetching %s: %v", entry.ContentKey, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", calcetag)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
