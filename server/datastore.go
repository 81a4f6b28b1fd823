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
	"context"
	"runtime"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/lukegb/casc/ngdp"
	"github.com/lukegb/casc/ngdp/cache"
	"github.com/lukegb/casc/ngdp/client"
)

// Tracked names one (product, region) pair the datastore keeps initialized.
type Tracked struct {
	Region  ngdp.Region
	Program ngdp.ProgramCode
}

// datastore holds a live Client per tracked (product, region) pair,
// refreshed on a timer by Update. Readers never block on a refresh in
// progress: a pair's old Client stays available until its replacement
// has finished initializing.
type datastore struct {
	cache cache.Cache

	l        sync.RWMutex
	tracking []Tracked
	clients  map[Tracked]*client.Client
}

func newDatastore(ca cache.Cache) *datastore {
	return &datastore{
		cache:   ca,
		clients: make(map[Tracked]*client.Client),
	}
}

// Track adds a (product, region) pair to the set Update refreshes.
func (d *datastore) Track(region ngdp.Region, program ngdp.ProgramCode) {
	d.l.Lock()
	defer d.l.Unlock()
	d.tracking = append(d.tracking, Tracked{Region: region, Program: program})
}

// Tracking returns the current set of tracked pairs.
func (d *datastore) Tracking() []Tracked {
	d.l.RLock()
	defer d.l.RUnlock()
	out := make([]Tracked, len(d.tracking))
	copy(out, d.tracking)
	return out
}

// Client returns the most recently initialized Client for a tracked pair.
func (d *datastore) Client(region ngdp.Region, program ngdp.ProgramCode) (*client.Client, bool) {
	d.l.RLock()
	defer d.l.RUnlock()
	c, ok := d.clients[Tracked{Region: region, Program: program}]
	return c, ok
}

// Update re-initializes a Client for every tracked pair. A single pair
// failing to initialize is logged and does not prevent the others from
// refreshing; the pair simply keeps serving its last-good Client.
func (d *datastore) Update(ctx context.Context) error {
	tracking := d.Tracking()

	var lastErr error
	for _, t := range tracking {
		if err := d.updateOne(ctx, t); err != nil {
			glog.Errorf("datastore: updating %s/%s: %v", t.Program, t.Region, err)
			lastErr = err
		}
	}

	runtime.GC()
	return lastErr
}

func (d *datastore) updateOne(ctx context.Context, t Tracked) error {
	glog.Infof("datastore: updating %s/%s", t.Program, t.Region)

	c := client.New(t.Program, t.Region, client.WithCache(d.cache))
	if err := c.Init(ctx); err != nil {
		return errors.Wrapf(err, "initializing %s/%s", t.Program, t.Region)
	}

	d.l.Lock()
	d.clients[t] = c
	d.l.Unlock()
	return nil
}
