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

package cache

import (
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

const dirPerm = 0o700

// Disk is a Cache backed by the local filesystem. Cache keys are opaque
// strings (not necessarily filesystem-safe), so each key is stored under
// the hex digest of its own content rather than the key text itself.
type Disk struct {
	dir string
}

// NewDisk creates a disk-backed cache rooted at dir, creating it if
// necessary.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}
	return &Disk{dir: dir}, nil
}

func (c *Disk) path(key string) string {
	d := digest.FromString(key)
	hex := d.Encoded()
	return filepath.Join(c.dir, hex[:2], hex)
}

// Get implements Cache.
func (c *Disk) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put implements Cache.
func (c *Disk) Put(key string, data []byte) {
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return
	}
	// Best-effort: a failed cache write is never fatal to the caller,
	// which already has the bytes it asked for.
	_ = os.WriteFile(path, data, 0o600)
}
