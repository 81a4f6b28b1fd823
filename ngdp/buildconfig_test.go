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
	"strings"
	"testing"
)

func TestParseBuildConfig(t *testing.T) {
	in := `root = 00000000000000000000000000000001
install = 00000000000000000000000000000002
install-size = 1024
download = 00000000000000000000000000000003
download-size = 2048
encoding = 00000000000000000000000000000004 00000000000000000000000000000005
encoding-size = 100 50
patch = 00000000000000000000000000000006
patch-size = 10
patch-config = 00000000000000000000000000000007
`
	bc, err := ParseBuildConfig(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseBuildConfig: %v", err)
	}

	wantRoot, _ := ParseCKey("00000000000000000000000000000001")
	if bc.Root != wantRoot {
		t.Errorf("Root = %x; want %x", bc.Root, wantRoot)
	}
	if bc.InstallSize != 1024 {
		t.Errorf("InstallSize = %d; want 1024", bc.InstallSize)
	}
	if bc.DownloadSize != 2048 {
		t.Errorf("DownloadSize = %d; want 2048", bc.DownloadSize)
	}
	if !bc.Encoding.HasEncoded {
		t.Errorf("Encoding.HasEncoded = false; want true")
	}
	if bc.EncodingSize.UncompressedSize != 100 || bc.EncodingSize.CompressedSize != 50 {
		t.Errorf("EncodingSize = %+v; want {100 50}", bc.EncodingSize)
	}
	if bc.PatchSize != 10 {
		t.Errorf("PatchSize = %d; want 10", bc.PatchSize)
	}
}

func TestParseBuildConfigSingleTokenEncoding(t *testing.T) {
	in := "encoding = 00000000000000000000000000000004\n"
	bc, err := ParseBuildConfig(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseBuildConfig: %v", err)
	}
	if bc.Encoding.HasEncoded {
		t.Errorf("Encoding.HasEncoded = true; want false")
	}
}

func TestParseBuildConfigMissingEncoding(t *testing.T) {
	_, err := ParseBuildConfig(strings.NewReader("root = 00000000000000000000000000000001\n"))
	if err != ErrNoEncodingHash {
		t.Errorf("ParseBuildConfig err = %v; want ErrNoEncodingHash", err)
	}
}

func TestParseCDNConfig(t *testing.T) {
	in := `archives = 00000000000000000000000000000001 00000000000000000000000000000002
archive-group = 00000000000000000000000000000003
patch-archives = 00000000000000000000000000000004
patch-archive-group = 00000000000000000000000000000005
`
	cc, err := ParseCDNConfig(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCDNConfig: %v", err)
	}
	if len(cc.Archives) != 2 {
		t.Errorf("len(Archives) = %d; want 2", len(cc.Archives))
	}
	if len(cc.PatchArchives) != 1 {
		t.Errorf("len(PatchArchives) = %d; want 1", len(cc.PatchArchives))
	}
	wantGroup, _ := ParseArchiveHash("00000000000000000000000000000003")
	if cc.ArchiveGroup != wantGroup {
		t.Errorf("ArchiveGroup = %x; want %x", cc.ArchiveGroup, wantGroup)
	}
}
