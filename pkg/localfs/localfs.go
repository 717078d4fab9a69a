/*
Copyright 2018 Google LLC

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

// Package localfs exposes the local filesystem the CLI opens and creates
// files on, behind a swappable afero.Fs so an in-memory filesystem can be
// substituted for the OS one.
package localfs

import (
	"github.com/spf13/afero"
)

// FS is the default filesystem used by the package.
var FS afero.Fs = afero.NewOsFs()

// SetFS overrides FS, used by tests to substitute an in-memory filesystem.
func SetFS(fs afero.Fs) {
	FS = fs
}

// Open opens name for reading using the current FS.
func Open(name string) (afero.File, error) {
	return FS.Open(name)
}

// Create creates (or truncates) name for writing using the current FS.
func Create(name string) (afero.File, error) {
	return FS.Create(name)
}

// Stat returns file info for name using the current FS.
func Stat(name string) (int64, error) {
	fi, err := FS.Stat(name)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
