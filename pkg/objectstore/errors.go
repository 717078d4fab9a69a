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

package objectstore

import "github.com/pkg/errors"

// ErrNotFound is returned by Store implementations when the requested
// object key or multipart upload id does not exist, normalized from
// whatever the backing transport calls it (e.g. S3's NoSuchKey).
var ErrNotFound = errors.New("objectstore: not found")
