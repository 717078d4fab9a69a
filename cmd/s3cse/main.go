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

// Command s3cse is a small CLI wrapping the s3cse engine: it encrypts a
// local file and uploads it, or downloads and decrypts an object, via
// cobra put/get subcommands.
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/GoogleContainerTools/s3cse/cmd/s3cse/app"
)

func main() {
	if err := app.NewRootCommand().Execute(); err != nil {
		logrus.Errorf("s3cse: %v", err)
		os.Exit(1)
	}
}
