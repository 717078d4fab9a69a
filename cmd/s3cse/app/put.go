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

package app

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/GoogleContainerTools/s3cse/pkg/localfs"
)

type putFlags struct {
	bucket string
	key    string
	file   string
}

func newPutCommand(global *globalFlags) *cobra.Command {
	flags := &putFlags{}

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Encrypt a local file and upload it to an S3-compatible bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(cmd, global, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.bucket, "bucket", "", "destination bucket (required)")
	f.StringVar(&flags.key, "key", "", "destination object key (required)")
	f.StringVar(&flags.file, "file", "", "local file to encrypt and upload (required)")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runPut(cmd *cobra.Command, global *globalFlags, flags *putFlags) error {
	ctx := cmd.Context()

	engine, err := buildEngine(ctx, global)
	if err != nil {
		return err
	}

	f, err := localfs.Open(flags.file)
	if err != nil {
		return errors.Wrapf(err, "s3cse: open %s", flags.file)
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrapf(err, "s3cse: read %s", flags.file)
	}

	logrus.Debugf("s3cse: put file=%s bucket=%s key=%s len=%d", flags.file, flags.bucket, flags.key, len(body))
	if err := engine.PutObject(ctx, flags.bucket, flags.key, body); err != nil {
		return errors.Wrap(err, "s3cse: put object")
	}

	cmd.Printf("uploaded s3://%s/%s (%d bytes plaintext)\n", flags.bucket, flags.key, len(body))
	return nil
}
