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
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/GoogleContainerTools/s3cse/pkg/localfs"
	"github.com/GoogleContainerTools/s3cse/pkg/objectstore"
)

type getFlags struct {
	bucket     string
	key        string
	outputFile string
	rangeStart int64
	rangeEnd   int64
	hasRange   bool
}

func newGetCommand(global *globalFlags) *cobra.Command {
	flags := &getFlags{rangeStart: -1, rangeEnd: -1}

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Download and decrypt an object from an S3-compatible bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.hasRange = flags.rangeStart >= 0 || flags.rangeEnd >= 0
			if flags.hasRange && (flags.rangeStart < 0 || flags.rangeEnd < 0) {
				return errors.New("s3cse: --range-start and --range-end must be given together")
			}
			return runGet(cmd, global, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.bucket, "bucket", "", "source bucket (required)")
	f.StringVar(&flags.key, "key", "", "source object key (required)")
	f.StringVar(&flags.outputFile, "output", "", "local file to write the decrypted plaintext to (required)")
	f.Int64Var(&flags.rangeStart, "range-start", -1, "inclusive start byte of a ranged read (GCM objects only)")
	f.Int64Var(&flags.rangeEnd, "range-end", -1, "inclusive end byte of a ranged read (GCM objects only)")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runGet(cmd *cobra.Command, global *globalFlags, flags *getFlags) error {
	ctx := cmd.Context()

	engine, err := buildEngine(ctx, global)
	if err != nil {
		return err
	}

	var byteRange *objectstore.ByteRange
	if flags.hasRange {
		byteRange = &objectstore.ByteRange{Start: flags.rangeStart, End: flags.rangeEnd}
	}

	logrus.Debugf("s3cse: get bucket=%s key=%s range=%v", flags.bucket, flags.key, byteRange)
	plaintext, err := engine.GetObject(ctx, flags.bucket, flags.key, byteRange)
	if err != nil {
		return errors.Wrap(err, "s3cse: get object")
	}

	out, err := localfs.Create(flags.outputFile)
	if err != nil {
		return errors.Wrapf(err, "s3cse: create %s", flags.outputFile)
	}
	defer out.Close()
	if _, err := out.Write(plaintext); err != nil {
		return errors.Wrapf(err, "s3cse: write %s", flags.outputFile)
	}

	cmd.Printf("downloaded s3://%s/%s -> %s (%d bytes plaintext)\n", flags.bucket, flags.key, flags.outputFile, len(plaintext))
	return nil
}
