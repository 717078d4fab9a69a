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

// Package app implements the s3cse CLI's cobra command tree: a put
// subcommand that client-side encrypts a local file and uploads it
// through the multipart orchestrator, and a get subcommand that
// downloads and decrypts an object, with optional ranged reads.
package app

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// globalFlags holds flags shared by every subcommand.
type globalFlags struct {
	verbose bool
	region  string

	cryptoContext string // "symmetric" | "asymmetric" | "kms"
	aesKeyHex     string
	rsaPublicKey  string
	rsaPrivateKey string
	kmsKeyID      string

	authenticatedEncryption bool
	v1Envelope              bool
}

// NewRootCommand builds the s3cse root cobra command and wires its
// put/get subcommands.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "s3cse",
		Short:         "Client-side-encrypted S3 object transfer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&flags.region, "region", "us-east-1", "AWS region for the S3 and KMS clients")
	addCryptoFlags(pf, flags)

	root.AddCommand(newPutCommand(flags))
	root.AddCommand(newGetCommand(flags))
	return root
}

// addCryptoFlags registers the CryptoContext selection flags on pf.
func addCryptoFlags(pf *pflag.FlagSet, flags *globalFlags) {
	pf.StringVar(&flags.cryptoContext, "crypto-context", "symmetric", "key-wrap context: symmetric|asymmetric|kms")
	pf.StringVar(&flags.aesKeyHex, "aes-key-hex", "", "hex-encoded AES key-encryption key (symmetric context)")
	pf.StringVar(&flags.rsaPublicKey, "rsa-public-key", "", "path to a PEM RSA public key (asymmetric context, encrypt)")
	pf.StringVar(&flags.rsaPrivateKey, "rsa-private-key", "", "path to a PEM RSA private key (asymmetric context, decrypt)")
	pf.StringVar(&flags.kmsKeyID, "kms-key-id", "", "KMS key id/alias (kms context)")
	pf.BoolVar(&flags.authenticatedEncryption, "authenticated-encryption", true, "use AES-256-GCM instead of CBC for the kms context")
	pf.BoolVar(&flags.v1Envelope, "v1-envelope", false, "write the legacy v1 envelope (symmetric/asymmetric only)")
}
