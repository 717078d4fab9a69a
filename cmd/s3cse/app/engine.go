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
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/pkg/errors"

	"github.com/GoogleContainerTools/s3cse/pkg/kms"
	"github.com/GoogleContainerTools/s3cse/pkg/objectstore"
	"github.com/GoogleContainerTools/s3cse/pkg/s3cse"
)

// buildEngine loads the real aws.Config for flags.region and assembles an
// s3cse.Engine over a real S3Store/KMS Client, selecting the
// CryptoContext variant named by flags.cryptoContext.
func buildEngine(ctx context.Context, flags *globalFlags) (*s3cse.Engine, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(flags.region))
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: load aws config")
	}
	store := objectstore.NewS3Store(cfg)

	cryptoCtx, err := buildCryptoContext(cfg, flags)
	if err != nil {
		return nil, err
	}

	return s3cse.NewEngine(store, cryptoCtx,
		s3cse.WithAuthenticatedEncryption(flags.authenticatedEncryption),
		s3cse.WithV1Envelope(flags.v1Envelope),
	), nil
}

// buildCryptoContext selects and constructs the CryptoContext variant
// named by flags.cryptoContext.
func buildCryptoContext(cfg aws.Config, flags *globalFlags) (s3cse.CryptoContext, error) {
	switch flags.cryptoContext {
	case "symmetric":
		if flags.aesKeyHex == "" {
			return nil, errors.New("s3cse: --aes-key-hex is required for the symmetric context")
		}
		key, err := decodeHexKey(flags.aesKeyHex)
		if err != nil {
			return nil, err
		}
		return &s3cse.SymmetricContext{Key: key}, nil

	case "asymmetric":
		ctx := &s3cse.AsymmetricContext{}
		if flags.rsaPublicKey != "" {
			pub, err := readRSAPublicKey(flags.rsaPublicKey)
			if err != nil {
				return nil, err
			}
			ctx.PublicKey = pub
		}
		if flags.rsaPrivateKey != "" {
			priv, err := readRSAPrivateKey(flags.rsaPrivateKey)
			if err != nil {
				return nil, err
			}
			ctx.PrivateKey = priv
			if ctx.PublicKey == nil {
				ctx.PublicKey = &priv.PublicKey
			}
		}
		return ctx, nil

	case "kms":
		return &s3cse.KmsContext{Service: kms.NewClient(cfg), KeyID: flags.kmsKeyID}, nil

	default:
		return nil, errors.Errorf("s3cse: unknown --crypto-context %q", flags.cryptoContext)
	}
}

func decodeHexKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: invalid --aes-key-hex")
	}
	return key, nil
}

func readRSAPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "s3cse: read %s", path)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.Errorf("s3cse: no PEM block in %s", path)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrapf(err, "s3cse: parse public key %s", path)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.Errorf("s3cse: %s is not an RSA public key", path)
	}
	return rsaPub, nil
}

func readRSAPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "s3cse: read %s", path)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.Errorf("s3cse: no PEM block in %s", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrapf(err, "s3cse: parse private key %s", path)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.Errorf("s3cse: %s is not an RSA private key", path)
	}
	return rsaKey, nil
}
