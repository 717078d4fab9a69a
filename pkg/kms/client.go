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

package kms

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awskms "github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// kmsAPI is the subset of *awskms.Client this package calls, narrowed for
// testability.
type kmsAPI interface {
	GenerateDataKey(ctx context.Context, params *awskms.GenerateDataKeyInput, optFns ...func(*awskms.Options)) (*awskms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *awskms.DecryptInput, optFns ...func(*awskms.Options)) (*awskms.DecryptOutput, error)
}

// Client is the real Service implementation, backed by
// github.com/aws/aws-sdk-go-v2/service/kms.
type Client struct {
	api kmsAPI
}

var _ Service = (*Client)(nil)

// NewClient wraps an aws.Config into a kms.Client.
func NewClient(cfg aws.Config) *Client {
	return &Client{api: awskms.NewFromConfig(cfg)}
}

func (c *Client) GenerateDataKey(ctx context.Context, keyID string, encryptionContext map[string]string) ([32]byte, []byte, error) {
	var out [32]byte

	logrus.Debugf("kms: GenerateDataKey key=%s", keyID)
	resp, err := c.api.GenerateDataKey(ctx, &awskms.GenerateDataKeyInput{
		KeyId:             aws.String(keyID),
		EncryptionContext: encryptionContext,
		KeySpec:           types.DataKeySpecAes256,
	})
	if err != nil {
		return out, nil, errors.Wrap(err, "kms: generate data key")
	}
	if len(resp.Plaintext) != len(out) {
		return out, nil, errors.Errorf("kms: generate data key returned %d bytes, want %d", len(resp.Plaintext), len(out))
	}
	copy(out[:], resp.Plaintext)
	return out, resp.CiphertextBlob, nil
}

func (c *Client) Decrypt(ctx context.Context, ciphertextBlob []byte, encryptionContext map[string]string) ([32]byte, error) {
	var out [32]byte

	logrus.Debugf("kms: Decrypt")
	resp, err := c.api.Decrypt(ctx, &awskms.DecryptInput{
		CiphertextBlob:    ciphertextBlob,
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return out, errors.Wrap(err, "kms: decrypt")
	}
	if len(resp.Plaintext) != len(out) {
		return out, errors.Errorf("kms: decrypt returned %d bytes, want %d", len(resp.Plaintext), len(out))
	}
	copy(out[:], resp.Plaintext)
	return out, nil
}
