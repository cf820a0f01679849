// Copyright 2025 Arcade Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage probes the blob store that holds texture and export assets.
// The gateway never reads or writes objects itself; it only reports whether
// the configured store is reachable.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageMinio = "minio"
)

// ErrUnsupportedProvider is returned by New for an unknown provider name.
var ErrUnsupportedProvider = errors.New("unsupported storage provider")

// Conf selects and configures the blob store.
type Conf struct {
	Provider string    `mapstructure:"provider"`
	Local    LocalConf `mapstructure:"local"`
	S3       S3Conf    `mapstructure:"s3"`
}

type LocalConf struct {
	Path string `mapstructure:"path"`
}

// S3Conf is shared by the s3 and minio providers.
type S3Conf struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	UseTLS    bool   `mapstructure:"useTLS"`
}

// Validate reports missing required fields.
func (c S3Conf) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("s3 config missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Prober checks that a blob store is usable.
type Prober interface {
	Provider() string
	// Location is the bucket or directory being probed.
	Location() string
	Probe(ctx context.Context) error
}

// New builds the prober for conf.Provider. An empty provider means local.
func New(conf Conf) (Prober, error) {
	switch strings.ToLower(strings.TrimSpace(conf.Provider)) {
	case "", StorageLocal:
		return newLocal(conf.Local)
	case StorageMinio:
		return newMinio(conf.S3)
	case StorageS3:
		return newS3(conf.S3)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, conf.Provider)
	}
}
