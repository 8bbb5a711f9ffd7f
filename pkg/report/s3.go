// Copyright 2020 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package report

import (
	"context"
	"path"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/pingcap/sqlaccept/pkg/config"
	"github.com/pingcap/sqlaccept/pkg/core"
)

// S3Client uploads report files.
type S3Client struct {
	*minio.Client
}

// NewS3Client creates an S3client instance
func NewS3Client(cfg config.S3) (*S3Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &S3Client{minioClient}, nil
}

// S3Uploader uploads the files written by the other writers of a run. It
// must run after them.
type S3Uploader struct {
	Client *S3Client
	Bucket string
	Prefix string
	Files  []string
}

// Name implements Writer.
func (u *S3Uploader) Name() string { return "s3" }

// ObjectName is where file of run runID is stored.
func (u *S3Uploader) ObjectName(runID, file string) string {
	return path.Join(u.Prefix, runID, filepath.Base(file))
}

// Write implements Writer.
func (u *S3Uploader) Write(ctx context.Context, res *core.RunResult) error {
	for _, file := range u.Files {
		object := u.ObjectName(res.RunID, file)
		info, err := u.Client.FPutObject(ctx, u.Bucket, object, file, minio.PutObjectOptions{})
		if err != nil {
			return errors.Annotatef(err, "upload %s", file)
		}
		zap.L().Info("report uploaded",
			zap.String("bucket", u.Bucket),
			zap.String("object", object),
			zap.Int64("size", info.Size))
	}
	return nil
}
