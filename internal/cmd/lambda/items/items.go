//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/cargo
//

package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	_ "github.com/fogfish/logger/v3"
	"github.com/fogfish/stream"
)

func main() {
	var fsys fs.FS

	// catalogue bucket is optional, the stack grants read access to it
	if bucket := os.Getenv("CONFIG_S3"); bucket != "" {
		s3fs, err := stream.NewFS(bucket)
		if err != nil {
			slog.Error("fatal failure of s3 client", "err", err)
			panic(err)
		}
		fsys = s3fs
	}

	service := New(fsys, "/")

	lambda.Start(func(ctx context.Context, req Request) (Response, error) {
		return service.Handle(ctx, req)
	})
}
