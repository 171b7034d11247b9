//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/cargo
//

package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	_ "github.com/fogfish/logger/v3"
)

func main() {
	domain := os.Getenv("CONFIG_DOMAIN")
	if domain == "" {
		slog.Error("fatal failure of config", "err", "CONFIG_DOMAIN is not defined")
		panic("CONFIG_DOMAIN is not defined")
	}

	lambda.Start(New(domain).Handle)
}
