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
	"log/slog"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/fogfish/cargo/internal/awscargo"
	"github.com/fogfish/cargo/internal/config"
	_ "github.com/fogfish/logger/v3"
	"github.com/fogfish/tagver"
)

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)
	ctx := context.Background()

	cfg, err := config.FromApp(app)
	if err != nil {
		slog.Error("fatal failure of config", "err", err)
		panic(err)
	}

	hz, err := awscargo.NewZones(ctx, cfg)
	if err != nil {
		slog.Error("fatal failure of route53 client", "err", err)
		panic(err)
	}

	// cargo-vX
	vsn := tagver.NewVersions(config.FromContext(app, "vsn"))

	props := awscargo.NewProps(cfg)
	props.Version = vsn.Get("cargo", "main")
	props.Zones = hz
	props.StackProps = &awscdk.StackProps{
		Env: &awscdk.Environment{
			Account: jsii.String(os.Getenv("CDK_DEFAULT_ACCOUNT")),
			Region:  jsii.String(os.Getenv("CDK_DEFAULT_REGION")),
		},
	}

	if _, err := awscargo.New(ctx, app, props); err != nil {
		slog.Error("fatal failure of stack", "domain", cfg.Domain, "err", err)
		panic(err)
	}

	app.Synth(nil)
}
