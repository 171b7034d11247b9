//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/cargo
//

package awscargo

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/fogfish/cargo/internal/config"
	"github.com/fogfish/cargo/internal/zones"
)

// SourceCodeModule is the Go module of request handlers
const SourceCodeModule = "github.com/fogfish/cargo"

// NewProps maps configuration onto props. StackProps, Version and Zones
// are left to the caller.
func NewProps(cfg *config.Config) *CargoProps {
	return &CargoProps{
		Domain:           cfg.Domain,
		SubDomain:        cfg.SubDomain,
		Origin:           Origin(cfg.Origin),
		Site:             cfg.Site,
		SourceCodeModule: SourceCodeModule,
		Redirect:         handlerOf(cfg.Redirect),
		Items:            handlerOf(cfg.Items),
		Catalogue:        cfg.Catalogue,
	}
}

func handlerOf(h *config.Handler) Handler {
	if h == nil {
		return Handler{}
	}

	return Handler{
		Entry:        h.Entry,
		Handler:      h.Handler,
		Runtime:      h.Runtime,
		FunctionName: h.FunctionName,
		Environment:  h.Environment,
	}
}

// NewZones selects collaborator resolving the hosted zone. The nil is
// returned for CDK context lookup.
func NewZones(ctx context.Context, cfg *config.Config) (HostedZones, error) {
	switch {
	case cfg.ZoneID != "":
		return zones.Static{ID: cfg.ZoneID, Name: cfg.Domain}, nil
	case cfg.ZoneLookup == config.LookupCDK:
		return nil, nil
	default:
		aws, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		return zones.New(route53.NewFromConfig(aws)), nil
	}
}
