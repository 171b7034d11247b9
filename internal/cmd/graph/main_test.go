//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/cargo
//

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/fogfish/cargo/internal/awscargo"
	"github.com/fogfish/cargo/internal/config"
	"github.com/fogfish/cargo/internal/zones"
	"github.com/fogfish/it/v2"
	"gopkg.in/yaml.v3"
)

func staticZones(ctx context.Context, cfg *config.Config) (awscargo.HostedZones, error) {
	return zones.Static{ID: "Z0STATIC", Name: cfg.Domain}, nil
}

type notFound struct{}

func (notFound) Lookup(ctx context.Context, domain string) (zones.Zone, error) {
	return zones.Zone{}, fmt.Errorf("%w: %s", zones.ErrNotFound, domain)
}

func count(doc Report, kind string) int {
	n := 0
	for _, r := range doc.Resources {
		if r.Type == kind {
			n++
		}
	}
	return n
}

func TestRun(t *testing.T) {
	site := "../../awscargo/testdata/site"

	t.Run("Json", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := run(
			[]string{"--domain", "iharshit.site", "--site", site, "--region", "us-east-1", "--format", "json"},
			commandDeps{zones: staticZones, out: &out, errOut: &errOut},
		)
		it.Then(t).Should(
			it.Equal(code, 0),
			it.Equal(errOut.String(), ""),
		)

		var doc Report
		it.Then(t).Should(
			it.Nil(json.Unmarshal(out.Bytes(), &doc)),
			it.Equal(doc.Domain, "iharshit.site"),
			it.Equal(doc.SubDomain, "blog.iharshit.site"),
			it.Equal(count(doc, "AWS::S3::Bucket"), 1),
			it.Equal(count(doc, "AWS::CloudFront::Distribution"), 1),
			it.Equal(count(doc, "AWS::Route53::RecordSet"), 1),
			it.Equal(doc.Outputs["Site"].(map[string]any)["Value"], any("https://iharshit.site")),
		)
	})

	t.Run("Yaml", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := run(
			[]string{"--domain", "iharshit.site", "--site", site, "--origin", "site"},
			commandDeps{zones: staticZones, out: &out, errOut: &errOut},
		)
		it.Then(t).Should(it.Equal(code, 0))

		var doc map[string]any
		it.Then(t).Should(
			it.Nil(yaml.Unmarshal(out.Bytes(), &doc)),
			it.Equal(doc["domain"], any("iharshit.site")),
		)
	})

	t.Run("Catalogue", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := run(
			[]string{"--domain", "iharshit.site", "--site", site, "--catalogue", "cargo-catalogue", "--format", "json"},
			commandDeps{zones: staticZones, out: &out, errOut: &errOut},
		)
		it.Then(t).Should(
			it.Equal(code, 0),
			it.Equal(strings.Contains(out.String(), "AWS::IAM::Policy"), true),
		)
	})

	t.Run("NoDomain", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := run([]string{"--site", site}, commandDeps{zones: staticZones, out: &out, errOut: &errOut})
		it.Then(t).Should(
			it.Equal(code, 1),
			it.Equal(out.Len(), 0),
			it.Equal(strings.HasPrefix(errOut.String(), "Error:"), true),
		)
	})

	t.Run("ZoneNotFound", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := run(
			[]string{"--domain", "iharshit.site", "--site", site},
			commandDeps{
				zones: func(context.Context, *config.Config) (awscargo.HostedZones, error) {
					return notFound{}, nil
				},
				out:    &out,
				errOut: &errOut,
			},
		)
		it.Then(t).Should(
			it.Equal(code, 1),
			it.Equal(out.Len(), 0),
			it.Equal(strings.Contains(errOut.String(), "hosted zone not found"), true),
		)
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := run(
			[]string{"--domain", "iharshit.site", "--format", "xml"},
			commandDeps{zones: staticZones, out: &out, errOut: &errOut},
		)
		it.Then(t).Should(it.Equal(code, 1))
	})
}
