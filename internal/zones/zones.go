//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/cargo
//

package zones

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
)

// ErrNotFound is returned when no public hosted zone matches the domain.
var ErrNotFound = errors.New("hosted zone not found")

// Zone is a reference to an existing hosted zone, it is never created.
type Zone struct {
	ID   string
	Name string
}

type Route53 interface {
	ListHostedZonesByName(ctx context.Context, params *route53.ListHostedZonesByNameInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error)
}

// Service resolves hosted zones through the Route 53 API.
type Service struct {
	api Route53
}

func New(api Route53) *Service {
	return &Service{api: api}
}

func (s *Service) Lookup(ctx context.Context, domain string) (Zone, error) {
	name := fqdn(domain)
	if name == "." {
		return Zone{}, fmt.Errorf("%w: empty domain", ErrNotFound)
	}

	val, err := s.api.ListHostedZonesByName(ctx,
		&route53.ListHostedZonesByNameInput{
			DNSName: aws.String(name),
		},
	)
	if err != nil {
		return Zone{}, fmt.Errorf("route53 lookup of %s failed: %w", domain, err)
	}

	for _, hz := range val.HostedZones {
		if fqdn(aws.ToString(hz.Name)) != name {
			continue
		}

		if hz.Config != nil && hz.Config.PrivateZone {
			continue
		}

		zone := Zone{
			ID:   strings.TrimPrefix(aws.ToString(hz.Id), "/hostedzone/"),
			Name: strings.TrimSuffix(name, "."),
		}
		slog.Info("hosted zone resolved", "domain", zone.Name, "zone", zone.ID)

		return zone, nil
	}

	return Zone{}, fmt.Errorf("%w: %s", ErrNotFound, domain)
}

// Static is a zone known upfront (e.g. configured zone id), no API calls.
type Static Zone

func (z Static) Lookup(ctx context.Context, domain string) (Zone, error) {
	if z.ID == "" || fqdn(z.Name) != fqdn(domain) {
		return Zone{}, fmt.Errorf("%w: %s", ErrNotFound, domain)
	}

	return Zone(z), nil
}

func fqdn(domain string) string {
	return strings.ToLower(strings.TrimSuffix(domain, ".")) + "."
}
