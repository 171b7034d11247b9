//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/cargo
//

package zones_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/fogfish/cargo/internal/zones"
	"github.com/fogfish/it/v2"
)

type mock struct {
	expectVal string
	returnVal []types.HostedZone
	returnErr error
}

func (m *mock) ListHostedZonesByName(ctx context.Context, params *route53.ListHostedZonesByNameInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error) {
	if m.returnErr != nil {
		return nil, m.returnErr
	}

	if aws.ToString(params.DNSName) != m.expectVal {
		return nil, fmt.Errorf("unexpected dns name")
	}

	return &route53.ListHostedZonesByNameOutput{HostedZones: m.returnVal}, nil
}

func TestLookup(t *testing.T) {
	api := &mock{
		expectVal: "iharshit.site.",
		returnVal: []types.HostedZone{
			{
				Id:     aws.String("/hostedzone/Z0PRIVATE"),
				Name:   aws.String("iharshit.site."),
				Config: &types.HostedZoneConfig{PrivateZone: true},
			},
			{
				Id:   aws.String("/hostedzone/Z0PUBLIC"),
				Name: aws.String("iharshit.site."),
			},
			{
				Id:   aws.String("/hostedzone/Z0OTHER"),
				Name: aws.String("iharshit.space."),
			},
		},
	}

	t.Run("Found", func(t *testing.T) {
		zone, err := zones.New(api).Lookup(context.Background(), "iharshit.site")
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(zone.ID, "Z0PUBLIC"),
			it.Equal(zone.Name, "iharshit.site"),
		)
	})

	t.Run("TrailingDot", func(t *testing.T) {
		zone, err := zones.New(api).Lookup(context.Background(), "IHarshit.site.")
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(zone.ID, "Z0PUBLIC"),
		)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := zones.New(&mock{expectVal: "example.com."}).Lookup(context.Background(), "example.com")
		it.Then(t).Should(
			it.Equal(errors.Is(err, zones.ErrNotFound), true),
		)
	})

	t.Run("EmptyDomain", func(t *testing.T) {
		_, err := zones.New(api).Lookup(context.Background(), "")
		it.Then(t).Should(
			it.Equal(errors.Is(err, zones.ErrNotFound), true),
		)
	})

	t.Run("ApiFailed", func(t *testing.T) {
		_, err := zones.New(&mock{returnErr: fmt.Errorf("throttled")}).Lookup(context.Background(), "iharshit.site")
		it.Then(t).ShouldNot(it.Nil(err))
		it.Then(t).Should(it.Equal(errors.Is(err, zones.ErrNotFound), false))
	})
}

func TestStatic(t *testing.T) {
	z := zones.Static{ID: "Z0STATIC", Name: "iharshit.site"}

	zone, err := z.Lookup(context.Background(), "iharshit.site")
	it.Then(t).Should(
		it.Nil(err),
		it.Equal(zone.ID, "Z0STATIC"),
	)

	_, err = z.Lookup(context.Background(), "example.com")
	it.Then(t).Should(
		it.Equal(errors.Is(err, zones.ErrNotFound), true),
	)
}
