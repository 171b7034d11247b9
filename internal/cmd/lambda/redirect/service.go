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
	"net/http"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
)

// Service redirects every request to the primary domain over https
type Service struct {
	domain string
}

func New(domain string) *Service {
	return &Service{domain: domain}
}

func (s *Service) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	location := url.URL{
		Scheme: "https",
		Host:   s.domain,
		Path:   req.Path,
	}

	if len(req.QueryStringParameters) > 0 {
		query := url.Values{}
		for key, val := range req.QueryStringParameters {
			query.Set(key, val)
		}
		location.RawQuery = query.Encode()
	}

	slog.Debug("redirect", "path", req.Path, "location", location.String())

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusMovedPermanently,
		Headers: map[string]string{
			"Location": location.String(),
		},
	}, nil
}
