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
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

type (
	Request  = events.APIGatewayProxyRequest
	Response = events.APIGatewayProxyResponse
)

type Item struct {
	ID string `json:"id"`
}

type Service struct {
	fsys fs.FS
	root string
}

func New(fsys fs.FS, root string) *Service {
	return &Service{fsys: fsys, root: root}
}

func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	if req.HTTPMethod != http.MethodGet {
		return reply(http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"}), nil
	}

	items, err := s.list()
	if err != nil {
		slog.Error("listing of items failed", "err", err)
		return reply(http.StatusInternalServerError, map[string]string{"error": "items are not available"}), nil
	}

	slog.Debug("items listed", "n", len(items))
	return reply(http.StatusOK, items), nil
}

func (s *Service) list() ([]Item, error) {
	items := []Item{}
	if s.fsys == nil {
		return items, nil
	}

	err := fs.WalkDir(s.fsys, s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			items = append(items, Item{ID: strings.TrimPrefix(path, "/")})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

func reply(code int, body any) Response {
	b, err := json.Marshal(body)
	if err != nil {
		return Response{StatusCode: http.StatusInternalServerError}
	}

	return Response{
		StatusCode: code,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(b),
	}
}
