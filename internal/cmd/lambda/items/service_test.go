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
	"errors"
	"io/fs"
	"net/http"
	"testing"
	"testing/fstest"

	"github.com/fogfish/it/v2"
)

type failFS struct{}

func (failFS) Open(name string) (fs.File, error) { return nil, errors.New("unavailable") }

func TestService(t *testing.T) {
	catalogue := fstest.MapFS{
		"index.html":     &fstest.MapFile{Data: []byte("<html/>")},
		"items/a.json":   &fstest.MapFile{Data: []byte("{}")},
		"items/b/c.json": &fstest.MapFile{Data: []byte("{}")},
	}

	t.Run("List", func(t *testing.T) {
		rsp, err := New(catalogue, ".").Handle(context.Background(), Request{HTTPMethod: http.MethodGet})
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(rsp.StatusCode, http.StatusOK),
			it.Equal(rsp.Headers["Access-Control-Allow-Origin"], "*"),
		)

		var items []Item
		it.Then(t).Should(
			it.Nil(json.Unmarshal([]byte(rsp.Body), &items)),
			it.Equal(len(items), 3),
			it.Equal(items[0].ID, "index.html"),
			it.Equal(items[2].ID, "items/b/c.json"),
		)
	})

	t.Run("NoCatalogue", func(t *testing.T) {
		rsp, err := New(nil, "/").Handle(context.Background(), Request{HTTPMethod: http.MethodGet})
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(rsp.StatusCode, http.StatusOK),
			it.Equal(rsp.Body, "[]"),
		)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		rsp, err := New(catalogue, ".").Handle(context.Background(), Request{HTTPMethod: http.MethodPost})
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(rsp.StatusCode, http.StatusMethodNotAllowed),
		)
	})

	t.Run("Unavailable", func(t *testing.T) {
		rsp, err := New(failFS{}, ".").Handle(context.Background(), Request{HTTPMethod: http.MethodGet})
		it.Then(t).Should(
			it.Nil(err),
			it.Equal(rsp.StatusCode, http.StatusInternalServerError),
		)
	})
}
