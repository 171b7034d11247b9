//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/cargo
//

// Package config resolves parameters of the cargo stack from an optional
// HCL file, CDK context and defaults. Context wins over the file.
//
//	domain = "iharshit.site"
//	origin = "api"
//	site   = "web/site"
//
//	catalogue = "cargo-catalogue"
//
//	items {
//	  entry         = "internal/cmd/lambda/items"
//	  function_name = "createItemFunction"
//	}
//
// The file may refer environment variables as env.NAME.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
)

var ErrInvalid = errors.New("invalid configuration")

const (
	OriginApi  = "api"
	OriginSite = "site"

	LookupRoute53 = "route53"
	LookupCDK     = "cdk"

	RuntimeAL2023 = "provided.al2023"
	RuntimeAL2    = "provided.al2"
)

// Context keys, also used as names of CLI flags
const (
	KeyConfig     = "config"
	KeyDomain     = "domain"
	KeySubDomain  = "sub-domain"
	KeyZoneID     = "zone-id"
	KeyZoneLookup = "zone-lookup"
	KeyOrigin     = "origin"
	KeySite       = "site"
	KeyCatalogue  = "catalogue"
)

type Config struct {
	// Primary domain, it must have a public hosted zone
	Domain string `hcl:"domain,optional"`

	// Derived as blog.<domain>. It is only reported, neither aliased by
	// the distribution nor recorded in the zone.
	SubDomain string `hcl:"sub_domain,optional"`

	// Hosted zone id, skips the zone lookup if defined
	ZoneID string `hcl:"zone_id,optional"`

	// Zone lookup mechanism: route53 (default) or cdk (context provider)
	ZoneLookup string `hcl:"zone_lookup,optional"`

	// Distribution origin variant: api (default) or site
	Origin string `hcl:"origin,optional"`

	// Local directory uploaded to the site bucket
	Site string `hcl:"site,optional"`

	// Existing bucket listed by the items handler, read access is granted
	Catalogue string `hcl:"catalogue,optional"`

	Redirect *Handler `hcl:"redirect,block"`
	Items    *Handler `hcl:"items,block"`
}

// Handler is a deployment descriptor of a request handler
type Handler struct {
	// Path to the handler's main package, relative to the module root
	Entry string `hcl:"entry"`

	// Default: main
	Handler string `hcl:"handler,optional"`

	// Default: provided.al2023
	Runtime string `hcl:"runtime,optional"`

	// Fixed function name, generated by CloudFormation if empty
	FunctionName string `hcl:"function_name,optional"`

	Environment map[string]string `hcl:"environment,optional"`
}

// Load decodes the HCL file. Defaults are not applied.
func Load(file string) (*Config, error) {
	var cfg Config

	if err := hclsimple.DecodeFile(file, evalContext(), &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, file, err)
	}

	return &cfg, nil
}

func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if ok && isIdent(key) {
			env[key] = cty.StringVal(val)
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}

// Set overrides a parameter by its context key. Empty values are ignored.
func (c *Config) Set(key, val string) error {
	if val == "" {
		return nil
	}

	switch key {
	case KeyDomain:
		c.Domain = val
	case KeySubDomain:
		c.SubDomain = val
	case KeyZoneID:
		c.ZoneID = val
	case KeyZoneLookup:
		c.ZoneLookup = val
	case KeyOrigin:
		c.Origin = val
	case KeySite:
		c.Site = val
	case KeyCatalogue:
		c.Catalogue = val
	default:
		return fmt.Errorf("%w: unknown key %s", ErrInvalid, key)
	}

	return nil
}

// Defaults fills parameters left empty
func (c *Config) Defaults() *Config {
	if c.SubDomain == "" && c.Domain != "" {
		c.SubDomain = "blog." + c.Domain
	}

	if c.ZoneLookup == "" {
		c.ZoneLookup = LookupRoute53
	}

	if c.Origin == "" {
		c.Origin = OriginApi
	}

	if c.Site == "" {
		c.Site = "web/site"
	}

	if c.Redirect == nil {
		c.Redirect = &Handler{Entry: "internal/cmd/lambda/redirect"}
	}
	c.Redirect.defaults()

	if c.Items == nil {
		c.Items = &Handler{
			Entry:        "internal/cmd/lambda/items",
			FunctionName: "createItemFunction",
		}
	}
	c.Items.defaults()

	return c
}

func (h *Handler) defaults() {
	if h.Handler == "" {
		h.Handler = "main"
	}

	if h.Runtime == "" {
		h.Runtime = RuntimeAL2023
	}
}

// Validate reports every malformed parameter at once
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Domain) == "" {
		errs = append(errs, fmt.Errorf("%w: domain is required", ErrInvalid))
	}

	switch c.Origin {
	case OriginApi, OriginSite:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown origin %q", ErrInvalid, c.Origin))
	}

	switch c.ZoneLookup {
	case LookupRoute53, LookupCDK:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown zone lookup %q", ErrInvalid, c.ZoneLookup))
	}

	errs = append(errs, c.Redirect.validate("redirect")...)
	errs = append(errs, c.Items.validate("items")...)

	return errors.Join(errs...)
}

func (h *Handler) validate(name string) []error {
	if h == nil || h.Entry == "" {
		return []error{fmt.Errorf("%w: %s handler entry is required", ErrInvalid, name)}
	}

	switch h.Runtime {
	case RuntimeAL2023, RuntimeAL2:
		return nil
	default:
		return []error{fmt.Errorf("%w: %s handler runtime %q is not supported", ErrInvalid, name, h.Runtime)}
	}
}

//------------------------------------------------------------------------------

// FromApp resolves configuration of CDK application
func FromApp(app awscdk.App) (*Config, error) {
	cfg := &Config{}

	if file := FromContext(app, KeyConfig); file != "" {
		val, err := Load(file)
		if err != nil {
			return nil, err
		}
		cfg = val
	}

	for _, key := range []string{KeyDomain, KeySubDomain, KeyZoneID, KeyZoneLookup, KeyOrigin, KeySite, KeyCatalogue} {
		if err := cfg.Set(key, FromContext(app, key)); err != nil {
			return nil, err
		}
	}

	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func FromContext(app awscdk.App, key string) string {
	val := app.Node().TryGetContext(jsii.String(key))
	switch v := val.(type) {
	case string:
		return v
	default:
		return ""
	}
}
