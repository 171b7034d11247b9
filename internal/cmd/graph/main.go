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
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/fogfish/cargo/internal/awscargo"
	"github.com/fogfish/cargo/internal/config"
	"github.com/fogfish/cargo/internal/graph"
	_ "github.com/fogfish/logger/v3"
	"github.com/fogfish/tagver"
	"gopkg.in/yaml.v3"
)

type CLI struct {
	Config    string `name:"config" type:"existingfile" help:"HCL file with stack parameters"`
	Domain    string `name:"domain" help:"Primary domain, it must have a public hosted zone"`
	SubDomain string `name:"sub-domain" help:"Reported sub domain (default: blog.<domain>)"`
	ZoneID    string `name:"zone-id" help:"Hosted zone id, skips Route 53 lookup"`
	Origin    string `name:"origin" help:"Distribution origin variant: api or site"`
	Site      string `name:"site" help:"Directory with site assets"`
	Catalogue string `name:"catalogue" help:"Existing bucket listed by the items handler"`
	Account   string `name:"account" env:"CDK_DEFAULT_ACCOUNT" help:"Target AWS account"`
	Region    string `name:"region" env:"CDK_DEFAULT_REGION" help:"Target AWS region"`
	Format    string `name:"format" enum:"yaml,json" default:"yaml" help:"Format of emitted document: yaml or json"`
}

type kongExitCode int

type commandDeps struct {
	zones  func(context.Context, *config.Config) (awscargo.HostedZones, error)
	out    io.Writer
	errOut io.Writer
}

func main() {
	code := run(os.Args[1:], defaultDeps())
	jsii.Close()
	os.Exit(code)
}

func defaultDeps() commandDeps {
	return commandDeps{
		zones:  awscargo.NewZones,
		out:    os.Stdout,
		errOut: os.Stderr,
	}
}

func run(args []string, deps commandDeps) (exitCode int) {
	out := deps.out
	if out == nil {
		out = os.Stdout
	}
	errOut := deps.errOut
	if errOut == nil {
		errOut = os.Stderr
	}

	cli := CLI{}
	parser, err := kong.New(
		&cli,
		kong.Name("cargo-graph"),
		kong.Description("Assemble the cargo stack and emit its resource graph."),
		kong.Writers(out, errOut),
		kong.Exit(func(code int) {
			panic(kongExitCode(code))
		}),
	)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: initialize command parser: %v\n", err)
		return 1
	}
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		code, ok := recovered.(kongExitCode)
		if !ok {
			panic(recovered)
		}
		exitCode = int(code)
	}()

	if _, err := parser.Parse(args); err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		_, _ = fmt.Fprintln(errOut, "Hint: run `cargo-graph --help`.")
		return 1
	}

	if err := emit(cli, deps, out); err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		if errors.Is(err, config.ErrInvalid) || errors.Is(err, awscargo.ErrInvalidProps) {
			_, _ = fmt.Fprintln(errOut, "Hint: run `cargo-graph --help` for parameters.")
		}
		return 1
	}

	return 0
}

// Report is the emitted document
type Report struct {
	Stack          string `json:"stack" yaml:"stack"`
	Domain         string `json:"domain" yaml:"domain"`
	SubDomain      string `json:"subDomain" yaml:"subDomain"`
	graph.Document `yaml:",inline"`
}

func emit(cli CLI, deps commandDeps, out io.Writer) error {
	cfg, err := resolve(cli)
	if err != nil {
		return err
	}

	if cfg.ZoneID == "" && cfg.ZoneLookup == config.LookupCDK {
		return fmt.Errorf("%w: zone lookup %s requires cdk toolkit, use --zone-id", config.ErrInvalid, config.LookupCDK)
	}

	ctx := context.Background()
	zonesOf := deps.zones
	if zonesOf == nil {
		zonesOf = awscargo.NewZones
	}

	hz, err := zonesOf(ctx, cfg)
	if err != nil {
		return err
	}

	app := awscdk.NewApp(nil)

	props := awscargo.NewProps(cfg)
	props.Version = tagver.Version("main")
	props.Zones = hz
	props.StackProps = &awscdk.StackProps{Env: environment(cli)}

	stack, err := awscargo.New(ctx, app, props)
	if err != nil {
		return err
	}

	assembly := app.Synth(nil)
	template := assembly.GetStackArtifact(stack.ArtifactId()).Template()

	g, err := graph.FromTemplate(template)
	if err != nil {
		return err
	}

	report := Report{
		Stack:     *stack.StackName(),
		Domain:    cfg.Domain,
		SubDomain: stack.SubDomain,
		Document:  g.Document(),
	}

	switch cli.Format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	}
}

func resolve(cli CLI) (*config.Config, error) {
	cfg := &config.Config{}

	if cli.Config != "" {
		val, err := config.Load(cli.Config)
		if err != nil {
			return nil, err
		}
		cfg = val
	}

	for key, val := range map[string]string{
		config.KeyDomain:    cli.Domain,
		config.KeySubDomain: cli.SubDomain,
		config.KeyZoneID:    cli.ZoneID,
		config.KeyOrigin:    cli.Origin,
		config.KeySite:      cli.Site,
		config.KeyCatalogue: cli.Catalogue,
	} {
		if err := cfg.Set(key, val); err != nil {
			return nil, err
		}
	}

	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func environment(cli CLI) *awscdk.Environment {
	env := &awscdk.Environment{}
	if cli.Account != "" {
		env.Account = jsii.String(cli.Account)
	}
	if cli.Region != "" {
		env.Region = jsii.String(cli.Region)
	}
	return env
}
