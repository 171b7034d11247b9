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
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigateway"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfront"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53targets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3deployment"
	"github.com/aws/jsii-runtime-go"
	"github.com/fogfish/cargo/internal/zones"
	"github.com/fogfish/scud"
	"github.com/fogfish/tagver"
)

var ErrInvalidProps = errors.New("invalid cargo props")

// CloudFront looks up viewer certificates only in this region.
const CertificateRegion = "us-east-1"

// Stage of REST API, the API origin is mounted at /<stage>
const Stage = "prod"

// Origin selects the origins of the distribution.
type Origin string

const (
	// API is the only origin, it serves every path
	OriginApi Origin = "api"

	// API serves /items*, the site bucket serves everything else
	OriginSite Origin = "site"
)

// HostedZones resolves existing hosted zone of the domain.
type HostedZones interface {
	Lookup(ctx context.Context, domain string) (zones.Zone, error)
}

// Handler is a deployment descriptor of the request handler
type Handler struct {
	// Path to the main package within the source code module
	Entry string

	// Default: main
	Handler string

	// Default: provided.al2023
	Runtime string

	// Optional fixed name of the function
	FunctionName string

	Environment map[string]string
}

type CargoProps struct {
	*awscdk.StackProps
	Version tagver.Version

	// Primary domain, served by the distribution
	Domain string

	// Reported only, it is not bound to aliases or records.
	//
	// Default: blog.<Domain>
	SubDomain string

	// Collaborator resolving the hosted zone of Domain. The zone is looked
	// up by CDK context provider if it is not defined.
	Zones HostedZones

	// Default: OriginApi
	Origin Origin

	// Local directory with site assets uploaded into the bucket
	Site string

	// Go module containing the handlers
	SourceCodeModule string

	// Handler at the edge
	Redirect Handler

	// Handler of the /items API
	Items Handler

	// Name of existing bucket listed by the items handler, optional
	Catalogue string
}

type Cargo struct {
	awscdk.Stack
	SubDomain     string
	Redirect      awslambda.Function
	Items         awslambda.Function
	Catalogue     awss3.IBucket
	Api           awsapigateway.RestApi
	ItemsResource awsapigateway.Resource
	Identity      awscloudfront.OriginAccessIdentity
	Bucket        awss3.Bucket
	Deployment    awss3deployment.BucketDeployment
	Zone          awsroute53.IHostedZone
	Certificate   awscertificatemanager.DnsValidatedCertificate
	Origins       []*awscloudfront.SourceConfiguration
	Distribution  awscloudfront.CloudFrontWebDistribution
	Record        awsroute53.ARecord
}

// New assembles the stack. Either every resource is declared or the app
// is left without the stack and error is returned.
func New(ctx context.Context, app awscdk.App, props *CargoProps) (*Cargo, error) {
	runtimes, err := props.validate()
	if err != nil {
		return nil, err
	}

	stack := awscdk.NewStack(app,
		jsii.String(props.Version.Tag("cargo")),
		props.StackProps,
	)

	c := &Cargo{Stack: stack, SubDomain: props.SubDomain}
	c.createHandlers(props, runtimes)
	c.createApi(props)
	c.createIdentity(props)
	c.createBucket(props)
	c.createDeployment(props)
	c.createBucketPolicy(props)

	if err := c.lookupZone(ctx, props); err != nil {
		app.Node().TryRemoveChild(stack.Node().Id())
		return nil, err
	}

	c.createCertificate(props)
	c.createDistribution(props)
	c.createRecord(props)
	c.createOutputs(props)

	slog.Info("stack assembled",
		"stack", *stack.StackName(),
		"domain", props.Domain,
		"subdomain", props.SubDomain,
		"origin", props.Origin,
	)

	return c, nil
}

func (props *CargoProps) validate() (map[string]awslambda.Runtime, error) {
	if props.Domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidProps)
	}

	if props.SubDomain == "" {
		props.SubDomain = "blog." + props.Domain
	}

	if props.Origin == "" {
		props.Origin = OriginApi
	}

	switch props.Origin {
	case OriginApi, OriginSite:
	default:
		return nil, fmt.Errorf("%w: unknown origin %s", ErrInvalidProps, props.Origin)
	}

	if props.Site == "" {
		return nil, fmt.Errorf("%w: site assets are required", ErrInvalidProps)
	}

	runtimes := map[string]awslambda.Runtime{}
	for _, h := range []*Handler{&props.Redirect, &props.Items} {
		if h.Entry == "" {
			return nil, fmt.Errorf("%w: handler entry is required", ErrInvalidProps)
		}

		if h.Handler == "" {
			h.Handler = "main"
		}

		if h.Runtime == "" {
			h.Runtime = "provided.al2023"
		}

		rt, err := RuntimeOf(h.Runtime)
		if err != nil {
			return nil, err
		}
		runtimes[h.Runtime] = rt
	}

	return runtimes, nil
}

// RuntimeOf maps runtime identifier to the runtime capable to run Go handlers
func RuntimeOf(id string) (awslambda.Runtime, error) {
	switch id {
	case "provided.al2023":
		return awslambda.Runtime_PROVIDED_AL2023(), nil
	case "provided.al2":
		return awslambda.Runtime_PROVIDED_AL2(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported runtime %s", ErrInvalidProps, id)
	}
}

func (c *Cargo) createHandlers(props *CargoProps, runtimes map[string]awslambda.Runtime) {
	c.Redirect = c.createHandler("RedirectLambda", props.SourceCodeModule, props.Redirect, runtimes,
		map[string]*string{"CONFIG_DOMAIN": jsii.String(props.Domain)},
	)

	var env map[string]*string
	if props.Catalogue != "" {
		env = map[string]*string{"CONFIG_S3": jsii.String(props.Catalogue)}
	}
	c.Items = c.createHandler("ItemsLambda", props.SourceCodeModule, props.Items, runtimes, env)

	if props.Catalogue != "" {
		c.Catalogue = awss3.Bucket_FromBucketName(c.Stack, jsii.String("Catalogue"), jsii.String(props.Catalogue))
		c.Catalogue.GrantRead(c.Items, nil)
	}
}

func (c *Cargo) createHandler(id string, module string, h Handler, runtimes map[string]awslambda.Runtime, env map[string]*string) awslambda.Function {
	var name *string
	if h.FunctionName != "" {
		name = jsii.String(h.FunctionName)
	}

	vars := map[string]*string{}
	for key, val := range h.Environment {
		vars[key] = jsii.String(val)
	}
	for key, val := range env {
		vars[key] = val
	}

	return scud.NewFunctionGo(c.Stack, jsii.String(id),
		&scud.FunctionGoProps{
			SourceCodeModule: module,
			SourceCodeLambda: h.Entry,
			FunctionProps: &awslambda.FunctionProps{
				FunctionName: name,
				Handler:      jsii.String(h.Handler),
				Runtime:      runtimes[h.Runtime],
				Environment:  &vars,
			},
		},
	)
}

func (c *Cargo) createApi(props *CargoProps) {
	c.Api = awsapigateway.NewRestApi(c.Stack, jsii.String("CargoApi"),
		&awsapigateway.RestApiProps{
			RestApiName:    jsii.String("Cargo Service"),
			CloudWatchRole: jsii.Bool(false),
			DeployOptions: &awsapigateway.StageOptions{
				StageName: jsii.String(Stage),
			},
		},
	)

	c.ItemsResource = c.Api.Root().AddResource(jsii.String("items"), nil)
	c.ItemsResource.AddMethod(jsii.String("GET"),
		awsapigateway.NewLambdaIntegration(c.Items, nil),
		nil,
	)

	AddCorsOptions(c.ItemsResource)
}

func (c *Cargo) createIdentity(props *CargoProps) {
	c.Identity = awscloudfront.NewOriginAccessIdentity(c.Stack, jsii.String("CloudFrontOAI"),
		&awscloudfront.OriginAccessIdentityProps{
			Comment: jsii.String("Allows CloudFront access to S3 bucket"),
		},
	)
}

func (c *Cargo) createBucket(props *CargoProps) {
	c.Bucket = awss3.NewBucket(c.Stack, jsii.String("SiteBucket"),
		&awss3.BucketProps{
			RemovalPolicy:     awscdk.RemovalPolicy_DESTROY,
			BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
			Cors: &[]*awss3.CorsRule{
				{
					AllowedOrigins: jsii.Strings("*"),
					AllowedMethods: &[]awss3.HttpMethods{awss3.HttpMethods_GET},
					MaxAge:         jsii.Number(3000),
				},
			},
		},
	)
}

func (c *Cargo) createDeployment(props *CargoProps) {
	c.Deployment = awss3deployment.NewBucketDeployment(c.Stack, jsii.String("DeployWebsite"),
		&awss3deployment.BucketDeploymentProps{
			Sources: &[]awss3deployment.ISource{
				awss3deployment.Source_Asset(jsii.String(props.Site), nil),
			},
			DestinationBucket: c.Bucket,
		},
	)
}

func (c *Cargo) createBucketPolicy(props *CargoProps) {
	c.Bucket.AddToResourcePolicy(
		awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
			Sid:        jsii.String("GrantCloudFrontOAIRead"),
			Actions:    jsii.Strings("s3:GetObject"),
			Resources:  &[]*string{c.Bucket.ArnForObjects(jsii.String("*"))},
			Principals: &[]awsiam.IPrincipal{c.Identity.GrantPrincipal()},
		}),
	)
}

func (c *Cargo) lookupZone(ctx context.Context, props *CargoProps) error {
	if props.Zones == nil {
		c.Zone = awsroute53.HostedZone_FromLookup(c.Stack, jsii.String("Zone"),
			&awsroute53.HostedZoneProviderProps{
				DomainName: jsii.String(props.Domain),
			},
		)
		return nil
	}

	zone, err := props.Zones.Lookup(ctx, props.Domain)
	if err != nil {
		slog.Error("zone lookup failed", "domain", props.Domain, "err", err)
		return fmt.Errorf("zone lookup of %s: %w", props.Domain, err)
	}

	c.Zone = awsroute53.HostedZone_FromHostedZoneAttributes(c.Stack, jsii.String("Zone"),
		&awsroute53.HostedZoneAttributes{
			HostedZoneId: jsii.String(zone.ID),
			ZoneName:     jsii.String(zone.Name),
		},
	)

	return nil
}

func (c *Cargo) createCertificate(props *CargoProps) {
	c.Certificate = awscertificatemanager.NewDnsValidatedCertificate(c.Stack, jsii.String("SiteCertificate"),
		&awscertificatemanager.DnsValidatedCertificateProps{
			DomainName: jsii.String(props.Domain),
			HostedZone: c.Zone,
			Region:     jsii.String(CertificateRegion),
		},
	)
}

func (c *Cargo) createDistribution(props *CargoProps) {
	// API origin is always first, it takes precedence over the bucket
	switch props.Origin {
	case OriginSite:
		c.Origins = []*awscloudfront.SourceConfiguration{
			c.apiOrigin(false),
			c.bucketOrigin(),
		}
	default:
		c.Origins = []*awscloudfront.SourceConfiguration{
			c.apiOrigin(true),
		}
	}

	c.Distribution = awscloudfront.NewCloudFrontWebDistribution(c.Stack, jsii.String("CargoDistribution"),
		&awscloudfront.CloudFrontWebDistributionProps{
			Comment:              jsii.String("CDN for Cargo APIs"),
			ViewerProtocolPolicy: awscloudfront.ViewerProtocolPolicy_REDIRECT_TO_HTTPS,
			PriceClass:           awscloudfront.PriceClass_PRICE_CLASS_ALL,
			ViewerCertificate: awscloudfront.ViewerCertificate_FromAcmCertificate(c.Certificate,
				&awscloudfront.ViewerCertificateOptions{
					Aliases:        jsii.Strings(props.Domain),
					SslMethod:      awscloudfront.SSLMethod_SNI,
					SecurityPolicy: awscloudfront.SecurityPolicyProtocol_TLS_V1_1_2016,
				},
			),
			OriginConfigs: &c.Origins,
		},
	)
}

func (c *Cargo) apiOrigin(isDefault bool) *awscloudfront.SourceConfiguration {
	pathPattern := "/items*"
	if isDefault {
		pathPattern = "*"
	}

	return &awscloudfront.SourceConfiguration{
		CustomOriginSource: &awscloudfront.CustomOriginConfig{
			DomainName: jsii.String(
				fmt.Sprintf("%s.execute-api.%s.amazonaws.com", *c.Api.RestApiId(), *c.Stack.Region()),
			),
			OriginPath: jsii.String("/" + Stage),
		},
		Behaviors: &[]*awscloudfront.Behavior{
			{
				IsDefaultBehavior: jsii.Bool(isDefault),
				PathPattern:       jsii.String(pathPattern),
				AllowedMethods:    awscloudfront.CloudFrontAllowedMethods_ALL,
				// origin authenticates requests, the header is not forwarded by default
				ForwardedValues: &awscloudfront.CfnDistribution_ForwardedValuesProperty{
					QueryString: jsii.Bool(true),
					Headers:     jsii.Strings("Authorization"),
				},
			},
		},
	}
}

func (c *Cargo) bucketOrigin() *awscloudfront.SourceConfiguration {
	return &awscloudfront.SourceConfiguration{
		S3OriginSource: &awscloudfront.S3OriginConfig{
			S3BucketSource:       c.Bucket,
			OriginAccessIdentity: c.Identity,
		},
		Behaviors: &[]*awscloudfront.Behavior{
			{
				IsDefaultBehavior: jsii.Bool(true),
				Compress:          jsii.Bool(true),
				AllowedMethods:    awscloudfront.CloudFrontAllowedMethods_GET_HEAD_OPTIONS,
			},
		},
	}
}

func (c *Cargo) createRecord(props *CargoProps) {
	c.Record = awsroute53.NewARecord(c.Stack, jsii.String("SiteAliasRecord"),
		&awsroute53.ARecordProps{
			RecordName: jsii.String(props.Domain),
			Zone:       c.Zone,
			Target: awsroute53.RecordTarget_FromAlias(
				awsroute53targets.NewCloudFrontTarget(c.Distribution),
			),
		},
	)
}

func (c *Cargo) createOutputs(props *CargoProps) {
	awscdk.NewCfnOutput(c.Stack, jsii.String("Site"),
		&awscdk.CfnOutputProps{Value: jsii.String(SiteURL(props.Domain))},
	)

	awscdk.NewCfnOutput(c.Stack, jsii.String("Certificate"),
		&awscdk.CfnOutputProps{Value: c.Certificate.CertificateArn()},
	)

	awscdk.NewCfnOutput(c.Stack, jsii.String("DistributionId"),
		&awscdk.CfnOutputProps{Value: c.Distribution.DistributionId()},
	)
}

func SiteURL(domain string) string {
	return "https://" + domain
}
