//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/cargo
//

package awscargo

import (
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigateway"
	"github.com/aws/jsii-runtime-go"
)

// Header of preflight response
type Header struct {
	Name  string
	Value string
}

// CorsHeaders are returned by every preflight response, browser clients
// depend on exact values.
var CorsHeaders = []Header{
	{"Access-Control-Allow-Headers", "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token,X-Amz-User-Agent"},
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Credentials", "false"},
	{"Access-Control-Allow-Methods", "OPTIONS,GET,PUT,POST,DELETE"},
}

// AddCorsOptions attaches OPTIONS method answered by the mock integration,
// no handler is invoked. The method is defined once per resource, repeated
// calls return the existing one.
func AddCorsOptions(resource awsapigateway.IResource) awsapigateway.Method {
	if child := resource.Node().TryFindChild(jsii.String("OPTIONS")); child != nil {
		if method, ok := child.(awsapigateway.Method); ok {
			return method
		}
	}

	integrationParams := map[string]*string{}
	methodParams := map[string]*bool{}
	for _, h := range CorsHeaders {
		key := "method.response.header." + h.Name
		integrationParams[key] = jsii.String("'" + h.Value + "'")
		methodParams[key] = jsii.Bool(true)
	}

	integration := awsapigateway.NewMockIntegration(
		&awsapigateway.IntegrationOptions{
			IntegrationResponses: &[]*awsapigateway.IntegrationResponse{
				{
					StatusCode:         jsii.String("200"),
					ResponseParameters: &integrationParams,
				},
			},
			PassthroughBehavior: awsapigateway.PassthroughBehavior_NEVER,
			RequestTemplates: &map[string]*string{
				"application/json": jsii.String(`{"statusCode": 200}`),
			},
		},
	)

	return resource.AddMethod(jsii.String("OPTIONS"), integration,
		&awsapigateway.MethodOptions{
			MethodResponses: &[]*awsapigateway.MethodResponse{
				{
					StatusCode:         jsii.String("200"),
					ResponseParameters: &methodParams,
				},
			},
		},
	)
}
