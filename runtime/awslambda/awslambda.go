package awslambda

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"

	"github.com/serverless/function-gateway/function"
)

// Type of runtime.
const Type = function.RuntimeType("awslambda")

func init() {
	function.RegisterRuntime(Type, New())
}

// AWSLambda runtime executes functions deployed to AWS Lambda. The artifact location has
// the form "<region>/<function name or ARN>", so definitions keep the region in their base
// directory and the function name in their entry file. Credentials come from the default
// AWS credential chain.
type AWSLambda struct {
	// NewService creates Lambda client for a region.
	NewService func(region string) (lambdaiface.LambdaAPI, error)

	mu       sync.Mutex
	services map[string]lambdaiface.LambdaAPI
}

// New creates the runtime using AWS sessions.
func New() *AWSLambda {
	return &AWSLambda{
		NewService: func(region string) (lambdaiface.LambdaAPI, error) {
			awsSession, err := session.NewSession(aws.NewConfig().WithRegion(region))
			if err != nil {
				return nil, err
			}
			return lambda.New(awsSession), nil
		},
		services: map[string]lambdaiface.LambdaAPI{},
	}
}

// Execute invokes the Lambda function with the JSON encoded request as payload. The
// function is expected to return a JSON encoded function response.
func (a *AWSLambda) Execute(ctx context.Context, location string, req *function.Request) (*function.Response, error) {
	region, name, err := parseLocation(location)
	if err != nil {
		return nil, &function.ErrArtifactLoad{Location: location, Original: err}
	}

	service, err := a.service(region)
	if err != nil {
		return nil, &function.ErrArtifactLoad{Location: location, Original: err}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &function.ErrFunctionCallFailed{Original: err}
	}

	invokeOutput, err := service.InvokeWithContext(ctx, &lambda.InvokeInput{
		FunctionName: &name,
		Payload:      payload,
	})
	if err != nil {
		if awserr, ok := err.(awserr.Error); ok {
			switch awserr.Code() {
			case "AccessDeniedException",
				"ExpiredTokenException",
				"UnrecognizedClientException":
				return nil, &function.ErrFunctionAccessDenied{Original: awserr}
			case lambda.ErrCodeResourceNotFoundException:
				return nil, &function.ErrArtifactLoad{Location: location, Original: awserr}
			}
		}
		return nil, &function.ErrFunctionCallFailed{Original: err}
	}

	if invokeOutput.FunctionError != nil {
		return nil, &function.ErrFunctionError{Original: errors.New(*invokeOutput.FunctionError)}
	}

	resp := &function.Response{}
	err = json.Unmarshal(invokeOutput.Payload, resp)
	if err != nil {
		return nil, &function.ErrFunctionError{Original: err}
	}
	return resp, nil
}

func (a *AWSLambda) service(region string) (lambdaiface.LambdaAPI, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.services == nil {
		a.services = map[string]lambdaiface.LambdaAPI{}
	}
	if service, ok := a.services[region]; ok {
		return service, nil
	}

	service, err := a.NewService(region)
	if err != nil {
		return nil, err
	}
	a.services[region] = service
	return service, nil
}

func parseLocation(location string) (region, name string, err error) {
	parts := strings.SplitN(location, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("location must be of the form <region>/<function>")
	}
	return parts[0], parts[1], nil
}
