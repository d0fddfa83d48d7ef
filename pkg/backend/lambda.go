package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/sirupsen/logrus"
)

// lambdaInvoker is the part of *lambda.Client the backend uses.
type lambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaBackend runs a translator deployed as an AWS Lambda function.
type LambdaBackend struct {
	descriptor   Descriptor
	functionName string
	client       lambdaInvoker
	logger       *logrus.Logger
}

// lambdaRequest is the payload of a translator function (chunked mode).
type lambdaRequest struct {
	Chunks     [][]string `json:"chunks"`
	SourceLang string     `json:"source_lang"`
	TargetLang string     `json:"target_lang"`
}

// lambdaResponse is returned by a translator function.
type lambdaResponse struct {
	Translations [][]string `json:"translations"`
	Error        string     `json:"error,omitempty"`
}

// NewLambdaBackend creates a backend invoking functionName. Credentials and
// region come from the default AWS configuration chain unless region is set.
func NewLambdaBackend(ctx context.Context, d Descriptor, functionName, region string, logger *logrus.Logger) (*LambdaBackend, error) {
	if functionName == "" {
		return nil, errors.New("lambda function name is required")
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newLambdaBackend(d, functionName, lambda.NewFromConfig(cfg), logger), nil
}

func newLambdaBackend(d Descriptor, functionName string, client lambdaInvoker, logger *logrus.Logger) *LambdaBackend {
	if logger == nil {
		logger = logrus.New()
	}
	return &LambdaBackend{
		descriptor:   d,
		functionName: functionName,
		client:       client,
		logger:       logger,
	}
}

// Descriptor implements Backend.
func (l *LambdaBackend) Descriptor() Descriptor {
	return l.descriptor
}

// Translate invokes the function synchronously with a single one-text chunk.
func (l *LambdaBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := checkPair(l.descriptor, sourceLang, targetLang); err != nil {
		return "", err
	}
	start := time.Now()
	out, err := l.invoke(ctx, &lambdaRequest{
		Chunks:     [][]string{{text}},
		SourceLang: sourceLang,
		TargetLang: targetLang,
	})
	observeHop(l.descriptor.Name, err == nil, time.Since(start))
	if err != nil {
		l.logger.WithError(err).WithFields(logrus.Fields{
			"backend":  l.descriptor.Name,
			"function": l.functionName,
		}).Error("Lambda translation failed")
		return "", err
	}
	return out, nil
}

func (l *LambdaBackend) invoke(ctx context.Context, req *lambdaRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	result, err := l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(l.functionName),
		Payload:      payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke %s: %w", l.functionName, err)
	}
	if result.FunctionError != nil {
		return "", fmt.Errorf("lambda error: %s", *result.FunctionError)
	}

	var resp lambdaResponse
	if err := json.Unmarshal(result.Payload, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("translator error: %s", resp.Error)
	}
	if len(resp.Translations) == 0 || len(resp.Translations[0]) == 0 {
		return "", errors.New("translator returned no translations")
	}
	return resp.Translations[0][0], nil
}
