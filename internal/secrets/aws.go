package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI and secretsManagerAPI are the narrow slices of the AWS clients the
// resolver calls, so tests can substitute fakes.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, opts ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWS resolves secret references with live lookups against SSM Parameter
// Store and Secrets Manager. Used when synthesis runs with --resolve-secrets.
type AWS struct {
	ssmClient     ssmAPI
	secretsClient secretsManagerAPI
}

// NewAWS creates a live resolver from an AWS SDK config.
func NewAWS(cfg aws.Config) *AWS {
	return &AWS{
		ssmClient:     ssm.NewFromConfig(cfg),
		secretsClient: secretsmanager.NewFromConfig(cfg),
	}
}

func (a *AWS) Resolve(ctx context.Context, ref Ref) (string, error) {
	if ref.Name == "" {
		return "", fmt.Errorf("secret reference has no name")
	}

	switch ref.source() {
	case SourceSSM:
		out, err := a.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(ref.Name),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return "", fmt.Errorf("failed to resolve SSM parameter %q: %w", ref.Name, err)
		}
		if out.Parameter == nil || out.Parameter.Value == nil {
			return "", fmt.Errorf("SSM parameter %q has no value", ref.Name)
		}
		return *out.Parameter.Value, nil

	case SourceSecretsManager:
		out, err := a.secretsClient.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(ref.Name),
		})
		if err != nil {
			return "", fmt.Errorf("failed to resolve secret %q: %w", ref.Name, err)
		}
		if out.SecretString == nil {
			return "", fmt.Errorf("secret %q has no string value", ref.Name)
		}
		return *out.SecretString, nil

	default:
		return "", fmt.Errorf("secret %q has unknown source %q", ref.Name, ref.Source)
	}
}
