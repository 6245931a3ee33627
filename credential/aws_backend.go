package credential

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// secretsManagerClient is the subset of secretsmanager.Client the backend
// depends on, so tests can supply a fake without a live AWS account.
type secretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManagerBackend resolves "{tenant}/{selector}" as a Secrets
// Manager secret name, expecting a JSON object of fields as the secret
// string.
type AWSSecretsManagerBackend struct {
	client secretsManagerClient
}

func NewAWSSecretsManagerBackend(client *secretsmanager.Client) *AWSSecretsManagerBackend {
	return &AWSSecretsManagerBackend{client: client}
}

func (backend *AWSSecretsManagerBackend) Fetch(ctx context.Context, tenant, selector string) (Bundle, error) {
	name := fmt.Sprintf("%s/%s", tenant, selector)
	out, err := backend.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("secrets manager fetch %q: %w", name, err)
	}
	if out.SecretString == nil {
		return Bundle{}, fmt.Errorf("secret %q has no string value", name)
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &fields); err != nil {
		return Bundle{Fields: map[string]string{"token": *out.SecretString}}, nil
	}
	return Bundle{Fields: fields}, nil
}

// ssmClient is the subset of ssm.Client the backend depends on.
type ssmClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// AWSParameterStoreBackend resolves "/{tenant}/{selector}" as an SSM
// SecureString parameter path holding a single token value.
type AWSParameterStoreBackend struct {
	client ssmClient
}

func NewAWSParameterStoreBackend(client *ssm.Client) *AWSParameterStoreBackend {
	return &AWSParameterStoreBackend{client: client}
}

func (backend *AWSParameterStoreBackend) Fetch(ctx context.Context, tenant, selector string) (Bundle, error) {
	name := fmt.Sprintf("/%s/%s", tenant, selector)
	out, err := backend.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("ssm fetch %q: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return Bundle{}, fmt.Errorf("parameter %q has no value", name)
	}
	return Bundle{Fields: map[string]string{"token": *out.Parameter.Value}}, nil
}
