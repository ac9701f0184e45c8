package config

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// overlaySecrets fetches the named Secrets Manager secret and overrides the
// credential fields present in its JSON document. Fields absent from the
// secret keep their configured values.
func overlaySecrets(cfg *Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg)
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &cfg.AWSSecretName,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch secret %s: %w", cfg.AWSSecretName, err)
	}
	if out.SecretString == nil {
		return fmt.Errorf("secret %s has no string payload", cfg.AWSSecretName)
	}

	var secrets map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &secrets); err != nil {
		return fmt.Errorf("failed to parse secret %s: %w", cfg.AWSSecretName, err)
	}

	if v := secrets["amqp_url"]; v != "" {
		cfg.AMQPURL = v
	}
	if v := secrets["postgres_dsn"]; v != "" {
		cfg.PostgresDSN = v
	}
	if v := secrets["jwt_secret"]; v != "" {
		cfg.JWTSecret = v
	}
	if v := secrets["resend_api_key"]; v != "" {
		cfg.ResendAPIKey = v
	}
	return nil
}
