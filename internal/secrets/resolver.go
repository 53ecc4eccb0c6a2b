// Package secrets resolves secret references declared on backend factories.
package secrets

import (
	"context"
	"fmt"
)

// Source identifies where a secret lives.
type Source string

const (
	SourceSSM            Source = "ssm"
	SourceSecretsManager Source = "secretsmanager"
)

// Ref is an opaque reference to a secret. Factories declare refs; resolution
// happens during synthesis through whichever Resolver the backend was built
// with.
type Ref struct {
	Name   string `pkl:"name" json:"name"`
	Source Source `pkl:"source" json:"source"`
}

func (r Ref) source() Source {
	if r.Source == "" {
		return SourceSSM
	}
	return r.Source
}

// Resolver turns a secret reference into a value or a deferred reference the
// deploy target can resolve itself at deploy time.
type Resolver interface {
	Resolve(ctx context.Context, ref Ref) (string, error)
}

// Static resolves secrets from an in-memory map, keyed by ref name. Used by
// tests and the local sandbox.
type Static map[string]string

func (s Static) Resolve(_ context.Context, ref Ref) (string, error) {
	if ref.Name == "" {
		return "", fmt.Errorf("secret reference has no name")
	}
	v, ok := s[ref.Name]
	if !ok {
		return "", fmt.Errorf("secret %q is not defined", ref.Name)
	}
	return v, nil
}

// Deferred emits CloudFormation dynamic references instead of secret values,
// deferring resolution to deploy time. No network I/O. This is the default
// resolver for synthesis.
type Deferred struct{}

func (Deferred) Resolve(_ context.Context, ref Ref) (string, error) {
	if ref.Name == "" {
		return "", fmt.Errorf("secret reference has no name")
	}
	switch ref.source() {
	case SourceSSM:
		return fmt.Sprintf("{{resolve:ssm-secure:%s}}", ref.Name), nil
	case SourceSecretsManager:
		return fmt.Sprintf("{{resolve:secretsmanager:%s}}", ref.Name), nil
	default:
		return "", fmt.Errorf("secret %q has unknown source %q", ref.Name, ref.Source)
	}
}
