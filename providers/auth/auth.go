// Package auth defines the auth resource factory: a Cognito user pool, app
// client, and identity pool, with optional Lambda triggers wired to function
// factories.
package auth

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/backplane-io/backplane/internal/container"
	"github.com/backplane-io/backplane/internal/ir"
	"github.com/backplane-io/backplane/providers/function"
)

// OutputName is the output-group name auth writes its client-facing values
// under.
const OutputName = "Backplane::Auth"

// Password policy validity range.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 99

	defaultPasswordLength = 8
)

// Trigger names accepted by the user pool Lambda config.
var knownTriggers = map[string]string{
	"preSignUp":          "PreSignUp",
	"postConfirmation":   "PostConfirmation",
	"preAuthentication":  "PreAuthentication",
	"postAuthentication": "PostAuthentication",
	"customMessage":      "CustomMessage",
}

// Props declares an auth factory.
type Props struct {
	// SelfSignUpEnabled allows users to register themselves. When false only
	// administrators can create users.
	SelfSignUpEnabled bool
	// PasswordMinLength is the minimum password length. Whole number, 6-99.
	PasswordMinLength *float64
	// MfaConfiguration is OFF, ON, or OPTIONAL. Defaults to OFF.
	MfaConfiguration string
	// AutoVerifiedAttributes defaults to ["email"].
	AutoVerifiedAttributes []string
	// Triggers maps trigger names (preSignUp, postConfirmation, ...) to the
	// function factories handling them. Resolved through the container, so a
	// trigger function shared with other generators is still materialized
	// once.
	Triggers map[string]*function.Factory
}

// Resources is the materialized resource record.
type Resources struct {
	UserPoolLogicalID     string
	ClientLogicalID       string
	IdentityPoolLogicalID string
	UserPool              *ir.Resource
	Client                *ir.Resource
	IdentityPool          *ir.Resource
	TriggerFunctions      map[string]*function.Resources
}

// Factory materializes the auth resource group exactly once per container.
type Factory struct {
	props Props
	hyd   *hydrated
}

// New declares an auth factory.
func New(props Props) *Factory {
	return &Factory{props: props}
}

// ResourceGroupName implements container.Generator.
func (f *Factory) ResourceGroupName() string { return "auth" }

type hydrated struct {
	passwordMinLength int
	mfaConfiguration  string
	autoVerified      []string
	triggerNames      []string // sorted declared trigger names
}

func (f *Factory) hydrate() (*hydrated, error) {
	if f.hyd != nil {
		return f.hyd, nil
	}

	h := &hydrated{mfaConfiguration: f.props.MfaConfiguration}
	if h.mfaConfiguration == "" {
		h.mfaConfiguration = "OFF"
	}
	switch h.mfaConfiguration {
	case "OFF", "ON", "OPTIONAL":
	default:
		return nil, fmt.Errorf("auth: mfaConfiguration must be OFF, ON, or OPTIONAL, got %q", h.mfaConfiguration)
	}

	if f.props.PasswordMinLength == nil {
		h.passwordMinLength = defaultPasswordLength
	} else {
		v := *f.props.PasswordMinLength
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("auth: passwordMinLength must be a whole number, got %v", v)
		}
		n := int(v)
		if n < MinPasswordLength || n > MaxPasswordLength {
			return nil, fmt.Errorf("auth: passwordMinLength must be between %d and %d, got %d", MinPasswordLength, MaxPasswordLength, n)
		}
		h.passwordMinLength = n
	}

	h.autoVerified = f.props.AutoVerifiedAttributes
	if len(h.autoVerified) == 0 {
		h.autoVerified = []string{"email"}
	}

	for name := range f.props.Triggers {
		if _, ok := knownTriggers[name]; !ok {
			return nil, fmt.Errorf("auth: unknown trigger %q", name)
		}
		h.triggerNames = append(h.triggerNames, name)
	}
	sort.Strings(h.triggerNames)

	f.hyd = h
	return h, nil
}

// GenerateContainerEntry implements container.Generator.
func (f *Factory) GenerateContainerEntry(ctx context.Context, scope *container.Scope) (any, error) {
	h, err := f.hydrate()
	if err != nil {
		return nil, err
	}

	triggerFunctions := make(map[string]*function.Resources, len(h.triggerNames))
	lambdaConfig := make(map[string]any, len(h.triggerNames))
	for _, name := range h.triggerNames {
		fnRes, err := f.props.Triggers[name].Resources(ctx, scope.Container)
		if err != nil {
			return nil, fmt.Errorf("auth trigger %q: %w", name, err)
		}
		triggerFunctions[name] = fnRes
		lambdaConfig[knownTriggers[name]] = ir.GetAtt(fnRes.FunctionLogicalID, "Arn")
	}

	poolID := ir.LogicalID("auth", "UserPool")
	autoVerified := make([]any, len(h.autoVerified))
	for i, attr := range h.autoVerified {
		autoVerified[i] = attr
	}
	pool := &ir.Resource{
		Type: "AWS::Cognito::UserPool",
		Properties: map[string]any{
			"AutoVerifiedAttributes": autoVerified,
			"MfaConfiguration":       h.mfaConfiguration,
			"Policies": map[string]any{
				"PasswordPolicy": map[string]any{
					"MinimumLength":    h.passwordMinLength,
					"RequireLowercase": true,
					"RequireUppercase": true,
					"RequireNumbers":   true,
				},
			},
			"AdminCreateUserConfig": map[string]any{
				"AllowAdminCreateUserOnly": !f.props.SelfSignUpEnabled,
			},
		},
	}
	if len(lambdaConfig) > 0 {
		pool.Properties["LambdaConfig"] = lambdaConfig
	}
	if err := scope.Template.AddResource(poolID, pool); err != nil {
		return nil, err
	}

	clientID := ir.LogicalID("auth", "UserPoolClient")
	client := &ir.Resource{
		Type: "AWS::Cognito::UserPoolClient",
		Properties: map[string]any{
			"UserPoolId":     ir.Ref(poolID),
			"GenerateSecret": false,
			"ExplicitAuthFlows": []any{
				"ALLOW_USER_SRP_AUTH",
				"ALLOW_REFRESH_TOKEN_AUTH",
			},
		},
	}
	if err := scope.Template.AddResource(clientID, client); err != nil {
		return nil, err
	}

	identityID := ir.LogicalID("auth", "IdentityPool")
	identity := &ir.Resource{
		Type: "AWS::Cognito::IdentityPool",
		Properties: map[string]any{
			"AllowUnauthenticatedIdentities": false,
			"CognitoIdentityProviders": []any{
				map[string]any{
					"ClientId":     ir.Ref(clientID),
					"ProviderName": ir.GetAtt(poolID, "ProviderName"),
				},
			},
		},
	}
	if err := scope.Template.AddResource(identityID, identity); err != nil {
		return nil, err
	}

	payload := ir.NewOutputPayload().
		Set("userPoolId", ir.Ref(poolID)).
		Set("userPoolClientId", ir.Ref(clientID)).
		Set("identityPoolId", ir.Ref(identityID)).
		Set("authRegion", ir.Ref("AWS::Region"))
	entry := ir.BackendOutputEntry{Version: "1", Payload: payload}
	if err := scope.Outputs.AddBackendOutputEntry(OutputName, entry); err != nil {
		return nil, err
	}

	return &Resources{
		UserPoolLogicalID:     poolID,
		ClientLogicalID:       clientID,
		IdentityPoolLogicalID: identityID,
		UserPool:              pool,
		Client:                client,
		IdentityPool:          identity,
		TriggerFunctions:      triggerFunctions,
	}, nil
}

// Resources resolves this factory through the container and returns the
// typed resource record.
func (f *Factory) Resources(ctx context.Context, c *container.ConstructContainer) (*Resources, error) {
	entry, err := c.GetOrCompute(ctx, f)
	if err != nil {
		return nil, err
	}
	res, ok := entry.(*Resources)
	if !ok {
		return nil, fmt.Errorf("unexpected container entry type %T for auth factory", entry)
	}
	return res, nil
}
