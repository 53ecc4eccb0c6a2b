// Package data defines the data resource factory: an AppSync GraphQL API
// with one DynamoDB table, data source, and service role per declared model.
package data

import (
	"context"
	"fmt"
	"os"

	"github.com/backplane-io/backplane/internal/container"
	"github.com/backplane-io/backplane/internal/ir"
	"github.com/backplane-io/backplane/providers/auth"
)

// OutputName is the output-group name data writes its client-facing values
// under.
const OutputName = "Backplane::Data"

// AuthorizationMode selects how API callers authenticate.
type AuthorizationMode string

const (
	AuthAPIKey   AuthorizationMode = "API_KEY"
	AuthUserPool AuthorizationMode = "AMAZON_COGNITO_USER_POOLS"
)

// KeyAttribute is a DynamoDB key attribute. Type is the scalar attribute
// type: S, N, or B.
type KeyAttribute struct {
	Name string
	Type string
}

// Model declares one GraphQL model backed by its own table.
type Model struct {
	Name         string
	PartitionKey KeyAttribute
	// SortKey is optional; a model without one gets a simple primary key.
	SortKey *KeyAttribute
}

// Props declares a data factory.
type Props struct {
	// Schema is the GraphQL SDL. Exactly one of Schema and SchemaFile must be
	// set.
	Schema string
	// SchemaFile is a path to the GraphQL SDL, read at synthesis time.
	SchemaFile string
	// Models declare the tables and data sources backing the schema.
	Models []Model
	// AuthorizationMode defaults to API_KEY.
	AuthorizationMode AuthorizationMode
	// Auth supplies the user pool for AMAZON_COGNITO_USER_POOLS authorization.
	// Resolved through the container.
	Auth *auth.Factory
}

// Resources is the materialized resource record.
type Resources struct {
	APILogicalID string
	API          *ir.Resource
	Schema       *ir.Resource
	APIKey       *ir.Resource
	Tables       map[string]*ir.Resource
	DataSources  map[string]*ir.Resource
	ServiceRole  *ir.Resource
}

// Factory materializes the data resource group exactly once per container.
type Factory struct {
	props Props
}

// New declares a data factory.
func New(props Props) *Factory {
	return &Factory{props: props}
}

// ResourceGroupName implements container.Generator.
func (f *Factory) ResourceGroupName() string { return "data" }

func (f *Factory) schemaDefinition() (string, error) {
	switch {
	case f.props.Schema != "" && f.props.SchemaFile != "":
		return "", fmt.Errorf("data: schema and schemaFile are mutually exclusive")
	case f.props.Schema != "":
		return f.props.Schema, nil
	case f.props.SchemaFile != "":
		raw, err := os.ReadFile(f.props.SchemaFile)
		if err != nil {
			return "", fmt.Errorf("data: failed to read schema file %s: %w", f.props.SchemaFile, err)
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("data: either schema or schemaFile must be set")
	}
}

func validateModel(m Model) error {
	if m.Name == "" {
		return fmt.Errorf("data: model name must not be empty")
	}
	if err := validateKey(m.Name, m.PartitionKey); err != nil {
		return err
	}
	if m.SortKey != nil {
		return validateKey(m.Name, *m.SortKey)
	}
	return nil
}

func validateKey(model string, key KeyAttribute) error {
	if key.Name == "" {
		return fmt.Errorf("data: model %q: key attribute name must not be empty", model)
	}
	switch key.Type {
	case "S", "N", "B":
		return nil
	default:
		return fmt.Errorf("data: model %q: key attribute type must be S, N, or B, got %q", model, key.Type)
	}
}

// GenerateContainerEntry implements container.Generator.
func (f *Factory) GenerateContainerEntry(ctx context.Context, scope *container.Scope) (any, error) {
	schema, err := f.schemaDefinition()
	if err != nil {
		return nil, err
	}

	mode := f.props.AuthorizationMode
	if mode == "" {
		mode = AuthAPIKey
	}
	switch mode {
	case AuthAPIKey, AuthUserPool:
	default:
		return nil, fmt.Errorf("data: authorization mode %q is not supported", mode)
	}
	if mode == AuthUserPool && f.props.Auth == nil {
		return nil, fmt.Errorf("data: %s authorization requires an auth factory", AuthUserPool)
	}

	apiID := ir.LogicalID("data", "GraphQLApi")
	api := &ir.Resource{
		Type: "AWS::AppSync::GraphQLApi",
		Properties: map[string]any{
			"Name":               "backplane-data",
			"AuthenticationType": string(mode),
		},
	}
	if mode == AuthUserPool {
		authRes, err := f.props.Auth.Resources(ctx, scope.Container)
		if err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
		api.Properties["UserPoolConfig"] = map[string]any{
			"UserPoolId":    ir.Ref(authRes.UserPoolLogicalID),
			"AwsRegion":     ir.Ref("AWS::Region"),
			"DefaultAction": "ALLOW",
		}
	}
	if err := scope.Template.AddResource(apiID, api); err != nil {
		return nil, err
	}

	schemaID := ir.LogicalID("data", "GraphQLSchema")
	schemaRes := &ir.Resource{
		Type: "AWS::AppSync::GraphQLSchema",
		Properties: map[string]any{
			"ApiId":      ir.GetAtt(apiID, "ApiId"),
			"Definition": schema,
		},
	}
	if err := scope.Template.AddResource(schemaID, schemaRes); err != nil {
		return nil, err
	}

	roleID := ir.LogicalID("data", "ServiceRole")
	role := &ir.Resource{
		Type: "AWS::IAM::Role",
		Properties: map[string]any{
			"AssumeRolePolicyDocument": map[string]any{
				"Version": "2012-10-17",
				"Statement": []any{
					map[string]any{
						"Effect":    "Allow",
						"Principal": map[string]any{"Service": "appsync.amazonaws.com"},
						"Action":    "sts:AssumeRole",
					},
				},
			},
		},
	}

	tables := make(map[string]*ir.Resource, len(f.props.Models))
	dataSources := make(map[string]*ir.Resource, len(f.props.Models))
	seen := make(map[string]bool, len(f.props.Models))
	var tableArns []any
	for _, m := range f.props.Models {
		if err := validateModel(m); err != nil {
			return nil, err
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("data: model %q is declared twice", m.Name)
		}
		seen[m.Name] = true

		attrs := []any{
			map[string]any{"AttributeName": m.PartitionKey.Name, "AttributeType": m.PartitionKey.Type},
		}
		keySchema := []any{
			map[string]any{"AttributeName": m.PartitionKey.Name, "KeyType": "HASH"},
		}
		if m.SortKey != nil {
			attrs = append(attrs, map[string]any{"AttributeName": m.SortKey.Name, "AttributeType": m.SortKey.Type})
			keySchema = append(keySchema, map[string]any{"AttributeName": m.SortKey.Name, "KeyType": "RANGE"})
		}

		tableID := ir.LogicalID("data", m.Name, "Table")
		table := &ir.Resource{
			Type: "AWS::DynamoDB::Table",
			Properties: map[string]any{
				"AttributeDefinitions": attrs,
				"KeySchema":            keySchema,
				"BillingMode":          "PAY_PER_REQUEST",
			},
		}
		if err := scope.Template.AddResource(tableID, table); err != nil {
			return nil, err
		}
		tables[m.Name] = table
		tableArns = append(tableArns, ir.GetAtt(tableID, "Arn"))

		dsID := ir.LogicalID("data", m.Name, "DataSource")
		ds := &ir.Resource{
			Type: "AWS::AppSync::DataSource",
			Properties: map[string]any{
				"ApiId":          ir.GetAtt(apiID, "ApiId"),
				"Name":           m.Name + "Table",
				"Type":           "AMAZON_DYNAMODB",
				"ServiceRoleArn": ir.GetAtt(roleID, "Arn"),
				"DynamoDBConfig": map[string]any{
					"TableName": ir.Ref(tableID),
					"AwsRegion": ir.Ref("AWS::Region"),
				},
			},
		}
		if err := scope.Template.AddResource(dsID, ds); err != nil {
			return nil, err
		}
		dataSources[m.Name] = ds
	}

	if len(tableArns) > 0 {
		role.Properties["Policies"] = []any{
			map[string]any{
				"PolicyName": "TableAccess",
				"PolicyDocument": map[string]any{
					"Version": "2012-10-17",
					"Statement": []any{
						map[string]any{
							"Effect": "Allow",
							"Action": []any{
								"dynamodb:GetItem", "dynamodb:PutItem", "dynamodb:UpdateItem",
								"dynamodb:DeleteItem", "dynamodb:Query", "dynamodb:Scan",
							},
							"Resource": tableArns,
						},
					},
				},
			},
		}
	}
	if err := scope.Template.AddResource(roleID, role); err != nil {
		return nil, err
	}

	payload := ir.NewOutputPayload().
		Set("apiId", ir.GetAtt(apiID, "ApiId")).
		Set("apiEndpoint", ir.GetAtt(apiID, "GraphQLUrl")).
		Set("authorizationMode", string(mode)).
		Set("dataRegion", ir.Ref("AWS::Region"))

	var apiKey *ir.Resource
	if mode == AuthAPIKey {
		keyID := ir.LogicalID("data", "ApiKey")
		apiKey = &ir.Resource{
			Type: "AWS::AppSync::ApiKey",
			Properties: map[string]any{
				"ApiId": ir.GetAtt(apiID, "ApiId"),
			},
		}
		if err := scope.Template.AddResource(keyID, apiKey); err != nil {
			return nil, err
		}
		payload.Set("apiKey", ir.GetAtt(keyID, "ApiKey"))
	}

	entry := ir.BackendOutputEntry{Version: "1", Payload: payload}
	if err := scope.Outputs.AddBackendOutputEntry(OutputName, entry); err != nil {
		return nil, err
	}

	return &Resources{
		APILogicalID: apiID,
		API:          api,
		Schema:       schemaRes,
		APIKey:       apiKey,
		Tables:       tables,
		DataSources:  dataSources,
		ServiceRole:  role,
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
		return nil, fmt.Errorf("unexpected container entry type %T for data factory", entry)
	}
	return res, nil
}
