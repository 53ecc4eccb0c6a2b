// Package deploy pushes rendered deploy targets to CloudFormation and reads
// back stack outputs and output-group metadata.
package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/backplane-io/backplane/internal/ir"
	"github.com/backplane-io/backplane/internal/logging"
	"github.com/backplane-io/backplane/internal/outputs"
)

// DefaultPollInterval is how often stack status is polled during deploys.
const DefaultPollInterval = 5 * time.Second

// DefaultWaitTimeout bounds how long a single stack operation may take.
const DefaultWaitTimeout = 30 * time.Minute

// cloudFormationAPI is the slice of the CloudFormation client the deployer
// uses.
type cloudFormationAPI interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	GetTemplate(ctx context.Context, params *cloudformation.GetTemplateInput, optFns ...func(*cloudformation.Options)) (*cloudformation.GetTemplateOutput, error)
}

// Deployer drives CloudFormation stack operations for a backend.
type Deployer struct {
	client       cloudFormationAPI
	retryPolicy  *RetryPolicy
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// NewDeployer creates a deployer backed by a real CloudFormation client.
func NewDeployer(cfg aws.Config) *Deployer {
	return &Deployer{
		client:       cloudformation.NewFromConfig(cfg),
		retryPolicy:  DefaultRetryPolicy(),
		pollInterval: DefaultPollInterval,
		waitTimeout:  DefaultWaitTimeout,
	}
}

// StackResult is the observed state of a deployed stack: resolved outputs
// plus the output-group metadata records carried in the template.
type StackResult struct {
	StackID  string
	Status   string
	Outputs  map[string]string
	Metadata map[string]outputs.MetadataRecord
}

// Deploy creates or updates the stack from the rendered deploy target and
// waits for the operation to settle. An update with no changes is not an
// error.
func (d *Deployer) Deploy(ctx context.Context, stackName string, tpl *ir.Template) (*StackResult, error) {
	body, err := tpl.RenderJSON()
	if err != nil {
		return nil, err
	}
	templateBody := string(body)

	exists, err := d.stackExists(ctx, stackName)
	if err != nil {
		return nil, err
	}

	capabilities := []cfntypes.Capability{cfntypes.CapabilityCapabilityIam}
	if exists {
		logging.Info("updating stack", "stack", stackName)
		err = RetryWithBackoff(ctx, d.retryPolicy, func() error {
			_, err := d.client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
				StackName:    aws.String(stackName),
				TemplateBody: aws.String(templateBody),
				Capabilities: capabilities,
			})
			return err
		}, IsTransientError)
		if err != nil {
			if strings.Contains(err.Error(), "No updates are to be performed") {
				logging.Info("stack is already up to date", "stack", stackName)
				return d.FetchStack(ctx, stackName)
			}
			return nil, fmt.Errorf("failed to update stack %s: %w", stackName, err)
		}
	} else {
		logging.Info("creating stack", "stack", stackName)
		err = RetryWithBackoff(ctx, d.retryPolicy, func() error {
			_, err := d.client.CreateStack(ctx, &cloudformation.CreateStackInput{
				StackName:    aws.String(stackName),
				TemplateBody: aws.String(templateBody),
				Capabilities: capabilities,
				OnFailure:    cfntypes.OnFailureRollback,
			})
			return err
		}, IsTransientError)
		if err != nil {
			return nil, fmt.Errorf("failed to create stack %s: %w", stackName, err)
		}
	}

	if err := d.waitForSettled(ctx, stackName); err != nil {
		return nil, err
	}
	return d.FetchStack(ctx, stackName)
}

// Destroy deletes the stack and waits until it is gone.
func (d *Deployer) Destroy(ctx context.Context, stackName string) error {
	logging.Info("deleting stack", "stack", stackName)
	err := RetryWithBackoff(ctx, d.retryPolicy, func() error {
		_, err := d.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
			StackName: aws.String(stackName),
		})
		return err
	}, IsTransientError)
	if err != nil {
		return fmt.Errorf("failed to delete stack %s: %w", stackName, err)
	}

	deadline := time.Now().Add(d.waitTimeout)
	for {
		stack, err := d.describeStack(ctx, stackName)
		if err != nil {
			if isStackMissing(err) {
				return nil
			}
			return err
		}
		status := string(stack.StackStatus)
		if status == string(cfntypes.StackStatusDeleteComplete) {
			return nil
		}
		if status == string(cfntypes.StackStatusDeleteFailed) {
			return fmt.Errorf("stack %s deletion failed: %s", stackName, aws.ToString(stack.StackStatusReason))
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for stack %s deletion", stackName)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pollInterval):
		}
	}
}

// FetchStack reads the deployed stack's outputs and the output-group
// metadata records from its template.
func (d *Deployer) FetchStack(ctx context.Context, stackName string) (*StackResult, error) {
	stack, err := d.describeStack(ctx, stackName)
	if err != nil {
		return nil, err
	}

	result := &StackResult{
		StackID: aws.ToString(stack.StackId),
		Status:  string(stack.StackStatus),
		Outputs: make(map[string]string, len(stack.Outputs)),
	}
	for _, out := range stack.Outputs {
		result.Outputs[aws.ToString(out.OutputKey)] = aws.ToString(out.OutputValue)
	}

	tplOut, err := d.client.GetTemplate(ctx, &cloudformation.GetTemplateInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch template for stack %s: %w", stackName, err)
	}
	tpl, err := ir.ParseTemplate([]byte(aws.ToString(tplOut.TemplateBody)))
	if err != nil {
		return nil, err
	}

	records, err := outputs.ParseMetadata(tpl.Metadata[ir.MetadataOutputsKey])
	if err != nil {
		return nil, fmt.Errorf("stack %s: %w", stackName, err)
	}
	result.Metadata = records
	return result, nil
}

func (d *Deployer) stackExists(ctx context.Context, stackName string) (bool, error) {
	_, err := d.describeStack(ctx, stackName)
	if err != nil {
		if isStackMissing(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Deployer) describeStack(ctx context.Context, stackName string) (*cfntypes.Stack, error) {
	out, err := d.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("stack %s not found", stackName)
	}
	return &out.Stacks[0], nil
}

// waitForSettled polls the stack until it reaches a terminal status.
func (d *Deployer) waitForSettled(ctx context.Context, stackName string) error {
	deadline := time.Now().Add(d.waitTimeout)
	for {
		stack, err := d.describeStack(ctx, stackName)
		if err != nil {
			return err
		}
		status := string(stack.StackStatus)
		logging.Debug("stack status", "stack", stackName, "status", status)

		switch {
		case strings.HasSuffix(status, "_IN_PROGRESS"):
			// Keep polling.
		case status == string(cfntypes.StackStatusCreateComplete),
			status == string(cfntypes.StackStatusUpdateComplete):
			return nil
		default:
			return fmt.Errorf("stack %s settled in %s: %s", stackName, status, aws.ToString(stack.StackStatusReason))
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for stack %s", stackName)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pollInterval):
		}
	}
}

// isStackMissing matches the ValidationError CloudFormation returns for a
// stack that does not exist.
func isStackMissing(err error) bool {
	return err != nil && strings.Contains(err.Error(), "does not exist")
}
