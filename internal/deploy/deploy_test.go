package deploy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backplane-io/backplane/internal/ir"
)

// fakeCFN simulates a single CloudFormation stack.
type fakeCFN struct {
	exists       bool
	status       cfntypes.StackStatus
	templateBody string
	outputs      map[string]string

	createCalls int
	updateCalls int
	deleteCalls int
	noUpdates   bool
}

func (f *fakeCFN) CreateStack(_ context.Context, in *cloudformation.CreateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.createCalls++
	f.exists = true
	f.status = cfntypes.StackStatusCreateComplete
	f.templateBody = aws.ToString(in.TemplateBody)
	return &cloudformation.CreateStackOutput{StackId: aws.String("stack-id-1")}, nil
}

func (f *fakeCFN) UpdateStack(_ context.Context, in *cloudformation.UpdateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	f.updateCalls++
	if f.noUpdates {
		return nil, fmt.Errorf("ValidationError: No updates are to be performed.")
	}
	f.status = cfntypes.StackStatusUpdateComplete
	f.templateBody = aws.ToString(in.TemplateBody)
	return &cloudformation.UpdateStackOutput{StackId: aws.String("stack-id-1")}, nil
}

func (f *fakeCFN) DeleteStack(_ context.Context, _ *cloudformation.DeleteStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	f.deleteCalls++
	f.exists = false
	return &cloudformation.DeleteStackOutput{}, nil
}

func (f *fakeCFN) DescribeStacks(_ context.Context, in *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	if !f.exists {
		return nil, fmt.Errorf("ValidationError: Stack with id %s does not exist", aws.ToString(in.StackName))
	}
	stack := cfntypes.Stack{
		StackId:     aws.String("stack-id-1"),
		StackName:   in.StackName,
		StackStatus: f.status,
	}
	for k, v := range f.outputs {
		stack.Outputs = append(stack.Outputs, cfntypes.Output{
			OutputKey:   aws.String(k),
			OutputValue: aws.String(v),
		})
	}
	return &cloudformation.DescribeStacksOutput{Stacks: []cfntypes.Stack{stack}}, nil
}

func (f *fakeCFN) GetTemplate(_ context.Context, _ *cloudformation.GetTemplateInput, _ ...func(*cloudformation.Options)) (*cloudformation.GetTemplateOutput, error) {
	return &cloudformation.GetTemplateOutput{TemplateBody: aws.String(f.templateBody)}, nil
}

func newTestDeployer(fake *fakeCFN) *Deployer {
	return &Deployer{
		client:       fake,
		retryPolicy:  &RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		pollInterval: time.Millisecond,
		waitTimeout:  time.Second,
	}
}

func testTemplate(t *testing.T) *ir.Template {
	t.Helper()
	tpl := ir.NewTemplate("test")
	require.NoError(t, tpl.AddResource("Bucket", &ir.Resource{Type: "AWS::S3::Bucket"}))
	require.NoError(t, tpl.AddOutput("bucketName", ir.Ref("Bucket")))
	tpl.OutputRecords()["Backplane::Storage"] = map[string]any{
		"version":      "1",
		"stackOutputs": []string{"bucketName"},
	}
	return tpl
}

func TestDeploy_CreatesMissingStack(t *testing.T) {
	fake := &fakeCFN{outputs: map[string]string{"bucketName": "media-bucket-xyz"}}
	d := newTestDeployer(fake)

	result, err := d.Deploy(context.Background(), "backplane-orders", testTemplate(t))
	require.NoError(t, err)

	assert.Equal(t, 1, fake.createCalls)
	assert.Equal(t, 0, fake.updateCalls)
	assert.Equal(t, "stack-id-1", result.StackID)
	assert.Equal(t, "media-bucket-xyz", result.Outputs["bucketName"])
	require.Contains(t, result.Metadata, "Backplane::Storage")
	assert.Equal(t, []string{"bucketName"}, result.Metadata["Backplane::Storage"].StackOutputs)
}

func TestDeploy_UpdatesExistingStack(t *testing.T) {
	fake := &fakeCFN{exists: true, status: cfntypes.StackStatusCreateComplete}
	d := newTestDeployer(fake)

	_, err := d.Deploy(context.Background(), "backplane-orders", testTemplate(t))
	require.NoError(t, err)
	assert.Equal(t, 0, fake.createCalls)
	assert.Equal(t, 1, fake.updateCalls)
}

func TestDeploy_NoChangesIsNotAnError(t *testing.T) {
	tpl := testTemplate(t)
	body, err := tpl.RenderJSON()
	require.NoError(t, err)

	fake := &fakeCFN{
		exists:       true,
		status:       cfntypes.StackStatusUpdateComplete,
		templateBody: string(body),
		noUpdates:    true,
	}
	d := newTestDeployer(fake)

	result, err := d.Deploy(context.Background(), "backplane-orders", tpl)
	require.NoError(t, err)
	assert.Equal(t, "stack-id-1", result.StackID)
}

func TestWaitForSettled_RejectsRollback(t *testing.T) {
	fake := &fakeCFN{exists: true, status: cfntypes.StackStatusRollbackComplete, templateBody: "{}"}
	d := newTestDeployer(fake)

	// FetchStack reports status without failing; the wait loop is what
	// rejects non-complete terminal states.
	result, err := d.FetchStack(context.Background(), "backplane-orders")
	require.NoError(t, err)
	assert.Equal(t, "ROLLBACK_COMPLETE", result.Status)

	err = d.waitForSettled(context.Background(), "backplane-orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROLLBACK_COMPLETE")
}

func TestDestroy_WaitsForDeletion(t *testing.T) {
	fake := &fakeCFN{exists: true, status: cfntypes.StackStatusCreateComplete}
	d := newTestDeployer(fake)

	require.NoError(t, d.Destroy(context.Background(), "backplane-orders"))
	assert.Equal(t, 1, fake.deleteCalls)
}

func TestDestroy_MissingStackIsNotAnError(t *testing.T) {
	fake := &fakeCFN{}
	d := newTestDeployer(fake)
	assert.NoError(t, d.Destroy(context.Background(), "backplane-orders"))
}
