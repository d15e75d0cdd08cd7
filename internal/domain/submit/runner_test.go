package submit

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/marketplace-postsubmit/internal/platform"
)

func TestRunStage_Success(t *testing.T) {
	action := runStage(context.Background(), ProcessTax, "Commit tax transaction", func(_ context.Context) error {
		return nil
	})

	assert.True(t, action.Success)
	assert.Equal(t, ProcessTax, action.Type)
	assert.Equal(t, "Commit tax transaction", action.Description)
	assert.Nil(t, action.Exception)
}

func TestRunStage_CapturesFailure(t *testing.T) {
	action := runStage(context.Background(), ProcessNotification, "Send order submit emails", func(_ context.Context) error {
		return errors.New("smtp unreachable")
	})

	assert.False(t, action.Success)
	require.NotNil(t, action.Exception)
	assert.Equal(t, "internal", action.Exception.Category)
	assert.Contains(t, action.Exception.Message, "smtp unreachable")
	assert.False(t, action.Exception.Retryable)
}

func TestRunStageValue_ZeroValueOnFailure(t *testing.T) {
	type payload struct {
		ID string
	}

	action, v := runStageValue(context.Background(), ProcessAccounting, "Create accounting sales order",
		func(_ context.Context) (payload, error) {
			return payload{ID: "ignored"}, errors.New("erp rejected the document")
		})

	assert.False(t, action.Success)
	assert.Empty(t, v.ID, "failed stage must yield the zero value")
}

func TestRunStageValue_PassesValueThrough(t *testing.T) {
	action, v := runStageValue(context.Background(), ProcessForwarding, "Forward order to suppliers",
		func(_ context.Context) (int, error) {
			return 42, nil
		})

	assert.True(t, action.Success)
	assert.Equal(t, 42, v)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCategory  string
		wantRetryable bool
	}{
		{
			name:          "platform server error",
			err:           &platform.Error{StatusCode: 503, Code: "Unavailable", Message: "down"},
			wantCategory:  "platform_api",
			wantRetryable: true,
		},
		{
			name:          "platform validation error",
			err:           &platform.Error{StatusCode: 400, Code: "Validation", Message: "bad id"},
			wantCategory:  "platform_api",
			wantRetryable: false,
		},
		{
			name:          "wrapped platform error",
			err:           errors.Wrap(&platform.Error{StatusCode: 429, Code: "RateLimited", Message: "slow down"}, "patch order"),
			wantCategory:  "platform_api",
			wantRetryable: true,
		},
		{
			name:          "deadline",
			err:           context.DeadlineExceeded,
			wantCategory:  "timeout",
			wantRetryable: true,
		},
		{
			name:          "canceled",
			err:           context.Canceled,
			wantCategory:  "canceled",
			wantRetryable: false,
		},
		{
			name:          "plain error",
			err:           errors.New("boom"),
			wantCategory:  "internal",
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exc := classifyError(tt.err)
			require.NotNil(t, exc)
			assert.Equal(t, tt.wantCategory, exc.Category)
			assert.Equal(t, tt.wantRetryable, exc.Retryable)
			assert.NotEmpty(t, exc.Message)
		})
	}
}

func TestProcessResult_Succeeded(t *testing.T) {
	ok := ProcessResult{Type: ProcessTax, Actions: []ProcessResultAction{
		{Success: true}, {Success: true},
	}}
	assert.True(t, ok.Succeeded())

	mixed := ProcessResult{Type: ProcessAccounting, Actions: []ProcessResultAction{
		{Success: true}, {Success: false},
	}}
	assert.False(t, mixed.Succeeded())

	empty := ProcessResult{Type: ProcessShipping}
	assert.True(t, empty.Succeeded())
}
