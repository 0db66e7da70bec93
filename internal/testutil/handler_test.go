package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rcontract/internal/contract"
	"github.com/roach88/rcontract/internal/resource"
)

func request(action contract.Action, model resource.Model) contract.HandlerRequest {
	return contract.HandlerRequest{
		ClientRequestToken: "tok-" + string(action),
		Action:             action,
		RequestData:        contract.RequestData{ResourceProperties: model},
	}
}

func widget(name string) resource.Model {
	return resource.Model{
		"Name":   name,
		"Secret": "hunter2",
		"Config": map[string]any{"Mode": "fast", "Port": 1024},
	}
}

func TestMemoryHandler_CreateReadDelete(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHandler(WidgetType(t), WithHandlerIDs(SequentialIDs()))

	ev, err := h.Invoke(ctx, request(contract.ActionCreate, widget("alpha")))
	require.NoError(t, err)
	require.Equal(t, contract.StatusSuccess, ev.Status)
	assert.Equal(t, "arn:rcontract:Arn:00000000-0000-0000-0000-000000000001", ev.ResourceModel["Arn"])
	assert.NotContains(t, ev.ResourceModel, "Secret", "writeOnly properties are not returned")

	ev, err = h.Invoke(ctx, request(contract.ActionRead, resource.Model{"Name": "alpha"}))
	require.NoError(t, err)
	assert.Equal(t, contract.StatusSuccess, ev.Status)
	assert.Equal(t, "alpha", ev.ResourceModel["Name"])

	ev, err = h.Invoke(ctx, request(contract.ActionRead, resource.Model{"Arn": "arn:rcontract:Arn:00000000-0000-0000-0000-000000000001"}))
	require.NoError(t, err)
	assert.Equal(t, contract.StatusSuccess, ev.Status, "additional identifier lookup")

	ev, err = h.Invoke(ctx, request(contract.ActionDelete, resource.Model{"Name": "alpha"}))
	require.NoError(t, err)
	assert.Equal(t, contract.StatusSuccess, ev.Status)
	assert.Nil(t, ev.ResourceModel)
	assert.Equal(t, 0, h.Len())

	ev, err = h.Invoke(ctx, request(contract.ActionRead, resource.Model{"Name": "alpha"}))
	require.NoError(t, err)
	assert.Equal(t, contract.StatusFailed, ev.Status)
	assert.Equal(t, contract.ErrorNotFound, ev.ErrorCode)
}

func TestMemoryHandler_Failures(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHandler(WidgetType(t))
	_, err := h.Invoke(ctx, request(contract.ActionCreate, widget("alpha")))
	require.NoError(t, err)

	withArn := widget("beta")
	withArn["Arn"] = "arn:chosen"
	changedConfig := widget("alpha")
	changedConfig["Config"] = map[string]any{"Mode": "slow", "Port": 2048}

	tests := []struct {
		name   string
		action contract.Action
		model  resource.Model
		want   contract.HandlerErrorCode
	}{
		{"duplicate create", contract.ActionCreate, widget("alpha"), contract.ErrorAlreadyExists},
		{"readOnly on create", contract.ActionCreate, withArn, contract.ErrorInvalidRequest},
		{"unchanged update", contract.ActionUpdate, widget("alpha"), contract.ErrorNoOperationToPerform},
		{"update missing", contract.ActionUpdate, widget("gamma"), contract.ErrorNotFound},
		{"delete missing", contract.ActionDelete, resource.Model{"Name": "gamma"}, contract.ErrorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := h.Invoke(ctx, request(tt.action, tt.model))
			require.NoError(t, err)
			assert.Equal(t, contract.StatusFailed, ev.Status)
			assert.Equal(t, tt.want, ev.ErrorCode)
			assert.NotEmpty(t, ev.Message)
		})
	}

	ev, err := h.Invoke(ctx, request(contract.ActionUpdate, changedConfig))
	require.NoError(t, err)
	assert.Equal(t, contract.StatusSuccess, ev.Status)
	assert.Equal(t, "slow", ev.ResourceModel["Config"].(map[string]any)["Mode"])
	assert.Contains(t, ev.ResourceModel, "Arn", "readOnly values survive updates")
}

func TestMemoryHandler_ListPages(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHandler(WidgetType(t), WithPageSize(2))
	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, h.Put(widget(name)))
	}

	ev, err := h.Invoke(ctx, request(contract.ActionList, nil))
	require.NoError(t, err)
	require.Len(t, ev.ResourceModels, 2)
	assert.Equal(t, "2", ev.NextToken)

	req := request(contract.ActionList, nil)
	req.NextToken = ev.NextToken
	ev, err = h.Invoke(ctx, req)
	require.NoError(t, err)
	require.Len(t, ev.ResourceModels, 1)
	assert.Equal(t, "three", ev.ResourceModels[0]["Name"])
	assert.Empty(t, ev.NextToken)
}

func TestMemoryHandler_Polls(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHandler(WidgetType(t), WithPolls(2), WithCallbackDelay(3))
	req := request(contract.ActionCreate, widget("alpha"))

	ev, err := h.Invoke(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, contract.StatusInProgress, ev.Status)
	assert.Equal(t, 3, ev.CallbackDelaySeconds)
	assert.Equal(t, map[string]any{"attempt": 1}, ev.CallbackContext)

	req.CallbackContext = ev.CallbackContext
	ev, err = h.Invoke(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, contract.StatusInProgress, ev.Status)

	req.CallbackContext = map[string]any{"attempt": 1}
	ev, err = h.Invoke(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, contract.StatusFailed, ev.Status, "stale callback context")
	assert.Equal(t, contract.ErrorInternalFailure, ev.ErrorCode)

	req.CallbackContext = map[string]any{"attempt": 2}
	ev, err = h.Invoke(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, contract.StatusSuccess, ev.Status)
	assert.Len(t, h.Requests(), 4)
}

func TestMemoryHandler_MintedIdentifier(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHandler(MintedType(t), WithHandlerIDs(SequentialIDs()))

	ev, err := h.Invoke(ctx, request(contract.ActionCreate, resource.Model{"Title": "first"}))
	require.NoError(t, err)
	require.Equal(t, contract.StatusSuccess, ev.Status)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", ev.ResourceModel["Id"])

	ev, err = h.Invoke(ctx, request(contract.ActionCreate, resource.Model{"Title": "first"}))
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", ev.ResourceModel["Id"], "same input, new identifier")
}

func TestMemoryHandler_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryHandler(WidgetType(t)).Invoke(ctx, request(contract.ActionRead, nil))
	assert.ErrorIs(t, err, context.Canceled)
}
