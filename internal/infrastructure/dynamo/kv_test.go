package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*dynamodb.GetItemOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*dynamodb.UpdateItemOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*dynamodb.DeleteItemOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func expr(in *dynamodb.UpdateItemInput) string {
	if in.UpdateExpression == nil {
		return ""
	}
	return *in.UpdateExpression
}

// --- tests ---

func TestKVStore_GetMissingItem(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, found, err := NewKVStore(api, "kv").Get(context.Background(), "notification:n1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKVStore_GetReadsStringAttribute(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return *in.ConsistentRead && in.ExpressionAttributeNames["#a"] == attrString
	})).Return(&dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		attrKey:    &types.AttributeValueMemberS{Value: "notification:n1"},
		attrString: &types.AttributeValueMemberS{Value: `{"id":"n1"}`},
	}}, nil)

	v, found, err := NewKVStore(api, "kv").Get(context.Background(), "notification:n1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"id":"n1"}`, v)
}

func TestKVStore_SAddUsesStringSetAdd(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		ss, ok := in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberSS)
		return expr(in) == "ADD #m :v" && ok && ss.Value[0] == "n1"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	require.NoError(t, NewKVStore(api, "kv").SAdd(context.Background(), "notifications:user:u1", "n1"))
	api.AssertExpectations(t)
}

func TestKVStore_LPushPrepends(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return expr(in) == "SET #l = list_append(:v, if_not_exists(#l, :empty))"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	require.NoError(t, NewKVStore(api, "kv").LPush(context.Background(), "events:pending:u1", "e"))
	api.AssertExpectations(t)
}

func TestKVStore_LDrainReturnsOldList(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return expr(in) == "REMOVE #l" && in.ReturnValues == types.ReturnValueUpdatedOld
	})).Return(&dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		attrList: listValue([]string{"b", "a"}),
	}}, nil)

	items, err := NewKVStore(api, "kv").LDrain(context.Background(), "events:pending:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, items)
}

func TestKVStore_LTrimNoopWhenWithinBounds(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		attrList: listValue([]string{"b", "a"}),
	}}, nil)

	require.NoError(t, NewKVStore(api, "kv").LTrim(context.Background(), "l", 0, 9))
	api.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything)
}

func TestKVStore_LTrimRetriesOnConcurrentPush(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		attrList: listValue([]string{"c", "b", "a"}),
	}}, nil)
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{}).Once()
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return expr(in) == "SET #l = :v" && *in.ConditionExpression == "size(#l) = :n"
	})).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

	require.NoError(t, NewKVStore(api, "kv").LTrim(context.Background(), "l", 0, 1))
	api.AssertNumberOfCalls(t, "UpdateItem", 2)
}

func TestKVStore_ErrorsPropagate(t *testing.T) {
	api := &mockAPI{}
	boom := errors.New("throttled")
	api.On("DeleteItem", mock.Anything, mock.Anything).Return(nil, boom)

	err := NewKVStore(api, "kv").Del(context.Background(), "a", "b")
	assert.ErrorIs(t, err, boom)
	api.AssertNumberOfCalls(t, "DeleteItem", 1)
}
