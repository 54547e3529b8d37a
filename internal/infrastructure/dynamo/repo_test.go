package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-onboarding/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func keyOf(t *testing.T, key map[string]types.AttributeValue, name string) string {
	t.Helper()
	s, ok := key[name].(*types.AttributeValueMemberS)
	require.True(t, ok, "key %s is not a string attribute", name)
	return s.Value
}

func sampleSession() *domain.OnboardingSession {
	proxy := "http://proxy.local:3128"
	s := &domain.OnboardingSession{
		OnboardingID: "01HZX3",
		Username:     "alice",
		Credential:   "xc1:sealed",
		Proxy:        &proxy,
		Status:       domain.StatusInit,
		Logs:         []string{"[09:00:01] Starting login for @alice"},
		CreatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	s.SetNeedCode(domain.FlowTwoFactor)
	return s
}

func TestOnboardingRepo_PutMarshalsItem(t *testing.T) {
	api := &mockAPI{}
	var captured *dynamodb.PutItemInput
	api.On("PutItem", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(*dynamodb.PutItemInput)
	}).Return(&dynamodb.PutItemOutput{}, nil)

	repo := NewOnboardingRepo(api, "onboarding_sessions")
	require.NoError(t, repo.Put(context.Background(), sampleSession()))

	require.NotNil(t, captured)
	assert.Equal(t, "onboarding_sessions", *captured.TableName)
	assert.Equal(t, "01HZX3", keyOf(t, captured.Item, "onboarding_id"))
	assert.Equal(t, "NEED_CODE", keyOf(t, captured.Item, "status"))
	assert.Equal(t, "TWO_FACTOR", keyOf(t, captured.Item, "flow"))
}

func TestOnboardingRepo_GetRoundTrip(t *testing.T) {
	item, err := attributevalue.MarshalMap(sampleSession())
	require.NoError(t, err)
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return keyOf(t, in.Key, "onboarding_id") == "01HZX3" && *in.ConsistentRead
	})).Return(&dynamodb.GetItemOutput{Item: item}, nil)

	got, err := NewOnboardingRepo(api, "t").Get(context.Background(), "01HZX3")

	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	require.NotNil(t, got.Flow)
	assert.Equal(t, domain.FlowTwoFactor, *got.Flow)
	require.NotNil(t, got.Proxy)
	assert.Equal(t, "http://proxy.local:3128", *got.Proxy)
	assert.Len(t, got.Logs, 1)
}

func TestOnboardingRepo_GetMissingIsNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := NewOnboardingRepo(api, "t").Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOnboardingRepo_GetExpiredIsNotFound(t *testing.T) {
	s := sampleSession()
	s.ExpiresAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).Unix()
	item, err := attributevalue.MarshalMap(s)
	require.NoError(t, err)
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: item}, nil)

	repo := NewOnboardingRepo(api, "t")
	repo.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }

	_, err = repo.Get(context.Background(), "01HZX3")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOnboardingRepo_BackendErrorIsNotNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewOnboardingRepo(api, "t").Get(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestOnboardingRepo_Delete(t *testing.T) {
	api := &mockAPI{}
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return keyOf(t, in.Key, "onboarding_id") == "01HZX3"
	})).Return(&dynamodb.DeleteItemOutput{}, nil).Once()

	require.NoError(t, NewOnboardingRepo(api, "t").Delete(context.Background(), "01HZX3"))
	api.AssertExpectations(t)
}

func TestAccountRepo_PutIfAbsent(t *testing.T) {
	acct := &domain.PoolAccount{Username: "alice", Credential: "xc1:abc", Enable: true}

	t.Run("new account is added", func(t *testing.T) {
		api := &mockAPI{}
		api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			return *in.ConditionExpression == "attribute_not_exists(#u)" && in.ExpressionAttributeNames["#u"] == "username"
		})).Return(&dynamodb.PutItemOutput{}, nil)

		added, err := NewAccountRepo(api, "pool_accounts").PutIfAbsent(context.Background(), acct)
		require.NoError(t, err)
		assert.True(t, added)
	})

	t.Run("duplicate is not an error", func(t *testing.T) {
		api := &mockAPI{}
		api.On("PutItem", mock.Anything, mock.Anything).
			Return(nil, &types.ConditionalCheckFailedException{Message: new(string)})

		added, err := NewAccountRepo(api, "pool_accounts").PutIfAbsent(context.Background(), acct)
		require.NoError(t, err)
		assert.False(t, added)
	})

	t.Run("backend error propagates", func(t *testing.T) {
		api := &mockAPI{}
		api.On("PutItem", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		_, err := NewAccountRepo(api, "pool_accounts").PutIfAbsent(context.Background(), acct)
		assert.ErrorContains(t, err, "boom")
	})
}

func TestAccountRepo_Get(t *testing.T) {
	item, err := attributevalue.MarshalMap(&domain.PoolAccount{Username: "bob", Enable: true})
	require.NoError(t, err)
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return keyOf(t, in.Key, "username") == "bob"
	})).Return(&dynamodb.GetItemOutput{Item: item}, nil)
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	repo := NewAccountRepo(api, "pool_accounts")
	got, err := repo.Get(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, got.Enable)

	_, err = repo.Get(context.Background(), "carol")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type describeFunc func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)

func (f describeFunc) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return f(ctx, in, optFns...)
}

func TestPing(t *testing.T) {
	status := types.TableStatusActive
	var callErr error
	client := describeFunc(func(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
		assert.Equal(t, "onboarding_sessions", *in.TableName)
		if callErr != nil {
			return nil, callErr
		}
		return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableStatus: status}}, nil
	})
	ctx := context.Background()

	assert.NoError(t, Ping(ctx, client, "onboarding_sessions"))

	status = types.TableStatusCreating
	assert.ErrorContains(t, Ping(ctx, client, "onboarding_sessions"), "not active")

	callErr = errors.New("connection refused")
	assert.ErrorContains(t, Ping(ctx, client, "onboarding_sessions"), "connection refused")
}
