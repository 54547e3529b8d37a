package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-onboarding/internal/domain"
)

// AccountRepo persists the pool of onboarded accounts, keyed by username.
type AccountRepo struct {
	client    API
	tableName string
}

func NewAccountRepo(client API, tableName string) *AccountRepo {
	return &AccountRepo{client: client, tableName: tableName}
}

// PutIfAbsent stores a, reporting false without error when the username is
// already registered.
func (r *AccountRepo) PutIfAbsent(ctx context.Context, a *domain.PoolAccount) (bool, error) {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return false, fmt.Errorf("marshal pool account: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#u)"),
		ExpressionAttributeNames: map[string]string{"#u": attrUsername},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put pool account: %w", err)
	}
	return true, nil
}

func (r *AccountRepo) Get(ctx context.Context, username string) (*domain.PoolAccount, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(attrUsername, username),
	})
	if err != nil {
		return nil, fmt.Errorf("get pool account: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("pool account not found: %w", domain.ErrNotFound)
	}
	var a domain.PoolAccount
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal pool account: %w", err)
	}
	return &a, nil
}
