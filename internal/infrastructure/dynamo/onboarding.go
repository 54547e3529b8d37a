package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-onboarding/internal/domain"
)

// OnboardingRepo stores pending onboarding sessions, one item per session.
// DynamoDB TTL deletion is lazy, so Get also treats expired items as missing.
type OnboardingRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewOnboardingRepo(client API, tableName string) *OnboardingRepo {
	return &OnboardingRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *OnboardingRepo) Put(ctx context.Context, s *domain.OnboardingSession) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal onboarding session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put onboarding session: %w", err)
	}
	return nil
}

func (r *OnboardingRepo) Get(ctx context.Context, onboardingID string) (*domain.OnboardingSession, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrOnboardingID, onboardingID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get onboarding session: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("onboarding session not found: %w", domain.ErrNotFound)
	}
	var s domain.OnboardingSession
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, fmt.Errorf("unmarshal onboarding session: %w", err)
	}
	if s.Expired(r.now()) {
		return nil, fmt.Errorf("onboarding session expired: %w", domain.ErrNotFound)
	}
	if s.Logs == nil {
		s.Logs = []string{}
	}
	return &s, nil
}

func (r *OnboardingRepo) Delete(ctx context.Context, onboardingID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(attrOnboardingID, onboardingID),
	})
	if err != nil {
		return fmt.Errorf("delete onboarding session: %w", err)
	}
	return nil
}
