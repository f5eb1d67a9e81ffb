package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of *dynamodb.Client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

const (
	pairCondition    = "attribute_exists(userId) AND isMatched = :false AND createdAt = :createdAt"
	pairUpdate       = "SET isMatched = :true, partnerId = :partnerId, partnerUsername = :partnerUsername, categoryAssigned = :categoryAssigned, difficultyAssigned = :difficultyAssigned, matchId = :matchId, matchedAt = :matchedAt"
	staleCondition   = "isMatched = :false AND createdAt < :cutoff"
	matchedCondition = "isMatched = :true AND matchId = :matchId"
)

// DynamoStore keeps one item per userId. Pairing is a TransactWriteItems call whose two
// updates are both conditioned on the record still waiting.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{
		client: client,
		table:  table,
	}
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}
}

func numberAttr(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func (s *DynamoStore) Put(ctx context.Context, req MatchRequest) error {
	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return fmt.Errorf("failed to marshal match request: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item in table '%s': %w", s.table, err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, userID string) (MatchRequest, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            userKey(userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return MatchRequest{}, fmt.Errorf("failed to get item from table '%s': %w", s.table, err)
	}
	if out.Item == nil {
		return MatchRequest{}, ErrNotFound
	}
	var req MatchRequest
	if err := attributevalue.UnmarshalMap(out.Item, &req); err != nil {
		return MatchRequest{}, fmt.Errorf("failed to unmarshal match request: %w", err)
	}
	return req, nil
}

func (s *DynamoStore) Delete(ctx context.Context, userID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       userKey(userID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item from table '%s': %w", s.table, err)
	}
	return nil
}

func (s *DynamoStore) scan(ctx context.Context, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table '%s': %w", s.table, err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (s *DynamoStore) ScanUnmatched(ctx context.Context) ([]MatchRequest, error) {
	items, err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		ConsistentRead:   aws.Bool(true),
		FilterExpression: aws.String("isMatched = :false"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		return nil, err
	}
	var reqs []MatchRequest
	if err := attributevalue.UnmarshalListOfMaps(items, &reqs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match requests: %w", err)
	}
	slices.SortFunc(reqs, SortedByCreatedAtFunc)
	return reqs, nil
}

func (s *DynamoStore) pairItem(p PairPatch, matchID string, matchedAt int64) types.TransactWriteItem {
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(s.table),
			Key:                 userKey(p.UserID),
			UpdateExpression:    aws.String(pairUpdate),
			ConditionExpression: aws.String(pairCondition),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":true":               &types.AttributeValueMemberBOOL{Value: true},
				":false":              &types.AttributeValueMemberBOOL{Value: false},
				":createdAt":          numberAttr(p.ExpectedCreatedAt),
				":partnerId":          &types.AttributeValueMemberS{Value: p.PartnerID},
				":partnerUsername":    &types.AttributeValueMemberS{Value: p.PartnerUsername},
				":categoryAssigned":   &types.AttributeValueMemberS{Value: p.CategoryAssigned},
				":difficultyAssigned": &types.AttributeValueMemberS{Value: string(p.DifficultyAssigned)},
				":matchId":            &types.AttributeValueMemberS{Value: matchID},
				":matchedAt":          numberAttr(matchedAt),
			},
		},
	}
}

func (s *DynamoStore) PairRequests(ctx context.Context, u PairUpdate) error {
	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			s.pairItem(u.A, u.MatchID, u.MatchedAt),
			s.pairItem(u.B, u.MatchID, u.MatchedAt),
		},
		ClientRequestToken: aws.String(u.MatchID),
	})
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for i, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) != "ConditionalCheckFailed" {
				continue
			}
			if i == 1 {
				return &PairConflictError{UserID: u.B.UserID}
			}
			return &PairConflictError{UserID: u.A.UserID}
		}
	}
	return fmt.Errorf("failed to pair %s with %s: %w", u.A.UserID, u.B.UserID, err)
}

func (s *DynamoStore) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	items, err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ConsistentRead:       aws.Bool(true),
		FilterExpression:     aws.String(staleCondition),
		ProjectionExpression: aws.String("userId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false":  &types.AttributeValueMemberBOOL{Value: false},
			":cutoff": numberAttr(cutoff.UnixMilli()),
		},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if v, ok := item["userId"].(*types.AttributeValueMemberS); ok {
			ids = append(ids, v.Value)
		}
	}
	return ids, nil
}

// conditionalDelete reports false instead of an error when the condition no longer holds.
func (s *DynamoStore) conditionalDelete(ctx context.Context, userID, condition string, values map[string]types.AttributeValue) (bool, error) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(s.table),
		Key:                       userKey(userID),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete item from table '%s': %w", s.table, err)
	}
	return true, nil
}

func (s *DynamoStore) ExpireIfStale(ctx context.Context, userID string, cutoff time.Time) (bool, error) {
	return s.conditionalDelete(ctx, userID, staleCondition, map[string]types.AttributeValue{
		":false":  &types.AttributeValueMemberBOOL{Value: false},
		":cutoff": numberAttr(cutoff.UnixMilli()),
	})
}

func (s *DynamoStore) DeleteMatched(ctx context.Context, userID string, matchID string) (bool, error) {
	return s.conditionalDelete(ctx, userID, matchedCondition, map[string]types.AttributeValue{
		":true":    &types.AttributeValueMemberBOOL{Value: true},
		":matchId": &types.AttributeValueMemberS{Value: matchID},
	})
}
