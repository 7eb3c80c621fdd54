package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const dynamoPKPrefix = "SESSION#"

// dynamodbAPI is the subset of *dynamodb.Client used by DynamoStore.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps one item per session. Items carry a ttl attribute so
// DynamoDB expires them after the retention window on its own.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	retention time.Duration
}

// NewDynamoStore creates a store on table. retention <= 0 means the
// default window.
func NewDynamoStore(api dynamodbAPI, tableName string, retention time.Duration) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("transcript: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("transcript: table name must not be empty")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &DynamoStore{api: api, tableName: tableName, retention: retention}, nil
}

func sessionPK(id string) string { return dynamoPKPrefix + id }

func (d *DynamoStore) item(s *Session) (map[string]types.AttributeValue, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(s.ID)},
		"sessionId": &types.AttributeValueMemberS{Value: s.ID},
		"userId":    &types.AttributeValueMemberS{Value: s.UserID},
		"startTime": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", s.StartTime.UnixMilli())},
		"data":      &types.AttributeValueMemberS{Value: string(raw)},
		"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", s.StartTime.Add(d.retention).Unix())},
	}, nil
}

// Save implements Store.
func (d *DynamoStore) Save(ctx context.Context, s *Session) error {
	item, err := d.item(s)
	if err != nil {
		return fmt.Errorf("transcript: marshal session: %w", err)
	}
	_, err = d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("transcript: put session: %w", err)
	}
	return nil
}

// Load implements Store. It scans the whole table, following pagination.
func (d *DynamoStore) Load(ctx context.Context) ([]*Session, error) {
	var out []*Session
	var start map[string]types.AttributeValue
	for {
		page, err := d.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(d.tableName),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("transcript: scan sessions: %w", err)
		}
		for _, item := range page.Items {
			s, err := itemToSession(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = page.LastEvaluatedKey
	}
}

// Delete implements Store.
func (d *DynamoStore) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		_, err := d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(d.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: sessionPK(id)},
			},
		})
		if err != nil {
			return fmt.Errorf("transcript: delete session %s: %w", id, err)
		}
	}
	return nil
}

// Close implements Store.
func (d *DynamoStore) Close() error { return nil }

func itemToSession(item map[string]types.AttributeValue) (*Session, error) {
	v, ok := item["data"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("transcript: item missing data attribute")
	}
	var s Session
	if err := json.Unmarshal([]byte(v.Value), &s); err != nil {
		return nil, fmt.Errorf("transcript: decode session: %w", err)
	}
	return &s, nil
}

var _ Store = (*DynamoStore)(nil)
