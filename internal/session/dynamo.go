package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// ErrTableNotFound is returned when the configured table or index does not exist.
var ErrTableNotFound = errors.New("dynamodb table not found")

// DynamoStore stores records in a DynamoDB table keyed by ConnectionId with a
// global secondary index on UserId (hash) and Timestamp (range).
type DynamoStore struct {
	client    DynamoDBAPI
	table     string
	userIndex string
	logger    logger.Logger
}

// NewDynamoStore creates a DynamoStore over an existing table.
func NewDynamoStore(client DynamoDBAPI, table, userIndex string, log logger.Logger) *DynamoStore {
	return &DynamoStore{
		client:    client,
		table:     table,
		userIndex: userIndex,
		logger:    log,
	}
}

func tokenKey(token string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"ConnectionId": &types.AttributeValueMemberS{Value: token},
	}
}

func (d *DynamoStore) Put(ctx context.Context, rec Record) error {
	if rec.ConnectionToken == "" {
		return ErrEmptyToken
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.ConnectionToken, err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return d.wrap(err, "put item %s", rec.ConnectionToken)
	}
	return nil
}

func (d *DynamoStore) Delete(ctx context.Context, token string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       tokenKey(token),
	})
	if err != nil {
		return d.wrap(err, "delete item %s", token)
	}
	return nil
}

func (d *DynamoStore) Get(ctx context.Context, token string) (Record, bool, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            tokenKey(token),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Record{}, false, d.wrap(err, "get item %s", token)
	}
	if len(out.Item) == 0 {
		return Record{}, false, nil
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return Record{}, false, fmt.Errorf("failed to unmarshal record %s: %w", token, err)
	}
	return rec, true, nil
}

func (d *DynamoStore) QueryByUser(ctx context.Context, identity string, order Order, limit int) ([]Record, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		IndexName:              aws.String(d.userIndex),
		KeyConditionExpression: aws.String("UserId = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: identity},
		},
		ScanIndexForward: aws.Bool(order == Ascending),
	}

	// A bounded query is answered from the first page.
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
		out, err := d.client.Query(ctx, input)
		if err != nil {
			return nil, d.wrap(err, "query index %s", d.userIndex)
		}
		return unmarshalRecords(out.Items)
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, d.wrap(err, "query index %s", d.userIndex)
		}
		items = append(items, page.Items...)
	}
	return unmarshalRecords(items)
}

func unmarshalRecords(items []map[string]types.AttributeValue) ([]Record, error) {
	recs := make([]Record, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query results: %w", err)
	}
	return recs, nil
}

// Ping checks that the table exists and is reachable.
func (d *DynamoStore) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.table),
	})
	if err != nil {
		return d.wrap(err, "describe table")
	}
	return nil
}

// wrap adds table context to err and classifies missing tables.
func (d *DynamoStore) wrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%s on %s: %w: %v", msg, d.table, ErrTableNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		d.logger.Debug("dynamodb api error",
			logger.StringField("table", d.table),
			logger.StringField("code", apiErr.ErrorCode()),
			logger.StringField("fault", apiErr.ErrorFault().String()))
	}
	return fmt.Errorf("failed to %s on %s: %w", msg, d.table, err)
}
