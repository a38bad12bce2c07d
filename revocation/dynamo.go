package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrDigest     = "digest"
	attrCredential = "credential"
	attrRevokedAt  = "revokedAt"
	attrExpiresAt  = "expiresAt"
	// attrTTL holds the expiry in epoch seconds, the unit DynamoDB TTL reads.
	attrTTL = "ttl"
)

// DynamoAPI is the subset of *dynamodb.Client the store calls.
type DynamoAPI interface {
	dynamodb.DescribeTableAPIClient
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// DynamoStore keeps one item per revoked credential keyed by its digest.
// DynamoDB TTL removes items eventually; Compact and Revoke remove them on
// time. IsRevoked ignores an item already past expiry that neither has
// removed yet.
type DynamoStore struct {
	client DynamoAPI
	table  string
	opts   options
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client DynamoAPI, table string, opts ...Option) *DynamoStore {
	if table == "" {
		table = "tokenbus-revoked"
	}
	return &DynamoStore{client: client, table: table, opts: buildOptions(opts)}
}

// Start creates the table with TTL enabled unless it already exists.
func (s *DynamoStore) Start(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(s.table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrDigest), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrDigest), KeyType: types.KeyTypeHash},
		},
	})
	var inUse *types.ResourceInUseException
	switch {
	case errors.As(err, &inUse):
		return nil
	case err != nil:
		return fmt.Errorf("revocation: create table %s: %w", s.table, err)
	}
	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)}, 2*time.Minute); err != nil {
		return fmt.Errorf("revocation: wait for table %s: %w", s.table, err)
	}
	_, err = s.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(s.table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(attrTTL),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("revocation: enable ttl on %s: %w", s.table, err)
	}
	return nil
}

// Revoke keeps the first record when a credential is revoked twice.
func (s *DynamoStore) Revoke(ctx context.Context, credential string) error {
	rec, err := newRecord(credential, s.opts.now())
	if err != nil {
		return err
	}
	if _, err := s.Compact(ctx); err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                itemOf(rec),
		ConditionExpression: aws.String("attribute_not_exists(#d)"),
		ExpressionAttributeNames: map[string]string{
			"#d": attrDigest,
		},
	})
	var exists *types.ConditionalCheckFailedException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("revocation: revoke: %w", err)
	}
	return nil
}

func (s *DynamoStore) IsRevoked(ctx context.Context, credential string) (bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyOf(Digest(credential)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("revocation: lookup: %w", err)
	}
	if len(out.Item) == 0 {
		return false, nil
	}
	expiresAt, err := timeOf(out.Item, attrExpiresAt)
	if err != nil {
		return false, err
	}
	return expiresAt.After(s.opts.now()), nil
}

// Compact deletes items past expiry. The scan filter narrows the read; each
// item is checked again against the clock before it goes.
func (s *DynamoStore) Compact(ctx context.Context) (int, error) {
	now := s.opts.now()
	items, err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:                aws.String(s.table),
		FilterExpression:         aws.String("#e <= :now"),
		ExpressionAttributeNames: map[string]string{"#e": attrExpiresAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": millis(now),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("revocation: compact: %w", err)
	}
	removed := 0
	for _, item := range items {
		rec, err := recordOf(item)
		if err != nil {
			return removed, err
		}
		if rec.ExpiresAt.After(now) {
			continue
		}
		if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key:       map[string]types.AttributeValue{attrDigest: item[attrDigest]},
		}); err != nil {
			return removed, fmt.Errorf("revocation: compact: %w", err)
		}
		removed++
	}
	return removed, nil
}

func (s *DynamoStore) Records(ctx context.Context) ([]Record, error) {
	items, err := s.scan(ctx, &dynamodb.ScanInput{TableName: aws.String(s.table), ConsistentRead: aws.Bool(true)})
	if err != nil {
		return nil, fmt.Errorf("revocation: list: %w", err)
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		rec, err := recordOf(item)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *DynamoStore) scan(ctx context.Context, in *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func keyOf(digest string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{attrDigest: &types.AttributeValueMemberS{Value: digest}}
}

func millis(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
}

func itemOf(rec Record) map[string]types.AttributeValue {
	item := keyOf(Digest(rec.Credential))
	item[attrCredential] = &types.AttributeValueMemberS{Value: rec.Credential}
	item[attrRevokedAt] = millis(rec.RevokedAt)
	item[attrExpiresAt] = millis(rec.ExpiresAt)
	item[attrTTL] = &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.ExpiresAt.Unix(), 10)}
	return item
}

func recordOf(item map[string]types.AttributeValue) (Record, error) {
	credential, ok := item[attrCredential].(*types.AttributeValueMemberS)
	if !ok {
		return Record{}, fmt.Errorf("revocation: item without %s", attrCredential)
	}
	revokedAt, err := timeOf(item, attrRevokedAt)
	if err != nil {
		return Record{}, err
	}
	expiresAt, err := timeOf(item, attrExpiresAt)
	if err != nil {
		return Record{}, err
	}
	return Record{Credential: credential.Value, RevokedAt: revokedAt, ExpiresAt: expiresAt}, nil
}

func timeOf(item map[string]types.AttributeValue, name string) (time.Time, error) {
	n, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return time.Time{}, fmt.Errorf("revocation: item without %s", name)
	}
	ms, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("revocation: decode %s: %w", name, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
