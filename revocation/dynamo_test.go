package revocation_test

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/bronystylecrazy/tokenbus/revocation"
	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in memory. Scan ignores filter expressions and pages
// two items at a time; conditional puts honour attribute_not_exists only.
type fakeDynamo struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	created int
	ttl     string
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func keyValue(key map[string]types.AttributeValue) string {
	return key["digest"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyValue(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := keyValue(in.Item)
	if _, ok := f.items[k]; ok && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}
	f.items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, keyValue(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if in.ExclusiveStartKey != nil {
		after := keyValue(in.ExclusiveStartKey)
		i, _ := slices.BinarySearch(keys, after)
		if i < len(keys) && keys[i] == after {
			i++
		}
		keys = keys[i:]
	}
	out := &dynamodb.ScanOutput{}
	for i, k := range keys {
		if i == 2 {
			out.LastEvaluatedKey = map[string]types.AttributeValue{"digest": &types.AttributeValueMemberS{Value: keys[1]}}
			break
		}
		out.Items = append(out.Items, f.items[k])
	}
	return out, nil
}

func (f *fakeDynamo) CreateTable(_ context.Context, _ *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	if f.created > 1 {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists")}
	}
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}

func (f *fakeDynamo) UpdateTimeToLive(_ context.Context, in *dynamodb.UpdateTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttl = aws.ToString(in.TimeToLiveSpecification.AttributeName)
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}

func TestDynamoStoreStartIsIdempotent(t *testing.T) {
	fake := newFakeDynamo()
	store := revocation.NewDynamoStore(fake, "")
	require.NoError(t, store.Start(t.Context()))
	require.NoError(t, store.Start(t.Context()))
	require.Equal(t, "ttl", fake.ttl)
}

func TestDynamoStoreWritesTTLInSeconds(t *testing.T) {
	fake := newFakeDynamo()
	store := revocation.NewDynamoStore(fake, "revoked")
	credential := issue(t, time.Hour, "u1")
	require.NoError(t, store.Revoke(t.Context(), credential))

	expiry, err := token.ExpiryOf(credential)
	require.NoError(t, err)
	item := fake.items[revocation.Digest(credential)]
	require.NotNil(t, item)
	require.Equal(t, strconv.FormatInt(expiry.Unix(), 10), item["ttl"].(*types.AttributeValueMemberN).Value)
}

func TestDynamoStoreLookupIgnoresLapsedItem(t *testing.T) {
	c := newClock()
	fake := newFakeDynamo()
	store := revocation.NewDynamoStore(fake, "revoked", revocation.WithClock(c.Now))
	credential := issue(t, time.Minute, "u1")
	require.NoError(t, store.Revoke(t.Context(), credential))

	c.Advance(2 * time.Minute)
	revoked, err := store.IsRevoked(t.Context(), credential)
	require.NoError(t, err)
	require.False(t, revoked)
	require.Len(t, fake.items, 1, "lookup must not delete")
}
