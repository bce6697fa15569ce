package dynamo

import (
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// fakeDynamo is an in-memory table that understands the calls Storage makes
type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI

	mu       sync.Mutex
	items    map[string]map[string]*dynamodb.AttributeValue
	tables   map[string]bool
	pageSize int
	puts     int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		items:  make(map[string]map[string]*dynamodb.AttributeValue),
		tables: make(map[string]bool),
	}
}

func itemKey(key map[string]*dynamodb.AttributeValue) string {
	return aws.StringValue(key["PK"].S) + "|" + aws.StringValue(key["SK"].S)
}

func conditionFailed() error {
	return awserr.New(dynamodb.ErrCodeConditionalCheckFailedException, "The conditional request failed", nil)
}

func (f *fakeDynamo) GetItemWithContext(_ aws.Context, in *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) PutItemWithContext(_ aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := itemKey(in.Item)
	existing, exists := f.items[k]

	switch aws.StringValue(in.ConditionExpression) {
	case "":
	case condNotExists:
		if exists {
			return nil, conditionFailed()
		}
	case condVersion:
		want := aws.StringValue(in.ExpressionAttributeValues[":version"].N)
		if !exists || aws.StringValue(existing["Version"].N) != want {
			return nil, conditionFailed()
		}
	default:
		return nil, awserr.New("ValidationException", "unsupported condition", nil)
	}

	f.items[k] = in.Item
	f.puts++
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItemWithContext(_ aws.Context, in *dynamodb.DeleteItemInput, _ ...request.Option) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemKey(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) ScanWithContext(_ aws.Context, in *dynamodb.ScanInput, _ ...request.Option) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		after := itemKey(in.ExclusiveStartKey)
		for start < len(keys) && keys[start] <= after {
			start++
		}
	}

	wantType := aws.StringValue(in.ExpressionAttributeValues[":type"].S)
	out := &dynamodb.ScanOutput{}
	for i := start; i < len(keys); i++ {
		if f.pageSize > 0 && i-start == f.pageSize {
			last := f.items[keys[i-1]]
			out.LastEvaluatedKey = map[string]*dynamodb.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
			break
		}
		item := f.items[keys[i]]
		if aws.StringValue(item["Type"].S) == wantType {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (f *fakeDynamo) DescribeTableWithContext(_ aws.Context, in *dynamodb.DescribeTableInput, _ ...request.Option) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.tables[aws.StringValue(in.TableName)] {
		return nil, awserr.New(dynamodb.ErrCodeResourceNotFoundException, "table not found", nil)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (f *fakeDynamo) CreateTableWithContext(_ aws.Context, in *dynamodb.CreateTableInput, _ ...request.Option) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[aws.StringValue(in.TableName)] = true
	return &dynamodb.CreateTableOutput{}, nil
}
