// Package dynamo persists profiles in a single DynamoDB table.
package dynamo

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/storage"
)

const (
	// maxUpdateRetries bounds optimistic-lock retries in UpdateProfile
	maxUpdateRetries = 16

	condNotExists = "attribute_not_exists(PK)"
	condVersion   = "Version = :version"
)

// Storage is a DynamoDB-backed implementation of the storage interface
type Storage struct {
	db        dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a DynamoDB storage from an AWS session built from cfg
func New(ctx context.Context, cfg Config) (*Storage, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}

	s := NewWithClient(dynamodb.New(sess), cfg.TableName)
	if cfg.CreateTable {
		if err := s.EnsureTable(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewWithClient creates a storage around an existing client (for testing)
func NewWithClient(db dynamodbiface.DynamoDBAPI, tableName string) *Storage {
	return &Storage{
		db:        db,
		tableName: tableName,
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// EnsureTable creates the profile table if it does not already exist
func (s *Storage) EnsureTable(ctx context.Context) error {
	_, err := s.db.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err == nil {
		return nil
	}
	if !isAWSCode(err, dynamodb.ErrCodeResourceNotFoundException) {
		return err
	}

	_, err = s.db.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS)},
			{AttributeName: aws.String("SK"), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS)},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: aws.String(dynamodb.KeyTypeHash)},
			{AttributeName: aws.String("SK"), KeyType: aws.String(dynamodb.KeyTypeRange)},
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	})
	return err
}

func (s *Storage) key(username string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"PK": {S: aws.String(profilePK(username))},
		"SK": {S: aws.String(profileSortKey)},
	}
}

func (s *Storage) CreateProfile(ctx context.Context, profile *model.Profile) error {
	err := s.put(ctx, itemFromProfile(profile, 1), condNotExists, nil)
	if isAWSCode(err, dynamodb.ErrCodeConditionalCheckFailedException) {
		return model.ErrProfileExists
	}
	return err
}

func (s *Storage) SaveProfile(ctx context.Context, profile *model.Profile) error {
	version := 0
	if current, err := s.get(ctx, profile.Username); err == nil {
		version = current.Version
	} else if !errors.Is(err, model.ErrProfileNotFound) {
		return err
	}
	return s.put(ctx, itemFromProfile(profile, version+1), "", nil)
}

func (s *Storage) LoadProfile(ctx context.Context, username string) (*model.Profile, error) {
	item, err := s.get(ctx, username)
	if err != nil {
		return nil, err
	}
	return item.profile(), nil
}

func (s *Storage) UpdateProfile(ctx context.Context, username string, fn storage.UpdateFunc) (*model.Profile, error) {
	for range maxUpdateRetries {
		item, err := s.get(ctx, username)
		if err != nil {
			return nil, err
		}
		p := item.profile()
		if err := fn(p); err != nil {
			return nil, err
		}

		err = s.put(ctx, itemFromProfile(p, item.Version+1), condVersion, map[string]*dynamodb.AttributeValue{
			":version": {N: aws.String(strconv.Itoa(item.Version))},
		})
		if isAWSCode(err, dynamodb.ErrCodeConditionalCheckFailedException) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, model.ErrProfileConflict
}

func (s *Storage) ProfileExists(ctx context.Context, username string) (bool, error) {
	_, err := s.get(ctx, username)
	if errors.Is(err, model.ErrProfileNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Storage) DeleteProfile(ctx context.Context, username string) error {
	_, err := s.db.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(username),
	})
	return err
}

func (s *Storage) ListProfiles(ctx context.Context) ([]*model.Profile, error) {
	profiles := []*model.Profile{}
	input := &dynamodb.ScanInput{
		TableName:        aws.String(s.tableName),
		FilterExpression: aws.String("#type = :type"),
		ExpressionAttributeNames: map[string]*string{
			"#type": aws.String("Type"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":type": {S: aws.String(profileItemType)},
		},
	}

	for {
		out, err := s.db.ScanWithContext(ctx, input)
		if err != nil {
			return nil, err
		}
		var items []profileItem
		if err := dynamodbattribute.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, err
		}
		for i := range items {
			profiles = append(profiles, items[i].profile())
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	slices.SortFunc(profiles, func(a, b *model.Profile) int {
		return strings.Compare(a.Username, b.Username)
	})
	return profiles, nil
}

func (s *Storage) get(ctx context.Context, username string) (*profileItem, error) {
	out, err := s.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(username),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, model.ErrProfileNotFound
	}
	var item profileItem
	if err := dynamodbattribute.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Storage) put(ctx context.Context, item *profileItem, condition string, values map[string]*dynamodb.AttributeValue) error {
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return err
	}
	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}
	if condition != "" {
		input.ConditionExpression = aws.String(condition)
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}
	_, err = s.db.PutItemWithContext(ctx, input)
	return err
}

func isAWSCode(err error, code string) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == code
}
