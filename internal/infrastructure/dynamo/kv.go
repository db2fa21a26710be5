package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-notify-nosql/internal/infrastructure/kv"
)

// Attribute names of the kv table. Every item is keyed by attrKey and holds
// at most one of the value attributes, depending on how the key is used.
const (
	attrKey    = "k"
	attrString = "s"
	attrSet    = "m"
	attrList   = "l"
)

const maxTrimRetries = 5

// API is the slice of the DynamoDB client the kv table needs.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// KVStore implements kv.Store on a single DynamoDB table.
type KVStore struct {
	client    API
	tableName string
}

func NewKVStore(client API, tableName string) *KVStore {
	return &KVStore{client: client, tableName: tableName}
}

func (s *KVStore) getAttr(ctx context.Context, key, attr string) (types.AttributeValue, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      strKey(attrKey, key),
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     aws.String("#a"),
		ExpressionAttributeNames: map[string]string{"#a": attr},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	return out.Item[attr], nil
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	av, err := s.getAttr(ctx, key, attrString)
	if err != nil {
		return "", false, err
	}
	str, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return "", false, nil
	}
	return str.Value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{attrString: value})
	if err != nil {
		return err
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       strKey(attrKey, key),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (s *KVStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key:       strKey(attrKey, key),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *KVStore) setOp(ctx context.Context, op, key, member string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      strKey(attrKey, key),
		UpdateExpression:         aws.String(op + " #m :v"),
		ExpressionAttributeNames: map[string]string{"#m": attrSet},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberSS{Value: []string{member}},
		},
	})
	return err
}

// SAdd adds member to a string-set attribute. DynamoDB drops the attribute
// once the last member is deleted, so no cleanup is needed on SRem.
func (s *KVStore) SAdd(ctx context.Context, key, member string) error {
	return s.setOp(ctx, "ADD", key, member)
}

func (s *KVStore) SRem(ctx context.Context, key, member string) error {
	return s.setOp(ctx, "DELETE", key, member)
}

func (s *KVStore) SMembers(ctx context.Context, key string) ([]string, error) {
	av, err := s.getAttr(ctx, key, attrSet)
	if err != nil {
		return nil, err
	}
	ss, ok := av.(*types.AttributeValueMemberSS)
	if !ok {
		return []string{}, nil
	}
	return ss.Value, nil
}

// LPush prepends value with list_append, creating the list when absent.
func (s *KVStore) LPush(ctx context.Context, key, value string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      strKey(attrKey, key),
		UpdateExpression:         aws.String("SET #l = list_append(:v, if_not_exists(#l, :empty))"),
		ExpressionAttributeNames: map[string]string{"#l": attrList},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v":     listValue([]string{value}),
			":empty": listValue(nil),
		},
	})
	return err
}

func (s *KVStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	av, err := s.getAttr(ctx, key, attrList)
	if err != nil {
		return nil, err
	}
	list, err := stringList(av)
	if err != nil {
		return nil, err
	}
	return kv.Window(list, start, stop), nil
}

// LTrim rewrites the list conditioned on its size being unchanged since the
// read, retrying when a concurrent push wins.
func (s *KVStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	for i := 0; i < maxTrimRetries; i++ {
		av, err := s.getAttr(ctx, key, attrList)
		if err != nil {
			return err
		}
		list, err := stringList(av)
		if err != nil {
			return err
		}
		kept := kv.Window(list, start, stop)
		if len(kept) == len(list) {
			return nil
		}

		input := &dynamodb.UpdateItemInput{
			TableName:                aws.String(s.tableName),
			Key:                      strKey(attrKey, key),
			ConditionExpression:      aws.String("size(#l) = :n"),
			ExpressionAttributeNames: map[string]string{"#l": attrList},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":n": &types.AttributeValueMemberN{Value: strconv.Itoa(len(list))},
			},
		}
		if len(kept) == 0 {
			input.UpdateExpression = aws.String("REMOVE #l")
		} else {
			input.UpdateExpression = aws.String("SET #l = :v")
			input.ExpressionAttributeValues[":v"] = listValue(kept)
		}

		_, err = s.client.UpdateItem(ctx, input)
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			continue
		}
		return err
	}
	return fmt.Errorf("trim %s: list kept changing", key)
}

// LDrain removes the list attribute and returns its previous value in one call.
func (s *KVStore) LDrain(ctx context.Context, key string) ([]string, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      strKey(attrKey, key),
		UpdateExpression:         aws.String("REMOVE #l"),
		ExpressionAttributeNames: map[string]string{"#l": attrList},
		ReturnValues:             types.ReturnValueUpdatedOld,
	})
	if err != nil {
		return nil, err
	}
	return stringList(out.Attributes[attrList])
}
