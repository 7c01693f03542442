package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore stores documents in a single table keyed by (collection, id).
// With Kinesis streaming enabled on the table, inserts feed the Lambda notifier.
type DynamoStore struct {
	client       DynamoAPI
	tableName    string
	pollInterval time.Duration
}

// dynamoDocument represents the DynamoDB item structure
type dynamoDocument struct {
	Collection string `dynamodbav:"collection"`
	ID         string `dynamodbav:"id"`
	Data       string `dynamodbav:"data"`
	CreatedAt  string `dynamodbav:"created_at"`
	UpdatedAt  string `dynamodbav:"updated_at"`
}

func NewDynamoStore(client DynamoAPI, tableName string, pollInterval time.Duration) *DynamoStore {
	return &DynamoStore{
		client:       client,
		tableName:    tableName,
		pollInterval: pollInterval,
	}
}

func (ds *DynamoStore) AddDocument(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.New().String()
	item, err := ds.marshalItem(collection, id, data, "")
	if err != nil {
		return "", err
	}

	_, err = ds.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(ds.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put document: %w", err)
	}
	return id, nil
}

func (ds *DynamoStore) GetDocuments(ctx context.Context, collection string) ([]Document, error) {
	return ds.QueryDocuments(ctx, collection, nil, nil)
}

func (ds *DynamoStore) GetDocumentByID(ctx context.Context, collection, id string) (*Document, error) {
	item, err := ds.getItem(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	doc, err := item.document()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (ds *DynamoStore) UpdateDocument(ctx context.Context, collection, id string, partial map[string]any) error {
	return ds.AtomicMultiWrite(ctx, []Write{{Kind: WriteUpdate, Collection: collection, ID: id, Data: partial}})
}

func (ds *DynamoStore) QueryDocuments(ctx context.Context, collection string, where []Where, orderBy *OrderBy) ([]Document, error) {
	normalized, err := normalizeWhere(where)
	if err != nil {
		return nil, err
	}

	var items []dynamoDocument
	var startKey map[string]types.AttributeValue
	for {
		result, err := ds.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(ds.tableName),
			KeyConditionExpression: aws.String("#c = :c"),
			ExpressionAttributeNames: map[string]string{
				"#c": "collection",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":c": &types.AttributeValueMemberS{Value: collection},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query documents: %w", err)
		}

		var page []dynamoDocument
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal documents: %w", err)
		}
		items = append(items, page...)

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt < items[j].CreatedAt })

	docs := make([]Document, 0, len(items))
	for _, item := range items {
		doc, err := item.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return applyQuery(docs, normalized, orderBy), nil
}

func (ds *DynamoStore) SubscribeToQuery(ctx context.Context, collection string, where []Where, orderBy *OrderBy, onNext func([]Document), onError func(error)) (func(), error) {
	if _, err := normalizeWhere(where); err != nil {
		return nil, err
	}
	query := func(ctx context.Context) ([]Document, error) {
		return ds.QueryDocuments(ctx, collection, where, orderBy)
	}
	return pollQuery(ctx, ds.pollInterval, query, onNext, onError), nil
}

// AtomicMultiWrite issues a single TransactWriteItems call. Updates are
// resolved against the current item and guarded by attribute_exists.
func (ds *DynamoStore) AtomicMultiWrite(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}

	staged := make(map[string]dynamoDocument)
	mustExist := make(map[string]bool)
	var keys []string
	for _, w := range writes {
		if err := w.validate(); err != nil {
			return err
		}
		key := w.Collection + "/" + w.ID
		if _, seen := staged[key]; !seen {
			keys = append(keys, key)
		}

		var item dynamoDocument
		switch w.Kind {
		case WriteSet:
			body, err := Normalize(w.Data)
			if err != nil {
				return err
			}
			createdAt := ""
			if prev, ok := staged[key]; ok {
				createdAt = prev.CreatedAt
			}
			item, err = newDynamoDocument(w.Collection, w.ID, body, createdAt)
			if err != nil {
				return err
			}
		case WriteUpdate:
			current, ok := staged[key]
			if !ok {
				existing, err := ds.getItem(ctx, w.Collection, w.ID)
				if err != nil {
					return err
				}
				if existing == nil {
					return fmt.Errorf("%s: %w", key, ErrNotFound)
				}
				current = *existing
				mustExist[key] = true
			}
			doc, err := current.document()
			if err != nil {
				return err
			}
			partial, err := Normalize(w.Data)
			if err != nil {
				return err
			}
			item, err = newDynamoDocument(w.Collection, w.ID, mergeTopLevel(doc.Data, partial), current.CreatedAt)
			if err != nil {
				return err
			}
		}
		staged[key] = item
	}

	txItems := make([]types.TransactWriteItem, 0, len(keys))
	for _, key := range keys {
		av, err := attributevalue.MarshalMap(staged[key])
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		put := &types.Put{
			TableName: aws.String(ds.tableName),
			Item:      av,
		}
		if mustExist[key] {
			put.ConditionExpression = aws.String("attribute_exists(id)")
		}
		txItems = append(txItems, types.TransactWriteItem{Put: put})
	}

	_, err := ds.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: txItems,
	})
	if err != nil {
		return fmt.Errorf("failed to write documents: %w", err)
	}
	return nil
}

func (ds *DynamoStore) getItem(ctx context.Context, collection, id string) (*dynamoDocument, error) {
	result, err := ds.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(ds.tableName),
		Key: map[string]types.AttributeValue{
			"collection": &types.AttributeValueMemberS{Value: collection},
			"id":         &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item dynamoDocument
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &item, nil
}

func (ds *DynamoStore) marshalItem(collection, id string, data any, createdAt string) (map[string]types.AttributeValue, error) {
	body, err := Normalize(data)
	if err != nil {
		return nil, err
	}
	item, err := newDynamoDocument(collection, id, body, createdAt)
	if err != nil {
		return nil, err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return av, nil
}

func newDynamoDocument(collection, id string, body map[string]any, createdAt string) (dynamoDocument, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return dynamoDocument{}, err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if createdAt == "" {
		createdAt = now
	}
	return dynamoDocument{
		Collection: collection,
		ID:         id,
		Data:       string(raw),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}, nil
}

func (d dynamoDocument) document() (Document, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(d.Data), &data); err != nil {
		return Document{}, fmt.Errorf("document %s/%s: %w", d.Collection, d.ID, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return Document{ID: d.ID, Data: data}, nil
}

// DecodeDocument rebuilds a document from the id and JSON data attributes of
// a stored item, as found in DynamoDB stream images.
func DecodeDocument(collection, id, data string) (Document, error) {
	return dynamoDocument{Collection: collection, ID: id, Data: data}.document()
}
