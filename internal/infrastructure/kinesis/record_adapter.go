package kinesis

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/docstore"
	"github.com/example/storefront/internal/infrastructure/orderstore"
)

// ConvertFromKinesisRecord converts a Kinesis record (DynamoDB Streams format)
// to an order. It returns nil for anything other than a newly inserted item
// of the orders collection.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (*order.Order, error) {
	var dynamoDBRecord events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &dynamoDBRecord); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}
	return ConvertFromDynamoDBStreamRecord(dynamoDBRecord)
}

// ConvertFromDynamoDBStreamRecord is used when consuming DynamoDB Streams
// directly.
func ConvertFromDynamoDBStreamRecord(record events.DynamoDBEventRecord) (*order.Order, error) {
	if record.EventName != "INSERT" {
		return nil, nil
	}
	return convertDynamoDBImage(record.Change.NewImage)
}

func convertDynamoDBImage(image map[string]events.DynamoDBAttributeValue) (*order.Order, error) {
	if image == nil {
		return nil, fmt.Errorf("DynamoDB image is nil")
	}

	collection := stringAttr(image, "collection")
	if collection != orderstore.OrdersCollection {
		return nil, nil
	}

	id := stringAttr(image, "id")
	data := stringAttr(image, "data")
	if id == "" || data == "" {
		return nil, fmt.Errorf("missing required fields: id=%q, data present=%t", id, data != "")
	}

	doc, err := docstore.DecodeDocument(collection, id, data)
	if err != nil {
		return nil, err
	}
	o, err := orderstore.DecodeOrder(doc)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func stringAttr(image map[string]events.DynamoDBAttributeValue, name string) string {
	v, ok := image[name]
	if !ok || v.DataType() != events.DataTypeString {
		return ""
	}
	return v.String()
}

// BatchConvertFromKinesisEvent converts all records from a Kinesis event.
// Returns successfully converted orders and any errors encountered.
func BatchConvertFromKinesisEvent(kinesisEvent events.KinesisEvent) ([]*order.Order, []error) {
	var orders []*order.Order
	var errs []error

	for _, record := range kinesisEvent.Records {
		o, err := ConvertFromKinesisRecord(record)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", record.EventID, err))
			continue
		}
		if o != nil {
			orders = append(orders, o)
		}
	}

	return orders, errs
}
