// Package remoteindex implements engine.RemoteIndex against DynamoDB: the
// key-value store of RemoteHashRecord rows (sync-algorithm.md §4.4).
package remoteindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

// hashKeyAttr is the DynamoDB partition key attribute name.
const hashKeyAttr = "hash"

// item is the DynamoDB wire representation of a RemoteHashRecord. Go maps
// don't round-trip through attributevalue as sets cleanly for our "is this
// path present" semantics, so file names are stored as a string set.
type item struct {
	Hash       string    `dynamodbav:"hash"`
	FileNames  []string  `dynamodbav:"file_names,stringset,omitempty"`
	Expiration time.Time `dynamodbav:"expiration,unixtime"`
}

// DynamoStore is a DynamoDB-backed engine.RemoteIndex.
type DynamoStore struct {
	client *dynamodb.Client
	table  string
	logger *slog.Logger
}

var _ engine.RemoteIndex = (*DynamoStore)(nil)

// NewDynamoStore wires a DynamoStore against an already-configured
// DynamoDB client and table name.
func NewDynamoStore(client *dynamodb.Client, table string, logger *slog.Logger) *DynamoStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &DynamoStore{client: client, table: table, logger: logger}
}

// Get fetches the record for hash, returning (nil, nil) if absent.
func (d *DynamoStore) Get(ctx context.Context, hash string) (*engine.RemoteHashRecord, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			hashKeyAttr: &types.AttributeValueMemberS{Value: hash},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, wrapErr("get", hash, err)
	}

	if len(out.Item) == 0 {
		return nil, nil
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("remoteindex: unmarshal %s: %w", hash, err)
	}

	return toRecord(&it), nil
}

// Put writes record, overwriting any prior value.
func (d *DynamoStore) Put(ctx context.Context, record *engine.RemoteHashRecord) error {
	it := fromRecord(record)

	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("remoteindex: marshal %s: %w", record.Hash, err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return wrapErr("put", record.Hash, err)
	}

	return nil
}

// Delete removes hash's record entirely (sync-algorithm.md §4.8: Reaper
// deletes the record once its blob has been removed).
func (d *DynamoStore) Delete(ctx context.Context, hash string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			hashKeyAttr: &types.AttributeValueMemberS{Value: hash},
		},
	})
	if err != nil {
		return wrapErr("delete", hash, err)
	}

	return nil
}

// Scan streams every record in the table via cb, paginating internally.
// cb returning an error stops the scan early.
func (d *DynamoStore) Scan(ctx context.Context, cb func(*engine.RemoteHashRecord) error) error {
	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName: aws.String(d.table),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return wrapErr("scan", "", err)
		}

		for _, rawItem := range page.Items {
			var it item
			if err := attributevalue.UnmarshalMap(rawItem, &it); err != nil {
				return fmt.Errorf("remoteindex: unmarshal scan item: %w", err)
			}

			if err := cb(toRecord(&it)); err != nil {
				return err
			}
		}
	}

	return nil
}

func toRecord(it *item) *engine.RemoteHashRecord {
	names := make(map[string]struct{}, len(it.FileNames))
	for _, n := range it.FileNames {
		names[n] = struct{}{}
	}

	return &engine.RemoteHashRecord{Hash: it.Hash, FileNames: names, Expiration: it.Expiration}
}

func fromRecord(r *engine.RemoteHashRecord) *item {
	names := make([]string, 0, len(r.FileNames))
	for n := range r.FileNames {
		names = append(names, n)
	}

	return &item{Hash: r.Hash, FileNames: names, Expiration: r.Expiration}
}

func wrapErr(op, hash string, err error) error {
	if isTransient(err) {
		return fmt.Errorf("remoteindex: %s(%s): %w: %w", op, hash, engine.ErrTransientRemote, err)
	}

	return fmt.Errorf("remoteindex: %s(%s): %w: %w", op, hash, engine.ErrPermanentRemote, err)
}

func isTransient(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return true
	}

	var limitExceeded *types.RequestLimitExceeded
	if errors.As(err, &limitExceeded) {
		return true
	}

	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "InternalServerError", "ServiceUnavailable":
			return true
		}
	}

	return false
}
