// Package ddbsession implements store.SessionStore on top of DynamoDB, the
// external session store used when the server is deployed against a
// columnar/external-store configuration rather than the in-memory default.
package ddbsession

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"vaultseal.dev/internal/session"
	"vaultseal.dev/internal/store"
)

// item is the DynamoDB-facing shape of a session.Snapshot. Digests are
// stored as hex strings since DynamoDB has no fixed-width byte array type
// that attributevalue marshals cleanly to [32]byte.
type item struct {
	ID        string   `dynamodbav:"id"`
	CreatedAt string   `dynamodbav:"created_at"`
	Order     []string `dynamodbav:"order"`
	Digests   []string `dynamodbav:"digests"`
	Closed    bool     `dynamodbav:"closed"`
	Root      string   `dynamodbav:"root"`
}

// Store is a store.SessionStore backed by a single DynamoDB table, keyed
// on the session's UUID.
type Store struct {
	client *dynamodb.Client
	table  string
}

// New builds a Store against table using client.
func New(client *dynamodb.Client, table string) *Store {
	return &Store{client: client, table: table}
}

func toItem(snap session.Snapshot) item {
	digests := make([]string, len(snap.Digests))
	for i, d := range snap.Digests {
		digests[i] = d.ToHex()
	}
	return item{
		ID:        snap.ID.String(),
		CreatedAt: snap.CreatedAt.UTC().Format(time.RFC3339Nano),
		Order:     append([]string(nil), snap.Order...),
		Digests:   digests,
		Closed:    snap.Closed,
		Root:      snap.Root.ToHex(),
	}
}

func (it item) toSnapshot() (session.Snapshot, error) {
	id, err := uuid.Parse(it.ID)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("ddbsession: parse id: %w", err)
	}
	digests := make([]digestHex, len(it.Digests))
	for i, h := range it.Digests {
		digests[i] = digestHex(h)
	}
	parsedDigests, err := decodeDigests(digests)
	if err != nil {
		return session.Snapshot{}, err
	}
	root, err := decodeDigest(it.Root)
	if err != nil {
		return session.Snapshot{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("ddbsession: parse created_at: %w", err)
	}
	return session.Snapshot{
		ID:        id,
		CreatedAt: createdAt,
		Order:     append([]string(nil), it.Order...),
		Digests:   parsedDigests,
		Closed:    it.Closed,
		Root:      root,
	}, nil
}

// Get loads the snapshot stored under id. A missing item maps to
// store.ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (session.Snapshot, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id.String()},
		},
	})
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("ddbsession: get item: %w", err)
	}
	if out.Item == nil {
		return session.Snapshot{}, store.ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return session.Snapshot{}, fmt.Errorf("ddbsession: unmarshal item: %w", err)
	}
	return it.toSnapshot()
}

// Insert writes snap as a new item, failing if an item already exists for
// snap.ID. (The in-memory store's Insert does not check this and
// overwrites an existing entry.)
func (s *Store) Insert(ctx context.Context, snap session.Snapshot) error {
	av, err := attributevalue.MarshalMap(toItem(snap))
	if err != nil {
		return fmt.Errorf("ddbsession: marshal item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("ddbsession: put item: %w", err)
	}
	return nil
}

// List scans the entire table and returns every stored snapshot. It is
// meant for maintenance tasks run infrequently against modest table sizes,
// not for request-path use.
func (s *Store) List(ctx context.Context) ([]session.Snapshot, error) {
	var snaps []session.Snapshot

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.table),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ddbsession: scan page: %w", err)
		}
		for _, rawItem := range page.Items {
			var it item
			if err := attributevalue.UnmarshalMap(rawItem, &it); err != nil {
				return nil, fmt.Errorf("ddbsession: unmarshal scanned item: %w", err)
			}
			snap, err := it.toSnapshot()
			if err != nil {
				return nil, err
			}
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

// Update overwrites the item for snap.ID unconditionally.
func (s *Store) Update(ctx context.Context, snap session.Snapshot) error {
	av, err := attributevalue.MarshalMap(toItem(snap))
	if err != nil {
		return fmt.Errorf("ddbsession: marshal item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("ddbsession: put item: %w", err)
	}
	return nil
}

// Delete removes the item for id, if one exists.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id.String()},
		},
	})
	if err != nil {
		return fmt.Errorf("ddbsession: delete item: %w", err)
	}
	return nil
}
