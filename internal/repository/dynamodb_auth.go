package repository

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"bank-assistant/internal/domain"
)

// HashCode returns the hex SHA-256 digest under which online banking codes
// are stored.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func codeMatches(storedHash, code string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(HashCode(code))) == 1
}

// FindCustomerByCredentials returns the customer ID (the account number) for a
// matching credential pair, or domain.ErrNotFound.
func (c *Client) FindCustomerByCredentials(ctx context.Context, accountNumber, code string) (string, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            keyOf(pkCustomer+accountNumber, skProfile),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("repository: FindCustomerByCredentials get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", domain.ErrNotFound
	}
	stored, err := strAttr(out.Item, "codeHash")
	if err != nil {
		return "", fmt.Errorf("repository: FindCustomerByCredentials decode: %w", err)
	}
	if !codeMatches(stored, code) {
		return "", domain.ErrNotFound
	}
	return accountNumber, nil
}

// CreateSession stores a new session; tokens are never overwritten.
func (c *Client) CreateSession(ctx context.Context, s domain.Session) error {
	if s.Token == "" || s.CustomerID == "" {
		return errors.New("repository: CreateSession: token and customer id are required")
	}
	item := keyOf(pkSession+s.Token, skMeta)
	item["customerId"] = strVal(s.CustomerID)
	item["valid"] = &types.AttributeValueMemberBOOL{Value: s.Valid}
	item["createdAt"] = timeVal(s.CreatedAt)
	if !s.ExpiresAt.IsZero() {
		item["expiresAt"] = timeVal(s.ExpiresAt)
		item["ttl"] = intVal(s.ExpiresAt.Unix())
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: CreateSession: %w", err)
	}
	return nil
}

// GetSession reads a session with a consistent read so a revocation is seen
// immediately.
func (c *Client) GetSession(ctx context.Context, token string) (domain.Session, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            keyOf(pkSession+token, skMeta),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, domain.ErrNotFound
	}

	customerID, err := strAttr(out.Item, "customerId")
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession decode: %w", err)
	}
	valid, err := boolAttr(out.Item, "valid")
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession decode: %w", err)
	}
	createdAt, err := timeAttr(out.Item, "createdAt")
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession decode: %w", err)
	}
	expiresAt, err := timeAttr(out.Item, "expiresAt")
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession decode: %w", err)
	}
	return domain.Session{
		Token:      token,
		CustomerID: customerID,
		Valid:      valid,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// RevokeSession flips valid to false. Unknown tokens yield domain.ErrNotFound.
func (c *Client) RevokeSession(ctx context.Context, token string) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 keyOf(pkSession+token, skMeta),
		UpdateExpression:    aws.String("SET #valid = :false"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#valid": "valid",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("repository: RevokeSession: %w", err)
	}
	return nil
}
