package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"bank-assistant/internal/domain"
)

func chatPK(sessionID string) string {
	return pkChat + sessionID
}

// msgSK orders turns by creation time; the random suffix keeps two turns
// written in the same nanosecond distinct.
func msgSK(ts time.Time) string {
	return skPrefixMsg + sortKeyTime(ts) + "#" + uuid.NewString()[:8]
}

// AppendTurn writes t as a new MSG# item and returns it with ID set to its
// sort key.
func (c *Client) AppendTurn(ctx context.Context, t domain.Turn) (domain.Turn, error) {
	if t.SessionID == "" {
		return domain.Turn{}, errors.New("repository: AppendTurn: session id is required")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.ID = msgSK(t.CreatedAt)

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                turnItem(t),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return domain.Turn{}, fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return t, nil
}

// RecentTurns queries up to limit MSG# items for a session, newest first.
func (c *Client) RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     strVal(chatPK(sessionID)),
			":prefix": strVal(skPrefixMsg),
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: RecentTurns query: %w", err)
	}

	turns := make([]domain.Turn, 0, len(out.Items))
	for _, item := range out.Items {
		t, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentTurns unmarshal: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// WriteMetrics stores one METRIC# item next to the session's turns.
func (c *Client) WriteMetrics(ctx context.Context, m domain.Metrics) error {
	if m.SessionID == "" {
		return errors.New("repository: WriteMetrics: session id is required")
	}
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":                strVal(chatPK(m.SessionID)),
			"SK":                strVal(skPrefixMetric + sortKeyTime(m.RecordedAt)),
			"tokenUsage":        intVal(int64(m.TokenUsage)),
			"responseTimeMs":    intVal(m.ResponseTimeMs),
			"completionQuality": floatVal(m.CompletionQuality),
			"recordedAt":        timeVal(m.RecordedAt),
			"ttl":               intVal(m.RecordedAt.Add(chatTTL).Unix()),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: WriteMetrics: %w", err)
	}
	return nil
}

func turnItem(t domain.Turn) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":         strVal(chatPK(t.SessionID)),
		"SK":         strVal(t.ID),
		"sessionId":  strVal(t.SessionID),
		"customerId": strVal(t.CustomerID),
		"text":       strVal(t.Text),
		"isBot":      &types.AttributeValueMemberBOOL{Value: t.IsBot},
		"createdAt":  timeVal(t.CreatedAt),
		"ttl":        intVal(t.CreatedAt.Add(chatTTL).Unix()),
	}
}

func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Turn{}, err
	}
	sessionID, err := strAttr(item, "sessionId")
	if err != nil {
		return domain.Turn{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.Turn{}, err
	}
	isBot, err := boolAttr(item, "isBot")
	if err != nil {
		return domain.Turn{}, err
	}
	customerID, _ := strAttr(item, "customerId") // allow empty
	createdAt, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.Turn{}, err
	}

	return domain.Turn{
		ID:         sk,
		SessionID:  sessionID,
		CustomerID: customerID,
		Text:       text,
		IsBot:      isBot,
		CreatedAt:  createdAt,
	}, nil
}
