package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"bank-assistant/internal/domain"
)

// GetAccounts returns the customer's active accounts in sort-key order.
func (c *Client) GetAccounts(ctx context.Context, customerID string) ([]domain.Account, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     strVal(pkCustomer + customerID),
			":prefix": strVal(skPrefixAcct),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetAccounts query: %w", err)
	}

	accounts := make([]domain.Account, 0, len(out.Items))
	for _, item := range out.Items {
		a, err := itemToAccount(item, customerID)
		if err != nil {
			return nil, fmt.Errorf("repository: GetAccounts unmarshal: %w", err)
		}
		if a.Active {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

// GetTransactions returns up to limit transactions of an account, newest first.
func (c *Client) GetTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		return nil, nil
	}
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     strVal(pkAccount + accountID),
			":prefix": strVal(skPrefixTx),
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetTransactions query: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(out.Items))
	for _, item := range out.Items {
		tx, err := itemToTransaction(item, accountID)
		if err != nil {
			return nil, fmt.Errorf("repository: GetTransactions unmarshal: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func itemToAccount(item map[string]types.AttributeValue, customerID string) (domain.Account, error) {
	id, err := strAttr(item, "accountId")
	if err != nil {
		return domain.Account{}, err
	}
	accountType, err := strAttr(item, "accountType")
	if err != nil {
		return domain.Account{}, err
	}
	balance, err := floatAttr(item, "balance")
	if err != nil {
		return domain.Account{}, err
	}
	currency, err := strAttr(item, "currency")
	if err != nil {
		currency = "USD"
	}
	active, err := boolAttr(item, "active")
	if err != nil {
		active = true
	}
	return domain.Account{
		ID:         id,
		CustomerID: customerID,
		Type:       accountType,
		Currency:   currency,
		Balance:    balance,
		Active:     active,
	}, nil
}

func itemToTransaction(item map[string]types.AttributeValue, accountID string) (domain.Transaction, error) {
	id, err := strAttr(item, "txId")
	if err != nil {
		return domain.Transaction{}, err
	}
	amount, err := floatAttr(item, "amount")
	if err != nil {
		return domain.Transaction{}, err
	}
	createdAt, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.Transaction{}, err
	}
	description, _ := strAttr(item, "description") // allow empty
	txType, _ := strAttr(item, "transactionType")  // allow empty
	return domain.Transaction{
		ID:          id,
		AccountID:   accountID,
		Type:        txType,
		Description: description,
		Amount:      amount,
		CreatedAt:   createdAt,
	}, nil
}
