package covalent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/losscheck/internal/domain"
)

// maxPages bounds pagination against a provider that never clears has_more.
const maxPages = 1000

type transactionsPage struct {
	Items      []transaction `json:"items"`
	Pagination *struct {
		HasMore    bool `json:"has_more"`
		PageNumber int  `json:"page_number"`
	} `json:"pagination"`
}

type transaction struct {
	TxHash        string     `json:"tx_hash"`
	BlockSignedAt time.Time  `json:"block_signed_at"`
	Successful    *bool      `json:"successful"`
	FromAddress   string     `json:"from_address"`
	ToAddress     string     `json:"to_address"`
	Value         string     `json:"value"`
	LogEvents     []logEvent `json:"log_events"`
}

type logEvent struct {
	LogOffset      int      `json:"log_offset"`
	SenderAddress  string   `json:"sender_address"`
	SenderDecimals *int     `json:"sender_contract_decimals"`
	SenderSymbol   string   `json:"sender_contract_ticker_symbol"`
	SenderName     string   `json:"sender_name"`
	Decoded        *decoded `json:"decoded"`
}

type decoded struct {
	Name   string  `json:"name"`
	Params []param `json:"params"`
}

type param struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// text returns the parameter value as a string whether the provider sent a
// JSON string or a bare number.
func (p param) text() string {
	var s string
	if err := json.Unmarshal(p.Value, &s); err == nil {
		return s
	}
	raw := strings.TrimSpace(string(p.Value))
	if raw == "null" {
		return ""
	}
	return raw
}

// Transactions pages through transactions_v2 for wallet and flattens native
// value transfers and decoded ERC-20 Transfer logs into raw records.
// Direction is left to the normalizer; failed transactions are dropped.
func (c *Client) Transactions(ctx context.Context, chainName, wallet string) ([]domain.RawTransfer, error) {
	path := fmt.Sprintf("/%s/address/%s/transactions_v2/", url.PathEscape(chainName), url.PathEscape(wallet))

	var records []domain.RawTransfer
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		q.Set("page-number", strconv.Itoa(page))
		q.Set("page-size", strconv.Itoa(c.pageSize))

		var data transactionsPage
		if err := c.get(ctx, path, q, &data); err != nil {
			return nil, err
		}
		for _, tx := range data.Items {
			records = append(records, flatten(tx)...)
		}
		c.logger.Debug("Transactions page fetched",
			zap.String("wallet", wallet),
			zap.Int("page", page),
			zap.Int("items", len(data.Items)))

		if data.Pagination == nil || !data.Pagination.HasMore || len(data.Items) == 0 {
			break
		}
	}

	c.logger.Info("Transactions fetched",
		zap.String("chain", chainName),
		zap.String("wallet", wallet),
		zap.Int("records", len(records)))
	return records, nil
}

func flatten(tx transaction) []domain.RawTransfer {
	if tx.Successful != nil && !*tx.Successful {
		return nil
	}
	var out []domain.RawTransfer

	if tx.Value != "" && tx.Value != "0" {
		out = append(out, domain.RawTransfer{
			Kind:        domain.KindNative,
			FromAddress: tx.FromAddress,
			ToAddress:   tx.ToAddress,
			RawAmount:   tx.Value,
			OccurredAt:  tx.BlockSignedAt,
			EventID:     tx.TxHash,
			LogIndex:    -1,
		})
	}

	for _, ev := range tx.LogEvents {
		if ev.Decoded == nil || ev.Decoded.Name != "Transfer" {
			continue
		}
		var from, to, value string
		for _, p := range ev.Decoded.Params {
			switch p.Name {
			case "from":
				from = p.text()
			case "to":
				to = p.text()
			case "value":
				value = p.text()
			}
		}
		// ERC-721 transfers decode with tokenId instead of value.
		if value == "" {
			continue
		}
		out = append(out, domain.RawTransfer{
			Kind:        domain.KindToken,
			FromAddress: from,
			ToAddress:   to,
			RawAmount:   value,
			Decimals:    ev.SenderDecimals,
			AssetID:     ev.SenderAddress,
			AssetSymbol: ev.SenderSymbol,
			AssetName:   ev.SenderName,
			OccurredAt:  tx.BlockSignedAt,
			EventID:     tx.TxHash,
			LogIndex:    ev.LogOffset,
		})
	}
	return out
}
