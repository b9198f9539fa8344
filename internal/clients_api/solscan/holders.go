package solscan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"holders-api/internal/infra/log"
	"holders-api/internal/scraper"
	"holders-api/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type holdersResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Total int64        `json:"total"`
		Items []holderItem `json:"items"`
	} `json:"data"`
	Errors *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

type holderItem struct {
	Address  string          `json:"address"` // token account
	Owner    string          `json:"owner"`
	Amount   decimal.Decimal `json:"amount"` // raw units
	Decimals int32           `json:"decimals"`
	Rank     int             `json:"rank"`
}

type metaResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Supply   decimal.Decimal `json:"supply"` // raw units
		Decimals int32           `json:"decimals"`
	} `json:"data"`
}

func (c *Client) Name() string { return "solscan" }

// FetchHolders pages through /token/holders until a short page, the
// reported total or the page cap. Token accounts of one owner are merged,
// balances are converted to UI units and percentages are taken against the
// mint supply, so a capped page walk still reports true shares.
func (c *Client) FetchHolders(ctx context.Context, req scraper.FetchRequest) ([]store.HolderEntry, error) {
	client := c.httpClient(req.Proxy)

	var (
		owners   []string
		ranks    []int
		balances []decimal.Decimal
		index    = map[string]int{}
		accounts int
		total    int64
	)
	for page := 1; page <= c.maxPages; page++ {
		query := url.Values{}
		query.Set("address", req.TokenAddress)
		query.Set("page", strconv.Itoa(page))
		query.Set("page_size", strconv.Itoa(c.pageSize))

		body, err := c.doGET(ctx, client, "/token/holders", query)
		if err != nil {
			return nil, err
		}

		var resp holdersResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse holders page %d: %w", page, err)
		}
		if !resp.Success {
			msg := "unsuccessful response"
			if resp.Errors != nil {
				msg = resp.Errors.Message
			}
			return nil, fmt.Errorf("solscan holders page %d: %s", page, msg)
		}

		total = resp.Data.Total
		for _, item := range resp.Data.Items {
			accounts++
			owner := item.Owner
			if owner == "" {
				owner = item.Address
			}
			balance := item.Amount.Shift(-item.Decimals)
			if i, ok := index[owner]; ok {
				balances[i] = balances[i].Add(balance)
				continue
			}
			index[owner] = len(owners)
			owners = append(owners, owner)
			ranks = append(ranks, item.Rank)
			balances = append(balances, balance)
		}

		if len(resp.Data.Items) < c.pageSize || (total > 0 && int64(accounts) >= total) {
			break
		}
	}

	supply, err := c.fetchSupply(ctx, client, req.TokenAddress)
	if err != nil {
		log.LogWarn("Token supply unavailable, percentages derived from fetched holders",
			zap.String("token", req.TokenAddress), zap.Error(err))
	}

	hundred := decimal.NewFromInt(100)
	entries := make([]store.HolderEntry, len(owners))
	for i, owner := range owners {
		f, _ := balances[i].Float64()
		entries[i] = store.HolderEntry{Address: owner, Balance: f, Rank: ranks[i]}
		if supply.IsPositive() {
			entries[i].Percentage, _ = balances[i].Div(supply).Mul(hundred).Float64()
		}
	}

	log.LogDebug("Fetched holders from Solscan",
		zap.String("token", req.TokenAddress),
		zap.Int("holders", len(entries)),
		zap.Int("accounts", accounts),
		zap.Int64("total", total),
		zap.String("supply", supply.String()))

	return entries, nil
}

// fetchSupply returns the mint supply in UI units from /token/meta.
func (c *Client) fetchSupply(ctx context.Context, client *http.Client, token string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("address", token)

	body, err := c.doGET(ctx, client, "/token/meta", query)
	if err != nil {
		return decimal.Zero, err
	}
	var resp metaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse token meta: %w", err)
	}
	if !resp.Success || !resp.Data.Supply.IsPositive() {
		return decimal.Zero, fmt.Errorf("token meta has no supply")
	}
	return resp.Data.Supply.Shift(-resp.Data.Decimals), nil
}
