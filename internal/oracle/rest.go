package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// RESTClient 价格快照客户端
//
// 启动时（或喂价流中断时）从 REST 接口拉取一次现价作为种子轮次，
// 避免引擎在 websocket 首个 tick 之前无价可用。
type RESTClient struct {
	client *resty.Client
	symbol string
}

// spotResponse REST 接口返回结构
type spotResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// NewRESTClient 创建客户端
func NewRESTClient(baseURL, symbol string) *RESTClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)
	return &RESTClient{client: client, symbol: symbol}
}

// FetchSpot 拉取现价
func (c *RESTClient) FetchSpot(ctx context.Context) (decimal.Decimal, error) {
	var out spotResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", c.symbol).
		SetResult(&out).
		Get("/api/v3/ticker/price")
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "fetch spot price")
	}
	if resp.IsError() {
		return decimal.Zero, errors.Errorf("fetch spot price: http %d", resp.StatusCode())
	}
	d, err := decimal.NewFromString(out.Price)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse spot price %q", out.Price)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive spot price %s", d)
	}
	return d, nil
}

// Seed 拉取现价并写入轮次存储
func (c *RESTClient) Seed(ctx context.Context, store *RoundStore) error {
	d, err := c.FetchSpot(ctx)
	if err != nil {
		return err
	}
	_, err = store.UpdateAnswer(d.Shift(PriceDecimals).Truncate(0).BigInt())
	return err
}
