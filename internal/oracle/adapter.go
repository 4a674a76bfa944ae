package oracle

import (
	"math/big"
	"time"

	"github.com/betbot/derivaoption/internal/domain"
)

// DefaultMaxAge 默认最大报价时效
const DefaultMaxAge = 5 * time.Minute

// Adapter 结算用价格适配器
//
// 在轮次化价格源之上强制时效检查：超过 MaxAge 的报价拒绝用于结算
// （返回 domain.ErrStalePrice）。时间由调用方显式传入，便于确定性测试。
type Adapter struct {
	source PriceSource
	maxAge time.Duration
}

// NewAdapter 创建适配器，maxAge <= 0 时使用 DefaultMaxAge
func NewAdapter(source PriceSource, maxAge time.Duration) *Adapter {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Adapter{source: source, maxAge: maxAge}
}

// SettlementPrice 返回 now 时刻可用于结算的价格（1e8 定点）
func (a *Adapter) SettlementPrice(now time.Time) (*big.Int, error) {
	r, err := a.source.LatestRound()
	if err != nil {
		return nil, err
	}
	if now.Sub(r.UpdatedAt) > a.maxAge {
		return nil, domain.ErrStalePrice
	}
	return new(big.Int).Set(r.Answer), nil
}

// QuoteValue 按最新有效价格把 amount（标的最小单位）换算为报价货币价值
//
//	quoteValue = amount × price / 1e8
func (a *Adapter) QuoteValue(amount *big.Int, now time.Time) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, domain.ErrInvalidTerms
	}
	price, err := a.SettlementPrice(now)
	if err != nil {
		return nil, err
	}
	v := new(big.Int).Mul(amount, price)
	return v.Quo(v, priceScale), nil
}
