package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Offer 通用市场的卖方报价
//
// 卖方在创建报价时将全部标的资产锁入托管，剩余数量只减不增；
// 完全消耗或取消后 Valid 置为 false，不再可成交。
type Offer struct {
	ID               uint64         `json:"id"`                // 报价 id（全局递增）
	Seller           common.Address `json:"seller"`            // 卖方地址
	Token            common.Address `json:"token"`             // 标的代币地址
	Kind             OptionKind     `json:"kind"`              // 期权类型
	Strike           *big.Int       `json:"strike"`            // 行权价（报价货币，1e8 定点）
	Premium          *big.Int       `json:"premium"`           // 单位权利金（报价代币最小单位）
	Expiry           time.Time      `json:"expiry"`            // 到期时间
	AmountUnderlying *big.Int       `json:"amount_underlying"` // 剩余可售标的数量
	OfferedAt        time.Time      `json:"offered_at"`        // 创建时间
	Valid            bool           `json:"valid"`             // 是否仍然有效
}

// OfferTerms 报价条款元组，用于订单簿聚合查询与条款撮合
type OfferTerms struct {
	Token   common.Address
	Kind    OptionKind
	Strike  *big.Int
	Premium *big.Int
	Expiry  time.Time
}

// MatchesTerms 检查报价是否与给定条款完全一致
func (o *Offer) MatchesTerms(t OfferTerms) bool {
	return o.Token == t.Token &&
		o.Kind == t.Kind &&
		o.Strike.Cmp(t.Strike) == 0 &&
		o.Premium.Cmp(t.Premium) == 0 &&
		o.Expiry.Equal(t.Expiry)
}

// Fillable 检查报价在 now 时刻是否还能按 amount 成交
func (o *Offer) Fillable(amount *big.Int, now time.Time) bool {
	return o.Valid &&
		o.AmountUnderlying.Sign() > 0 &&
		o.AmountUnderlying.Cmp(amount) >= 0 &&
		now.Before(o.Expiry)
}

// Clone 返回深拷贝，避免调用方读到被并发修改的字段
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	c := *o
	c.Strike = new(big.Int).Set(o.Strike)
	c.Premium = new(big.Int).Set(o.Premium)
	c.AmountUnderlying = new(big.Int).Set(o.AmountUnderlying)
	return &c
}
