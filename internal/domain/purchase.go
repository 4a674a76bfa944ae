package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Purchase 通用市场的已成交仓位
//
// 除 Exercised / CollateralReleased 两个单调标志外不可变；
// Exercised 只允许 false→true 一次。
type Purchase struct {
	ID          uint64         `json:"id"`           // 仓位 id（全局递增）
	Buyer       common.Address `json:"buyer"`        // 当前记录持有人（行权人）
	Seller      common.Address `json:"seller"`       // 卖方（保证金提供者）
	Token       common.Address `json:"token"`        // 标的代币地址
	Kind        OptionKind     `json:"kind"`         // 期权类型
	Strike      *big.Int       `json:"strike"`       // 行权价（1e8 定点）
	Premium     *big.Int       `json:"premium"`      // 单位权利金
	Expiry      time.Time      `json:"expiry"`       // 到期时间
	Amount      *big.Int       `json:"amount"`       // 购买的标的数量
	OfferID     uint64         `json:"offer_id"`     // 来源报价 id
	PurchasedAt time.Time      `json:"purchased_at"` // 成交时间
	Exercised   bool           `json:"exercised"`    // 是否已行权（单调）

	// CollateralReleased 托管的标的是否已全部释放
	// （行权结算或到期没收路径置位，防止重复释放）
	CollateralReleased bool `json:"collateral_released"`
}

// Settled 仓位是否已结清（行权或保证金已释放）
func (p *Purchase) Settled() bool {
	return p.Exercised || p.CollateralReleased
}

// Clone 返回深拷贝
func (p *Purchase) Clone() *Purchase {
	if p == nil {
		return nil
	}
	c := *p
	c.Strike = new(big.Int).Set(p.Strike)
	c.Premium = new(big.Int).Set(p.Premium)
	c.Amount = new(big.Int).Set(p.Amount)
	return &c
}
