package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NativeOption 原生货币市场的期权
//
// 保证金在开仓时随调用附带并锁定，只能通过行权结算、到期作废
// 或（从未售出时的）到期回收三条路径释放。
type NativeOption struct {
	ID         uint64         `json:"id"`         // 期权 id（全局递增）
	Writer     common.Address `json:"writer"`     // 开仓方（保证金提供者）
	Buyer      common.Address `json:"buyer"`      // 买方（未购买时为零地址）
	Strike     *big.Int       `json:"strike"`     // 行权价（1e8 定点）
	PremiumDue *big.Int       `json:"premium_due"` // 应付权利金（原生货币最小单位）
	Amount     *big.Int       `json:"amount"`     // 标的数量（原生货币最小单位）
	Expiration time.Time      `json:"expiration"` // 到期时间
	Collateral *big.Int       `json:"collateral"` // 剩余锁定保证金
	State      OptionState    `json:"state"`      // 当前状态
	Kind       OptionKind     `json:"kind"`       // 期权类型
}

// HasBuyer 是否已有买方
func (o *NativeOption) HasBuyer() bool {
	return o.Buyer != (common.Address{})
}

// Clone 返回深拷贝
func (o *NativeOption) Clone() *NativeOption {
	if o == nil {
		return nil
	}
	c := *o
	c.Strike = new(big.Int).Set(o.Strike)
	c.PremiumDue = new(big.Int).Set(o.PremiumDue)
	c.Amount = new(big.Int).Set(o.Amount)
	c.Collateral = new(big.Int).Set(o.Collateral)
	return &c
}
