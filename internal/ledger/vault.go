package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/derivaoption/internal/domain"
)

// NativeVault 原生货币金库
//
// 模拟链上账户的原生货币余额：引擎在原生市场的每次资金移动
// （锁定保证金、支付权利金、行权付款、退款）都经过金库划转。
type NativeVault struct {
	mu       sync.RWMutex
	balances map[common.Address]*big.Int
}

// NewNativeVault 创建空金库
func NewNativeVault() *NativeVault {
	return &NativeVault{balances: make(map[common.Address]*big.Int)}
}

// Deposit 入金（水龙头/测试入口）
func (v *NativeVault) Deposit(owner common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.credit(owner, amount)
}

// Balance 查询余额（返回拷贝）
func (v *NativeVault) Balance(owner common.Address) *big.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if b, ok := v.balances[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Transfer 账户间划转，余额不足返回 domain.ErrInsufficientBalance
func (v *NativeVault) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidTerms
	}
	if amount.Sign() == 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	bal, ok := v.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	v.credit(to, amount)
	return nil
}

// credit 入账（调用方持锁）
func (v *NativeVault) credit(owner common.Address, amount *big.Int) {
	if v.balances[owner] == nil {
		v.balances[owner] = new(big.Int)
	}
	v.balances[owner].Add(v.balances[owner], amount)
}
