package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/derivaoption/internal/domain"
)

// InMemoryLedger 内存台账实现
//
// 持有多种代币的余额与授权表，守恒约束：每种代币 sum(balances) 恒等于已铸造总量。
type InMemoryLedger struct {
	mu         sync.RWMutex
	balances   map[common.Address]map[common.Address]*big.Int                // token -> owner -> balance
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int // token -> owner -> spender -> amount
}

// NewInMemoryLedger 创建空台账
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
	}
}

// Mint 铸造代币（测试/演示用的水龙头入口）
func (l *InMemoryLedger) Mint(token, to common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, to, amount)
}

// BalanceOf 查询余额
func (l *InMemoryLedger) BalanceOf(token, owner common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.balances[token]; ok {
		if b, ok := m[owner]; ok {
			return new(big.Int).Set(b)
		}
	}
	return new(big.Int)
}

// Allowance 查询授权额度
func (l *InMemoryLedger) Allowance(token, owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.allowances[token]; ok {
		if om, ok := m[owner]; ok {
			if a, ok := om[spender]; ok {
				return new(big.Int).Set(a)
			}
		}
	}
	return new(big.Int)
}

// Approve 设置授权额度（覆盖式）
func (l *InMemoryLedger) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidTerms
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[token] == nil {
		l.allowances[token] = make(map[common.Address]map[common.Address]*big.Int)
	}
	if l.allowances[token][owner] == nil {
		l.allowances[token][owner] = make(map[common.Address]*big.Int)
	}
	l.allowances[token][owner][spender] = new(big.Int).Set(amount)
	return nil
}

// Transfer 直接划转
func (l *InMemoryLedger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidTerms
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(token, from, to, amount)
}

// TransferFrom 凭授权划转，成功后扣减授权额度
func (l *InMemoryLedger) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidTerms
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := new(big.Int)
	if m, ok := l.allowances[token]; ok {
		if om, ok := m[from]; ok {
			if a, ok := om[spender]; ok {
				allowance = a
			}
		}
	}
	if allowance.Cmp(amount) < 0 {
		return domain.ErrInsufficientApproval
	}
	if err := l.move(token, from, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

// move 余额划转（调用方持锁）
func (l *InMemoryLedger) move(token, from, to common.Address, amount *big.Int) error {
	bal := new(big.Int)
	if m, ok := l.balances[token]; ok {
		if b, ok := m[from]; ok {
			bal = b
		}
	}
	if bal.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	l.credit(token, to, amount)
	return nil
}

// credit 入账（调用方持锁）
func (l *InMemoryLedger) credit(token, to common.Address, amount *big.Int) {
	if l.balances[token] == nil {
		l.balances[token] = make(map[common.Address]*big.Int)
	}
	if l.balances[token][to] == nil {
		l.balances[token][to] = new(big.Int)
	}
	l.balances[token][to].Add(l.balances[token][to], amount)
}
