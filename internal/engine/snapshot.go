package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/derivaoption/internal/domain"
)

// Snapshot 引擎全量状态快照（JSON 可序列化，用于持久化与恢复）
type Snapshot struct {
	Offers        []*domain.Offer        `json:"offers"`
	Purchases     []*domain.Purchase     `json:"purchases"`
	Approvals     []ApprovalEntry        `json:"approvals"`
	Claims        []ClaimEntry           `json:"claims"`
	NativeOptions []*domain.NativeOption `json:"native_options"`
	Positions     []PositionEntry        `json:"positions"`

	LastOrderID    uint64 `json:"last_order_id"`
	LastPurchaseID uint64 `json:"last_purchase_id"`
	LastOptionID   uint64 `json:"last_option_id"`
}

// ApprovalEntry 授权表条目
type ApprovalEntry struct {
	Owner      common.Address `json:"owner"`
	Designee   common.Address `json:"designee"`
	PurchaseID uint64         `json:"purchase_id"`
	Amount     *big.Int       `json:"amount"`
}

// ClaimEntry 权益表条目
type ClaimEntry struct {
	PurchaseID uint64         `json:"purchase_id"`
	Holder     common.Address `json:"holder"`
	Amount     *big.Int       `json:"amount"`
}

// PositionEntry 原生市场仓位索引条目
type PositionEntry struct {
	Trader   common.Address `json:"trader"`
	OptionID uint64         `json:"option_id"`
	Amount   *big.Int       `json:"amount"`
}

// Snapshot 导出当前全量状态（深拷贝，一致性快照）
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := &Snapshot{
		LastOrderID:    e.lastOrderID,
		LastPurchaseID: e.lastPurchaseID,
		LastOptionID:   e.lastOptionID,
	}
	for _, o := range e.offers {
		s.Offers = append(s.Offers, o.Clone())
	}
	for _, p := range e.purchases {
		s.Purchases = append(s.Purchases, p.Clone())
	}
	for k, a := range e.approvals {
		s.Approvals = append(s.Approvals, ApprovalEntry{
			Owner:      k.Owner,
			Designee:   k.Designee,
			PurchaseID: k.PurchaseID,
			Amount:     new(big.Int).Set(a),
		})
	}
	for pid, holders := range e.claims {
		for h, amt := range holders {
			s.Claims = append(s.Claims, ClaimEntry{
				PurchaseID: pid,
				Holder:     h,
				Amount:     new(big.Int).Set(amt),
			})
		}
	}
	for _, o := range e.nativeOptions {
		s.NativeOptions = append(s.NativeOptions, o.Clone())
	}
	for trader, m := range e.positions {
		for id, amt := range m {
			s.Positions = append(s.Positions, PositionEntry{
				Trader:   trader,
				OptionID: id,
				Amount:   new(big.Int).Set(amt),
			})
		}
	}
	return s
}

// Restore 从快照恢复全量状态（覆盖当前状态；启动时调用）
func (e *Engine) Restore(s *Snapshot) {
	if s == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.offers = make(map[uint64]*domain.Offer, len(s.Offers))
	for _, o := range s.Offers {
		e.offers[o.ID] = o.Clone()
	}
	e.purchases = make(map[uint64]*domain.Purchase, len(s.Purchases))
	for _, p := range s.Purchases {
		e.purchases[p.ID] = p.Clone()
	}
	e.approvals = make(map[approvalKey]*big.Int, len(s.Approvals))
	for _, a := range s.Approvals {
		e.approvals[approvalKey{Owner: a.Owner, Designee: a.Designee, PurchaseID: a.PurchaseID}] = new(big.Int).Set(a.Amount)
	}
	e.claims = make(map[uint64]map[common.Address]*big.Int)
	for _, c := range s.Claims {
		if e.claims[c.PurchaseID] == nil {
			e.claims[c.PurchaseID] = make(map[common.Address]*big.Int)
		}
		e.claims[c.PurchaseID][c.Holder] = new(big.Int).Set(c.Amount)
	}
	e.nativeOptions = make(map[uint64]*domain.NativeOption, len(s.NativeOptions))
	for _, o := range s.NativeOptions {
		e.nativeOptions[o.ID] = o.Clone()
	}
	e.positions = make(map[common.Address]map[uint64]*big.Int)
	for _, p := range s.Positions {
		if e.positions[p.Trader] == nil {
			e.positions[p.Trader] = make(map[uint64]*big.Int)
		}
		e.positions[p.Trader][p.OptionID] = new(big.Int).Set(p.Amount)
	}
	e.lastOrderID = s.LastOrderID
	e.lastPurchaseID = s.LastPurchaseID
	e.lastOptionID = s.LastOptionID
}
