package engine

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/derivaoption/internal/domain"
	"github.com/betbot/derivaoption/internal/events"
)

// CreateOffer 卖方创建报价（sellOption 的等价物）
//
// 校验条款后把 amount 的标的从卖方账本划入托管，再登记报价。
// 划转失败整个操作失败，不留下任何状态变化。
func (e *Engine) CreateOffer(
	seller, token common.Address,
	kind domain.OptionKind,
	strike, premium *big.Int,
	expirySeconds time.Duration,
	amount *big.Int,
) (uint64, error) {
	if !kind.Valid() ||
		amount == nil || amount.Sign() <= 0 ||
		strike == nil || strike.Sign() <= 0 ||
		premium == nil || premium.Sign() < 0 ||
		expirySeconds <= 0 {
		return 0, domain.ErrInvalidTerms
	}
	if !e.registry.IsActivated(token) {
		return 0, domain.ErrInvalidAsset
	}

	now := e.nowFn()

	// 托管标的：失败时不改任何状态
	if err := e.ledger.TransferFrom(token, engineAccount, seller, engineAccount, amount); err != nil {
		return 0, transferFailed(err)
	}

	e.mu.Lock()
	e.lastOrderID++
	offer := &domain.Offer{
		ID:               e.lastOrderID,
		Seller:           seller,
		Token:            token,
		Kind:             kind,
		Strike:           new(big.Int).Set(strike),
		Premium:          new(big.Int).Set(premium),
		Expiry:           now.Add(expirySeconds),
		AmountUnderlying: new(big.Int).Set(amount),
		OfferedAt:        now,
		Valid:            true,
	}
	e.offers[offer.ID] = offer
	e.mu.Unlock()

	e.publish(events.OfferCreated{
		OfferID:   offer.ID,
		Seller:    seller,
		Token:     token,
		IsCall:    kind.IsCall(),
		Strike:    new(big.Int).Set(strike),
		Premium:   new(big.Int).Set(premium),
		Expiry:    offer.Expiry,
		Amount:    new(big.Int).Set(amount),
		Timestamp: now,
	})
	return offer.ID, nil
}

// CancelOffer 卖方取消报价，退回未成交部分的托管标的
//
// 已成交部分的保证金不受取消影响（仍托管在对应仓位名下）。
func (e *Engine) CancelOffer(caller common.Address, offerID uint64) error {
	key := guardKey("offer", offerID)

	e.mu.Lock()
	offer, ok := e.offers[offerID]
	if !ok {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if offer.Seller != caller {
		e.mu.Unlock()
		return domain.ErrUnauthorized
	}
	if !offer.Valid || offer.AmountUnderlying.Sign() == 0 {
		e.mu.Unlock()
		return domain.ErrAlreadyConsumed
	}
	if err := e.acquireGuards(key); err != nil {
		e.mu.Unlock()
		return err
	}
	refund := new(big.Int).Set(offer.AmountUnderlying)
	token := offer.Token
	e.mu.Unlock()

	if err := e.ledger.Transfer(token, engineAccount, caller, refund); err != nil {
		e.releaseGuardsLocked(key)
		return transferFailed(err)
	}

	e.mu.Lock()
	offer.AmountUnderlying = new(big.Int)
	offer.Valid = false
	e.releaseGuards(key)
	e.mu.Unlock()

	e.publish(events.OfferCanceled{
		OfferID:   offerID,
		Seller:    caller,
		Refunded:  refund,
		Timestamp: e.nowFn(),
	})
	return nil
}

// IsBuyable 检查某卖方报价在当前时刻是否可按给定条款与数量成交
// （isOptionBuyable 的等价物，纯查询）
func (e *Engine) IsBuyable(
	seller common.Address,
	terms domain.OfferTerms,
	amount *big.Int,
) bool {
	if amount == nil || amount.Sign() <= 0 || !e.registry.IsActivated(terms.Token) {
		return false
	}
	now := e.nowFn()

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, o := range e.offers {
		if o.Seller == seller && o.MatchesTerms(terms) && o.Fillable(amount, now) {
			return true
		}
	}
	return false
}

// QueryOrderbook 聚合某卖方在给定条款下所有有效报价的剩余可成交数量
// （queryOrderbook 的等价物，按卖方计）
func (e *Engine) QueryOrderbook(seller common.Address, terms domain.OfferTerms) *big.Int {
	now := e.nowFn()
	total := new(big.Int)

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, o := range e.offers {
		if o.Seller == seller && o.Valid && o.MatchesTerms(terms) && now.Before(o.Expiry) {
			total.Add(total, o.AmountUnderlying)
		}
	}
	return total
}

// Offer 按 id 查询报价（返回拷贝）
func (e *Engine) Offer(id uint64) (*domain.Offer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.offers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

// LastOrderID 最近一次分配的报价 id
func (e *Engine) LastOrderID() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastOrderID
}
