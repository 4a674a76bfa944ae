package engine

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/derivaoption/internal/domain"
	"github.com/betbot/derivaoption/internal/events"
)

// BuyOptionByID 按报价 id 购买（buyOptionByID 的等价物）
//
// 权利金 = 单位权利金 × 数量，以结算代币从买方划给卖方；
// 成交后报价剩余数量扣减，完全消耗时报价失效。
func (e *Engine) BuyOptionByID(buyer common.Address, offerID uint64, amount *big.Int) (uint64, error) {
	if amount == nil || amount.Sign() <= 0 {
		return 0, domain.ErrInvalidTerms
	}
	key := guardKey("offer", offerID)
	now := e.nowFn()

	e.mu.Lock()
	offer, ok := e.offers[offerID]
	if !ok || !offer.Valid {
		e.mu.Unlock()
		return 0, domain.ErrNotFound
	}
	if !now.Before(offer.Expiry) {
		e.mu.Unlock()
		return 0, domain.ErrExpiredOffer
	}
	if offer.AmountUnderlying.Cmp(amount) < 0 {
		e.mu.Unlock()
		return 0, domain.ErrInsufficientOfferSize
	}
	if err := e.acquireGuards(key); err != nil {
		e.mu.Unlock()
		return 0, err
	}
	seller := offer.Seller
	premium := new(big.Int).Set(offer.Premium)
	e.mu.Unlock()

	// 权利金划转：失败时回退守卫，状态不变
	cost := new(big.Int).Mul(premium, amount)
	if err := e.ledger.TransferFrom(e.quoteToken, engineAccount, buyer, seller, cost); err != nil {
		e.releaseGuardsLocked(key)
		return 0, transferFailed(err)
	}

	e.mu.Lock()
	offer.AmountUnderlying.Sub(offer.AmountUnderlying, amount)
	if offer.AmountUnderlying.Sign() == 0 {
		offer.Valid = false
	}
	e.lastPurchaseID++
	p := &domain.Purchase{
		ID:          e.lastPurchaseID,
		Buyer:       buyer,
		Seller:      seller,
		Token:       offer.Token,
		Kind:        offer.Kind,
		Strike:      new(big.Int).Set(offer.Strike),
		Premium:     premium,
		Expiry:      offer.Expiry,
		Amount:      new(big.Int).Set(amount),
		OfferID:     offerID,
		PurchasedAt: now,
	}
	e.purchases[p.ID] = p
	e.claims[p.ID] = map[common.Address]*big.Int{
		buyer: new(big.Int).Set(amount),
	}
	e.releaseGuards(key)
	e.mu.Unlock()

	e.publish(events.PurchaseCreated{
		PurchaseID: p.ID,
		OfferID:    offerID,
		Buyer:      buyer,
		Seller:     seller,
		Token:      p.Token,
		IsCall:     p.Kind.IsCall(),
		Strike:     new(big.Int).Set(p.Strike),
		Premium:    new(big.Int).Set(premium),
		Expiry:     p.Expiry,
		Amount:     new(big.Int).Set(amount),
		Timestamp:  now,
	})
	return p.ID, nil
}

// BuyOptionByExactTerms 按显式条款直接撮合购买
// （buyOptionByExactPremiumAndExpiry 的等价物）
//
// 找到该卖方条款完全一致、剩余数量足够且未过期的报价后按其成交；
// 找不到兼容报价时返回 TermsMismatch。
func (e *Engine) BuyOptionByExactTerms(
	buyer, seller common.Address,
	terms domain.OfferTerms,
	amount *big.Int,
) (uint64, error) {
	if amount == nil || amount.Sign() <= 0 {
		return 0, domain.ErrInvalidTerms
	}
	now := e.nowFn()

	e.mu.RLock()
	var offerID uint64
	found := false
	for _, o := range e.offers {
		if o.Seller == seller && o.MatchesTerms(terms) && o.Fillable(amount, now) {
			// 多个兼容报价时取 id 最小的（最早挂出）
			if !found || o.ID < offerID {
				offerID = o.ID
				found = true
			}
		}
	}
	e.mu.RUnlock()

	if !found {
		return 0, domain.ErrTermsMismatch
	}
	return e.BuyOptionByID(buyer, offerID, amount)
}

// Approve 设置作用域授权（approve 的等价物）
//
// 与代币本身的 allowance 无关：授权 designee 转移 owner 在指定仓位上的权益。
// 覆盖式写入，非累加。已结清仓位的权益不再可授权。
func (e *Engine) Approve(owner, designee common.Address, purchaseID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidTerms
	}

	e.mu.Lock()
	p, ok := e.purchases[purchaseID]
	if !ok {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if p.Exercised {
		e.mu.Unlock()
		return domain.ErrAlreadyExercised
	}
	if p.CollateralReleased {
		e.mu.Unlock()
		return domain.ErrAlreadyConsumed
	}
	holding := e.claims[purchaseID][owner]
	if holding == nil || holding.Sign() == 0 {
		e.mu.Unlock()
		return domain.ErrUnauthorized
	}
	e.approvals[approvalKey{Owner: owner, Designee: designee, PurchaseID: purchaseID}] = new(big.Int).Set(amount)
	e.mu.Unlock()

	e.publish(events.ApprovalChanged{
		PurchaseID: purchaseID,
		Owner:      owner,
		Designee:   designee,
		Amount:     new(big.Int).Set(amount),
		Timestamp:  e.nowFn(),
	})
	return nil
}

// Approval 查询作用域授权额度（approval 的等价物）
func (e *Engine) Approval(owner, designee common.Address, purchaseID uint64) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if a, ok := e.approvals[approvalKey{Owner: owner, Designee: designee, PurchaseID: purchaseID}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// Transfer 转移自己持有的仓位权益（transfer 的等价物）
func (e *Engine) Transfer(caller, recipient common.Address, amount *big.Int, purchaseID uint64) error {
	return e.moveClaim(caller, caller, recipient, amount, purchaseID, false)
}

// TransferFrom 凭作用域授权转移他人持有的仓位权益（transferFrom 的等价物）
//
// 成功后授权额度恰好扣减 amount，永不为负。
func (e *Engine) TransferFrom(caller, from, recipient common.Address, amount *big.Int, purchaseID uint64) error {
	return e.moveClaim(caller, from, recipient, amount, purchaseID, true)
}

// moveClaim 权益转移的共同实现
//
// 已结清仓位的权益不再可转移；结算资金窗口内该仓位被守卫占用，
// 期间禁止改写持有人（记录持有人决定赔付去向）。
func (e *Engine) moveClaim(
	caller, from, recipient common.Address,
	amount *big.Int,
	purchaseID uint64,
	viaApproval bool,
) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidTerms
	}

	e.mu.Lock()
	p, ok := e.purchases[purchaseID]
	if !ok {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if p.Exercised {
		e.mu.Unlock()
		return domain.ErrAlreadyExercised
	}
	if p.CollateralReleased {
		e.mu.Unlock()
		return domain.ErrAlreadyConsumed
	}
	if _, busy := e.inflight[guardKey("purchase", purchaseID)]; busy {
		e.mu.Unlock()
		return domain.ErrReentrantCall
	}
	holders := e.claims[purchaseID]
	holding := holders[from]
	if holding == nil || holding.Cmp(amount) < 0 {
		e.mu.Unlock()
		return domain.ErrInsufficientBalance
	}
	if viaApproval {
		k := approvalKey{Owner: from, Designee: caller, PurchaseID: purchaseID}
		approved := e.approvals[k]
		if approved == nil || approved.Cmp(amount) < 0 {
			e.mu.Unlock()
			return domain.ErrInsufficientApproval
		}
		approved.Sub(approved, amount)
	}
	holding.Sub(holding, amount)
	if holding.Sign() == 0 {
		delete(holders, from)
	}
	if holders[recipient] == nil {
		holders[recipient] = new(big.Int)
	}
	holders[recipient].Add(holders[recipient], amount)
	// 单一持有人持有全部权益时成为记录持有人（行权人）
	if holders[recipient].Cmp(p.Amount) == 0 {
		p.Buyer = recipient
	}
	e.mu.Unlock()

	e.publish(events.ClaimTransferred{
		PurchaseID: purchaseID,
		From:       from,
		To:         recipient,
		Amount:     new(big.Int).Set(amount),
		Timestamp:  e.nowFn(),
	})
	return nil
}

// Exercise 行权单个仓位（exerciseOption 的等价物）
func (e *Engine) Exercise(caller common.Address, purchaseID uint64) error {
	return e.exerciseMany(caller, []uint64{purchaseID})
}

// ExerciseMany 批量行权（exerciseOptions 的等价物）
//
// 原子全有或全无：先对每个 id 做完整校验并统一取一次结算价，
// 任何一个 id 不合法时整批失败，不发生任何赔付。
func (e *Engine) ExerciseMany(caller common.Address, purchaseIDs []uint64) error {
	if len(purchaseIDs) == 0 {
		return domain.ErrInvalidTerms
	}
	return e.exerciseMany(caller, purchaseIDs)
}

// exercisePlan 单个仓位的行权计划（校验通过后生成）
type exercisePlan struct {
	purchase *domain.Purchase
	payout   *big.Int
	refund   *big.Int
	mover    collateralMover
}

func (e *Engine) exerciseMany(caller common.Address, ids []uint64) error {
	now := e.nowFn()
	price, err := e.oracle.SettlementPrice(now)
	if err != nil {
		return err
	}

	e.mu.Lock()
	plans := make([]exercisePlan, 0, len(ids))
	keys := make([]string, 0, len(ids))
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			e.mu.Unlock()
			return domain.ErrInvalidTerms
		}
		seen[id] = true

		p, ok := e.purchases[id]
		if !ok {
			e.mu.Unlock()
			return domain.ErrNotFound
		}
		if p.Buyer != caller {
			e.mu.Unlock()
			return domain.ErrUnauthorized
		}
		if p.Exercised {
			e.mu.Unlock()
			return domain.ErrAlreadyExercised
		}
		if now.After(p.Expiry) {
			e.mu.Unlock()
			return domain.ErrExpired
		}
		if p.CollateralReleased {
			e.mu.Unlock()
			return domain.ErrAlreadyConsumed
		}

		intrinsic := intrinsicPerUnit(p.Kind, p.Strike, price)
		payout, refund := splitCollateral(intrinsic, p.Amount, price, p.Amount)
		plans = append(plans, exercisePlan{
			purchase: p,
			payout:   payout,
			refund:   refund,
			mover: ledgerMover{
				ledger: e.ledger,
				token:  p.Token,
				buyer:  p.Buyer,
				seller: p.Seller,
			},
		})
		keys = append(keys, guardKey("purchase", id))
	}
	if err := e.acquireGuards(keys...); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	// 资金划转：托管账户由守恒保证足额，逐个结算
	for i, plan := range plans {
		if err := settleCollateral(plan.mover, plan.payout, plan.refund); err != nil {
			// 回滚已结算的前序仓位，保持整批原子
			for j := 0; j < i; j++ {
				unsettleCollateral(plans[j].mover, plans[j].payout, plans[j].refund)
			}
			e.releaseGuardsLocked(keys...)
			return err
		}
	}

	e.mu.Lock()
	for _, plan := range plans {
		plan.purchase.Exercised = true
		plan.purchase.CollateralReleased = true
	}
	e.releaseGuards(keys...)
	e.mu.Unlock()

	for _, plan := range plans {
		e.publish(events.PurchaseExercised{
			PurchaseID: plan.purchase.ID,
			Buyer:      plan.purchase.Buyer,
			Payout:     plan.payout,
			Refund:     plan.refund,
			Timestamp:  now,
		})
	}
	return nil
}

// ReclaimExpiredCollateral 到期没收：卖方收回已过期未行权仓位的托管标的
func (e *Engine) ReclaimExpiredCollateral(caller common.Address, purchaseID uint64) error {
	key := guardKey("purchase", purchaseID)
	now := e.nowFn()

	e.mu.Lock()
	p, ok := e.purchases[purchaseID]
	if !ok {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if p.Seller != caller {
		e.mu.Unlock()
		return domain.ErrUnauthorized
	}
	if p.Exercised {
		e.mu.Unlock()
		return domain.ErrAlreadyExercised
	}
	if p.CollateralReleased {
		e.mu.Unlock()
		return domain.ErrAlreadyConsumed
	}
	if !now.After(p.Expiry) {
		e.mu.Unlock()
		return domain.ErrNotExpired
	}
	if err := e.acquireGuards(key); err != nil {
		e.mu.Unlock()
		return err
	}
	amount := new(big.Int).Set(p.Amount)
	token := p.Token
	e.mu.Unlock()

	if err := e.ledger.Transfer(token, engineAccount, caller, amount); err != nil {
		e.releaseGuardsLocked(key)
		return transferFailed(err)
	}

	e.mu.Lock()
	p.CollateralReleased = true
	e.releaseGuards(key)
	e.mu.Unlock()

	e.publish(events.CollateralReclaimed{
		PurchaseID: purchaseID,
		Seller:     caller,
		Amount:     amount,
		Timestamp:  now,
	})
	return nil
}

// QueryPositions 聚合某交易者在给定条款下所有未结清仓位的权益总量
// （queryPositions 的等价物；premium 不参与仓位聚合）
func (e *Engine) QueryPositions(
	trader, token common.Address,
	kind domain.OptionKind,
	strike *big.Int,
	expiry time.Time,
) *big.Int {
	total := new(big.Int)

	e.mu.RLock()
	defer e.mu.RUnlock()
	for id, p := range e.purchases {
		if p.Settled() {
			continue
		}
		if p.Token != token || p.Kind != kind || p.Strike.Cmp(strike) != 0 || !p.Expiry.Equal(expiry) {
			continue
		}
		if h := e.claims[id][trader]; h != nil {
			total.Add(total, h)
		}
	}
	return total
}

// Purchase 按 id 查询仓位（返回拷贝）
func (e *Engine) Purchase(id uint64) (*domain.Purchase, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.purchases[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

// ClaimOf 查询某地址在某仓位上的权益份额
func (e *Engine) ClaimOf(purchaseID uint64, holder common.Address) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if h := e.claims[purchaseID][holder]; h != nil {
		return new(big.Int).Set(h)
	}
	return new(big.Int)
}

// LastPurchaseID 最近一次分配的仓位 id
func (e *Engine) LastPurchaseID() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastPurchaseID
}
