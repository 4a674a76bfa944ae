package engine

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/derivaoption/internal/domain"
	"github.com/betbot/derivaoption/internal/events"
)

// nativeCollateralRequired 开仓所需保证金
//
//	看涨：amount（以标的本身足额覆盖）
//	看跌：strike × amount / writePrice（最大赔付的报价价值按开仓价折算成原生单位）
func nativeCollateralRequired(kind domain.OptionKind, strike, amount, writePrice *big.Int) *big.Int {
	if kind.IsCall() {
		return new(big.Int).Set(amount)
	}
	req := new(big.Int).Mul(strike, amount)
	return req.Quo(req, writePrice)
}

// WriteNative 原生市场开仓（sellOption_ETH 的等价物）
//
// value 为随调用附带的原生货币金额，必须不少于所需保证金；
// 附带金额全额锁定为保证金。
func (e *Engine) WriteNative(
	writer common.Address,
	strike, premiumDue, amount *big.Int,
	secondsToExpiry time.Duration,
	isCall bool,
	value *big.Int,
) (uint64, error) {
	if strike == nil || strike.Sign() <= 0 ||
		amount == nil || amount.Sign() <= 0 ||
		premiumDue == nil || premiumDue.Sign() < 0 ||
		secondsToExpiry <= 0 {
		return 0, domain.ErrInvalidTerms
	}
	if value == nil || value.Sign() <= 0 {
		return 0, domain.ErrWrongValue
	}
	kind := domain.KindFromIsCall(isCall)
	now := e.nowFn()

	// 看跌期权的保证金需求按开仓时点的价格折算
	writePrice, err := e.oracle.SettlementPrice(now)
	if err != nil {
		return 0, err
	}
	required := nativeCollateralRequired(kind, strike, amount, writePrice)
	if value.Cmp(required) < 0 {
		return 0, domain.ErrWrongValue
	}

	// 锁定保证金：失败时不留状态
	if err := e.vault.Transfer(writer, engineAccount, value); err != nil {
		return 0, transferFailed(err)
	}

	e.mu.Lock()
	e.lastOptionID++
	o := &domain.NativeOption{
		ID:         e.lastOptionID,
		Writer:     writer,
		Strike:     new(big.Int).Set(strike),
		PremiumDue: new(big.Int).Set(premiumDue),
		Amount:     new(big.Int).Set(amount),
		Expiration: now.Add(secondsToExpiry),
		Collateral: new(big.Int).Set(value),
		State:      domain.OptionStateWritten,
		Kind:       kind,
	}
	e.nativeOptions[o.ID] = o
	e.mu.Unlock()

	e.publish(events.NativeOptionOpened{
		OptionID:   o.ID,
		Writer:     writer,
		Expiration: o.Expiration,
		Collateral: new(big.Int).Set(value),
		Timestamp:  now,
	})
	return o.ID, nil
}

// BuyNative 购买原生市场期权（buyOption_ETH 的等价物）
//
// value 必须恰好等于应付权利金；权利金直接付给开仓方。
func (e *Engine) BuyNative(buyer common.Address, optionID uint64, value *big.Int) error {
	key := guardKey("native", optionID)
	now := e.nowFn()

	e.mu.Lock()
	o, ok := e.nativeOptions[optionID]
	if !ok {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if o.State != domain.OptionStateWritten {
		e.mu.Unlock()
		if o.State == domain.OptionStateBought {
			return domain.ErrAlreadyBought
		}
		return domain.ErrAlreadyConsumed
	}
	if !now.Before(o.Expiration) {
		e.mu.Unlock()
		return domain.ErrExpired
	}
	if value == nil || value.Cmp(o.PremiumDue) != 0 {
		e.mu.Unlock()
		return domain.ErrWrongValue
	}
	if err := e.acquireGuards(key); err != nil {
		e.mu.Unlock()
		return err
	}
	writer := o.Writer
	premium := new(big.Int).Set(o.PremiumDue)
	e.mu.Unlock()

	if err := e.vault.Transfer(buyer, writer, premium); err != nil {
		e.releaseGuardsLocked(key)
		return transferFailed(err)
	}

	e.mu.Lock()
	o.Buyer = buyer
	o.State = domain.OptionStateBought
	if e.positions[buyer] == nil {
		e.positions[buyer] = make(map[uint64]*big.Int)
	}
	e.positions[buyer][optionID] = new(big.Int).Set(o.Amount)
	e.releaseGuards(key)
	e.mu.Unlock()

	e.publish(events.NativeOptionBought{
		OptionID:  optionID,
		Buyer:     buyer,
		Premium:   premium,
		Timestamp: now,
	})
	return nil
}

// ExerciseNative 行权原生市场期权（exerciseOption_ETH 的等价物）
//
// 赔付 = 内在价值 × 数量 / 结算价（原生单位），从锁定保证金支付；
// 剩余保证金退还开仓方，状态机一步到 Exercised 终态。
func (e *Engine) ExerciseNative(caller common.Address, optionID uint64) error {
	key := guardKey("native", optionID)
	now := e.nowFn()

	e.mu.Lock()
	o, ok := e.nativeOptions[optionID]
	if !ok {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if o.State == domain.OptionStateExercised {
		e.mu.Unlock()
		return domain.ErrAlreadyExercised
	}
	if o.State == domain.OptionStateExpiredWorthless || o.State == domain.OptionStateReclaimed {
		e.mu.Unlock()
		return domain.ErrExpired
	}
	if o.State != domain.OptionStateBought || o.Buyer != caller {
		e.mu.Unlock()
		return domain.ErrUnauthorized
	}
	if now.After(o.Expiration) {
		e.mu.Unlock()
		return domain.ErrExpired
	}
	e.mu.Unlock()

	price, err := e.oracle.SettlementPrice(now)
	if err != nil {
		return err
	}

	e.mu.Lock()
	// 锁放开期间状态可能被推进；守卫占用前重查终态
	if o.State != domain.OptionStateBought {
		e.mu.Unlock()
		return domain.ErrAlreadyExercised
	}
	if err := e.acquireGuards(key); err != nil {
		e.mu.Unlock()
		return err
	}
	intrinsic := intrinsicPerUnit(o.Kind, o.Strike, price)
	payout, refund := splitCollateral(intrinsic, o.Amount, price, o.Collateral)
	mover := vaultMover{vault: e.vault, buyer: o.Buyer, writer: o.Writer}
	e.mu.Unlock()

	if err := settleCollateral(mover, payout, refund); err != nil {
		e.releaseGuardsLocked(key)
		return err
	}

	e.mu.Lock()
	o.Collateral = new(big.Int)
	o.State = domain.OptionStateExercised
	e.clearPosition(o.Buyer, optionID)
	e.releaseGuards(key)
	e.mu.Unlock()

	e.publish(events.NativeOptionExercised{
		OptionID:  optionID,
		Buyer:     caller,
		Payout:    payout,
		Refund:    refund,
		Timestamp: now,
	})
	return nil
}

// ExpireWorthless 到期作废（optionExpiresWorthless_ETH 的等价物）
//
// 任何人都可以在到期后对价外的已购期权触发：保证金全额释放给开仓方。
func (e *Engine) ExpireWorthless(optionID uint64) error {
	key := guardKey("native", optionID)
	now := e.nowFn()

	e.mu.Lock()
	o, ok := e.nativeOptions[optionID]
	if !ok {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if o.State != domain.OptionStateBought {
		e.mu.Unlock()
		if o.State.Terminal() {
			return domain.ErrAlreadyConsumed
		}
		return domain.ErrInvalidTerms
	}
	if !now.After(o.Expiration) {
		e.mu.Unlock()
		return domain.ErrNotExpired
	}
	e.mu.Unlock()

	// 价内期权不允许作废路径（买方的结算权归 retrieveExpiredFunds 的没收规则处理）
	price, err := e.oracle.SettlementPrice(now)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if o.State != domain.OptionStateBought {
		e.mu.Unlock()
		return domain.ErrAlreadyConsumed
	}
	if intrinsicPerUnit(o.Kind, o.Strike, price).Sign() > 0 {
		e.mu.Unlock()
		return domain.ErrInvalidTerms
	}
	if err := e.acquireGuards(key); err != nil {
		e.mu.Unlock()
		return err
	}
	released := new(big.Int).Set(o.Collateral)
	writer := o.Writer
	buyer := o.Buyer
	e.mu.Unlock()

	if err := e.vault.Transfer(engineAccount, writer, released); err != nil {
		e.releaseGuardsLocked(key)
		return transferFailed(err)
	}

	e.mu.Lock()
	o.Collateral = new(big.Int)
	o.State = domain.OptionStateExpiredWorthless
	e.clearPosition(buyer, optionID)
	e.releaseGuards(key)
	e.mu.Unlock()

	e.publish(events.NativeOptionExpiredWorthless{
		OptionID:  optionID,
		Writer:    writer,
		Released:  released,
		Timestamp: now,
	})
	return nil
}

// RetrieveExpiredFunds 开仓方回收保证金（retrieveExpiredFunds_ETH 的等价物）
//
// 两种情形：
//  1. 从未售出且已到期：Written → Reclaimed
//  2. 已购买但买方逾期未行权（没收路径）：Bought → ExpiredWorthless
//
// 终态期权的剩余保证金恒为零（结算即时清算），重复回收返回 AlreadyConsumed。
func (e *Engine) RetrieveExpiredFunds(caller common.Address, optionID uint64) error {
	key := guardKey("native", optionID)
	now := e.nowFn()

	e.mu.Lock()
	o, ok := e.nativeOptions[optionID]
	if !ok {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if o.Writer != caller {
		e.mu.Unlock()
		return domain.ErrUnauthorized
	}
	if o.State.Terminal() {
		e.mu.Unlock()
		return domain.ErrAlreadyConsumed
	}
	if !now.After(o.Expiration) {
		e.mu.Unlock()
		return domain.ErrNotExpired
	}
	if err := e.acquireGuards(key); err != nil {
		e.mu.Unlock()
		return err
	}
	value := new(big.Int).Set(o.Collateral)
	wasBought := o.State == domain.OptionStateBought
	buyer := o.Buyer
	e.mu.Unlock()

	if err := e.vault.Transfer(engineAccount, caller, value); err != nil {
		e.releaseGuardsLocked(key)
		return transferFailed(err)
	}

	e.mu.Lock()
	o.Collateral = new(big.Int)
	if wasBought {
		o.State = domain.OptionStateExpiredWorthless
		e.clearPosition(buyer, optionID)
	} else {
		o.State = domain.OptionStateReclaimed
	}
	e.releaseGuards(key)
	e.mu.Unlock()

	e.publish(events.NativeFundsRetrieved{
		OptionID:  optionID,
		Writer:    caller,
		Value:     value,
		Timestamp: now,
	})
	return nil
}

// clearPosition 终态清除仓位索引（调用方持写锁）
func (e *Engine) clearPosition(trader common.Address, optionID uint64) {
	if m, ok := e.positions[trader]; ok {
		delete(m, optionID)
		if len(m) == 0 {
			delete(e.positions, trader)
		}
	}
}

// NativeOption 按 id 查询原生市场期权（返回拷贝）
func (e *Engine) NativeOption(id uint64) (*domain.NativeOption, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.nativeOptions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

// TradersPosition 查询仓位索引（tradersPosition_ETH 的等价物）
func (e *Engine) TradersPosition(trader common.Address, optionID uint64) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if m, ok := e.positions[trader]; ok {
		if v, ok := m[optionID]; ok {
			return new(big.Int).Set(v)
		}
	}
	return new(big.Int)
}

// LastOptionID 最近一次分配的原生期权 id
func (e *Engine) LastOptionID() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastOptionID
}
