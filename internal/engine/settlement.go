package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/derivaoption/internal/domain"
	"github.com/betbot/derivaoption/internal/ledger"
)

// 结算数学：两个市场共用。
//
// 定点约定（见 DESIGN.md）：
//   - 价格/行权价为报价货币的 1e8 定点数（Chainlink 聚合器口径）
//   - 数量/保证金为资产最小单位的整数
//   - 单位内在价值 intrinsic 为 1e8 定点的报价货币数
//   - 以保证金资产支付时换算：payout = intrinsic × amount / price
//     并以锁定保证金为上限，保证 payout + refund == collateral 恒等。

// intrinsicPerUnit 单位内在价值
//
//	看涨：max(price − strike, 0)
//	看跌：max(strike − price, 0)
func intrinsicPerUnit(kind domain.OptionKind, strike, price *big.Int) *big.Int {
	var v *big.Int
	if kind.IsCall() {
		v = new(big.Int).Sub(price, strike)
	} else {
		v = new(big.Int).Sub(strike, price)
	}
	if v.Sign() < 0 {
		return new(big.Int)
	}
	return v
}

// splitCollateral 把锁定保证金切分为买方赔付与开仓方退款
//
// payout = intrinsic × amount / price（保证金资产单位），上限为 collateral；
// refund = collateral − payout。返回的两个值均为新分配的对象。
func splitCollateral(intrinsic, amount, price, collateral *big.Int) (payout, refund *big.Int) {
	payout = new(big.Int)
	if intrinsic.Sign() > 0 && price.Sign() > 0 {
		payout.Mul(intrinsic, amount)
		payout.Quo(payout, price)
	}
	if payout.Cmp(collateral) > 0 {
		payout.Set(collateral)
	}
	refund = new(big.Int).Sub(collateral, payout)
	return payout, refund
}

// collateralMover 结算时的资产划转能力
//
// 通用市场用代币账本从托管账户划转，原生市场用金库划转；
// 状态机与结算数学对两者完全一致。reverse 方向仅用于
// 批量行权中途失败时撤销已完成的赔付/退款。
type collateralMover interface {
	payBuyer(amount *big.Int) error
	refundWriter(amount *big.Int) error
	reverseBuyer(amount *big.Int) error
	reverseWriter(amount *big.Int) error
}

// ledgerMover 通用市场划转（代币账本）
type ledgerMover struct {
	ledger ledger.Ledger
	token  common.Address
	buyer  common.Address
	seller common.Address
}

func (m ledgerMover) payBuyer(amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return m.ledger.Transfer(m.token, engineAccount, m.buyer, amount)
}

func (m ledgerMover) refundWriter(amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return m.ledger.Transfer(m.token, engineAccount, m.seller, amount)
}

func (m ledgerMover) reverseBuyer(amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return m.ledger.Transfer(m.token, m.buyer, engineAccount, amount)
}

func (m ledgerMover) reverseWriter(amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return m.ledger.Transfer(m.token, m.seller, engineAccount, amount)
}

// vaultMover 原生市场划转（金库）
type vaultMover struct {
	vault  *ledger.NativeVault
	buyer  common.Address
	writer common.Address
}

func (m vaultMover) payBuyer(amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return m.vault.Transfer(engineAccount, m.buyer, amount)
}

func (m vaultMover) refundWriter(amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return m.vault.Transfer(engineAccount, m.writer, amount)
}

func (m vaultMover) reverseBuyer(amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return m.vault.Transfer(m.buyer, engineAccount, amount)
}

func (m vaultMover) reverseWriter(amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return m.vault.Transfer(m.writer, engineAccount, amount)
}

// settleCollateral 执行赔付+退款，失败时撤销已完成的一半
func settleCollateral(m collateralMover, payout, refund *big.Int) error {
	if err := m.payBuyer(payout); err != nil {
		return transferFailed(err)
	}
	if err := m.refundWriter(refund); err != nil {
		_ = m.reverseBuyer(payout)
		return transferFailed(err)
	}
	return nil
}

// unsettleCollateral 撤销一次已完成的结算（批量行权的回滚路径）
func unsettleCollateral(m collateralMover, payout, refund *big.Int) {
	_ = m.reverseBuyer(payout)
	_ = m.reverseWriter(refund)
}
