package engine

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/betbot/derivaoption/internal/domain"
)

// writePut 开一个标准看跌：行权价 1900，权利金 50，数量 1000，24 小时到期
//
// 开仓价 2000 时所需保证金 = 1900×1000/2000 = 950
func (f *fixture) writePut(t *testing.T) uint64 {
	t.Helper()
	f.vault.Deposit(testSeller, big.NewInt(100_000))
	id, err := f.eng.WriteNative(testSeller, px(1900), big.NewInt(50), big.NewInt(1_000), 24*time.Hour, false, big.NewInt(950))
	if err != nil {
		t.Fatalf("原生开仓失败: %v", err)
	}
	return id
}

func TestWriteNative_CollateralRequirement(t *testing.T) {
	f := newFixture(t)
	f.vault.Deposit(testSeller, big.NewInt(100_000))

	// 看跌：950 才够，949 不足
	if _, err := f.eng.WriteNative(testSeller, px(1900), big.NewInt(50), big.NewInt(1_000), time.Hour, false, big.NewInt(949)); !errors.Is(err, domain.ErrWrongValue) {
		t.Fatalf("保证金不足 got=%v want=ErrWrongValue", err)
	}
	if _, err := f.eng.WriteNative(testSeller, px(1900), big.NewInt(50), big.NewInt(1_000), time.Hour, false, big.NewInt(950)); err != nil {
		t.Fatalf("足额保证金开仓失败: %v", err)
	}

	// 看涨：保证金即数量本身
	if _, err := f.eng.WriteNative(testSeller, px(2100), big.NewInt(50), big.NewInt(1_000), time.Hour, true, big.NewInt(999)); !errors.Is(err, domain.ErrWrongValue) {
		t.Fatalf("看涨保证金不足 got=%v want=ErrWrongValue", err)
	}
	id, err := f.eng.WriteNative(testSeller, px(2100), big.NewInt(50), big.NewInt(1_000), time.Hour, true, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("看涨开仓失败: %v", err)
	}

	o, err := f.eng.NativeOption(id)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if o.State != domain.OptionStateWritten || o.Collateral.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("开仓状态错误: state=%s collateral=%s", o.State, o.Collateral)
	}
}

func TestWriteNative_Validation(t *testing.T) {
	f := newFixture(t)
	f.vault.Deposit(testSeller, big.NewInt(100_000))

	if _, err := f.eng.WriteNative(testSeller, new(big.Int), big.NewInt(1), big.NewInt(10), time.Hour, true, big.NewInt(10)); !errors.Is(err, domain.ErrInvalidTerms) {
		t.Fatalf("零行权价 got=%v want=ErrInvalidTerms", err)
	}
	if _, err := f.eng.WriteNative(testSeller, px(2000), big.NewInt(1), big.NewInt(10), time.Hour, true, new(big.Int)); !errors.Is(err, domain.ErrWrongValue) {
		t.Fatalf("零附带金额 got=%v want=ErrWrongValue", err)
	}
	// 金库余额不足
	if _, err := f.eng.WriteNative(testBuyer, px(2000), big.NewInt(1), big.NewInt(10), time.Hour, true, big.NewInt(10)); !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("金库余额不足 got=%v want=ErrTransferFailed", err)
	}
	if f.eng.LastOptionID() != 0 {
		t.Fatalf("失败开仓不应分配 id: last=%d", f.eng.LastOptionID())
	}
}

func TestBuyNative(t *testing.T) {
	f := newFixture(t)
	id := f.writePut(t)
	f.vault.Deposit(testBuyer, big.NewInt(10_000))

	// 权利金必须分毫不差
	if err := f.eng.BuyNative(testBuyer, id, big.NewInt(49)); !errors.Is(err, domain.ErrWrongValue) {
		t.Fatalf("权利金不足 got=%v want=ErrWrongValue", err)
	}
	if err := f.eng.BuyNative(testBuyer, id, big.NewInt(51)); !errors.Is(err, domain.ErrWrongValue) {
		t.Fatalf("权利金超额 got=%v want=ErrWrongValue", err)
	}

	writerBefore := f.vault.Balance(testSeller)
	if err := f.eng.BuyNative(testBuyer, id, big.NewInt(50)); err != nil {
		t.Fatalf("购买失败: %v", err)
	}
	// 权利金直接付给开仓方
	if got := new(big.Int).Sub(f.vault.Balance(testSeller), writerBefore); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("开仓方收到权利金 got=%s want=50", got)
	}
	if got := f.eng.TradersPosition(testBuyer, id); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("买方持仓 got=%s want=1000", got)
	}

	// 重复购买
	if err := f.eng.BuyNative(testOther, id, big.NewInt(50)); !errors.Is(err, domain.ErrAlreadyBought) {
		t.Fatalf("重复购买 got=%v want=ErrAlreadyBought", err)
	}
}

func TestBuyNative_Expired(t *testing.T) {
	f := newFixture(t)
	id := f.writePut(t)
	f.vault.Deposit(testBuyer, big.NewInt(10_000))

	f.clock.Advance(25 * time.Hour)
	if err := f.eng.BuyNative(testBuyer, id, big.NewInt(50)); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("到期购买 got=%v want=ErrExpired", err)
	}
}

func TestExerciseNative_InTheMoneyPut(t *testing.T) {
	f := newFixture(t)
	id := f.writePut(t)
	f.vault.Deposit(testBuyer, big.NewInt(10_000))
	if err := f.eng.BuyNative(testBuyer, id, big.NewInt(50)); err != nil {
		t.Fatalf("购买失败: %v", err)
	}

	buyerBefore := f.vault.Balance(testBuyer)
	writerBefore := f.vault.Balance(testSeller)

	// 看跌价内：价格跌到 1800，单位内在价值 100，payout = 100×1000/1800 = 55
	f.setPrice(t, 1800)
	if err := f.eng.ExerciseNative(testBuyer, id); err != nil {
		t.Fatalf("行权失败: %v", err)
	}

	payout := new(big.Int).Sub(f.vault.Balance(testBuyer), buyerBefore)
	refund := new(big.Int).Sub(f.vault.Balance(testSeller), writerBefore)
	if payout.Cmp(big.NewInt(55)) != 0 {
		t.Fatalf("买方赔付 got=%s want=55", payout)
	}
	// 守恒：payout + refund = 950
	if total := new(big.Int).Add(payout, refund); total.Cmp(big.NewInt(950)) != 0 {
		t.Fatalf("结算守恒被破坏: payout+refund=%s want=950", total)
	}

	o, _ := f.eng.NativeOption(id)
	if o.State != domain.OptionStateExercised || o.Collateral.Sign() != 0 {
		t.Fatalf("行权后状态错误: state=%s collateral=%s", o.State, o.Collateral)
	}
	// 仓位索引清除
	if got := f.eng.TradersPosition(testBuyer, id); got.Sign() != 0 {
		t.Fatalf("行权后仓位应清零: got=%s", got)
	}

	if err := f.eng.ExerciseNative(testBuyer, id); !errors.Is(err, domain.ErrAlreadyExercised) {
		t.Fatalf("重复行权 got=%v want=ErrAlreadyExercised", err)
	}
}

func TestExerciseNative_PayoutCappedAtCollateral(t *testing.T) {
	f := newFixture(t)
	f.vault.Deposit(testSeller, big.NewInt(100_000))
	f.vault.Deposit(testBuyer, big.NewInt(10_000))

	// 极端下跌时赔付以锁定保证金为上限
	id, err := f.eng.WriteNative(testSeller, px(1900), big.NewInt(50), big.NewInt(1_000), 24*time.Hour, false, big.NewInt(950))
	if err != nil {
		t.Fatalf("开仓失败: %v", err)
	}
	if err := f.eng.BuyNative(testBuyer, id, big.NewInt(50)); err != nil {
		t.Fatalf("购买失败: %v", err)
	}

	buyerBefore := f.vault.Balance(testBuyer)
	f.setPrice(t, 100)
	if err := f.eng.ExerciseNative(testBuyer, id); err != nil {
		t.Fatalf("行权失败: %v", err)
	}
	payout := new(big.Int).Sub(f.vault.Balance(testBuyer), buyerBefore)
	if payout.Cmp(big.NewInt(950)) != 0 {
		t.Fatalf("封顶赔付 got=%s want=950", payout)
	}
}

func TestExerciseNative_Errors(t *testing.T) {
	f := newFixture(t)
	id := f.writePut(t)
	f.vault.Deposit(testBuyer, big.NewInt(10_000))

	// 未售出不可行权
	if err := f.eng.ExerciseNative(testBuyer, id); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("未售出行权 got=%v want=ErrUnauthorized", err)
	}

	if err := f.eng.BuyNative(testBuyer, id, big.NewInt(50)); err != nil {
		t.Fatalf("购买失败: %v", err)
	}
	// 只有买方能行权
	if err := f.eng.ExerciseNative(testOther, id); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("非买方行权 got=%v want=ErrUnauthorized", err)
	}

	f.clock.Advance(25 * time.Hour)
	f.setPrice(t, 1800)
	if err := f.eng.ExerciseNative(testBuyer, id); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("到期后行权 got=%v want=ErrExpired", err)
	}
}

func TestExpireWorthless(t *testing.T) {
	f := newFixture(t)
	id := f.writePut(t)
	f.vault.Deposit(testBuyer, big.NewInt(10_000))
	if err := f.eng.BuyNative(testBuyer, id, big.NewInt(50)); err != nil {
		t.Fatalf("购买失败: %v", err)
	}

	// 到期前不可作废
	if err := f.eng.ExpireWorthless(id); !errors.Is(err, domain.ErrNotExpired) {
		t.Fatalf("到期前作废 got=%v want=ErrNotExpired", err)
	}

	f.clock.Advance(25 * time.Hour)

	// 价内不可作废
	f.setPrice(t, 1800)
	if err := f.eng.ExpireWorthless(id); !errors.Is(err, domain.ErrInvalidTerms) {
		t.Fatalf("价内作废 got=%v want=ErrInvalidTerms", err)
	}

	// 价外：任何人都可触发，保证金全额释放给开仓方
	f.setPrice(t, 2000)
	writerBefore := f.vault.Balance(testSeller)
	if err := f.eng.ExpireWorthless(id); err != nil {
		t.Fatalf("作废失败: %v", err)
	}
	if got := new(big.Int).Sub(f.vault.Balance(testSeller), writerBefore); got.Cmp(big.NewInt(950)) != 0 {
		t.Fatalf("释放保证金 got=%s want=950", got)
	}

	o, _ := f.eng.NativeOption(id)
	if o.State != domain.OptionStateExpiredWorthless {
		t.Fatalf("作废后状态 got=%s want=expired_worthless", o.State)
	}
	if got := f.eng.TradersPosition(testBuyer, id); got.Sign() != 0 {
		t.Fatalf("作废后仓位应清零: got=%s", got)
	}
	if err := f.eng.ExpireWorthless(id); !errors.Is(err, domain.ErrAlreadyConsumed) {
		t.Fatalf("重复作废 got=%v want=ErrAlreadyConsumed", err)
	}
}

func TestExpireWorthless_WrittenStateRejected(t *testing.T) {
	f := newFixture(t)
	id := f.writePut(t)

	f.clock.Advance(25 * time.Hour)
	// 未售出的期权走 RetrieveExpiredFunds，不走作废
	if err := f.eng.ExpireWorthless(id); !errors.Is(err, domain.ErrInvalidTerms) {
		t.Fatalf("未售出作废 got=%v want=ErrInvalidTerms", err)
	}
}

func TestRetrieveExpiredFunds_NeverSold(t *testing.T) {
	f := newFixture(t)
	id := f.writePut(t)

	if err := f.eng.RetrieveExpiredFunds(testSeller, id); !errors.Is(err, domain.ErrNotExpired) {
		t.Fatalf("到期前回收 got=%v want=ErrNotExpired", err)
	}

	f.clock.Advance(25 * time.Hour)
	if err := f.eng.RetrieveExpiredFunds(testBuyer, id); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("非开仓方回收 got=%v want=ErrUnauthorized", err)
	}

	writerBefore := f.vault.Balance(testSeller)
	if err := f.eng.RetrieveExpiredFunds(testSeller, id); err != nil {
		t.Fatalf("回收失败: %v", err)
	}
	if got := new(big.Int).Sub(f.vault.Balance(testSeller), writerBefore); got.Cmp(big.NewInt(950)) != 0 {
		t.Fatalf("回收金额 got=%s want=950", got)
	}

	o, _ := f.eng.NativeOption(id)
	if o.State != domain.OptionStateReclaimed {
		t.Fatalf("回收后状态 got=%s want=reclaimed", o.State)
	}
	if err := f.eng.RetrieveExpiredFunds(testSeller, id); !errors.Is(err, domain.ErrAlreadyConsumed) {
		t.Fatalf("重复回收 got=%v want=ErrAlreadyConsumed", err)
	}
}

func TestRetrieveExpiredFunds_BuyerForfeited(t *testing.T) {
	f := newFixture(t)
	id := f.writePut(t)
	f.vault.Deposit(testBuyer, big.NewInt(10_000))
	if err := f.eng.BuyNative(testBuyer, id, big.NewInt(50)); err != nil {
		t.Fatalf("购买失败: %v", err)
	}

	// 买方逾期未行权：开仓方没收全部保证金
	f.clock.Advance(25 * time.Hour)
	writerBefore := f.vault.Balance(testSeller)
	if err := f.eng.RetrieveExpiredFunds(testSeller, id); err != nil {
		t.Fatalf("没收失败: %v", err)
	}
	if got := new(big.Int).Sub(f.vault.Balance(testSeller), writerBefore); got.Cmp(big.NewInt(950)) != 0 {
		t.Fatalf("没收金额 got=%s want=950", got)
	}

	o, _ := f.eng.NativeOption(id)
	if o.State != domain.OptionStateExpiredWorthless {
		t.Fatalf("没收后状态 got=%s want=expired_worthless", o.State)
	}
	if got := f.eng.TradersPosition(testBuyer, id); got.Sign() != 0 {
		t.Fatalf("没收后仓位应清零: got=%s", got)
	}
	// 没收后买方不能再行权
	f.setPrice(t, 1800)
	if err := f.eng.ExerciseNative(testBuyer, id); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("没收后行权 got=%v want=ErrExpired", err)
	}
}

// 金库总量守恒：完整生命周期前后所有账户余额之和不变
func TestNativeLifecycle_VaultConservation(t *testing.T) {
	f := newFixture(t)
	f.vault.Deposit(testSeller, big.NewInt(100_000))
	f.vault.Deposit(testBuyer, big.NewInt(10_000))

	total := func() *big.Int {
		sum := new(big.Int)
		sum.Add(sum, f.vault.Balance(testSeller))
		sum.Add(sum, f.vault.Balance(testBuyer))
		sum.Add(sum, f.vault.Balance(f.eng.Account()))
		return sum
	}
	before := total()

	id, err := f.eng.WriteNative(testSeller, px(1900), big.NewInt(50), big.NewInt(1_000), 24*time.Hour, false, big.NewInt(950))
	if err != nil {
		t.Fatalf("开仓失败: %v", err)
	}
	if err := f.eng.BuyNative(testBuyer, id, big.NewInt(50)); err != nil {
		t.Fatalf("购买失败: %v", err)
	}
	f.setPrice(t, 1700)
	if err := f.eng.ExerciseNative(testBuyer, id); err != nil {
		t.Fatalf("行权失败: %v", err)
	}

	if after := total(); after.Cmp(before) != 0 {
		t.Fatalf("金库总量不守恒: before=%s after=%s", before, after)
	}
	// 托管账户清零
	if got := f.vault.Balance(f.eng.Account()); got.Sign() != 0 {
		t.Fatalf("结算后托管余额应为零: got=%s", got)
	}
}
