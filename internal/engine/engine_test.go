package engine

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/derivaoption/internal/domain"
	"github.com/betbot/derivaoption/internal/events"
	"github.com/betbot/derivaoption/internal/ledger"
	"github.com/betbot/derivaoption/internal/oracle"
	"github.com/betbot/derivaoption/internal/registry"
)

var (
	testQuote  = common.HexToAddress("0x00000000000000000000000000000000000d0a01")
	testToken  = common.HexToAddress("0x0000000000000000000000000000000000e70001")
	testSeller = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	testBuyer  = common.HexToAddress("0x0000000000000000000000000000000000000b22")
	testOther  = common.HexToAddress("0x0000000000000000000000000000000000000c33")
)

// fakeClock 测试用可推进时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// px 1e8 定点价格
func px(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(100_000_000))
}

type fixture struct {
	clock  *fakeClock
	reg    *registry.TokenRegistry
	ledger *ledger.InMemoryLedger
	vault  *ledger.NativeVault
	rounds *oracle.RoundStore
	bus    *events.Bus
	eng    *Engine
}

// newFixture 装配一个带初始资金的引擎
//
// 预置：testToken 已激活，卖方持 1e6 标的，买方持 1e9 报价币，
// 双方均已对引擎托管账户授权，初始喂价 2000。
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithMaxAge(t, 365*24*time.Hour)
}

// newFixtureWithMaxAge 指定结算价最大时效的装配，用于过期价格路径
func newFixtureWithMaxAge(t *testing.T, maxAge time.Duration) *fixture {
	t.Helper()

	f := &fixture{
		clock:  newFakeClock(),
		reg:    registry.New(),
		ledger: ledger.NewInMemoryLedger(),
		vault:  ledger.NewNativeVault(),
		bus:    events.NewBus(),
	}
	f.rounds = oracle.NewRoundStoreWithClock(f.clock.Now)
	adapter := oracle.NewAdapter(f.rounds, maxAge)

	eng, err := New(Config{
		Registry:   f.reg,
		Ledger:     f.ledger,
		Vault:      f.vault,
		Oracle:     adapter,
		Bus:        f.bus,
		QuoteToken: testQuote,
		Now:        f.clock.Now,
	})
	if err != nil {
		t.Fatalf("装配引擎失败: %v", err)
	}
	f.eng = eng

	f.reg.Activate(testToken)
	f.ledger.Mint(testToken, testSeller, big.NewInt(1_000_000))
	f.ledger.Mint(testQuote, testBuyer, big.NewInt(1_000_000_000))
	f.ledger.Mint(testQuote, testOther, big.NewInt(1_000_000_000))
	for _, owner := range []common.Address{testSeller, testBuyer, testOther} {
		if err := f.ledger.Approve(testToken, owner, eng.Account(), big.NewInt(1_000_000_000)); err != nil {
			t.Fatalf("标的授权失败: %v", err)
		}
		if err := f.ledger.Approve(testQuote, owner, eng.Account(), big.NewInt(1_000_000_000)); err != nil {
			t.Fatalf("报价币授权失败: %v", err)
		}
	}
	f.setPrice(t, 2000)
	return f
}

func (f *fixture) setPrice(t *testing.T, v int64) {
	t.Helper()
	if _, err := f.rounds.UpdateAnswer(px(v)); err != nil {
		t.Fatalf("喂价失败: %v", err)
	}
}

// callOffer 挂一个标准看涨报价：行权价 2100，权利金 5，48 小时后到期，数量 1000
func (f *fixture) callOffer(t *testing.T) uint64 {
	t.Helper()
	id, err := f.eng.CreateOffer(testSeller, testToken, domain.OptionKindCall, px(2100), big.NewInt(5), 48*time.Hour, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("挂单失败: %v", err)
	}
	return id
}
