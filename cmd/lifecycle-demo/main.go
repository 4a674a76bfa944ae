package main

import (
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/derivaoption/internal/domain"
	"github.com/betbot/derivaoption/internal/engine"
	"github.com/betbot/derivaoption/internal/events"
	"github.com/betbot/derivaoption/internal/ledger"
	"github.com/betbot/derivaoption/internal/oracle"
	"github.com/betbot/derivaoption/internal/registry"
)

// demoClock 可手动推进的时钟，用来演示到期前后的行为差异
type demoClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *demoClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *demoClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func price(v int64) *big.Int {
	// 1e8 定点价格
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(100_000_000))
}

func main() {
	clock := &demoClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	var (
		dai    = common.HexToAddress("0x00000000000000000000000000000000000d0a01")
		weth   = common.HexToAddress("0x0000000000000000000000000000000000e70001")
		seller = common.HexToAddress("0x0000000000000000000000000000000000000a11")
		buyer  = common.HexToAddress("0x0000000000000000000000000000000000000b22")
		writer = common.HexToAddress("0x0000000000000000000000000000000000000c33")
		taker  = common.HexToAddress("0x0000000000000000000000000000000000000d44")
	)

	reg := registry.New()
	reg.Activate(weth)

	tokenLedger := ledger.NewInMemoryLedger()
	vault := ledger.NewNativeVault()
	rounds := oracle.NewRoundStoreWithClock(clock.Now)
	adapter := oracle.NewAdapter(rounds, 24*time.Hour)
	bus := events.NewBus()
	bus.Subscribe(func(e events.Event) {
		log.Printf("📣 事件: %s", e.Name())
	})

	eng, err := engine.New(engine.Config{
		Registry:   reg,
		Ledger:     tokenLedger,
		Vault:      vault,
		Oracle:     adapter,
		Bus:        bus,
		QuoteToken: dai,
		Now:        clock.Now,
	})
	if err != nil {
		log.Fatalf("❌ 装配引擎失败: %v", err)
	}

	// 初始资金：卖方持有标的，买方持有报价币并授权引擎托管账户
	tokenLedger.Mint(weth, seller, big.NewInt(10_000))
	tokenLedger.Mint(dai, buyer, big.NewInt(1_000_000))
	if err := tokenLedger.Approve(weth, seller, eng.Account(), big.NewInt(10_000)); err != nil {
		log.Fatalf("❌ 卖方授权失败: %v", err)
	}
	if err := tokenLedger.Approve(dai, buyer, eng.Account(), big.NewInt(1_000_000)); err != nil {
		log.Fatalf("❌ 买方授权失败: %v", err)
	}

	if _, err := rounds.UpdateAnswer(price(2000)); err != nil {
		log.Fatalf("❌ 喂价失败: %v", err)
	}

	// ── 通用市场：挂单 → 购买 → 权益转移 → 行权 ──
	log.Println("🚀 通用市场生命周期")

	offerID, err := eng.CreateOffer(seller, weth, domain.OptionKindCall, price(2100), big.NewInt(5), 48*time.Hour, big.NewInt(1_000))
	if err != nil {
		log.Fatalf("❌ 挂单失败: %v", err)
	}
	log.Printf("✅ 卖方挂出看涨报价 offer=%d 行权价=%s", offerID, price(2100))

	terms := domain.OfferTerms{Token: weth, Kind: domain.OptionKindCall, Strike: price(2100), Premium: big.NewInt(5), Expiry: clock.Now().Add(48 * time.Hour)}
	log.Printf("📗 卖方订单簿可成交量: %s", eng.QueryOrderbook(seller, terms))

	purchaseID, err := eng.BuyOptionByID(buyer, offerID, big.NewInt(400))
	if err != nil {
		log.Fatalf("❌ 购买失败: %v", err)
	}
	log.Printf("✅ 买方成交 purchase=%d 买方权益=%s", purchaseID, eng.ClaimOf(purchaseID, buyer))

	// 买方把一半权益授权给 taker 并由其划走
	if err := eng.Approve(buyer, taker, purchaseID, big.NewInt(200)); err != nil {
		log.Fatalf("❌ 授权失败: %v", err)
	}
	if err := eng.TransferFrom(taker, buyer, taker, big.NewInt(200), purchaseID); err != nil {
		log.Fatalf("❌ 权益划转失败: %v", err)
	}
	log.Printf("✅ taker 接手权益=%s", eng.ClaimOf(purchaseID, taker))

	// 价格上涨，买方行权
	if _, err := rounds.UpdateAnswer(price(2400)); err != nil {
		log.Fatalf("❌ 喂价失败: %v", err)
	}
	if err := eng.Exercise(buyer, purchaseID); err != nil {
		log.Fatalf("❌ 行权失败: %v", err)
	}
	log.Printf("✅ 行权完成 买方标的余额=%s 卖方标的余额=%s",
		tokenLedger.BalanceOf(weth, buyer), tokenLedger.BalanceOf(weth, seller))

	// 到期后卖方撤回剩余挂单
	clock.Advance(72 * time.Hour)
	if err := eng.CancelOffer(seller, offerID); err != nil {
		log.Fatalf("❌ 撤单失败: %v", err)
	}
	log.Printf("✅ 撤单后卖方标的余额=%s", tokenLedger.BalanceOf(weth, seller))

	// ── 原生市场：开仓 → 买入 → 到期作废 → 取回 ──
	log.Println("🚀 原生市场生命周期")

	if _, err := rounds.UpdateAnswer(price(2000)); err != nil {
		log.Fatalf("❌ 喂价失败: %v", err)
	}
	vault.Deposit(writer, big.NewInt(100_000))
	vault.Deposit(taker, big.NewInt(10_000))

	optionID, err := eng.WriteNative(writer, price(1900), big.NewInt(50), big.NewInt(1_000), 24*time.Hour, false, big.NewInt(950))
	if err != nil {
		log.Fatalf("❌ 原生开仓失败: %v", err)
	}
	log.Printf("✅ 开出看跌期权 option=%d", optionID)

	if err := eng.BuyNative(taker, optionID, big.NewInt(50)); err != nil {
		log.Fatalf("❌ 原生买入失败: %v", err)
	}
	log.Printf("✅ taker 买入 持仓=%s", eng.TradersPosition(taker, optionID))

	// 价格始终高于行权价，到期后任何人都可宣告作废
	clock.Advance(25 * time.Hour)
	if err := eng.ExpireWorthless(optionID); err != nil {
		log.Fatalf("❌ 宣告作废失败: %v", err)
	}
	log.Printf("✅ 期权作废 开仓方金库余额=%s", vault.Balance(writer))

	log.Println("🎉 演示结束")
}
