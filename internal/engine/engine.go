package engine

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/derivaoption/internal/domain"
	"github.com/betbot/derivaoption/internal/events"
	"github.com/betbot/derivaoption/internal/ledger"
	"github.com/betbot/derivaoption/internal/oracle"
	"github.com/betbot/derivaoption/internal/registry"
)

// engineAccount 引擎自身的账户地址
//
// 代币托管、原生保证金锁定都记在这个地址名下；
// 买方/卖方对引擎的代币授权也以它为 spender。
var engineAccount = common.BytesToAddress([]byte("derivaoption/escrow"))

// Config 引擎装配配置
type Config struct {
	Registry   *registry.TokenRegistry // 标的代币激活表
	Ledger     ledger.Ledger           // 代币账本（外部协作者）
	Vault      *ledger.NativeVault     // 原生货币金库
	Oracle     *oracle.Adapter         // 结算价格适配器
	Bus        *events.Bus             // 事件总线（可选）
	QuoteToken common.Address          // 权利金结算代币（DAI 类）
	Now        func() time.Time        // 时钟注入，默认 time.Now
}

// Engine 期权生命周期与结算引擎
//
// 两个并行市场共用一把读写锁：修改操作串行提交，只读查询并发执行
// 且通过深拷贝保证快照一致。外部资金划转发生在锁外，
// 受影响 id 由重入守卫独占，提交边界见各操作实现。
type Engine struct {
	mu sync.RWMutex

	registry   *registry.TokenRegistry
	ledger     ledger.Ledger
	vault      *ledger.NativeVault
	oracle     *oracle.Adapter
	bus        *events.Bus
	quoteToken common.Address
	nowFn      func() time.Time

	// 通用市场
	offers    map[uint64]*domain.Offer
	purchases map[uint64]*domain.Purchase
	// 作用域授权表：(owner, designee, purchaseId) -> 额度
	approvals map[approvalKey]*big.Int
	// 仓位权益表：purchaseId -> holder -> 份额（每个仓位份额总和恒等于 Amount）
	claims map[uint64]map[common.Address]*big.Int

	// 原生市场
	nativeOptions map[uint64]*domain.NativeOption
	// 仓位索引：trader -> optionId -> 持有数量（终态清零）
	positions map[common.Address]map[uint64]*big.Int

	lastOrderID    uint64
	lastPurchaseID uint64
	lastOptionID   uint64

	// 重入守卫：资金划转窗口期间被占用的 id
	inflight map[string]struct{}
}

// approvalKey 作用域授权键
type approvalKey struct {
	Owner      common.Address
	Designee   common.Address
	PurchaseID uint64
}

// New 装配引擎
func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil || cfg.Ledger == nil || cfg.Vault == nil || cfg.Oracle == nil {
		return nil, errors.New("engine: registry/ledger/vault/oracle are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	return &Engine{
		registry:      cfg.Registry,
		ledger:        cfg.Ledger,
		vault:         cfg.Vault,
		oracle:        cfg.Oracle,
		bus:           cfg.Bus,
		quoteToken:    cfg.QuoteToken,
		nowFn:         cfg.Now,
		offers:        make(map[uint64]*domain.Offer),
		purchases:     make(map[uint64]*domain.Purchase),
		approvals:     make(map[approvalKey]*big.Int),
		claims:        make(map[uint64]map[common.Address]*big.Int),
		nativeOptions: make(map[uint64]*domain.NativeOption),
		positions:     make(map[common.Address]map[uint64]*big.Int),
		inflight:      make(map[string]struct{}),
	}, nil
}

// Now 引擎时钟（getBlockTimestamp 的等价物）
func (e *Engine) Now() time.Time {
	return e.nowFn()
}

// Account 引擎托管账户地址
func (e *Engine) Account() common.Address {
	return engineAccount
}

// QuoteToken 权利金结算代币地址（getDaiToken 的等价物）
func (e *Engine) QuoteToken() common.Address {
	return e.quoteToken
}

// guardKey 构造守卫键
func guardKey(kind string, id uint64) string {
	return fmt.Sprintf("%s/%d", kind, id)
}

// acquireGuards 占用一组 id（调用方持写锁）
// 任一 id 已被占用时整组失败并返回 ErrReentrantCall。
func (e *Engine) acquireGuards(keys ...string) error {
	for _, k := range keys {
		if _, busy := e.inflight[k]; busy {
			return domain.ErrReentrantCall
		}
	}
	for _, k := range keys {
		e.inflight[k] = struct{}{}
	}
	return nil
}

// releaseGuards 释放一组 id（调用方持写锁）
func (e *Engine) releaseGuards(keys ...string) {
	for _, k := range keys {
		delete(e.inflight, k)
	}
}

// releaseGuardsLocked 加锁释放（资金划转失败的回退路径）
func (e *Engine) releaseGuardsLocked(keys ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseGuards(keys...)
}

// publish 发布事件（在锁外调用）
func (e *Engine) publish(ev events.Event) {
	e.bus.Publish(ev)
}

// transferFailed 把账本错误收敛为 TransferFailed 分类，保留原因
func transferFailed(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
}
