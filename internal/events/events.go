package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event 引擎通知事件
//
// 每个成功的状态转换恰好发出一个事件；失败的操作不发事件。
// 事件由 UI 层用于展示，由审计索引器持久化为审计轨迹。
type Event interface {
	// Name 事件名称（稳定字符串，索引器按名称归档）
	Name() string
	// At 事件发生时间
	At() time.Time
}

// OfferCreated 报价创建事件
type OfferCreated struct {
	OfferID   uint64         `json:"offer_id"`
	Seller    common.Address `json:"seller"`
	Token     common.Address `json:"token"`
	IsCall    bool           `json:"is_call"`
	Strike    *big.Int       `json:"strike"`
	Premium   *big.Int       `json:"premium"`
	Expiry    time.Time      `json:"expiry"`
	Amount    *big.Int       `json:"amount"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e OfferCreated) Name() string  { return "offer_created" }
func (e OfferCreated) At() time.Time { return e.Timestamp }

// OfferCanceled 报价取消事件
type OfferCanceled struct {
	OfferID   uint64         `json:"offer_id"`
	Seller    common.Address `json:"seller"`
	Refunded  *big.Int       `json:"refunded"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e OfferCanceled) Name() string  { return "offer_canceled" }
func (e OfferCanceled) At() time.Time { return e.Timestamp }

// PurchaseCreated 仓位成交事件
type PurchaseCreated struct {
	PurchaseID uint64         `json:"purchase_id"`
	OfferID    uint64         `json:"offer_id"`
	Buyer      common.Address `json:"buyer"`
	Seller     common.Address `json:"seller"`
	Token      common.Address `json:"token"`
	IsCall     bool           `json:"is_call"`
	Strike     *big.Int       `json:"strike"`
	Premium    *big.Int       `json:"premium"`
	Expiry     time.Time      `json:"expiry"`
	Amount     *big.Int       `json:"amount"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (e PurchaseCreated) Name() string  { return "purchase_created" }
func (e PurchaseCreated) At() time.Time { return e.Timestamp }

// ApprovalChanged 作用域授权变更事件
type ApprovalChanged struct {
	PurchaseID uint64         `json:"purchase_id"`
	Owner      common.Address `json:"owner"`
	Designee   common.Address `json:"designee"`
	Amount     *big.Int       `json:"amount"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (e ApprovalChanged) Name() string  { return "approval_changed" }
func (e ApprovalChanged) At() time.Time { return e.Timestamp }

// ClaimTransferred 仓位权益转移事件
type ClaimTransferred struct {
	PurchaseID uint64         `json:"purchase_id"`
	From       common.Address `json:"from"`
	To         common.Address `json:"to"`
	Amount     *big.Int       `json:"amount"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (e ClaimTransferred) Name() string  { return "claim_transferred" }
func (e ClaimTransferred) At() time.Time { return e.Timestamp }

// PurchaseExercised 通用市场行权事件
type PurchaseExercised struct {
	PurchaseID uint64         `json:"purchase_id"`
	Buyer      common.Address `json:"buyer"`
	Payout     *big.Int       `json:"payout"`
	Refund     *big.Int       `json:"refund"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (e PurchaseExercised) Name() string  { return "purchase_exercised" }
func (e PurchaseExercised) At() time.Time { return e.Timestamp }

// CollateralReclaimed 通用市场到期没收事件（托管标的归还卖方）
type CollateralReclaimed struct {
	PurchaseID uint64         `json:"purchase_id"`
	Seller     common.Address `json:"seller"`
	Amount     *big.Int       `json:"amount"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (e CollateralReclaimed) Name() string  { return "collateral_reclaimed" }
func (e CollateralReclaimed) At() time.Time { return e.Timestamp }

// NativeOptionOpened 原生市场开仓事件
type NativeOptionOpened struct {
	OptionID   uint64         `json:"option_id"`
	Writer     common.Address `json:"writer"`
	Expiration time.Time      `json:"expiration"`
	Collateral *big.Int       `json:"collateral"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (e NativeOptionOpened) Name() string  { return "native_option_opened" }
func (e NativeOptionOpened) At() time.Time { return e.Timestamp }

// NativeOptionBought 原生市场购买事件
type NativeOptionBought struct {
	OptionID  uint64         `json:"option_id"`
	Buyer     common.Address `json:"buyer"`
	Premium   *big.Int       `json:"premium"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e NativeOptionBought) Name() string  { return "native_option_bought" }
func (e NativeOptionBought) At() time.Time { return e.Timestamp }

// NativeOptionExercised 原生市场行权事件
type NativeOptionExercised struct {
	OptionID  uint64         `json:"option_id"`
	Buyer     common.Address `json:"buyer"`
	Payout    *big.Int       `json:"payout"`
	Refund    *big.Int       `json:"refund"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e NativeOptionExercised) Name() string  { return "native_option_exercised" }
func (e NativeOptionExercised) At() time.Time { return e.Timestamp }

// NativeOptionExpiredWorthless 原生市场到期作废事件
type NativeOptionExpiredWorthless struct {
	OptionID  uint64         `json:"option_id"`
	Writer    common.Address `json:"writer"`
	Released  *big.Int       `json:"released"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e NativeOptionExpiredWorthless) Name() string {
	return "native_option_expired_worthless"
}
func (e NativeOptionExpiredWorthless) At() time.Time { return e.Timestamp }

// NativeFundsRetrieved 原生市场保证金回收事件
type NativeFundsRetrieved struct {
	OptionID  uint64         `json:"option_id"`
	Writer    common.Address `json:"writer"`
	Value     *big.Int       `json:"value"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e NativeFundsRetrieved) Name() string  { return "native_funds_retrieved" }
func (e NativeFundsRetrieved) At() time.Time { return e.Timestamp }
