package oracle

import (
	"math/big"
	"sync"
	"time"

	"github.com/betbot/derivaoption/internal/domain"
)

// PriceDecimals 预言机报价定点精度（Chainlink 聚合器惯例：1e8）
const PriceDecimals = 8

// priceScale = 10^PriceDecimals
var priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(PriceDecimals), nil)

// PriceScale 返回报价定点比例（1e8）的拷贝
func PriceScale() *big.Int {
	return new(big.Int).Set(priceScale)
}

// Round 一轮报价
type Round struct {
	RoundID   uint64    `json:"round_id"`   // 轮次 id（递增）
	Answer    *big.Int  `json:"answer"`     // 报价（1e8 定点）
	UpdatedAt time.Time `json:"updated_at"` // 发布时间
}

// Clone 返回深拷贝
func (r Round) Clone() Round {
	c := r
	c.Answer = new(big.Int).Set(r.Answer)
	return c
}

// PriceSource 轮次化价格源
type PriceSource interface {
	// LatestRound 最新一轮报价，无数据时返回 domain.ErrStalePrice
	LatestRound() (Round, error)
	// RoundByID 按轮次查询
	RoundByID(id uint64) (Round, error)
}

// RoundStore 内存轮次存储（MockV3Aggregator 语义）
//
// 由外部喂价器（websocket 订阅 / REST 快照 / 测试）调用 UpdateAnswer 推进轮次。
type RoundStore struct {
	mu     sync.RWMutex
	rounds []Round
	nowFn  func() time.Time
}

// NewRoundStore 创建空存储
func NewRoundStore() *RoundStore {
	return &RoundStore{nowFn: time.Now}
}

// NewRoundStoreWithClock 创建使用指定时钟的存储（测试用）
func NewRoundStoreWithClock(nowFn func() time.Time) *RoundStore {
	return &RoundStore{nowFn: nowFn}
}

// UpdateAnswer 发布新一轮报价，返回轮次 id
func (s *RoundStore) UpdateAnswer(answer *big.Int) (uint64, error) {
	if answer == nil || answer.Sign() <= 0 {
		return 0, domain.ErrInvalidTerms
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Round{
		RoundID:   uint64(len(s.rounds)) + 1,
		Answer:    new(big.Int).Set(answer),
		UpdatedAt: s.nowFn(),
	}
	s.rounds = append(s.rounds, r)
	return r.RoundID, nil
}

// LatestRound 最新一轮
func (s *RoundStore) LatestRound() (Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.rounds) == 0 {
		return Round{}, domain.ErrStalePrice
	}
	return s.rounds[len(s.rounds)-1].Clone(), nil
}

// RoundByID 按轮次查询
func (s *RoundStore) RoundByID(id uint64) (Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == 0 || id > uint64(len(s.rounds)) {
		return Round{}, domain.ErrNotFound
	}
	return s.rounds[id-1].Clone(), nil
}
