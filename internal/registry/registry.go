package registry

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TokenRegistry 标的代币激活表
//
// 报价引用的代币必须先激活；未激活的代币创建报价会被拒绝。
type TokenRegistry struct {
	mu        sync.RWMutex
	activated map[common.Address]bool
}

// New 创建空注册表
func New() *TokenRegistry {
	return &TokenRegistry{activated: make(map[common.Address]bool)}
}

// Activate 激活代币
func (r *TokenRegistry) Activate(token common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activated[token] = true
}

// Deactivate 停用代币（已有报价不受影响，仅阻止新报价）
func (r *TokenRegistry) Deactivate(token common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.activated, token)
}

// IsActivated 查询代币是否已激活
func (r *TokenRegistry) IsActivated(token common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activated[token]
}

// List 返回所有已激活代币（按地址排序，结果确定）
func (r *TokenRegistry) List() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.activated))
	for t := range r.activated {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Hex() < out[j].Hex()
	})
	return out
}
