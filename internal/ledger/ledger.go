package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger 通用可替代资产账本（ERC20 语义的外部协作者抽象）
//
// 引擎只依赖余额/授权/划转三类原语；实现可以是内存台账（测试与演示）
// 或真实代币合约的 RPC 适配层。所有金额均为代币最小单位的非负整数。
type Ledger interface {
	// BalanceOf 查询余额（返回拷贝）
	BalanceOf(token, owner common.Address) *big.Int
	// Allowance 查询授权额度（返回拷贝）
	Allowance(token, owner, spender common.Address) *big.Int
	// Approve 设置授权额度（覆盖式，非累加）
	Approve(token, owner, spender common.Address, amount *big.Int) error
	// Transfer 直接划转，余额不足返回 domain.ErrInsufficientBalance
	Transfer(token, from, to common.Address, amount *big.Int) error
	// TransferFrom 凭授权划转，额度不足返回 domain.ErrInsufficientApproval
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
}
