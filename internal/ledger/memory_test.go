package ledger

import (
	"errors"
	"math/big"
	"testing"
	"testing/quick"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/derivaoption/internal/domain"
)

var (
	tok   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func TestMintAndTransfer(t *testing.T) {
	l := NewInMemoryLedger()
	l.Mint(tok, alice, big.NewInt(100))

	if err := l.Transfer(tok, alice, bob, big.NewInt(60)); err != nil {
		t.Fatalf("划转失败: %v", err)
	}
	if got := l.BalanceOf(tok, alice); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("出账余额 got=%s want=40", got)
	}
	if got := l.BalanceOf(tok, bob); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("入账余额 got=%s want=60", got)
	}

	if err := l.Transfer(tok, alice, bob, big.NewInt(41)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("超额划转 got=%v want=ErrInsufficientBalance", err)
	}
}

func TestTransferFrom_DecrementsAllowance(t *testing.T) {
	l := NewInMemoryLedger()
	l.Mint(tok, alice, big.NewInt(100))

	// 未授权
	if err := l.TransferFrom(tok, carol, alice, bob, big.NewInt(10)); !errors.Is(err, domain.ErrInsufficientApproval) {
		t.Fatalf("未授权划转 got=%v want=ErrInsufficientApproval", err)
	}

	if err := l.Approve(tok, alice, carol, big.NewInt(50)); err != nil {
		t.Fatalf("授权失败: %v", err)
	}
	if err := l.TransferFrom(tok, carol, alice, bob, big.NewInt(30)); err != nil {
		t.Fatalf("授权划转失败: %v", err)
	}
	if got := l.Allowance(tok, alice, carol); got.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("额度扣减 got=%s want=20", got)
	}
	if err := l.TransferFrom(tok, carol, alice, bob, big.NewInt(80)); !errors.Is(err, domain.ErrInsufficientApproval) {
		t.Fatalf("超出剩余额度 got=%v want=ErrInsufficientApproval", err)
	}

	// 授权覆盖式写入
	if err := l.Approve(tok, alice, carol, big.NewInt(5)); err != nil {
		t.Fatalf("再次授权失败: %v", err)
	}
	if got := l.Allowance(tok, alice, carol); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("覆盖后额度 got=%s want=5", got)
	}
}

func TestTransferFrom_BalanceShortLeavesAllowance(t *testing.T) {
	l := NewInMemoryLedger()
	l.Mint(tok, alice, big.NewInt(10))
	if err := l.Approve(tok, alice, carol, big.NewInt(100)); err != nil {
		t.Fatalf("授权失败: %v", err)
	}

	if err := l.TransferFrom(tok, carol, alice, bob, big.NewInt(50)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("余额不足 got=%v want=ErrInsufficientBalance", err)
	}
	if got := l.Allowance(tok, alice, carol); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("失败划转不应扣减额度: got=%s", got)
	}
}

// 属性：任意划转序列下代币总量守恒
func TestProperty_SupplyConservation(t *testing.T) {
	property := func(moves []uint16) bool {
		l := NewInMemoryLedger()
		l.Mint(tok, alice, big.NewInt(10_000))
		l.Mint(tok, bob, big.NewInt(10_000))

		accounts := []common.Address{alice, bob, carol}
		for i, raw := range moves {
			from := accounts[i%3]
			to := accounts[(i+1)%3]
			_ = l.Transfer(tok, from, to, big.NewInt(int64(raw)))
		}

		total := new(big.Int)
		for _, a := range accounts {
			total.Add(total, l.BalanceOf(tok, a))
		}
		return total.Cmp(big.NewInt(20_000)) == 0
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 100}); err != nil {
		t.Fatalf("总量守恒被破坏: %v", err)
	}
}

func TestVault(t *testing.T) {
	v := NewNativeVault()
	v.Deposit(alice, big.NewInt(100))

	if err := v.Transfer(alice, bob, big.NewInt(101)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("超额划转 got=%v want=ErrInsufficientBalance", err)
	}
	if err := v.Transfer(alice, bob, big.NewInt(100)); err != nil {
		t.Fatalf("划转失败: %v", err)
	}
	if got := v.Balance(alice); got.Sign() != 0 {
		t.Fatalf("出账余额 got=%s want=0", got)
	}
	if got := v.Balance(bob); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("入账余额 got=%s want=100", got)
	}
	// 零额划转为空操作
	if err := v.Transfer(carol, bob, new(big.Int)); err != nil {
		t.Fatalf("零额划转 got=%v want=nil", err)
	}
}

// 返回值是拷贝：调用方修改不应污染内部状态
func TestBalanceOfReturnsCopy(t *testing.T) {
	l := NewInMemoryLedger()
	l.Mint(tok, alice, big.NewInt(100))

	b := l.BalanceOf(tok, alice)
	b.SetInt64(0)
	if got := l.BalanceOf(tok, alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("内部余额被外部修改污染: got=%s", got)
	}
}
