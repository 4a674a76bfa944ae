package domain

import "errors"

// 错误分类：引擎所有操作同步返回以下错误之一（或其包装）。
// 与链上合约的自定义错误一一对应，调用方用 errors.Is 判断类别。
var (
	// ErrUnauthorized 调用者对该 id 没有操作权限
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound 未知的 offer/purchase/option id
	ErrNotFound = errors.New("not found")
	// ErrInvalidAsset 代币未激活
	ErrInvalidAsset = errors.New("invalid asset: token not activated")
	// ErrInvalidTerms 数量、行权价或期限为零/不可能的值
	ErrInvalidTerms = errors.New("invalid terms")
	// ErrExpiredOffer 报价已过期，无法成交
	ErrExpiredOffer = errors.New("offer expired")
	// ErrExpired 期权已过期，无法行权
	ErrExpired = errors.New("option expired")
	// ErrNotExpired 尚未到期，无法执行到期后的操作
	ErrNotExpired = errors.New("option not expired")
	// ErrInsufficientOfferSize 购买数量超过报价剩余数量
	ErrInsufficientOfferSize = errors.New("insufficient offer size")
	// ErrInsufficientApproval 转移数量超过作用域授权额度
	ErrInsufficientApproval = errors.New("insufficient approval")
	// ErrInsufficientBalance 账本余额不足
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrAlreadyExercised 期权已行权，不能重复行权
	ErrAlreadyExercised = errors.New("already exercised")
	// ErrAlreadyBought 期权已被购买，不能重复购买
	ErrAlreadyBought = errors.New("already bought")
	// ErrAlreadyConsumed 报价已被完全消耗或取消
	ErrAlreadyConsumed = errors.New("offer already consumed")
	// ErrWrongValue 附带的原生货币金额与要求不符
	ErrWrongValue = errors.New("wrong value attached")
	// ErrTransferFailed 底层账本划转失败，整个操作回滚
	ErrTransferFailed = errors.New("transfer failed")
	// ErrReentrantCall 同一 id 的结算尚在进行中，重入被拒绝
	ErrReentrantCall = errors.New("reentrant call")
	// ErrStalePrice 预言机价格超过最大允许时效
	ErrStalePrice = errors.New("stale price")
	// ErrTermsMismatch 按条款直接购买时找不到匹配的报价
	ErrTermsMismatch = errors.New("terms mismatch: no compatible offer")
)
