package domain

// OptionKind 期权类型（看涨/看跌）
type OptionKind string

const (
	OptionKindCall OptionKind = "call" // 看涨期权
	OptionKindPut  OptionKind = "put"  // 看跌期权
)

// IsCall 是否为看涨期权
func (k OptionKind) IsCall() bool {
	return k == OptionKindCall
}

// Valid 检查期权类型是否合法
func (k OptionKind) Valid() bool {
	return k == OptionKindCall || k == OptionKindPut
}

// KindFromIsCall 从布尔标志构造期权类型（兼容合约接口的 isCallOption）
func KindFromIsCall(isCall bool) OptionKind {
	if isCall {
		return OptionKindCall
	}
	return OptionKindPut
}

// OptionState 原生市场期权状态机
//
// 状态流转（每个 id 只有一条前进路径，不允许回退）：
//
//	Written → Bought → Exercised
//	Written → Bought → ExpiredWorthless
//	Written → Reclaimed（从未被购买且已过期）
type OptionState uint8

const (
	OptionStateWritten          OptionState = iota // 已开仓，等待买家
	OptionStateBought                              // 已被购买
	OptionStateExercised                           // 已行权（终态）
	OptionStateExpiredWorthless                    // 到期作废（终态）
	OptionStateReclaimed                           // 从未售出，保证金已收回（终态）
)

// String 返回状态名称
func (s OptionState) String() string {
	switch s {
	case OptionStateWritten:
		return "written"
	case OptionStateBought:
		return "bought"
	case OptionStateExercised:
		return "exercised"
	case OptionStateExpiredWorthless:
		return "expired_worthless"
	case OptionStateReclaimed:
		return "reclaimed"
	default:
		return "unknown"
	}
}

// Terminal 是否为终态（终态后保证金已全部释放）
func (s OptionState) Terminal() bool {
	return s == OptionStateExercised || s == OptionStateExpiredWorthless || s == OptionStateReclaimed
}
