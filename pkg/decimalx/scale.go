package decimalx

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/zeebo/errs"
)

// DefaultDecimals 合约金额默认精度, 与 NEAR 原生代币一致 (1 NEAR = 10^24 yocto)
const DefaultDecimals int32 = 24

// MaxDecimals 精度上限, 超过时 10^decimals 的中间结果过大
const MaxDecimals int32 = 256

var (
	// ParseError 输入不是合法的整数字符串
	ParseError = errs.Class("decimalx parse")
	// RangeError 输入无法缩放: NaN/Inf, 负精度或精度超过 MaxDecimals
	RangeError = errs.Class("decimalx range")
)

// ToNumber 将放大 10^decimals 倍的整数字符串还原为 float64.
// 先用任意精度做除法, 最后一步才转换为最接近的 float64, 超出 float64 范围时返回 ±Inf.
// decimals 省略时为 DefaultDecimals.
func ToNumber(value string, decimals ...int32) (float64, error) {
	d, err := ToDecimal(value, decimals...)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// ToScaledString 将 float64 放大 10^decimals 倍并输出为整数字符串.
// value 按其最短十进制表示读取, 放大后的小数部分直接截断, 输出不会使用科学计数法.
func ToScaledString(value float64, decimals ...int32) (string, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", RangeError.New("non-finite value %v", value)
	}
	return FromDecimal(decimal.NewFromFloat(value), decimals...)
}

// ToDecimal 与 ToNumber 相同, 但保留精确结果
func ToDecimal(value string, decimals ...int32) (decimal.Decimal, error) {
	exp, err := resolveDecimals(decimals)
	if err != nil {
		return decimal.Zero, err
	}
	if !isIntegerString(value) {
		return decimal.Zero, ParseError.New("invalid integer string %q", value)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, ParseError.Wrap(err)
	}
	return d.Shift(-exp), nil
}

// FromDecimal 将精确数值放大 10^decimals 倍, 截断小数部分后输出整数字符串
func FromDecimal(d decimal.Decimal, decimals ...int32) (string, error) {
	exp, err := resolveDecimals(decimals)
	if err != nil {
		return "", err
	}
	return d.Shift(exp).Truncate(0).String(), nil
}

func resolveDecimals(decimals []int32) (int32, error) {
	if len(decimals) == 0 {
		return DefaultDecimals, nil
	}
	if decimals[0] < 0 {
		return 0, RangeError.New("negative decimals %d", decimals[0])
	}
	if decimals[0] > MaxDecimals {
		return 0, RangeError.New("decimals %d exceeds %d", decimals[0], MaxDecimals)
	}
	return decimals[0], nil
}

// isIntegerString 可选符号 + 至少一位数字, 不接受小数点和指数
func isIntegerString(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
