package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	USD = "USD"
	CAD = "CAD"
	EUR = "EUR"
)

// RateTable 固定汇率表(币种 -> USD 乘数)，不访问实时汇率
type RateTable map[string]decimal.Decimal

// NewRateTable 由配置中的字符串汇率构建
func NewRateTable(rates map[string]string) (RateTable, error) {
	t := make(RateTable, len(rates)+1)
	t[USD] = decimal.NewFromInt(1)
	for cur, s := range rates {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("汇率 %s 格式错误: %w", cur, err)
		}
		if !d.IsPositive() {
			return nil, fmt.Errorf("汇率 %s 必须大于 0", cur)
		}
		t[strings.ToUpper(cur)] = d
	}
	return t, nil
}

// ToUSD 换算为美元并按 places 位小数四舍五入(0=整美元，2=美分)
func (t RateTable) ToUSD(amount decimal.Decimal, currency string, places int32) (float64, error) {
	rate, ok := t[strings.ToUpper(currency)]
	if !ok {
		return 0, fmt.Errorf("未知币种: %s", currency)
	}
	v, _ := amount.Mul(rate).Round(places).Float64()
	return v, nil
}
