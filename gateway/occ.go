package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OCCSymbol 构造 OCC 合约代码，例如 AAPL240621C00150000。
// 行权价以千分之一美元计，固定 8 位。
func OCCSymbol(underlying string, expiry time.Time, callPut byte, strike decimal.Decimal) string {
	milli := strike.Mul(decimal.NewFromInt(1000)).IntPart()
	return fmt.Sprintf("%s%s%c%08d", strings.ToUpper(underlying), expiry.Format("060102"), callPut, milli)
}

// NewCalendarOpen 建仓价差：卖近月 call、买远月 call，同一行权价。
func NewCalendarOpen(underlying string, strike decimal.Decimal, shortExpiry, longExpiry time.Time) Spread {
	return Spread{
		Underlying: strings.ToUpper(underlying),
		Short: Leg{
			Symbol: OCCSymbol(underlying, shortExpiry, 'C', strike),
			Side:   SideSell,
			Intent: IntentSellToOpen,
		},
		Long: Leg{
			Symbol: OCCSymbol(underlying, longExpiry, 'C', strike),
			Side:   SideBuy,
			Intent: IntentBuyToOpen,
		},
	}
}

// CloseSpreadFromSymbols 用日志本里落库的合约代码重建平仓价差，
// 不需要再拆解行权价和到期日。
func CloseSpreadFromSymbols(underlying, shortSymbol, longSymbol string) Spread {
	return Spread{
		Underlying: strings.ToUpper(underlying),
		Short: Leg{
			Symbol: shortSymbol,
			Side:   SideBuy,
			Intent: IntentBuyToClose,
		},
		Long: Leg{
			Symbol: longSymbol,
			Side:   SideSell,
			Intent: IntentSellToClose,
		},
	}
}

// NewCalendarClose 平仓价差：买回近月、卖出远月。
func NewCalendarClose(underlying string, strike decimal.Decimal, shortExpiry, longExpiry time.Time) Spread {
	return Spread{
		Underlying: strings.ToUpper(underlying),
		Short: Leg{
			Symbol: OCCSymbol(underlying, shortExpiry, 'C', strike),
			Side:   SideBuy,
			Intent: IntentBuyToClose,
		},
		Long: Leg{
			Symbol: OCCSymbol(underlying, longExpiry, 'C', strike),
			Side:   SideSell,
			Intent: IntentSellToClose,
		},
	}
}
