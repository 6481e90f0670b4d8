package model

// TradingFee returns the exchange fee in cents for executing count
// contracts at the given price.
//
// The fee schedule is 7% of price * (1 - price) per contract with the
// price expressed in dollars, rounded up to the next cent:
//
//	fee = ceil(0.07 * count * p * (1-p))
//
// Fees peak at 50 cents and vanish toward the boundaries.
func TradingFee(price Price, count Quantity) Cents {
	// 7 * count * p * (100-p) is in units of 1/10000 cents.
	raw := int64(7) * int64(count) * int64(price) * int64(100-price)
	fee := raw / 10000
	if raw%10000 != 0 {
		fee++
	}
	return Cents(fee)
}
