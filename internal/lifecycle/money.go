package lifecycle

import (
	"errors"
	"math/big"
)

const (
	SecondsPerNight = 86400

	// Platform fee is FeeNumerator/FeeDenominator of the total (3%).
	FeeNumerator   = 30
	FeeDenominator = 1000
)

var ErrInvalidPrice = errors.New("price per night must be a non-negative integer")

// Nights returns ceil((checkOut-checkIn)/86400). An inverted range yields a
// non-positive result; ValidateBookingWindow rejects it before money math.
func Nights(checkIn, checkOut int64) int64 {
	d := checkOut - checkIn
	if d <= 0 {
		// Go division truncates toward zero, which is the ceiling here.
		return d / SecondsPerNight
	}
	return (d + SecondsPerNight - 1) / SecondsPerNight
}

func TotalPrice(pricePerNight *big.Int, checkIn, checkOut int64) *big.Int {
	if pricePerNight == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(pricePerNight, big.NewInt(Nights(checkIn, checkOut)))
}

// PlatformFee truncates total*30/1000 with integer division.
func PlatformFee(total *big.Int) *big.Int {
	if total == nil {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(total, big.NewInt(FeeNumerator))
	return fee.Quo(fee, big.NewInt(FeeDenominator))
}

func HostAmount(total, fee *big.Int) *big.Int {
	out := new(big.Int)
	if total != nil {
		out.Set(total)
	}
	if fee != nil {
		out.Sub(out, fee)
	}
	return out
}

// PriceQuote is a pre-submission estimate. Once the ledger has recorded a
// booking its PlatformFee/HostAmount take precedence.
type PriceQuote struct {
	Nights        int64
	PricePerNight *big.Int
	Total         *big.Int
	PlatformFee   *big.Int
	HostAmount    *big.Int
}

func Quote(pricePerNight *big.Int, checkIn, checkOut, now int64) (PriceQuote, error) {
	if pricePerNight == nil || pricePerNight.Sign() < 0 {
		return PriceQuote{}, ErrInvalidPrice
	}
	if err := ValidateBookingWindow(checkIn, checkOut, now); err != nil {
		return PriceQuote{}, err
	}

	total := TotalPrice(pricePerNight, checkIn, checkOut)
	fee := PlatformFee(total)
	return PriceQuote{
		Nights:        Nights(checkIn, checkOut),
		PricePerNight: new(big.Int).Set(pricePerNight),
		Total:         total,
		PlatformFee:   fee,
		HostAmount:    HostAmount(total, fee),
	}, nil
}
