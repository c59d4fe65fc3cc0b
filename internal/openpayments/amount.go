package openpayments

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrScaleMismatch indicates arithmetic was attempted across two amounts whose
// asset scales differ without an explicit rescale.
var ErrScaleMismatch = errors.New("asset scale mismatch")

// Amount is the fixed-point monetary representation used on the payment
// network: an integer value encoded as a string, interpreted at a power-of-ten
// asset scale. Amounts are never floating point.
type Amount struct {
	Value      string `json:"value"`
	AssetCode  string `json:"assetCode"`
	AssetScale int    `json:"assetScale"`
}

// NewAmount builds an Amount from an integer minor-unit value.
func NewAmount(value int64, assetCode string, assetScale int) Amount {
	return Amount{
		Value:      strconv.FormatInt(value, 10),
		AssetCode:  assetCode,
		AssetScale: assetScale,
	}
}

// Int64 parses the string-encoded integer value.
func (a Amount) Int64() (int64, error) {
	v, err := strconv.ParseInt(a.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing amount value %q: %w", a.Value, err)
	}
	return v, nil
}

// SameAsset reports whether two amounts share asset code and scale and can be
// combined without rescaling.
func (a Amount) SameAsset(b Amount) bool {
	return a.AssetCode == b.AssetCode && a.AssetScale == b.AssetScale
}

// Rescale converts the amount to a different asset scale. Scaling down is only
// permitted when no precision would be lost.
func (a Amount) Rescale(scale int) (Amount, error) {
	if scale == a.AssetScale {
		return a, nil
	}
	v, err := a.Int64()
	if err != nil {
		return Amount{}, err
	}

	diff := scale - a.AssetScale
	if diff > 0 {
		for i := 0; i < diff; i++ {
			if v > 0 && v > (1<<62)/10 || v < 0 && v < -(1<<62)/10 {
				return Amount{}, fmt.Errorf("rescaling %s from scale %d to %d overflows", a.Value, a.AssetScale, scale)
			}
			v *= 10
		}
	} else {
		for i := 0; i < -diff; i++ {
			if v%10 != 0 {
				return Amount{}, fmt.Errorf("rescaling %s from scale %d to %d loses precision", a.Value, a.AssetScale, scale)
			}
			v /= 10
		}
	}

	return NewAmount(v, a.AssetCode, scale), nil
}
