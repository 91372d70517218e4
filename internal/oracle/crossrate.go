package oracle

import (
	"github.com/holiman/uint256"
)

// maxRateBits bounds ReferencePrice.Rate to an unsigned 128-bit value.
const maxRateBits = 128

var e18 = uint256.NewInt(E18)

// Combine computes base.Rate * 1e18 / quote.Rate and carries both resolve
// times through unchanged. It fails with ErrInvalidValue when the product does
// not fit in 128 bits or quote.Rate is zero.
func Combine(base, quote ReferenceDatum) (ReferencePrice, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(base.Rate), e18)
	if overflow || product.BitLen() > maxRateBits {
		return ReferencePrice{}, ErrInvalidValue
	}
	if quote.Rate == 0 {
		return ReferencePrice{}, ErrInvalidValue
	}
	rate := new(uint256.Int).Div(product, uint256.NewInt(quote.Rate))
	if rate.BitLen() > maxRateBits {
		return ReferencePrice{}, ErrInvalidValue
	}
	return ReferencePrice{
		Rate:             rate,
		BaseResolveTime:  base.ResolveTime,
		QuoteResolveTime: quote.ResolveTime,
	}, nil
}
