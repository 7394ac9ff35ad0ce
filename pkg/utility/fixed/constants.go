package fixed

var (
	NegOne = FromInt64(-1, 0)
	Zero   = FromInt64(0, 0)
	One    = FromInt64(1, 0)
	Two    = FromInt64(2, 0)
	Ten    = FromInt64(10, 0)
	Ten4   = FromInt64(10000, 0)

	// BasisPoint is one hundredth of a percent.
	BasisPoint = FromInt64(1, 4)

	Sqrt252 = FromInt64(252, 0).Sqrt()
)

// FromBps converts a basis point rate into a plain decimal rate.
func FromBps(bps Point) Point {
	return bps.Mul(BasisPoint)
}
