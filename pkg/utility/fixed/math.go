package fixed

func Mean(points []Point) Point {
	if len(points) == 0 {
		return Zero
	}
	sum := Zero
	for _, point := range points {
		sum = sum.Add(point)
	}
	return sum.DivInt(len(points))
}

func StdDev(points []Point, mean Point) Point {
	if len(points) <= 1 {
		return Zero
	}

	sum := Zero
	for _, point := range points {
		diff := point.Sub(mean)
		sum = sum.Add(diff.Mul(diff))
	}

	return sum.DivInt(len(points)).Sqrt()
}

func SampleStdDev(points []Point, mean Point) Point {
	if len(points) <= 1 {
		return Zero
	}
	return SampleVariance(points, mean).Sqrt()
}

func SampleVariance(points []Point, mean Point) Point {
	if len(points) <= 1 {
		return Zero
	}

	sum := Zero
	for _, point := range points {
		diff := point.Sub(mean)
		sum = sum.Add(diff.Mul(diff))
	}

	return sum.DivInt(len(points) - 1)
}

// PctChange returns cur / prev - 1, or zero when prev is zero.
func PctChange(prev, cur Point) Point {
	if prev.IsZero() {
		return Zero
	}
	return cur.Div(prev).Sub(One)
}
