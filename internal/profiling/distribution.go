package profiling

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Summary holds the location and spread of a numeric column
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

// Shape describes the distribution of a numeric column
type Shape struct {
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
	IsNormal bool    `json:"is_normal"`
	NormalP  float64 `json:"normal_p"`
	Outliers int     `json:"outliers"`
}

// analyzeDistribution computes summary and shape of non-empty data
func analyzeDistribution(data []float64) (Summary, Shape, error) {
	var (
		sum   Summary
		shape Shape
		err   error
	)
	if sum.Mean, err = stats.Mean(data); err != nil {
		return sum, shape, err
	}
	if sum.StdDev, err = stats.StandardDeviation(data); err != nil {
		return sum, shape, err
	}
	if sum.Min, err = stats.Min(data); err != nil {
		return sum, shape, err
	}
	if sum.Max, err = stats.Max(data); err != nil {
		return sum, shape, err
	}
	if sum.Median, err = stats.Median(data); err != nil {
		return sum, shape, err
	}
	if sum.Q25, err = stats.Percentile(data, 25); err != nil {
		return sum, shape, err
	}
	if sum.Q75, err = stats.Percentile(data, 75); err != nil {
		return sum, shape, err
	}

	shape.Skewness = calculateSkewness(data, sum.Mean, sum.StdDev)
	shape.Kurtosis = calculateKurtosis(data, sum.Mean, sum.StdDev)
	shape.IsNormal, shape.NormalP = testNormality(shape.Skewness, shape.Kurtosis, len(data))
	shape.Outliers = detectOutliers(data, sum.Q25, sum.Q75)
	return sum, shape, nil
}

// calculateSkewness computes sample skewness using the adjusted Fisher-Pearson coefficient
func calculateSkewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}

	n := float64(len(data))
	sumCubedDeviations := 0.0
	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumCubedDeviations += deviation * deviation * deviation
	}

	skewness := sumCubedDeviations / n
	return skewness * math.Sqrt(n*(n-1)) / (n - 2)
}

// calculateKurtosis computes sample kurtosis (3 for a normal distribution)
func calculateKurtosis(data []float64, mean, stdDev float64) float64 {
	if len(data) < 4 || stdDev == 0 {
		return 3
	}

	n := float64(len(data))
	sumFourthDeviations := 0.0
	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumFourthDeviations += deviation * deviation * deviation * deviation
	}

	excess := sumFourthDeviations/n - 3
	correction := (n - 1) / ((n - 2) * (n - 3))
	return excess*correction + 6/(n+1) + 3
}

// testNormality is a Jarque-Bera style test on skewness and kurtosis
func testNormality(skewness, kurtosis float64, n int) (bool, float64) {
	if n < 8 {
		return false, 1.0
	}
	jb := float64(n) / 6 * (skewness*skewness + (kurtosis-3)*(kurtosis-3)/4)
	p := 1 - distuv.ChiSquared{K: 2}.CDF(jb)
	return p > 0.05, p
}

// detectOutliers counts values outside the 1.5 IQR fences
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}
	return outlierCount
}
