package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"automl/domain/dataset"
)

// ChurnGeneratorConfig configures the synthetic bank-churn generator
type ChurnGeneratorConfig struct {
	CustomerCount int     `json:"customer_count"`
	ChurnRate     float64 `json:"churn_rate"`
	MissingRate   float64 `json:"missing_rate"`
	// Signal scales how strongly features drive churn; 0 gives pure noise.
	Signal float64 `json:"signal"`
	Seed   int64   `json:"seed"`
}

// DefaultChurnConfig returns a balanced 500-row dataset with a clear signal
func DefaultChurnConfig() ChurnGeneratorConfig {
	return ChurnGeneratorConfig{
		CustomerCount: 500,
		ChurnRate:     0.5,
		MissingRate:   0.02,
		Signal:        2.0,
		Seed:          42,
	}
}

// ChurnColumns is the canonical header produced after ingestion mapping.
var ChurnColumns = []string{
	"customer_id", "credit_score", "country", "gender", "age", "tenure",
	"account_balance", "num_products", "has_credit_card", "is_active_member",
	"salary", "churn",
}

// RawChurnColumns is the header of the upstream bank export.
var RawChurnColumns = []string{
	"RowNumber", "CustomerId", "Surname", "CreditScore", "Geography", "Gender",
	"Age", "Tenure", "Balance", "NumOfProducts", "HasCrCard", "IsActiveMember",
	"EstimatedSalary", "Exited",
}

// ChurnDataGenerator generates customer records whose churn label depends
// on age, activity, balance and country.
type ChurnDataGenerator struct {
	config ChurnGeneratorConfig
	rng    *rand.Rand
}

// NewChurnDataGenerator creates a new churn data generator
func NewChurnDataGenerator(config ChurnGeneratorConfig) *ChurnDataGenerator {
	return &ChurnDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

var countries = []string{"France", "Germany", "Spain"}

// GenerateRows returns canonical rows in ChurnColumns order. Exactly
// round(ChurnRate*CustomerCount) rows churn.
func (g *ChurnDataGenerator) GenerateRows() [][]string {
	n := g.config.CustomerCount
	churners := int(math.Round(g.config.ChurnRate * float64(n)))
	labels := make([]int, n)
	for i := 0; i < churners; i++ {
		labels[i] = 1
	}
	g.rng.Shuffle(n, func(i, j int) { labels[i], labels[j] = labels[j], labels[i] })

	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		y := float64(labels[i])
		s := g.config.Signal

		age := 38 + 8*g.rng.NormFloat64() + 6*s*y
		active := 0
		if g.rng.Float64() < 0.55-0.2*s*y/2 {
			active = 1
		}
		balance := math.Max(0, 70000+40000*g.rng.NormFloat64()+15000*s*y)
		country := countries[g.rng.Intn(len(countries))]
		if y == 1 && g.rng.Float64() < 0.15*s {
			country = "Germany"
		}
		gender := "Female"
		if g.rng.Intn(2) == 0 {
			gender = "Male"
		}

		rows[i] = []string{
			fmt.Sprintf("%d", 15600000+i),
			strconv.Itoa(int(650 + 90*g.rng.NormFloat64())),
			country,
			gender,
			g.maybeMissing(strconv.Itoa(int(math.Max(18, age)))),
			strconv.Itoa(g.rng.Intn(11)),
			g.maybeMissing(strconv.FormatFloat(balance, 'f', 2, 64)),
			strconv.Itoa(1 + g.rng.Intn(4)),
			strconv.Itoa(g.rng.Intn(2)),
			strconv.Itoa(active),
			strconv.FormatFloat(10000+190000*g.rng.Float64(), 'f', 2, 64),
			strconv.Itoa(labels[i]),
		}
	}
	return rows
}

func (g *ChurnDataGenerator) maybeMissing(v string) string {
	if g.rng.Float64() < g.config.MissingRate {
		return ""
	}
	return v
}

// GenerateFrame returns the canonical churn frame.
func (g *ChurnDataGenerator) GenerateFrame() (*dataset.Frame, error) {
	return dataset.NewFrame(ChurnColumns, g.GenerateRows())
}

// GenerateRawRecords returns header plus rows in the upstream export layout,
// for exercising ingestion renames and drops.
func (g *ChurnDataGenerator) GenerateRawRecords() [][]string {
	rows := g.GenerateRows()
	out := [][]string{RawChurnColumns}
	for i, r := range rows {
		out = append(out, []string{
			strconv.Itoa(i + 1), r[0], fmt.Sprintf("Surname%d", i),
			r[1], r[2], r[3], r[4], r[5], r[6], r[7], r[8], r[9], r[10], r[11],
		})
	}
	return out
}
