package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// DataGenerator generates daily bars for tests and sample data files.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how bars are generated.
type GeneratorConfig struct {
	// Symbol is the instrument code (e.g., "600519")
	Symbol string
	// StartDate is the first trading day of the series
	StartDate time.Time
	// Count is the number of trading days to generate
	Count int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility is the daily standard deviation of returns (0.02 = 2%)
	Volatility float64
	// Trend is the total drift over the whole series (-0.5 to 0.5)
	Trend float64
	// VolumeBase is the average daily volume
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
	// SkipWeekends leaves Saturdays and Sundays out of the calendar
	SkipWeekends bool
}

// DefaultConfig returns a year of trading days.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "600000",
		StartDate:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Count:          250,
		InitialPrice:   10.0,
		Volatility:     0.02,
		Trend:          0.0,
		VolumeBase:     1_000_000,
		VolumeVariance: 0.3,
		SkipWeekends:   true,
	}
}

// Generate creates bars following a geometric Brownian motion.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.Bar {
	bars := make([]types.Bar, 0, config.Count)
	currentPrice := config.InitialPrice
	currentDate := nextTradingDay(config.StartDate, config.SkipWeekends, false)

	for range config.Count {
		open := currentPrice

		// Box-Muller transform for a normal sample
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		drift := config.Trend / float64(max(config.Count, 1))

		closePrice := open * (1 + config.Volatility*z + drift)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, closePrice) + highExtension
		low := math.Min(open, closePrice) - lowExtension
		if low <= 0 {
			low = math.Min(open, closePrice) * 0.99
		}

		volume := config.VolumeBase * (1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance)
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		bars = append(bars, types.Bar{
			Symbol: config.Symbol,
			Date:   currentDate,
			Open:   roundToDecimals(open, 2),
			High:   roundToDecimals(high, 2),
			Low:    roundToDecimals(low, 2),
			Close:  roundToDecimals(closePrice, 2),
			Volume: math.Round(volume),
		})

		currentPrice = closePrice
		currentDate = nextTradingDay(currentDate, config.SkipWeekends, true)
	}

	return bars
}

// BarsFromCloses builds one bar per close on consecutive calendar days.
// Open, high and low equal the close.
func BarsFromCloses(symbol string, start time.Time, closes ...float64) []types.Bar {
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		bars[i] = types.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}

	return bars
}

// FlatBars returns count bars that all close at price.
func FlatBars(symbol string, start time.Time, count int, price float64) []types.Bar {
	closes := make([]float64, count)
	for i := range closes {
		closes[i] = price
	}

	return BarsFromCloses(symbol, start, closes...)
}

func nextTradingDay(day time.Time, skipWeekends bool, advance bool) time.Time {
	if advance {
		day = day.AddDate(0, 0, 1)
	}

	for skipWeekends && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
		day = day.AddDate(0, 0, 1)
	}

	return day
}

func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
