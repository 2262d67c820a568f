package prediction

import (
	"math"

	"ethwallet/pkg/models"

	"github.com/guptarohit/asciigraph"
)

// ForecastDays is the number of daily points appended after the history.
const ForecastDays = 7

// BuildOverlay returns two aligned series. actual is the history followed by
// ForecastDays gaps. predicted is gaps up to the last real price, then that
// price, the 24h figure and six even steps to the 7d figure. Without a
// prediction, or with fewer than two prices, predicted is nil and actual is
// the history unchanged.
func BuildOverlay(prices []float64, p *models.Prediction) (actual, predicted []float64) {
	if p == nil || len(prices) < 2 {
		return append([]float64(nil), prices...), nil
	}

	n := len(prices)
	actual = make([]float64, 0, n+ForecastDays)
	actual = append(actual, prices...)
	for i := 0; i < ForecastDays; i++ {
		actual = append(actual, math.NaN())
	}

	predicted = make([]float64, 0, n+ForecastDays)
	for i := 0; i < n-1; i++ {
		predicted = append(predicted, math.NaN())
	}
	predicted = append(predicted, prices[n-1], p.Predicted24h)
	for i := 1; i <= ForecastDays-1; i++ {
		predicted = append(predicted, p.Predicted24h+(p.Predicted7d-p.Predicted24h)*float64(i)/float64(ForecastDays-1))
	}
	return actual, predicted
}

// Render draws the history and, when present, the forecast line.
func Render(history []models.PricePoint, p *models.Prediction, width, height int) string {
	if len(history) == 0 {
		return ""
	}
	prices := make([]float64, len(history))
	for i, pt := range history {
		prices[i] = pt.USD
	}

	actual, predicted := BuildOverlay(prices, p)
	opts := []asciigraph.Option{asciigraph.Height(height), asciigraph.Precision(0)}
	if width > 0 {
		opts = append(opts, asciigraph.Width(width))
	}
	if predicted == nil {
		opts = append(opts, asciigraph.Caption("ETH Price (USD)"))
		return asciigraph.Plot(actual, opts...)
	}
	opts = append(opts,
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Magenta),
		asciigraph.Caption("ETH Price (USD), forecast in magenta"),
	)
	return asciigraph.PlotMany([][]float64{actual, predicted}, opts...)
}
