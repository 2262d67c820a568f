package prediction

import (
	"math"
	"testing"
	"time"

	"ethwallet/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOverlay(t *testing.T) {
	prices := []float64{3000, 3050, 3100}
	p := &models.Prediction{Predicted24h: 3160, Predicted7d: 3460}

	actual, predicted := BuildOverlay(prices, p)
	require.Len(t, actual, len(prices)+ForecastDays)
	require.Len(t, predicted, len(actual))

	assert.Equal(t, prices, actual[:3])
	for _, v := range actual[3:] {
		assert.True(t, math.IsNaN(v))
	}

	assert.True(t, math.IsNaN(predicted[0]))
	assert.True(t, math.IsNaN(predicted[1]))
	assert.Equal(t, 3100.0, predicted[2])
	assert.Equal(t, 3160.0, predicted[3])
	assert.InDelta(t, 3210.0, predicted[4], 1e-9)
	assert.InDelta(t, 3460.0, predicted[len(predicted)-1], 1e-9)
}

func TestBuildOverlay_NoPrediction(t *testing.T) {
	actual, predicted := BuildOverlay([]float64{1, 2}, nil)
	assert.Equal(t, []float64{1, 2}, actual)
	assert.Nil(t, predicted)

	actual, predicted = BuildOverlay([]float64{1}, &models.Prediction{Predicted24h: 2, Predicted7d: 3})
	assert.Equal(t, []float64{1}, actual)
	assert.Nil(t, predicted)
}

func TestRender(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var history []models.PricePoint
	for i := 0; i < 10; i++ {
		history = append(history, models.PricePoint{Time: start.AddDate(0, 0, i), USD: 3000 + float64(i*20)})
	}

	plain := Render(history, nil, 40, 8)
	assert.Contains(t, plain, "ETH Price (USD)")

	overlay := Render(history, &models.Prediction{Predicted24h: 3200, Predicted7d: 3300}, 40, 8)
	assert.Contains(t, overlay, "forecast")

	assert.Empty(t, Render(nil, nil, 40, 8))
}
