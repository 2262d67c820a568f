// Package prediction pulls a price forecast out of free-form AI answers and
// lays it over the price history.
//
// Extraction is heuristic. It recognises the block the market assistant is
// asked to produce ("24h Prediction", "7d Prediction", "Confidence", "Method")
// with optional Markdown emphasis and currency signs, and nothing more.
package prediction

import (
	"regexp"
	"strconv"
	"strings"

	"ethwallet/pkg/models"
)

const DefaultMethod = "AI Model"

var (
	pred24hRe    = regexp.MustCompile(`(?i)24h Prediction[\s:]*\**:?\**\s*\$?([\d,.]+)`)
	pred7dRe     = regexp.MustCompile(`(?i)7d Prediction[\s:]*\**:?\**\s*\$?([\d,.]+)`)
	confidenceRe = regexp.MustCompile(`(?i)\bConfidence\b[\s:]*\**:?\**\s*(\d+(?:\.\d+)?)\s*%`)
	methodRe     = regexp.MustCompile(`(?i)\bMethod\b[\s:]*\**:?\**\s*([\w .\-()]+)`)
)

// Extract returns a prediction only when the 24h, 7d and confidence figures
// are all present and numeric. The first occurrence of each marker is used.
func Extract(text string) (models.Prediction, bool) {
	p24, ok := matchNumber(pred24hRe, text)
	if !ok {
		return models.Prediction{}, false
	}
	p7, ok := matchNumber(pred7dRe, text)
	if !ok {
		return models.Prediction{}, false
	}
	conf, ok := matchNumber(confidenceRe, text)
	if !ok || conf > 100 {
		return models.Prediction{}, false
	}

	method := DefaultMethod
	if m := methodRe.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			method = s
		}
	}

	return models.Prediction{
		Predicted24h: p24,
		Predicted7d:  p7,
		Confidence:   conf / 100,
		Method:       method,
	}, true
}

// matchNumber parses the first capture of re, allowing thousands separators
// and a sentence-ending period.
func matchNumber(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	s := strings.TrimRight(strings.ReplaceAll(m[1], ",", ""), ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
