// Package narrative renders the farmer-facing summary and recovery estimate
// in English or Hindi.
package narrative

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"text/template"

	"github.com/KaramelBytes/soilfusion-cli/internal/recommend"
)

// Lang is a supported output language.
type Lang string

const (
	English Lang = "en"
	Hindi   Lang = "hi"
)

// ParseLang maps a language code to a Lang; anything unknown is English.
func ParseLang(s string) Lang {
	if Lang(strings.ToLower(strings.TrimSpace(s))) == Hindi {
		return Hindi
	}
	return English
}

// Issue keys, in report order.
const (
	IssueDry      = "dry"
	IssueWet      = "wet"
	IssuePHHigh   = "ph_high"
	IssuePHLow    = "ph_low"
	IssueNitrogen = "nitrogen"
	IssueAnomaly  = "anomaly"
)

// Input is everything the summary depends on.
type Input struct {
	Risk      recommend.Risk
	Moisture  float64
	PH        float64
	Nitrogen  float64
	Anomalous bool
	YieldKgHa float64
	Crop      string
}

// Issues lists the problems the readings show. NaN readings raise nothing.
func Issues(in Input) []string {
	var out []string
	switch {
	case in.Moisture < 18:
		out = append(out, IssueDry)
	case in.Moisture > 50:
		out = append(out, IssueWet)
	}
	switch {
	case in.PH > 7.8:
		out = append(out, IssuePHHigh)
	case in.PH < 5.5:
		out = append(out, IssuePHLow)
	}
	if in.Nitrogen < 35 {
		out = append(out, IssueNitrogen)
	}
	if in.Anomalous {
		out = append(out, IssueAnomaly)
	}
	return out
}

type phrasebook struct {
	Title    string
	Risk     map[recommend.Risk]string
	Ready    string
	NotReady string
	Good     string
	Issue    map[string]string
	Yield    string
	Unit     string
	Recovery map[recommend.Risk]string
}

var books = map[Lang]phrasebook{
	English: {
		Title: "Soil health risk",
		Risk: map[recommend.Risk]string{
			recommend.RiskLow: "Low", recommend.RiskMedium: "Medium", recommend.RiskHigh: "High",
		},
		Ready:    "Your field is ready for sowing.",
		NotReady: "Your field is not ready for sowing yet.",
		Good:     "All soil readings look good.",
		Issue: map[string]string{
			IssueDry:      "Soil is very dry. Water your field today.",
			IssueWet:      "Soil is waterlogged. Improve drainage before sowing.",
			IssuePHHigh:   "Soil is too alkaline. Add gypsum or organic compost.",
			IssuePHLow:    "Soil is too acidic. Add agricultural lime.",
			IssueNitrogen: "Nitrogen is low. Consider adding urea.",
			IssueAnomaly:  "Unusual reading in your soil. Inspect the field now.",
		},
		Yield: "Expected yield",
		Unit:  "kg/hectare",
		Recovery: map[recommend.Risk]string{
			recommend.RiskLow: "Ready now", recommend.RiskMedium: "7-10 days", recommend.RiskHigh: "3-4 weeks",
		},
	},
	Hindi: {
		Title: "मिट्टी की सेहत का जोखिम",
		Risk: map[recommend.Risk]string{
			recommend.RiskLow: "कम", recommend.RiskMedium: "मध्यम", recommend.RiskHigh: "ज्यादा",
		},
		Ready:    "आपका खेत बुवाई के लिए तैयार है।",
		NotReady: "आपका खेत अभी बुवाई के लिए तैयार नहीं है।",
		Good:     "मिट्टी की सभी रीडिंग ठीक हैं।",
		Issue: map[string]string{
			IssueDry:      "मिट्टी बहुत सूखी है। आज सिंचाई करें।",
			IssueWet:      "मिट्टी में पानी भरा है। बुवाई से पहले निकासी सुधारें।",
			IssuePHHigh:   "मिट्टी ज्यादा क्षारीय है। जिप्सम या जैविक खाद डालें।",
			IssuePHLow:    "मिट्टी ज्यादा अम्लीय है। कृषि चूना डालें।",
			IssueNitrogen: "नाइट्रोजन कम है। यूरिया डालने पर सोचें।",
			IssueAnomaly:  "मिट्टी में असामान्य पाठन। तुरंत खेत की जांच करें।",
		},
		Yield: "अनुमानित उपज",
		Unit:  "किग्रा/हेक्टेयर",
		Recovery: map[recommend.Risk]string{
			recommend.RiskLow: "अभी तैयार", recommend.RiskMedium: "7-10 दिन", recommend.RiskHigh: "3-4 सप्ताह",
		},
	},
}

func book(l Lang) phrasebook {
	if b, ok := books[l]; ok {
		return b
	}
	return books[English]
}

// RecoveryTime estimates how long the field needs before sowing.
func RecoveryTime(r recommend.Risk, l Lang) string {
	b := book(l)
	if s, ok := b.Recovery[r]; ok {
		return s
	}
	return b.Recovery[recommend.RiskHigh]
}

var summaryTmpl = template.Must(template.New("summary").Parse(
	`{{.B.Title}}: {{.Risk}}
{{if .Ready}}{{.B.Ready}}{{else}}{{.B.NotReady}}{{end}}
{{range .Issues}}- {{.}}
{{else}}- {{.B.Good}}
{{end}}{{if .HasYield}}{{.B.Yield}}{{if .Crop}} ({{.Crop}}){{end}}: {{.Yield}} {{.B.Unit}}{{end}}`))

// Summary renders the multi-line farmer summary.
func Summary(in Input, l Lang) (string, error) {
	b := book(l)
	keys := Issues(in)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = b.Issue[k]
	}
	risk, ok := b.Risk[in.Risk]
	if !ok {
		risk = string(in.Risk)
	}
	data := map[string]any{
		"B":        b,
		"Risk":     risk,
		"Ready":    len(keys) == 0,
		"Issues":   lines,
		"HasYield": !math.IsNaN(in.YieldKgHa) && !math.IsInf(in.YieldKgHa, 0),
		"Yield":    fmt.Sprintf("%.0f", in.YieldKgHa),
		"Crop":     in.Crop,
	}
	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
