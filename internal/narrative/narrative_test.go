package narrative

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/soilfusion-cli/internal/recommend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssues(t *testing.T) {
	assert.Empty(t, Issues(Input{Moisture: 25, PH: 6.5, Nitrogen: 50}))
	assert.Equal(t, []string{IssueDry, IssuePHHigh, IssueNitrogen, IssueAnomaly},
		Issues(Input{Moisture: 17.9, PH: 7.9, Nitrogen: 34, Anomalous: true}))
	assert.Equal(t, []string{IssueWet, IssuePHLow}, Issues(Input{Moisture: 51, PH: 5.4, Nitrogen: 35}))
}

func TestSummaryEnglish(t *testing.T) {
	s, err := Summary(Input{Risk: recommend.RiskHigh, Moisture: 10, PH: 6.5, Nitrogen: 20, YieldKgHa: 2875.4, Crop: "Wheat"}, English)
	require.NoError(t, err)
	lines := strings.Split(s, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Soil health risk: High", lines[0])
	assert.Equal(t, "Your field is not ready for sowing yet.", lines[1])
	assert.Contains(t, lines[2], "very dry")
	assert.Contains(t, lines[3], "urea")
	assert.Equal(t, "Expected yield (Wheat): 2875 kg/hectare", lines[4])
}

func TestSummaryHindiAndFallback(t *testing.T) {
	in := Input{Risk: recommend.RiskLow, Moisture: 25, PH: 6.5, Nitrogen: 60, YieldKgHa: 3100}
	hi, err := Summary(in, ParseLang("HI"))
	require.NoError(t, err)
	assert.Contains(t, hi, "मिट्टी की सेहत का जोखिम: कम")
	assert.Contains(t, hi, "तैयार है")

	en, err := Summary(in, ParseLang("fr"))
	require.NoError(t, err)
	assert.Contains(t, en, "All soil readings look good.")
	assert.Contains(t, en, "Expected yield: 3100 kg/hectare")
}

func TestRecoveryTime(t *testing.T) {
	assert.Equal(t, "Ready now", RecoveryTime(recommend.RiskLow, English))
	assert.Equal(t, "7-10 days", RecoveryTime(recommend.RiskMedium, English))
	assert.Equal(t, "3-4 weeks", RecoveryTime(recommend.RiskHigh, English))
	assert.Equal(t, "3-4 सप्ताह", RecoveryTime(recommend.RiskHigh, Hindi))
	assert.Equal(t, "3-4 weeks", RecoveryTime("bogus", Lang("xx")))
}
