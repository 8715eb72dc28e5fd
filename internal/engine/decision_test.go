package engine

import (
	"testing"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		marginBps float64
		want      domain.Decision
	}{
		{"well above threshold", 12.5, domain.DecisionKeep},
		{"exactly at threshold", 5.0, domain.DecisionKeep},
		{"just below threshold", 4.999, domain.DecisionWatch},
		{"exactly zero", 0, domain.DecisionWatch},
		{"just negative", -0.001, domain.DecisionClose},
		{"deeply negative", -40, domain.DecisionClose},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.marginBps, 5.0))
		})
	}
}

func TestClassifyCustomThreshold(t *testing.T) {
	require.Equal(t, domain.DecisionKeep, Classify(10, 10))
	require.Equal(t, domain.DecisionWatch, Classify(10, 10.5))
}
