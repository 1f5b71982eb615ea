package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-5))
	assert.Equal(t, 0.0, ClampScore(0))
	assert.Equal(t, 42.5, ClampScore(42.5))
	assert.Equal(t, 100.0, ClampScore(100))
	assert.Equal(t, 100.0, ClampScore(150))
}

func TestComputeTrustScore_WeightedSum(t *testing.T) {
	// 80*0.5 + 60*0.3 + 40*0.1 + 20*0.1 = 64
	assert.InDelta(t, 64.0, ComputeTrustScore(80, 60, 40, 20), 1e-9)
}

func TestComputeTrustScore_ClampsInputs(t *testing.T) {
	// 150 clamps to 100, -30 clamps to 0: 100*0.5 + 0*0.3 + 0*0.1 + 0*0.1
	assert.InDelta(t, 50.0, ComputeTrustScore(150, -30, 0, 0), 1e-9)
}

func TestComputeTrustScore_Bounds(t *testing.T) {
	assert.Equal(t, 0.0, ComputeTrustScore(0, 0, 0, 0))
	assert.Equal(t, 100.0, ComputeTrustScore(100, 100, 100, 100))
}

func TestRecalculateTrust(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cert := DietaryCertification{
		OfficialCertScore: 120,
		CommunityScore:    50,
		MenuScore:         -10,
		VisitScore:        70,
	}

	cert.RecalculateTrust(now)

	assert.Equal(t, 100.0, cert.OfficialCertScore)
	assert.Equal(t, 0.0, cert.MenuScore)
	assert.InDelta(t, 100*0.5+50*0.3+0*0.1+70*0.1, cert.TrustScore, 1e-9)
	assert.Equal(t, now, cert.LastScoreUpdate)
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from CertificationStatus
		to   CertificationStatus
		want bool
	}{
		{CertificationPending, CertificationVerified, true},
		{CertificationPending, CertificationRejected, true},
		{CertificationPending, CertificationExpired, true},
		{CertificationVerified, CertificationExpired, true},
		{CertificationVerified, CertificationRejected, false},
		{CertificationRejected, CertificationVerified, false},
		{CertificationExpired, CertificationVerified, false},
		{CertificationExpired, CertificationPending, false},
	}

	for _, tt := range tests {
		cert := DietaryCertification{Status: tt.from}
		assert.Equal(t, tt.want, cert.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}
