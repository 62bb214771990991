package tof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tof_computer/internal/caldata"
)

func TestStoreEmpty(t *testing.T) {
	st := NewStore()
	_, ok := st.RefSpadConfig()
	assert.False(t, ok)
	_, ok = st.OffsetCalibration()
	assert.False(t, ok)
}

func TestStoreRoundTrip(t *testing.T) {
	st := NewStore()

	cfg := caldata.ReferenceSpadConfig{
		NumRefSpads: 7,
		RefLocation: caldata.RefLocationAperture5x,
		SpadEnables: [6]byte{0x7F},
	}
	st.PutRefSpadConfig(cfg)

	got, ok := st.RefSpadConfig()
	require.True(t, ok)
	assert.Equal(t, cfg, got)

	res := caldata.OffsetCalibrationResult{
		MM1OffsetMM:           2,
		MM2OffsetMM:           -1,
		EffectiveSpadCountMM1: 12.0,
		PreRangeRateMcps:      15.0,
		Status:                CalOk.String(),
	}
	st.PutOffsetCalibration(res)

	gotRes, ok := st.OffsetCalibration()
	require.True(t, ok)
	assert.Equal(t, res, gotRes)
}

func TestStoreOverwrite(t *testing.T) {
	st := NewStore()
	st.PutRefSpadConfig(caldata.ReferenceSpadConfig{NumRefSpads: 5})
	st.PutRefSpadConfig(caldata.ReferenceSpadConfig{NumRefSpads: 9})

	got, ok := st.RefSpadConfig()
	require.True(t, ok)
	assert.Equal(t, 9, got.NumRefSpads)
}
