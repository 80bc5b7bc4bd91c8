package skeleton

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/telemetry-replay/pkg/processing"
	"github.com/mpapenbr/telemetry-replay/testsupport/basedata"
)

func TestWriteReport(t *testing.T) {
	raw := basedata.RectangleCircuit(basedata.DefaultCircuitParam())
	res, err := processing.NewProcessor().Process(raw)
	require.NoError(t, err)

	buf := bytes.Buffer{}
	require.NoError(t, writeReport(&buf, res))

	var got report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, res.Skeleton.Len(), got.Corners)
	assert.Len(t, got.Skeleton, got.Corners)
	assert.InDelta(t, res.Skeleton.Perimeter(), got.Perimeter, 1e-6)
	assert.Equal(t, len(raw), got.Samples)
	assert.InDelta(t, 0, got.Skeleton[0].Percent, 1e-9)
	require.NotEmpty(t, got.Laps)
	total := 0
	for _, l := range got.Laps {
		total += l.Samples
	}
	assert.Equal(t, len(raw), total)
}
