package yalogger_test

import (
	"testing"

	"github.com/YaCodeDev/YaTgPoster/yalogger"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_Unmarshal(t *testing.T) {
	t.Parallel()

	var level yalogger.Level

	require.NoError(t, level.UnmarshalText([]byte("WARNING")))
	assert.Equal(t, yalogger.WarnLevel, level)

	require.NoError(t, level.Unmarshal("trace"))
	assert.Equal(t, "Trace", level.String())

	assert.ErrorIs(t, level.Unmarshal("loud"), yalogger.ErrInvalidLogLevel)
}

func TestLogger_FieldsAreCopied(t *testing.T) {
	t.Parallel()

	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)

	log := yalogger.NewLogrusLogger(base).
		WithRequestStringID("req-1").
		WithField(yalogger.KeyPostID, "p-1")

	log.Info("post sent")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "post sent", hook.LastEntry().Message)
	assert.Equal(t, "req-1", hook.LastEntry().Data[yalogger.KeyRequestID])

	fields := log.GetFields()
	fields["mutated"] = true

	assert.NotContains(t, log.GetFields(), "mutated")
}

func TestOrDefault(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, yalogger.OrDefault(nil))

	custom := yalogger.Default()
	assert.Same(t, custom, yalogger.OrDefault(custom))
}
