package log_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/pipelined/synth/log"
)

func TestGetLogger(t *testing.T) {
	l := log.GetLogger()
	assert.NotNil(t, l)
	assert.Contains(t, []logrus.Level{logrus.InfoLevel, logrus.DebugLevel}, l.GetLevel())
}

func TestComponent(t *testing.T) {
	l, hook := test.NewNullLogger()
	log.Component(l, "speaker").Warn("stale read")

	assert.Equal(t, 1, len(hook.Entries))
	assert.Equal(t, "speaker", hook.LastEntry().Data["component"])
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
