package redis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNoGroup(t *testing.T) {
	assert.True(t, IsNoGroup(errors.New("NOGROUP No such consumer group 'g' for key name 's'")))
	assert.False(t, IsNoGroup(errors.New("connection refused")))
	assert.False(t, IsNoGroup(nil))
}

func TestIsBusyGroup(t *testing.T) {
	assert.True(t, isBusyGroup(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroup(errors.New("NOGROUP no such group")))
	assert.False(t, isBusyGroup(nil))
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "bot:b1:events", Topic("b1"))
}
