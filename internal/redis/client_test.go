package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClientInvalidURL(t *testing.T) {
	client, err := NewClient(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to parse redis URL")
}
