package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "y"} {
		t.Setenv("WARD_TEST_FLAG", v)
		assert.True(t, envBool("WARD_TEST_FLAG"), v)
	}
	for _, v := range []string{"", "0", "no", "off"} {
		t.Setenv("WARD_TEST_FLAG", v)
		assert.False(t, envBool("WARD_TEST_FLAG"), v)
	}
}

func TestRequireRedis(t *testing.T) {
	t.Setenv("TEST_REQUIRE_REDIS", "")
	t.Setenv("TEST_REQUIRE_INFRA", "true")
	assert.True(t, requireRedis())
}
