package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvFallsBackWhenUnset(t *testing.T) {
	t.Setenv("MARKETPLAI_TEST_STRING", "")
	assert.Equal(t, "fallback", getEnv("MARKETPLAI_TEST_STRING", "fallback"))

	t.Setenv("MARKETPLAI_TEST_STRING", "set")
	assert.Equal(t, "set", getEnv("MARKETPLAI_TEST_STRING", "fallback"))
}

func TestGetEnvAsIntFallsBackOnUnparseable(t *testing.T) {
	t.Setenv("MARKETPLAI_TEST_INT", "not-a-number")
	assert.Equal(t, 42, getEnvAsInt("MARKETPLAI_TEST_INT", 42))

	t.Setenv("MARKETPLAI_TEST_INT", "7")
	assert.Equal(t, 7, getEnvAsInt("MARKETPLAI_TEST_INT", 42))
}

func TestGetEnvAsBoolFallsBackOnUnparseable(t *testing.T) {
	t.Setenv("MARKETPLAI_TEST_BOOL", "not-a-bool")
	assert.True(t, getEnvAsBool("MARKETPLAI_TEST_BOOL", true))

	t.Setenv("MARKETPLAI_TEST_BOOL", "false")
	assert.False(t, getEnvAsBool("MARKETPLAI_TEST_BOOL", true))
}

func TestGetEnvAsSliceSplitsAndTrims(t *testing.T) {
	t.Setenv("MARKETPLAI_TEST_SLICE", " a , b ,c")
	got := getEnvAsSlice("MARKETPLAI_TEST_SLICE", []string{"default"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestGetEnvAsSliceFallsBackWhenUnset(t *testing.T) {
	t.Setenv("MARKETPLAI_TEST_SLICE_UNSET", "")
	got := getEnvAsSlice("MARKETPLAI_TEST_SLICE_UNSET", []string{"default"})
	assert.Equal(t, []string{"default"}, got)
}
