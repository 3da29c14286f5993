package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv_BracedAndBareForms(t *testing.T) {
	t.Setenv("SW_TEST_HOST", "db.internal")
	t.Setenv("SW_TEST_PORT", "5432")

	out := ExpandEnv([]byte("dsn: ${SW_TEST_HOST}:$SW_TEST_PORT"))
	assert.Equal(t, "dsn: db.internal:5432", string(out))
}

func TestExpandEnv_MissingVarExpandsEmpty(t *testing.T) {
	out := ExpandEnv([]byte("token: ${SW_TEST_DOES_NOT_EXIST}"))
	assert.Equal(t, "token: ", string(out))
}
