package di_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmreid/di-bridge"
)

func Test_Lifetime_String(t *testing.T) {
	assert.Equal(t, "Singleton", di.Singleton.String())
	assert.Equal(t, "Scoped", di.Scoped.String())
	assert.Equal(t, "Transient", di.Transient.String())
	assert.Equal(t, "Unknown Lifetime 100", di.Lifetime(100).String())
}
