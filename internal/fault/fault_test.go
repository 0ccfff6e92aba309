package fault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsAreDistinct(t *testing.T) {
	cfg := Configuration("dispatch", "register", "class %s registered twice", "CharaHuman")
	res := Resource("driver", "load", "create_resource_cache returned null")
	pro := Protocol("registry", "bind", "class mismatch")
	inv := InvalidAccess("registry", "state", "handle unbound")

	assert.True(t, IsConfiguration(cfg))
	assert.False(t, IsResource(cfg))

	assert.True(t, IsResource(res))
	assert.False(t, IsProtocol(res))

	assert.True(t, IsProtocol(pro))
	assert.False(t, IsInvalidAccess(pro))

	assert.True(t, IsInvalidAccess(inv))
	assert.False(t, IsConfiguration(inv))
}

func TestNilIsNoKind(t *testing.T) {
	assert.False(t, IsConfiguration(nil))
	assert.False(t, IsInvalidAccess(nil))
}
