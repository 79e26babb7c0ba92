package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineType(t *testing.T) {
	var eng EngineType
	assert.Nil(t, eng.Set(""))
	assert.Equal(t, EnginePcap, eng)
	assert.Equal(t, "libpcap", eng.String())

	assert.Nil(t, eng.UnmarshalText([]byte("raw_socket")))
	assert.Equal(t, EngineRawSocket, eng)
	assert.Equal(t, "raw_socket", eng.String())

	assert.NotNil(t, eng.Set("af_packet"))
	assert.Equal(t, EngineRawSocket, eng)
}
