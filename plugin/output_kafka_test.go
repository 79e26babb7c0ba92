package plugin

import (
	"errors"
	"strings"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
)

func TestKafkaOutput(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		if !strings.HasPrefix(string(val), "graph netvine {") {
			return errors.New("not a dot document")
		}
		return nil
	})
	producer.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	o, err := NewKafkaOutput(&OutputKafkaConfig{producer: producer, Topic: "netvine-graph", Codec: "dot"})
	assert.Nil(t, err)
	assert.NotEmpty(t, string(o.key))

	assert.Nil(t, o.PluginWrite(sampleSnapshot()))
	assert.Nil(t, o.PluginWrite(sampleSnapshot()))
	o.Close()
	assert.Equal(t, "kafka", o.String())
}

func TestKafkaOutputUnknownCodec(t *testing.T) {
	_, err := NewKafkaOutput(&OutputKafkaConfig{Codec: "protobuf"})
	assert.NotNil(t, err)
}
