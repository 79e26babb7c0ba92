package plugin

import (
	"github.com/Shopify/sarama"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vearne/netvine/graph"
	"github.com/vearne/netvine/protocol"
	slog "github.com/vearne/simplelog"
)

// OutputKafkaConfig is the representation of kafka output configuration
type OutputKafkaConfig struct {
	producer sarama.AsyncProducer
	Brokers  []string `json:"output-kafka-broker"`
	Topic    string   `json:"output-kafka-topic"`
	Codec    string   `json:"codec"`
}

// KafkaOutput publishes one message per snapshot. All messages of a run
// share the same key so they land on one partition in order.
type KafkaOutput struct {
	config   *OutputKafkaConfig
	codec    protocol.Codec
	producer sarama.AsyncProducer
	key      sarama.StringEncoder
	done     chan struct{}
}

func NewKafkaOutput(config *OutputKafkaConfig) (*KafkaOutput, error) {
	codec := protocol.GetCodec(config.Codec)
	if codec == nil {
		return nil, errors.Errorf("unknown codec %q, expect one of %v", config.Codec, protocol.CodecNames())
	}

	producer := config.producer
	if producer == nil {
		c := sarama.NewConfig()
		c.Producer.RequiredAcks = sarama.WaitForLocal
		c.Producer.Compression = sarama.CompressionSnappy
		c.Producer.Return.Errors = true
		c.Producer.Return.Successes = false

		var err error
		producer, err = sarama.NewAsyncProducer(config.Brokers, c)
		if err != nil {
			return nil, errors.Wrapf(err, "kafka brokers %v", config.Brokers)
		}
	}

	o := &KafkaOutput{
		config:   config,
		codec:    codec,
		producer: producer,
		key:      sarama.StringEncoder(uuid.NewString()),
		done:     make(chan struct{}),
	}
	go o.handleErrors()
	slog.Info("NewKafkaOutput, brokers:%v, topic:%v, key:%v", config.Brokers, config.Topic, o.key)
	return o, nil
}

func (o *KafkaOutput) handleErrors() {
	defer close(o.done)
	for err := range o.producer.Errors() {
		slog.Error("[KAFKA] send to topic %v:%v", o.config.Topic, err)
	}
}

// PluginWrite queues the encoded snapshot; delivery errors are logged.
func (o *KafkaOutput) PluginWrite(snap *graph.Snapshot) error {
	data, err := o.codec.Marshal(snap)
	if err != nil {
		return err
	}
	o.producer.Input() <- &sarama.ProducerMessage{
		Topic: o.config.Topic,
		Key:   o.key,
		Value: sarama.ByteEncoder(data),
	}
	return nil
}

// Close flushes queued messages.
func (o *KafkaOutput) Close() error {
	err := o.producer.Close()
	<-o.done
	return err
}

func (o *KafkaOutput) String() string {
	return "kafka"
}
