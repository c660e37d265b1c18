package databus

import (
	"encoding/json"
	"strings"

	"github.com/Shopify/sarama"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

type Event interface {
	Serialize() []byte
	Topic() string
	// Key partitions events, events with the same key keep their order.
	Key() string
}

type DataBus struct {
	producer sarama.SyncProducer
}

var producer *DataBus

func InitDataBus(host string) {
	hosts := strings.Split(host, ",")
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	p, err := sarama.NewSyncProducer(hosts, conf)
	if err != nil {
		log.Fatalf("Failed to create producer: %s", err)
	}
	producer = NewDataBus(p)
	log.Info("Kafka producer initialized...")
}

func NewDataBus(p sarama.SyncProducer) *DataBus {
	return &DataBus{producer: p}
}

func GetDataBus() *DataBus {
	return producer
}

func (db *DataBus) PublishRaw(topic, key string, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(raw),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	partition, offset, err := db.producer.SendMessage(msg)
	if err != nil {
		return errors.WrapAndReport(err, "produce message")
	}
	log.Debugf("databus - produced to %s partition %d offset %d", topic, partition, offset)
	return nil
}

func (db *DataBus) Publish(e Event) error {
	return db.PublishRaw(e.Topic(), e.Key(), e.Serialize())
}

func (db *DataBus) Close() error {
	return db.producer.Close()
}

// StateEvent is a connection state change of one connector.
type StateEvent struct {
	Connector  string   `json:"connector"`
	ChainID    uint64   `json:"chain_id"`
	ChainName  string   `json:"chain_name,omitempty"`
	Accounts   []string `json:"accounts"`
	Activating bool     `json:"activating"`
	Connected  bool     `json:"connected"`
	At         int64    `json:"at"`

	topic string
}

func NewStateEvent(topic string) *StateEvent {
	return &StateEvent{topic: topic}
}

func (e *StateEvent) Serialize() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal:%v", err)
		return nil
	}
	return data
}

func (e *StateEvent) Topic() string {
	return e.topic
}

func (e *StateEvent) Key() string {
	return e.Connector
}
