package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/stagepass/go-stagepass-core/logger"
)

// KafkaConfig configures the Kafka audit trail.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// KafkaSink publishes events to a Kafka topic as JSON. Emit never
// blocks the caller: messages go through a buffered channel and a
// single publisher goroutine; the channel drops on overflow.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *logger.CtxZapLogger

	events chan Event
	done   chan struct{}
}

// NewKafkaSink connects a producer and starts the publisher.
func NewKafkaSink(cfg KafkaConfig, log *logger.CtxZapLogger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka audit sink: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka audit sink: topic is required")
	}
	if log == nil {
		log = logger.GetLogger("audit")
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	saramaCfg.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	s := &KafkaSink{
		producer: producer,
		topic:    cfg.Topic,
		logger:   log,
		events:   make(chan Event, 1000),
		done:     make(chan struct{}),
	}
	go s.publishLoop()
	return s, nil
}

func (s *KafkaSink) Emit(event Event) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("audit kafka buffer full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("key", event.Key))
	}
}

func (s *KafkaSink) publishLoop() {
	for {
		select {
		case event := <-s.events:
			s.publish(event)
		case <-s.done:
			// drain what is already buffered
			for {
				select {
				case event := <-s.events:
					s.publish(event)
				default:
					return
				}
			}
		}
	}
}

func (s *KafkaSink) publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal audit event", zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		s.logger.Error("publish audit event",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func (s *KafkaSink) Close() error {
	close(s.done)
	return s.producer.Close()
}
