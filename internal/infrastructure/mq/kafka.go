package mq

import (
	"escrowledger/internal/config"
	"escrowledger/internal/logger"

	"github.com/IBM/sarama"
)

var KafkaProducer sarama.SyncProducer

func InitKafka(cfg *config.KafkaConfig) sarama.SyncProducer {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		logger.Fatal("failed to create kafka producer: %v", err)
	}

	KafkaProducer = producer
	logger.Info("kafka producer ready: %v", cfg.Brokers)
	return producer
}

// SendMessage publishes one ledger event; messages for the same wallet
// share a key so they stay ordered within a partition.
func SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	_, _, err := KafkaProducer.SendMessage(msg)
	return err
}

func CloseKafka() {
	if KafkaProducer != nil {
		KafkaProducer.Close()
	}
}
