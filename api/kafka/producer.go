package kafka

import (
	"context"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"

	"videotasks/events"
)

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) (Receipt, error)
	Close() error
}

// Receipt identifies where the broker stored a published envelope.
type Receipt struct {
	Topic     string
	Partition int32
	Offset    int64
}

type PublishError struct {
	Kind events.Kind
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

type producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string) (Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	config.Version = sarama.V2_8_0_0

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return NewPublisher(p, topic), nil
}

func NewPublisher(p sarama.SyncProducer, topic string) Publisher {
	return &producer{producer: p, topic: topic}
}

// Publish validates and sends ev. It returns once the broker has
// acknowledged the write or ctx is done; in the latter case the write may
// still land.
func (p *producer) Publish(ctx context.Context, ev events.Event) (Receipt, error) {
	var kind events.Kind
	if ev != nil {
		kind = ev.Kind()
	}

	data, err := events.Encode(ev)
	if err != nil {
		return Receipt{}, &PublishError{Kind: kind, Err: err}
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(data),
	}
	if pv, ok := ev.(events.ProcessVideo); ok {
		msg.Key = sarama.StringEncoder(strconv.FormatInt(pv.TaskID, 10))
	}

	type result struct {
		partition int32
		offset    int64
		err       error
	}
	done := make(chan result, 1)
	go func() {
		partition, offset, err := p.producer.SendMessage(msg)
		done <- result{partition: partition, offset: offset, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return Receipt{}, &PublishError{Kind: kind, Err: res.err}
		}
		return Receipt{Topic: p.topic, Partition: res.partition, Offset: res.offset}, nil
	case <-ctx.Done():
		return Receipt{}, &PublishError{Kind: kind, Err: ctx.Err()}
	}
}

func (p *producer) Close() error {
	return p.producer.Close()
}
