package kafka

import (
	"context"
	"errors"

	"code.cloudfoundry.org/lager/v3"
	"github.com/segmentio/kafka-go"
)

var errUnknownTopic = errors.New("no producer registered for topic")

// Producers keeps one async producer per topic so callers can publish to any
// domain topic without threading individual producers around.
type Producers struct {
	byTopic map[string]*Producer
	logger  lager.Logger
}

func NewProducers(logger lager.Logger, brokers []string, buf int, topics ...string) *Producers {
	m := make(map[string]*Producer, len(topics))
	for _, t := range topics {
		m[t] = NewProducer(logger, brokers, t, buf)
	}
	return &Producers{byTopic: m, logger: logger.Session("kafka-producers")}
}

func (ps *Producers) Start(ctx context.Context) {
	for _, p := range ps.byTopic {
		p.Start(ctx)
	}
}

func (ps *Producers) Publish(topic string, key, value []byte, headers ...kafka.Header) {
	p, ok := ps.byTopic[topic]
	if !ok {
		// a topic missing from the binary's NewProducers list is a wiring bug
		ps.logger.Error("publish-dropped", errUnknownTopic, lager.Data{"topic": topic})
		return
	}
	p.Publish(key, value, headers...)
}

func (ps *Producers) Close() {
	for _, p := range ps.byTopic {
		p.Close()
	}
}

func (ps *Producers) WaitClosed() {
	for _, p := range ps.byTopic {
		p.WaitClosed()
	}
}
