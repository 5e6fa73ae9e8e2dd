package kafka

import (
	"testing"

	"github.com/IBM/sarama/mocks"
	"go.uber.org/zap"

	"github.com/BuggPlayer/homeservice-iam/internal/infra/config"
)

func newTestProducer(t *testing.T, cfg config.KafkaSettings) *Producer {
	t.Helper()

	p := &Producer{
		producer: mocks.NewAsyncProducer(t, nil),
		logger:   zap.NewNop(),
		cfg:      cfg,
		errChan:  make(chan error, 256),
		done:     make(chan struct{}),
	}
	go p.watchErrors()
	return p
}

func TestProducerCloseIsIdempotent(t *testing.T) {
	p := newTestProducer(t, config.KafkaSettings{})

	if err := p.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	// The monitoring channel is closed as part of shutdown.
	if _, open := <-p.Errors(); open {
		t.Fatal("expected error channel closed after Close")
	}
}

func TestProducerTopicName(t *testing.T) {
	cases := []struct {
		name      string
		prefix    string
		eventType string
		want      string
	}{
		{name: "no prefix", prefix: "", eventType: "iam.user.approved", want: "iam.user.approved"},
		{name: "prefix applied", prefix: "homeservice", eventType: "iam.user.approved", want: "homeservice.iam.user.approved"},
		{name: "already prefixed", prefix: "homeservice", eventType: "homeservice.iam.user.approved", want: "homeservice.iam.user.approved"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProducer(t, config.KafkaSettings{TopicPrefix: tc.prefix})
			defer func() { _ = p.Close() }()

			if got := p.TopicName(tc.eventType); got != tc.want {
				t.Fatalf("TopicName(%q) = %q, want %q", tc.eventType, got, tc.want)
			}
		})
	}
}
