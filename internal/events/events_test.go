package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"starkshield/internal/platform/kafka/producer"
	"starkshield/internal/predicate"
)

type recordingProducer struct {
	msgs []*producer.Message
	err  error
}

func (p *recordingProducer) Produce(_ context.Context, msg *producer.Message) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

type PublisherSuite struct {
	suite.Suite
	producer  *recordingProducer
	publisher *KafkaPublisher
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.producer = &recordingProducer{}
	s.publisher = NewKafkaPublisher(s.producer, WithTopic("test.submissions"))
}

func (s *PublisherSuite) TestPublishesKeyedJSON() {
	ev := SubmissionEvent{
		TxHash:       "0xfeed",
		Nullifier:    "0xabc",
		Predicate:    predicate.Membership,
		CircuitID:    1,
		AttributeKey: "0x2",
		Threshold:    "0x5e7",
		Timestamp:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	s.Require().NoError(s.publisher.PublishSubmission(context.Background(), ev))
	s.Require().Len(s.producer.msgs, 1)

	msg := s.producer.msgs[0]
	s.Equal("test.submissions", msg.Topic)
	s.Equal([]byte("0xabc"), msg.Key)
	s.Equal("membership_proof", msg.Headers["predicate"])
	s.JSONEq(`{"tx_hash":"0xfeed","nullifier":"0xabc","predicate":"membership_proof","circuit_id":1,
		"attribute_key":"0x2","threshold_or_set_hash":"0x5e7","timestamp":"2024-01-02T03:04:05Z"}`, string(msg.Value))
}

func (s *PublisherSuite) TestProducerErrorIsWrapped() {
	s.producer.err = errors.New("broker down")
	err := s.publisher.PublishSubmission(context.Background(), SubmissionEvent{Nullifier: "0x1"})
	s.ErrorIs(err, s.producer.err)
}

func (s *PublisherSuite) TestDefaultTopic() {
	p := NewKafkaPublisher(s.producer, WithTopic(""))
	s.Require().NoError(p.PublishSubmission(context.Background(), SubmissionEvent{}))
	s.Equal(DefaultTopic, s.producer.msgs[0].Topic)
}

func (s *PublisherSuite) TestNoop() {
	s.NoError(NoopPublisher{}.PublishSubmission(context.Background(), SubmissionEvent{}))
}
