package mq

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_Send(t *testing.T) {
	sp := mocks.NewSyncProducer(t, NewProducerConfig())
	p := NewProducer(sp)

	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"user_id":"USR1"}` {
			return errors.New("unexpected payload: " + string(val))
		}
		return nil
	})
	require.NoError(t, p.Send("rispay.balance_changed", "USR1", `{"user_id":"USR1"}`))

	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	err := p.Send("rispay.balance_changed", "USR1", "{}")
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.NoError(t, p.Close())
}

func TestNewProducerConfig(t *testing.T) {
	cfg := NewProducerConfig()
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.True(t, cfg.Producer.Return.Successes)
	assert.NoError(t, cfg.Validate())
}
