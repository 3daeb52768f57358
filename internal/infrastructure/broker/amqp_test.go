package broker

import (
	"errors"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestConfirmOutcome(t *testing.T) {
	assert.NoError(t, confirmOutcome(true, false))
	assert.NoError(t, confirmOutcome(true, true))

	nack := confirmOutcome(false, false)
	assert.ErrorIs(t, nack, ErrNotConfirmed)
	assert.False(t, errors.Is(nack, ErrConnectionClosed), "broker nack is not transient")

	lost := confirmOutcome(false, true)
	assert.ErrorIs(t, lost, ErrConnectionClosed)
	assert.ErrorIs(t, classify(lost), ErrConnectionClosed)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(amqp.ErrClosed), ErrConnectionClosed)
	assert.ErrorIs(t, classify(fmt.Errorf("publish: %w", &amqp.Error{Code: amqp.ConnectionForced})), ErrConnectionClosed)

	rejected := &amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg"}
	assert.False(t, errors.Is(classify(rejected), ErrConnectionClosed))
}
