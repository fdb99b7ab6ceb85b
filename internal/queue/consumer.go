package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ysakura/event-campaign-backend/internal/logger"
	"github.com/ysakura/event-campaign-backend/internal/notify"
)

// StartWinnerConsumer connects to RabbitMQ, declares the durable
// winner.notifications queue, and relays each event to the
// push-messaging channel. The function runs a reconnect loop with
// exponential backoff and keeps running for the life of the process;
// malformed or undeliverable messages are rejected without requeue so
// a poison message cannot wedge the relay.
func StartWinnerConsumer(sender notify.PushSender) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			logger.Warn("winner consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, sender); err != nil {
			logger.Warn("winner consume loop ended", zap.Error(err))
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, sender notify.PushSender) error {
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("winner consumer set QoS failed", zap.Error(err))
	}

	if _, err := ch.QueueDeclare(WinnerQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(WinnerQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, sender); err != nil {
			logger.Warn("winner notification dropped", zap.Error(err))
			_ = d.Nack(false, false) // reject, do not requeue
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, sender notify.PushSender) error {
	var ev WinnerNotifiedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := sender.SendImageNotification(ctx, ev.MemberID, ev.ImageURL); err != nil {
		return fmt.Errorf("send image notification: %w", err)
	}
	logger.Info("winner notified",
		zap.String("event_id", ev.EventID),
		zap.Uint64("member_id", ev.MemberID),
		zap.Uint64("gift_id", ev.GiftID))
	return nil
}
