package shared

import (
	"encoding/json"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	amqplib "github.com/streadway/amqp"
)

type Amqp struct {
	Conn             *amqplib.Connection
	Channel          *amqplib.Channel
	Exchange         string
	ExchangeType     string
	url              string
	logger           zerolog.Logger
	keepliveInterval time.Duration
	retryCount       int
}

func NewRabbitMQ(cfg *koanf.Koanf, logger zerolog.Logger) *Amqp {
	amqp := Amqp{
		Exchange:         cfg.String("amqp.exchange"),
		ExchangeType:     cfg.String("amqp.exchange-type"),
		url:              cfg.String("amqp.url"),
		logger:           logger,
		retryCount:       cfg.Int("amqp.retry-count"),
		keepliveInterval: cfg.Duration("amqp.keeplive-interval"),
	}

	return &amqp
}

func (a *Amqp) keeplive() {
	var err error
	for {
		for i := 1; i <= a.retryCount; i++ {
			if a.Conn == nil || a.Conn.IsClosed() {
				a.Conn, err = amqplib.Dial(a.url)
				if err != nil {
					if i == a.retryCount {
						a.Close()
						a.logger.Panic().Msgf("Failed to connect to Amqp: %v after %d retries", err, i)
						return
					}
					a.logger.Warn().Msgf("Failed to connect to Amqp: %v. Retrying %d...", err, i)
					continue
				}
				a.Channel = nil
			}

			if a.Conn != nil && a.Channel != nil {
				break
			}

			a.Channel, err = a.Conn.Channel()
			if err != nil {
				a.logger.Warn().Msgf("Failed to create Channel to Amqp: %v. Retrying %d...", err, i)
				continue
			}

			err = a.Channel.ExchangeDeclare(
				a.Exchange,
				a.ExchangeType,
				true,
				false,
				false,
				false,
				nil,
			)
			if err != nil {
				a.logger.Warn().Msgf("Failed to create Exchange to Amqp: %v. Retrying %d...", err, i)
			}
			break
		}

		time.Sleep(a.keepliveInterval)
	}
}

func (a *Amqp) Connect() {
	var err error
	a.Conn, err = amqplib.Dial(a.url)
	if err != nil {
		a.logger.Error().Err(err).Msg("amqp connect failed")
		return
	}

	a.Channel, err = a.Conn.Channel()
	if err != nil {
		a.logger.Error().Err(err).Msg("amqp channel failed")
		return
	}

	err = a.Channel.ExchangeDeclare(
		a.Exchange,
		a.ExchangeType,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		a.logger.Error().Err(err).Msg("amqp exchange declare failed")
		return
	}

	go a.keeplive()
}

// Publish serializes the payload and fans it out on the configured exchange.
// A nil channel (amqp disabled or not yet connected) is not an error.
func (a *Amqp) Publish(routingKey string, payload interface{}) error {
	if a.Channel == nil {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return a.Channel.Publish(
		a.Exchange,
		routingKey,
		false,
		false,
		amqplib.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
}

func (a *Amqp) Close() {
	if a.Conn != nil {
		a.Conn.Close()
	}
	if a.Channel != nil {
		a.Channel.Close()
	}
}
