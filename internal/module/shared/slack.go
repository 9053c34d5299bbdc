package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

type SlackPayload struct {
	Channel   string `json:"channel"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	IconEmoji string `json:"icon_emoji"`
}

const (
	RedisErrorCountPrefix   = "error_count:"
	RedisErrorCountDuration = 10 * time.Minute
	RedisErrorThreshold     = 5
)

// SlackNotifier posts throttled alerts to a configured webhook. An empty
// webhook URL disables notifications entirely.
type SlackNotifier struct {
	webhookURL  string
	channel     string
	username    string
	redisClient *RedisClient
	logger      zerolog.Logger
}

func NewSlackNotifier(cfg *koanf.Koanf, redisClient *RedisClient, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL:  cfg.String("slack.webhook-url"),
		channel:     cfg.String("slack.channel"),
		username:    cfg.String("slack.username"),
		redisClient: redisClient,
		logger:      logger,
	}
}

func (n *SlackNotifier) SendAlert(message string) error {
	if n.webhookURL == "" {
		return nil
	}

	payload := SlackPayload{
		Channel:  n.channel,
		Username: n.username,
		Text:     message,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to marshal Slack payload")
		return err
	}

	req, err := http.NewRequest("POST", n.webhookURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to create Slack request")
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to send Slack request")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.logger.Error().Msgf("Slack request failed with status code: %d", resp.StatusCode)
		return fmt.Errorf("slack request failed with status code: %d", resp.StatusCode)
	}

	return nil
}

// HandleErrorWithThrottling counts errors per key in redis and fires a single
// alert once the threshold is reached inside the counting window.
func (n *SlackNotifier) HandleErrorWithThrottling(key string, errorMsg string) {
	ctx := context.Background()
	errorCountKey := RedisErrorCountPrefix + key
	alertedKey := errorCountKey + ":alerted"
	lockKey := errorCountKey + ":lock"

	lockAcquired, err := n.redisClient.Client.SetNX(ctx, lockKey, "1", time.Second*10).Result()
	if err != nil || !lockAcquired {
		return
	}
	defer n.redisClient.Client.Del(ctx, lockKey)

	if _, err := n.redisClient.Client.Get(ctx, alertedKey).Result(); err == nil {
		return
	}

	count, err := n.redisClient.Client.Incr(ctx, errorCountKey).Result()
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to bump error counter")
		return
	}

	if count == 1 {
		n.redisClient.Client.Expire(ctx, errorCountKey, RedisErrorCountDuration)
	}

	if count >= RedisErrorThreshold {
		n.redisClient.Client.Set(ctx, alertedKey, "1", RedisErrorCountDuration)
		n.SendAlert(fmt.Sprintf("error threshold reached for %s: %s", key, errorMsg))
		n.redisClient.Client.Del(ctx, errorCountKey)
	}
}
