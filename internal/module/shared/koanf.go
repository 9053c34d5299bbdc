package shared

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "marketplace_proxy_"

func NewKoanfInstance() *koanf.Koanf {
	k := koanf.New(".")

	defaultValues := map[string]interface{}{
		"app.name":                 "marketplace-proxy",
		"app.host":                 ":8080",
		"app.idle-timeout":         50 * time.Second,
		"app.print-routes":         false,
		"app.prefork":              false,
		"app.production":           false,
		"app.rate-limit":           50,
		"app.anonymous-rate-limit": 5,
		"redis.keeplive-interval":  30 * time.Second,
		"redis.retry-count":        3,
		"amqp.keeplive-interval":   30 * time.Second,
		"amqp.retry-count":         3,
		"amqp.exchange":            "marketplace.events",
		"amqp.exchange-type":       "topic",

		"market.indexer-url":         "https://api.uniquenetwork.io/market",
		"market.collection-ids":      []string{"23", "25", "155"},
		"market.sentinel-owner":      "5C4hrfjw9DjXZTzV3MwzrrAr9P1MJhSrvWGWqi1eSuyUpnhM",
		"market.quote-id":            2,
		"market.can-add-collections": false,
		"market.can-edit-token":      false,
		"market.can-transfer-tokens": true,
		"market.page-size":           20,
		"market.preset-key":          "tokenCollections",

		"chain.url":         "wss://testnet2.uniquenetwork.io",
		"chain.ss58-prefix": 42,

		"bridge.source-chain-id": 1,
		"bridge.gas-limit":       300000,

		"opensea.base-url": "https://api.opensea.io/api/v1",
	}

	if err := k.Load(confmap.Provider(defaultValues, "."), nil); err != nil {
		log.Fatalf("error loading default values: %v", err)
	}

	// local config file is optional; defaults plus env cover deployments
	// that ship without one
	if _, err := os.Stat("config/default.yaml"); err == nil {
		if err := k.Load(file.Provider("config/default.yaml"), yaml.Parser()); err != nil {
			log.Panicf("Error loading default config: %v", err)
		}
		log.Println("Load local config!")
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(s string, v string) (string, interface{}) {
		key := strings.Replace(strings.TrimPrefix(s, envPrefix), "_", ".", -1)

		if strings.Contains(v, " ") {
			return key, strings.Split(v, " ")
		}

		return key, v
	}), nil); err != nil {
		log.Panicf("Error loading env: %v", err)
	}

	return k
}
