package shared

import (
	"log"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// SetupCfg builds a configuration instance with the shipped defaults only,
// for use in tests that do not want the file/env providers involved.
func SetupCfg() *koanf.Koanf {
	k := koanf.New(".")

	defaultValues := map[string]interface{}{
		"app.name":                "marketplace-proxy",
		"app.host":                ":8080",
		"app.idle-timeout":        50 * time.Second,
		"redis.keeplive-interval": 30 * time.Second,
		"redis.retry-count":       3,
		"amqp.keeplive-interval":  30 * time.Second,
		"amqp.retry-count":        3,

		"market.indexer-url":         "https://api.uniquenetwork.io/market",
		"market.collection-ids":      []string{"23", "25", "155"},
		"market.sentinel-owner":      "5C4hrfjw9DjXZTzV3MwzrrAr9P1MJhSrvWGWqi1eSuyUpnhM",
		"market.quote-id":            2,
		"market.can-add-collections": false,
		"market.can-transfer-tokens": true,
		"market.page-size":           20,
		"market.preset-key":          "tokenCollections",

		"bridge.source-chain-id": 1,
		"bridge.gas-limit":       300000,

		"opensea.base-url": "https://api.opensea.io/api/v1",
	}

	if err := k.Load(confmap.Provider(defaultValues, "."), nil); err != nil {
		log.Fatalf("error loading default values: %v", err)
	}

	return k
}
