package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	subkey "github.com/vedhavyas/go-subkey/v2"

	"github.com/unqnft/marketplace-proxy/internal/database/schema"
	"github.com/unqnft/marketplace-proxy/internal/module/market/bridge"
	"github.com/unqnft/marketplace-proxy/internal/module/market/chain"
	marketclient "github.com/unqnft/marketplace-proxy/internal/module/market/client"
	"github.com/unqnft/marketplace-proxy/internal/module/market/opensea"
	"github.com/unqnft/marketplace-proxy/internal/module/market/repository"
	"github.com/unqnft/marketplace-proxy/internal/module/shared"
	"github.com/unqnft/marketplace-proxy/utils/config"
)

// OfferFilters drives the query string of an offers fetch. CollectionIDs and
// TraitsCount expand into repeated parameters; Extra pairs are appended
// verbatim.
type OfferFilters struct {
	CollectionIDs []string
	TraitsCount   []string
	Extra         map[string]string
}

type TradeParams struct {
	Account       string
	CollectionIDs []string
	Page          int
	PageSize      int
}

// AggregatorService is the single synchronization point between the remote
// sources and the exposed view state. All state mutations are serialized by
// an internal mutex; once Close is called, in-flight completions are dropped
// without touching state.
type AggregatorService interface {
	GetAssets(ctx context.Context, query string, page int) []opensea.Asset
	GetOffers(ctx context.Context, page, pageSize int, filters OfferFilters) (map[string]marketclient.Offer, error)
	GetHoldByMe(ctx context.Context, account string, page, pageSize int, collectionIDs []string) (map[int][]marketclient.Hold, error)
	GetTrades(ctx context.Context, params TradeParams) ([]marketclient.Trade, error)
	PresetCollections(ctx context.Context) ([]chain.Collection, error)
	MintOnUniq(ctx context.Context, contractAddress, tokenID, recipient string) (*schema.MintRequest, error)
	GetOrder(ctx context.Context, assetContract, tokenID string) (*opensea.Order, error)
	FulfillOrder(ctx context.Context, orderHash, account, recipient, referrer string) (*opensea.FulfillResult, error)

	Offers() map[string]marketclient.Offer
	Holds() map[int][]marketclient.Hold
	Trades() []marketclient.Trade
	MyTrades() []marketclient.Trade

	Close()
}

type aggregatorService struct {
	cfg        config.Market
	client     *marketclient.Client
	chain      chain.Reader
	bridge     bridge.Client
	openSea    opensea.Client
	presetRepo repository.PresetRepository
	mintRepo   repository.MintRepository
	amqp       *shared.Amqp
	logger     zerolog.Logger

	mu       sync.Mutex
	offers   map[string]marketclient.Offer
	holds    map[int][]marketclient.Hold
	trades   []marketclient.Trade
	myTrades []marketclient.Trade

	closed atomic.Bool
}

func NewAggregatorService(
	cfg config.Market,
	fetchClient *marketclient.Client,
	chainReader chain.Reader,
	bridgeClient bridge.Client,
	openSeaClient opensea.Client,
	presetRepo repository.PresetRepository,
	mintRepo repository.MintRepository,
	amqp *shared.Amqp,
	logger zerolog.Logger,
) AggregatorService {
	return &aggregatorService{
		cfg:        cfg,
		client:     fetchClient,
		chain:      chainReader,
		bridge:     bridgeClient,
		openSea:    openSeaClient,
		presetRepo: presetRepo,
		mintRepo:   mintRepo,
		amqp:       amqp,
		logger:     logger.With().Str("component", "aggregator").Logger(),
		offers:     make(map[string]marketclient.Offer),
		holds:      make(map[int][]marketclient.Hold),
	}
}

// BuildOffersURL expands the filters into the offers query string. An unset
// collection-id filter falls back to the configured default list.
func BuildOffersURL(base string, page, pageSize int, filters OfferFilters, defaultIDs []string) string {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))

	ids := filters.CollectionIDs
	if len(ids) == 0 {
		ids = defaultIDs
	}
	for _, id := range ids {
		params.Add("collectionId", id)
	}

	for _, count := range filters.TraitsCount {
		params.Add("traitsCount", count)
	}

	// deterministic order for the free-form pairs
	extraKeys := make([]string, 0, len(filters.Extra))
	for key := range filters.Extra {
		extraKeys = append(extraKeys, key)
	}
	sort.Strings(extraKeys)
	for _, key := range extraKeys {
		params.Add(key, filters.Extra[key])
	}

	return base + "/assets/?" + params.Encode()
}

func offerKey(collectionID int, tokenID string) string {
	return fmt.Sprintf("%d-%s", collectionID, tokenID)
}

// normalizeSeller converts the base64 public key the API delivers into an
// SS58 address. An undecodable seller is passed through untouched.
func normalizeSeller(seller string) string {
	raw, err := base64.StdEncoding.DecodeString(seller)
	if err != nil || len(raw) != 32 {
		return seller
	}
	return subkey.SS58Encode(raw, 42)
}

func (s *aggregatorService) GetAssets(ctx context.Context, query string, page int) []opensea.Asset {
	assets, err := s.openSea.GetAssets(ctx, query, page)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("failed to fetch assets")
		return nil
	}
	if s.closed.Load() {
		return nil
	}

	return assets
}

func (s *aggregatorService) GetOffers(ctx context.Context, page, pageSize int, filters OfferFilters) (map[string]marketclient.Offer, error) {
	fetchURL := BuildOffersURL(s.cfg.IndexerURL, page, pageSize, filters, s.cfg.CollectionIDs)

	result := <-marketclient.Fetch[marketclient.OffersPage](s.client, ctx, fetchURL)
	if result.IsFailed() {
		s.logger.Error().Err(result.Err).Str("url", fetchURL).Msg("failed to fetch offers")
		return nil, result.Err
	}
	if s.closed.Load() {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if page == 1 {
		s.offers = make(map[string]marketclient.Offer)
	}

	// a missing page past the end leaves the accumulated map alone; only a
	// well-formed zero count clears
	if result.IsEmpty() {
		return s.offersSnapshotLocked(), nil
	}
	if result.Value.ItemsCount == 0 {
		s.offers = make(map[string]marketclient.Offer)
		return s.offersSnapshotLocked(), nil
	}

	for _, offer := range result.Value.Items {
		key := offerKey(offer.CollectionID, offer.TokenID)
		if _, exists := s.offers[key]; exists {
			continue
		}
		offer.Seller = normalizeSeller(offer.Seller)
		s.offers[key] = offer
	}

	return s.offersSnapshotLocked(), nil
}

func (s *aggregatorService) GetHoldByMe(ctx context.Context, account string, page, pageSize int, collectionIDs []string) (map[int][]marketclient.Hold, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))
	for _, id := range collectionIDs {
		params.Add("collectionId", id)
	}
	fetchURL := s.cfg.IndexerURL + "/OnHold/" + url.PathEscape(account) + "?" + params.Encode()

	result := <-marketclient.Fetch[marketclient.HoldsPage](s.client, ctx, fetchURL)
	if result.IsFailed() {
		s.logger.Error().Err(result.Err).Str("account", account).Msg("failed to fetch holds")
		return nil, result.Err
	}
	if s.closed.Load() {
		return nil, nil
	}

	grouped := make(map[int][]marketclient.Hold)
	seen := make(map[string]bool)
	for _, hold := range result.Value.Items {
		dedupeKey := offerKey(hold.CollectionID, hold.TokenID)
		if seen[dedupeKey] {
			continue
		}
		seen[dedupeKey] = true
		grouped[hold.CollectionID] = append(grouped[hold.CollectionID], hold)
	}

	s.mu.Lock()
	s.holds = grouped
	snapshot := s.holdsSnapshotLocked()
	s.mu.Unlock()

	return snapshot, nil
}

func (s *aggregatorService) GetTrades(ctx context.Context, params TradeParams) ([]marketclient.Trade, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(params.Page))
	query.Set("pageSize", strconv.Itoa(params.PageSize))
	for _, id := range params.CollectionIDs {
		query.Add("collectionId", id)
	}

	fetchURL := s.cfg.IndexerURL + "/trades"
	if params.Account != "" {
		fetchURL += "/" + url.PathEscape(params.Account)
	}
	fetchURL += "?" + query.Encode()

	result := <-marketclient.Fetch[marketclient.TradesPage](s.client, ctx, fetchURL)
	if result.IsFailed() {
		s.logger.Error().Err(result.Err).Msg("failed to fetch trades")
		return nil, result.Err
	}
	if s.closed.Load() {
		return nil, nil
	}

	items := result.Value.Items

	s.mu.Lock()
	if params.Account != "" {
		s.myTrades = items
	} else {
		s.trades = items
	}
	s.mu.Unlock()

	return items, nil
}

func (s *aggregatorService) PresetCollections(ctx context.Context) ([]chain.Collection, error) {
	var existing []chain.Collection
	var err error

	// only the read of the persisted list is gated; the write-back below
	// always happens so the store keeps accumulating
	if s.cfg.CanAddCollections {
		existing, err = s.presetRepo.Load(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to load preset collections")
			return nil, err
		}
	}

	present := make(map[string]bool, len(existing))
	for _, collection := range existing {
		present[collection.ID] = true
	}

	var additions []chain.Collection
	for _, id := range s.cfg.CollectionIDs {
		if present[id] {
			continue
		}

		numericID, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			s.logger.Warn().Str("id", id).Msg("skipping non-numeric collection id")
			continue
		}

		info, err := s.chain.GetDetailedCollectionInfo(ctx, uint32(numericID))
		if err != nil {
			s.logger.Error().Err(err).Str("id", id).Msg("failed to read collection info")
			continue
		}
		if info == nil {
			continue
		}
		if info.Owner == s.cfg.SentinelOwner {
			continue
		}

		addition := *info
		if addition.Schema == nil && addition.OffchainSchema != "" {
			if decoded, err := chain.DecodeOnChainSchema(addition.OffchainSchema); err == nil {
				addition.Schema = decoded
			}
		}

		additions = append(additions, addition)
	}

	if s.closed.Load() {
		return nil, nil
	}

	if _, err := s.presetRepo.Append(ctx, additions); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist preset collections")
		return nil, err
	}

	return append(existing, additions...), nil
}

func (s *aggregatorService) MintOnUniq(ctx context.Context, contractAddress, tokenID, recipient string) (*schema.MintRequest, error) {
	key := bridge.MintKey{Contract: contractAddress, TokenID: tokenID}

	existing, err := s.mintRepo.GetByKey(ctx, key.String())
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != repository.MintStatusFailed {
		// already relayed, answer from the ledger
		return existing, nil
	}

	numericToken, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return nil, fmt.Errorf("token id %q is not numeric", tokenID)
	}

	request := &schema.MintRequest{
		MintKey:  key.String(),
		Contract: contractAddress,
		TokenID:  tokenID,
		Owner:    recipient,
		Status:   repository.MintStatusPending,
	}
	if existing == nil {
		if err := s.mintRepo.Create(ctx, request); err != nil {
			return nil, err
		}
	}

	handlers := bridge.TransferHandlers{
		OnHash: func(txHash string) {
			if err := s.mintRepo.MarkSubmitted(context.Background(), key.String(), txHash); err != nil {
				s.logger.Error().Err(err).Str("key", key.String()).Msg("failed to record mint submission")
			}
			if err := s.amqp.Publish("market.mint.submitted", map[string]string{
				"mintKey": key.String(),
				"txHash":  txHash,
			}); err != nil {
				s.logger.Warn().Err(err).Msg("failed to publish mint event")
			}
		},
		OnReceipt: func(receipt *ethtypes.Receipt) {
			if err := s.mintRepo.MarkConfirmed(context.Background(), key.String(), receipt.BlockHash.Hex()); err != nil {
				s.logger.Error().Err(err).Str("key", key.String()).Msg("failed to record mint confirmation")
			}
		},
		OnError: func(transferErr error) {
			if err := s.mintRepo.MarkFailed(context.Background(), key.String(), transferErr.Error()); err != nil {
				s.logger.Error().Err(err).Str("key", key.String()).Msg("failed to record mint failure")
			}
		},
	}

	err = s.bridge.Transfer(ctx, key.Hash(), common.HexToAddress(recipient), common.HexToAddress(contractAddress), numericToken, handlers)
	if err != nil {
		return nil, err
	}

	return request, nil
}

func (s *aggregatorService) GetOrder(ctx context.Context, assetContract, tokenID string) (*opensea.Order, error) {
	orders, err := s.openSea.GetOrders(ctx, assetContract, tokenID, opensea.SideSell)
	if err != nil {
		s.logger.Error().Err(err).Str("contract", assetContract).Str("token", tokenID).Msg("failed to fetch order")
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	return &orders[0], nil
}

func (s *aggregatorService) FulfillOrder(ctx context.Context, orderHash, account, recipient, referrer string) (*opensea.FulfillResult, error) {
	result, err := s.openSea.FulfillOrder(ctx, opensea.FulfillRequest{
		OrderHash:        orderHash,
		AccountAddress:   account,
		RecipientAddress: recipient,
		ReferrerAddress:  referrer,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("order", orderHash).Msg("failed to fulfill order")
		return nil, err
	}

	return result, nil
}

func (s *aggregatorService) Offers() map[string]marketclient.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offersSnapshotLocked()
}

func (s *aggregatorService) Holds() map[int][]marketclient.Hold {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holdsSnapshotLocked()
}

func (s *aggregatorService) Trades() []marketclient.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]marketclient.Trade(nil), s.trades...)
}

func (s *aggregatorService) MyTrades() []marketclient.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]marketclient.Trade(nil), s.myTrades...)
}

// Close marks the service torn down. Completions of requests issued earlier
// observe the flag and drop their results.
func (s *aggregatorService) Close() {
	s.closed.Store(true)
}

func (s *aggregatorService) offersSnapshotLocked() map[string]marketclient.Offer {
	snapshot := make(map[string]marketclient.Offer, len(s.offers))
	for key, offer := range s.offers {
		snapshot[key] = offer
	}
	return snapshot
}

func (s *aggregatorService) holdsSnapshotLocked() map[int][]marketclient.Hold {
	snapshot := make(map[int][]marketclient.Hold, len(s.holds))
	for collectionID, holds := range s.holds {
		snapshot[collectionID] = append([]marketclient.Hold(nil), holds...)
	}
	return snapshot
}
