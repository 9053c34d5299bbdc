package service_test

import (
	"context"
	"encoding/base64"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unqnft/marketplace-proxy/internal/database/schema"
	"github.com/unqnft/marketplace-proxy/internal/module/market/bridge"
	"github.com/unqnft/marketplace-proxy/internal/module/market/chain"
	marketclient "github.com/unqnft/marketplace-proxy/internal/module/market/client"
	"github.com/unqnft/marketplace-proxy/internal/module/market/opensea"
	"github.com/unqnft/marketplace-proxy/internal/module/market/repository"
	"github.com/unqnft/marketplace-proxy/internal/module/market/service"
	"github.com/unqnft/marketplace-proxy/internal/module/shared"
	"github.com/unqnft/marketplace-proxy/utils/config"
)

const sentinelOwner = "5C4hrfjw9DjXZTzV3MwzrrAr9P1MJhSrvWGWqi1eSuyUpnhM"

type fakeChain struct {
	collections map[uint32]*chain.Collection
	reads       int
}

func (f *fakeChain) GetCreatedCollectionCount(ctx context.Context) (uint32, error) {
	return uint32(len(f.collections)), nil
}

func (f *fakeChain) GetDetailedCollectionInfo(ctx context.Context, id uint32) (*chain.Collection, error) {
	f.reads++
	return f.collections[id], nil
}

func (f *fakeChain) GetCollectionTokensCount(ctx context.Context, id uint32) (uint32, error) {
	return 0, nil
}

func (f *fakeChain) GetCollectionAdminList(ctx context.Context, id uint32) ([]string, error) {
	return nil, nil
}

func (f *fakeChain) GetTokensOfCollection(ctx context.Context, id uint32, owner string) ([]uint32, error) {
	return nil, nil
}

type fakeBridge struct {
	mu        sync.Mutex
	transfers []common.Hash
}

func (f *fakeBridge) Transfer(ctx context.Context, sourceTxHash common.Hash, recipient, tokenContract common.Address, tokenID *big.Int, handlers bridge.TransferHandlers) error {
	f.mu.Lock()
	f.transfers = append(f.transfers, sourceTxHash)
	f.mu.Unlock()

	if handlers.OnHash != nil {
		handlers.OnHash("0xsubmitted")
	}
	return nil
}

func (f *fakeBridge) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

type fakeOpenSea struct {
	orders []opensea.Order
}

func (f *fakeOpenSea) GetAssets(ctx context.Context, query string, page int) ([]opensea.Asset, error) {
	return nil, nil
}

func (f *fakeOpenSea) GetCollections(ctx context.Context, query string, page int) ([]opensea.Collection, error) {
	return nil, nil
}

func (f *fakeOpenSea) GetOrders(ctx context.Context, assetContract, tokenID string, side int) ([]opensea.Order, error) {
	return f.orders, nil
}

func (f *fakeOpenSea) FulfillOrder(ctx context.Context, req opensea.FulfillRequest) (*opensea.FulfillResult, error) {
	return &opensea.FulfillResult{TransactionHash: "0xfulfilled", Status: "submitted"}, nil
}

type memPresetRepo struct {
	mu   sync.Mutex
	list []chain.Collection
}

func (m *memPresetRepo) Load(ctx context.Context) ([]chain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chain.Collection(nil), m.list...), nil
}

func (m *memPresetRepo) Append(ctx context.Context, additions []chain.Collection) ([]chain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(m.list))
	for _, collection := range m.list {
		seen[collection.ID] = true
	}
	for _, collection := range additions {
		if !seen[collection.ID] {
			seen[collection.ID] = true
			m.list = append(m.list, collection)
		}
	}
	return append([]chain.Collection(nil), m.list...), nil
}

func (m *memPresetRepo) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = nil
	return nil
}

type memMintRepo struct {
	mu       sync.Mutex
	requests map[string]*schema.MintRequest
}

func newMemMintRepo() *memMintRepo {
	return &memMintRepo{requests: make(map[string]*schema.MintRequest)}
}

func (m *memMintRepo) GetByKey(ctx context.Context, key string) (*schema.MintRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if request, ok := m.requests[key]; ok {
		copied := *request
		return &copied, nil
	}
	return nil, nil
}

func (m *memMintRepo) Create(ctx context.Context, request *schema.MintRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *request
	m.requests[request.MintKey] = &copied
	return nil
}

func (m *memMintRepo) MarkSubmitted(ctx context.Context, key, txHash string) error {
	return m.setStatus(key, repository.MintStatusSubmitted)
}

func (m *memMintRepo) MarkConfirmed(ctx context.Context, key, blockHash string) error {
	return m.setStatus(key, repository.MintStatusConfirmed)
}

func (m *memMintRepo) MarkFailed(ctx context.Context, key string, reason string) error {
	return m.setStatus(key, repository.MintStatusFailed)
}

func (m *memMintRepo) setStatus(key, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if request, ok := m.requests[key]; ok {
		request.Status = status
	}
	return nil
}

type aggregatorFixture struct {
	service service.AggregatorService
	chain   *fakeChain
	bridge  *fakeBridge
	presets *memPresetRepo
	mints   *memMintRepo
}

func setupAggregator(t *testing.T, handler http.Handler, adjust func(*config.Market)) (*aggregatorFixture, func()) {
	t.Helper()

	server := httptest.NewServer(handler)

	cfg := config.Market{
		CanAddCollections: true,
		CanTransferTokens: true,
		CollectionIDs:     []string{"23", "25", "155"},
		SentinelOwner:     sentinelOwner,
		QuoteID:           2,
		IndexerURL:        server.URL,
	}
	if adjust != nil {
		adjust(&cfg)
	}

	fixture := &aggregatorFixture{
		chain:   &fakeChain{collections: make(map[uint32]*chain.Collection)},
		bridge:  &fakeBridge{},
		presets: &memPresetRepo{},
		mints:   newMemMintRepo(),
	}

	amqp := shared.NewRabbitMQ(shared.SetupCfg(), zerolog.New(nil))
	fixture.service = service.NewAggregatorService(
		cfg,
		marketclient.NewClient(zerolog.New(nil)),
		fixture.chain,
		fixture.bridge,
		&fakeOpenSea{},
		fixture.presets,
		fixture.mints,
		amqp,
		zerolog.New(nil),
	)

	return fixture, server.Close
}

func offersHandler(pages map[string]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if body, ok := pages[page]; ok {
			w.Write([]byte(body))
			return
		}
		w.Write([]byte(`{"items":[],"itemsCount":0,"page":1,"pageSize":20}`))
	})
}

func TestGetOffersPageOneResets(t *testing.T) {
	pages := map[string]string{
		"1": `{"items":[{"collectionId":23,"tokenId":"1","seller":"s","price":"100","quoteId":2}],"itemsCount":5,"page":1,"pageSize":1}`,
		"2": `{"items":[{"collectionId":23,"tokenId":"2","seller":"s","price":"200","quoteId":2}],"itemsCount":5,"page":2,"pageSize":1}`,
	}
	fixture, teardown := setupAggregator(t, offersHandler(pages), nil)
	defer teardown()

	ctx := context.Background()
	_, err := fixture.service.GetOffers(ctx, 1, 1, service.OfferFilters{})
	require.NoError(t, err)
	_, err = fixture.service.GetOffers(ctx, 2, 1, service.OfferFilters{})
	require.NoError(t, err)
	assert.Len(t, fixture.service.Offers(), 2)

	// restarting pagination drops everything accumulated before
	offers, err := fixture.service.GetOffers(ctx, 1, 1, service.OfferFilters{})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
	assert.Contains(t, offers, "23-1")
}

func TestGetOffersFirstWriteWins(t *testing.T) {
	bodies := []string{
		`{"items":[{"collectionId":23,"tokenId":"1","seller":"s","price":"100","quoteId":2}],"itemsCount":2,"page":1,"pageSize":1}`,
		`{"items":[{"collectionId":23,"tokenId":"1","seller":"s","price":"999","quoteId":2}],"itemsCount":2,"page":2,"pageSize":1}`,
	}
	var call int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bodies[call]))
		call++
	})
	fixture, teardown := setupAggregator(t, handler, nil)
	defer teardown()

	ctx := context.Background()
	_, err := fixture.service.GetOffers(ctx, 1, 1, service.OfferFilters{})
	require.NoError(t, err)
	offers, err := fixture.service.GetOffers(ctx, 2, 1, service.OfferFilters{})
	require.NoError(t, err)

	require.Contains(t, offers, "23-1")
	assert.Equal(t, "100", offers["23-1"].Price.String())
}

func TestGetOffersZeroItemsClears(t *testing.T) {
	pages := map[string]string{
		"1": `{"items":[{"collectionId":23,"tokenId":"1","seller":"s","price":"100","quoteId":2}],"itemsCount":1,"page":1,"pageSize":20}`,
		"2": `{"items":[],"itemsCount":0,"page":2,"pageSize":20}`,
	}
	fixture, teardown := setupAggregator(t, offersHandler(pages), nil)
	defer teardown()

	ctx := context.Background()
	_, err := fixture.service.GetOffers(ctx, 1, 20, service.OfferFilters{})
	require.NoError(t, err)
	require.Len(t, fixture.service.Offers(), 1)

	offers, err := fixture.service.GetOffers(ctx, 2, 20, service.OfferFilters{})
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestGetOffersMissingLaterPageKeepsState(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"items":[{"collectionId":23,"tokenId":"1","seller":"s","price":"100","quoteId":2}],"itemsCount":1,"page":1,"pageSize":20}`))
	})
	fixture, teardown := setupAggregator(t, handler, nil)
	defer teardown()

	ctx := context.Background()
	_, err := fixture.service.GetOffers(ctx, 1, 20, service.OfferFilters{})
	require.NoError(t, err)
	require.Len(t, fixture.service.Offers(), 1)

	// a 404 past the end of pagination is not a zero count
	offers, err := fixture.service.GetOffers(ctx, 2, 20, service.OfferFilters{})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
	assert.Contains(t, offers, "23-1")
}

func TestGetOffersNormalizesSeller(t *testing.T) {
	rawSeller := base64.StdEncoding.EncodeToString(make([]byte, 32))
	pages := map[string]string{
		"1": `{"items":[{"collectionId":23,"tokenId":"1","seller":"` + rawSeller + `","price":"100","quoteId":2}],"itemsCount":1,"page":1,"pageSize":20}`,
	}
	fixture, teardown := setupAggregator(t, offersHandler(pages), nil)
	defer teardown()

	offers, err := fixture.service.GetOffers(context.Background(), 1, 20, service.OfferFilters{})
	require.NoError(t, err)
	require.Contains(t, offers, "23-1")

	seller := offers["23-1"].Seller
	assert.NotEqual(t, rawSeller, seller)
	assert.True(t, strings.HasPrefix(seller, "5"), "expected an SS58 address, got %s", seller)
}

func TestBuildOffersURLCollectionFallback(t *testing.T) {
	defaults := []string{"23", "25", "155"}

	withDefaults := service.BuildOffersURL("http://api", 1, 20, service.OfferFilters{}, defaults)
	assert.Contains(t, withDefaults, "collectionId=23")
	assert.Contains(t, withDefaults, "collectionId=25")
	assert.Contains(t, withDefaults, "collectionId=155")

	explicit := service.BuildOffersURL("http://api", 1, 20, service.OfferFilters{CollectionIDs: []string{"7"}}, defaults)
	assert.Contains(t, explicit, "collectionId=7")
	assert.NotContains(t, explicit, "collectionId=23")

	extras := service.BuildOffersURL("http://api", 1, 20, service.OfferFilters{
		TraitsCount: []string{"2", "3"},
		Extra:       map[string]string{"searchText": "dragon"},
	}, defaults)
	assert.Contains(t, extras, "traitsCount=2")
	assert.Contains(t, extras, "traitsCount=3")
	assert.Contains(t, extras, "searchText=dragon")
}

func TestGetHoldByMeGroupsAndDedupes(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/OnHold/alice"))
		w.Write([]byte(`{"items":[
			{"collectionId":23,"tokenId":"1","owner":"alice"},
			{"collectionId":23,"tokenId":"1","owner":"alice"},
			{"collectionId":23,"tokenId":"2","owner":"alice"},
			{"collectionId":25,"tokenId":"1","owner":"alice"}
		],"itemsCount":4,"page":1,"pageSize":20}`))
	})
	fixture, teardown := setupAggregator(t, handler, nil)
	defer teardown()

	holds, err := fixture.service.GetHoldByMe(context.Background(), "alice", 1, 20, nil)
	require.NoError(t, err)

	assert.Len(t, holds[23], 2)
	assert.Len(t, holds[25], 1)
	for _, group := range holds {
		seen := make(map[string]bool)
		for _, hold := range group {
			assert.False(t, seen[hold.TokenID], "duplicate tokenId %s in group", hold.TokenID)
			seen[hold.TokenID] = true
		}
	}
}

func TestGetTradesRoutesByAccount(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/trades/bob") {
			w.Write([]byte(`{"items":[{"seller":"x","buyer":"bob","collectionId":23,"tokenId":1,"price":"10","quoteId":2}],"itemsCount":1,"page":1,"pageSize":20}`))
			return
		}
		w.Write([]byte(`{"items":[
			{"seller":"x","collectionId":23,"tokenId":1,"price":"10","quoteId":2},
			{"seller":"y","collectionId":25,"tokenId":2,"price":"20","quoteId":2}
		],"itemsCount":2,"page":1,"pageSize":20}`))
	})
	fixture, teardown := setupAggregator(t, handler, nil)
	defer teardown()

	ctx := context.Background()
	all, err := fixture.service.GetTrades(ctx, service.TradeParams{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := fixture.service.GetTrades(ctx, service.TradeParams{Account: "bob", Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	assert.Len(t, fixture.service.Trades(), 2)
	assert.Len(t, fixture.service.MyTrades(), 1)
}

func TestPresetCollectionsSentinelAndIdempotency(t *testing.T) {
	fixture, teardown := setupAggregator(t, http.NotFoundHandler(), func(cfg *config.Market) {
		cfg.CollectionIDs = []string{"23", "25"}
	})
	defer teardown()

	fixture.chain.collections[23] = &chain.Collection{ID: "23", Owner: sentinelOwner, Name: "Sentinel"}
	fixture.chain.collections[25] = &chain.Collection{ID: "25", Owner: "5AbcOwner", Name: "Kept"}

	ctx := context.Background()
	first, err := fixture.service.PresetCollections(ctx)
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.Equal(t, "25", first[0].ID)
	assert.Equal(t, "5AbcOwner", first[0].Owner)

	readsAfterFirst := fixture.chain.reads
	second, err := fixture.service.PresetCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// present ids are not re-fetched; only the sentinel one is retried
	assert.Equal(t, readsAfterFirst+1, fixture.chain.reads)
}

func TestPresetCollectionsDisabledStillPersists(t *testing.T) {
	fixture, teardown := setupAggregator(t, http.NotFoundHandler(), func(cfg *config.Market) {
		cfg.CanAddCollections = false
		cfg.CollectionIDs = []string{"25"}
	})
	defer teardown()

	// pre-seeded store entries are invisible while adding is disabled, but
	// the write-back still lands
	_, err := fixture.presets.Append(context.Background(), []chain.Collection{{ID: "99", Owner: "5Stored"}})
	require.NoError(t, err)

	fixture.chain.collections[25] = &chain.Collection{ID: "25", Owner: "5AbcOwner"}

	collections, err := fixture.service.PresetCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, "25", collections[0].ID)

	persisted, err := fixture.presets.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, "99", persisted[0].ID)
	assert.Equal(t, "25", persisted[1].ID)
}

func TestPresetCollectionsDecodesOffchainSchema(t *testing.T) {
	fixture, teardown := setupAggregator(t, http.NotFoundHandler(), func(cfg *config.Market) {
		cfg.CollectionIDs = []string{"25"}
	})
	defer teardown()

	fixture.chain.collections[25] = &chain.Collection{
		ID:             "25",
		Owner:          "5AbcOwner",
		OffchainSchema: "0x7b22696d616765223a2268747470733a2f2f6578616d706c652e636f6d2f7b69647d2e706e67227d",
	}

	collections, err := fixture.service.PresetCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, "https://example.com/{id}.png", collections[0].Schema["image"])
}

func TestCloseDropsLateResponses(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"items":[{"collectionId":23,"tokenId":"1","seller":"s","price":"100","quoteId":2}],"itemsCount":1,"page":1,"pageSize":20}`))
	})
	fixture, teardown := setupAggregator(t, handler, nil)
	defer teardown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		offers, err := fixture.service.GetOffers(context.Background(), 1, 20, service.OfferFilters{})
		assert.NoError(t, err)
		assert.Nil(t, offers)
	}()

	fixture.service.Close()
	close(release)
	<-done

	assert.Empty(t, fixture.service.Offers())
}

func TestMintOnUniqIdempotent(t *testing.T) {
	fixture, teardown := setupAggregator(t, http.NotFoundHandler(), nil)
	defer teardown()

	ctx := context.Background()
	first, err := fixture.service.MintOnUniq(ctx, "0xABC", "12", "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, fixture.bridge.count())

	// the ledger answers the retry, no second bridge submission
	second, err := fixture.service.MintOnUniq(ctx, "0xABC", "12", "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, first.MintKey, second.MintKey)
	assert.Equal(t, 1, fixture.bridge.count())
}

func TestMintOnUniqDistinctKeys(t *testing.T) {
	fixture, teardown := setupAggregator(t, http.NotFoundHandler(), nil)
	defer teardown()

	ctx := context.Background()
	_, err := fixture.service.MintOnUniq(ctx, "0xABC", "12", "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	_, err = fixture.service.MintOnUniq(ctx, "0xAB", "12", "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	require.Equal(t, 2, fixture.bridge.count())
	assert.NotEqual(t, fixture.bridge.transfers[0], fixture.bridge.transfers[1])
}

func TestMintOnUniqRejectsNonNumericToken(t *testing.T) {
	fixture, teardown := setupAggregator(t, http.NotFoundHandler(), nil)
	defer teardown()

	_, err := fixture.service.MintOnUniq(context.Background(), "0xABC", "C12", "0x1111111111111111111111111111111111111111")
	assert.Error(t, err)
	assert.Equal(t, 0, fixture.bridge.count())
}

func TestGetOrderAndFulfill(t *testing.T) {
	fixture, teardown := setupAggregator(t, http.NotFoundHandler(), nil)
	defer teardown()

	order, err := fixture.service.GetOrder(context.Background(), "0xabc", "42")
	require.NoError(t, err)
	assert.Nil(t, order)

	result, err := fixture.service.FulfillOrder(context.Background(), "0xfeed", "0xbuyer", "", "")
	require.NoError(t, err)
	assert.Equal(t, "0xfulfilled", result.TransactionHash)
}
