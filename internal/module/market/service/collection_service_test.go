package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unqnft/marketplace-proxy/internal/module/market/chain"
	"github.com/unqnft/marketplace-proxy/internal/module/market/service"
	"github.com/unqnft/marketplace-proxy/utils/config"
)

type failingChain struct {
	fakeChain
}

func (f *failingChain) GetCreatedCollectionCount(ctx context.Context) (uint32, error) {
	return 0, errors.New("node unreachable")
}

type fakeWriter struct {
	calls []string
	fail  bool
}

func (f *fakeWriter) stream(name string) <-chan chain.TxEvent {
	f.calls = append(f.calls, name)

	events := make(chan chain.TxEvent, 4)
	events <- chain.TxEvent{State: chain.TxSubmitted}
	events <- chain.TxEvent{State: chain.TxUpdated, Status: "ready"}
	if f.fail {
		events <- chain.TxEvent{State: chain.TxFailed, Err: errors.New("extrinsic dropped")}
	} else {
		events <- chain.TxEvent{State: chain.TxConfirmed, Status: "inBlock", BlockHash: "0xblock"}
	}
	close(events)
	return events
}

func (f *fakeWriter) CreateCollection(ctx context.Context, name, description, tokenPrefix string, mode chain.CollectionMode) <-chan chain.TxEvent {
	return f.stream("create_collection")
}

func (f *fakeWriter) SetCollectionSponsor(ctx context.Context, id uint32, sponsor string) <-chan chain.TxEvent {
	return f.stream("set_collection_sponsor")
}

func (f *fakeWriter) RemoveCollectionSponsor(ctx context.Context, id uint32) <-chan chain.TxEvent {
	return f.stream("remove_collection_sponsor")
}

func (f *fakeWriter) ConfirmSponsorship(ctx context.Context, id uint32) <-chan chain.TxEvent {
	return f.stream("confirm_sponsorship")
}

func (f *fakeWriter) SetSchemaVersion(ctx context.Context, id uint32, version string) <-chan chain.TxEvent {
	return f.stream("set_schema_version")
}

func (f *fakeWriter) SetOffChainSchema(ctx context.Context, id uint32, schema []byte) <-chan chain.TxEvent {
	return f.stream("set_offchain_schema")
}

func (f *fakeWriter) AddCollectionAdmin(ctx context.Context, id uint32, admin string) <-chan chain.TxEvent {
	return f.stream("add_collection_admin")
}

func (f *fakeWriter) RemoveCollectionAdmin(ctx context.Context, id uint32, admin string) <-chan chain.TxEvent {
	return f.stream("remove_collection_admin")
}

func (f *fakeWriter) SaveConstOnChainSchema(ctx context.Context, id uint32, schema []byte) <-chan chain.TxEvent {
	return f.stream("set_const_on_chain_schema")
}

func (f *fakeWriter) SaveVariableOnChainSchema(ctx context.Context, id uint32, schema []byte) <-chan chain.TxEvent {
	return f.stream("set_variable_on_chain_schema")
}

func setupCollectionService(writer *fakeWriter, adjust func(*config.Market)) service.CollectionService {
	cfg := config.Market{
		CanAddCollections: true,
		CanEditToken:      true,
	}
	if adjust != nil {
		adjust(&cfg)
	}
	return service.NewCollectionService(cfg, &fakeChain{collections: map[uint32]*chain.Collection{}}, writer, zerolog.New(nil))
}

func TestCreateCollectionConfirmed(t *testing.T) {
	writer := &fakeWriter{}
	svc := setupCollectionService(writer, nil)

	event, err := svc.CreateCollection(context.Background(), "Dragons", "fire breathing", "DRG")
	require.NoError(t, err)
	assert.Equal(t, chain.TxConfirmed, event.State)
	assert.Equal(t, "0xblock", event.BlockHash)
	assert.Equal(t, []string{"create_collection"}, writer.calls)
}

func TestCreateCollectionDisabled(t *testing.T) {
	writer := &fakeWriter{}
	svc := setupCollectionService(writer, func(cfg *config.Market) {
		cfg.CanAddCollections = false
	})

	_, err := svc.CreateCollection(context.Background(), "Dragons", "", "DRG")
	assert.ErrorIs(t, err, service.ErrCollectionAddingDisabled)
	assert.Empty(t, writer.calls)
}

func TestSchemaEditsGatedByFlag(t *testing.T) {
	writer := &fakeWriter{}
	svc := setupCollectionService(writer, func(cfg *config.Market) {
		cfg.CanEditToken = false
	})

	ctx := context.Background()
	_, err := svc.SetSchemaVersion(ctx, 23, "Unique")
	assert.ErrorIs(t, err, service.ErrTokenEditingDisabled)
	_, err = svc.SaveConstSchema(ctx, 23, []byte(`{}`))
	assert.ErrorIs(t, err, service.ErrTokenEditingDisabled)
	assert.Empty(t, writer.calls)
}

func TestWriteFailureReturnsTerminalError(t *testing.T) {
	writer := &fakeWriter{fail: true}
	svc := setupCollectionService(writer, nil)

	event, err := svc.SetSponsor(context.Background(), 23, "5Sponsor")
	require.Error(t, err)
	assert.Equal(t, chain.TxFailed, event.State)
}

func TestReadFailureDegradesToZero(t *testing.T) {
	svc := service.NewCollectionService(config.Market{}, &failingChain{}, &fakeWriter{}, zerolog.New(nil))

	count, err := svc.CollectionCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
