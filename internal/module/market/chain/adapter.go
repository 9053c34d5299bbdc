package chain

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"unicode/utf16"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/rpc/author"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/rs/zerolog"
	subkey "github.com/vedhavyas/go-subkey/v2"

	"github.com/unqnft/marketplace-proxy/utils/config"
)

// Reader exposes the collection/token state reads. Failed reads return the
// error so the caller decides whether to degrade to an empty default.
type Reader interface {
	GetCreatedCollectionCount(ctx context.Context) (uint32, error)
	GetDetailedCollectionInfo(ctx context.Context, id uint32) (*Collection, error)
	GetCollectionTokensCount(ctx context.Context, id uint32) (uint32, error)
	GetCollectionAdminList(ctx context.Context, id uint32) ([]string, error)
	GetTokensOfCollection(ctx context.Context, id uint32, owner string) ([]uint32, error)
}

// Writer submits state-changing extrinsics. Each call returns a stream that
// delivers lifecycle events and closes after the terminal one. No retry is
// attempted on failure.
type Writer interface {
	CreateCollection(ctx context.Context, name, description, tokenPrefix string, mode CollectionMode) <-chan TxEvent
	SetCollectionSponsor(ctx context.Context, id uint32, sponsor string) <-chan TxEvent
	RemoveCollectionSponsor(ctx context.Context, id uint32) <-chan TxEvent
	ConfirmSponsorship(ctx context.Context, id uint32) <-chan TxEvent
	SetSchemaVersion(ctx context.Context, id uint32, version string) <-chan TxEvent
	SetOffChainSchema(ctx context.Context, id uint32, schema []byte) <-chan TxEvent
	AddCollectionAdmin(ctx context.Context, id uint32, admin string) <-chan TxEvent
	RemoveCollectionAdmin(ctx context.Context, id uint32, admin string) <-chan TxEvent
	SaveConstOnChainSchema(ctx context.Context, id uint32, schema []byte) <-chan TxEvent
	SaveVariableOnChainSchema(ctx context.Context, id uint32, schema []byte) <-chan TxEvent
}

type Adapter struct {
	api        *gsrpc.SubstrateAPI
	meta       *types.Metadata
	signer     signature.KeyringPair
	ss58Prefix uint16
	logger     zerolog.Logger

	// serializes nonce read and submission
	submitMu sync.Mutex
}

func NewAdapter(cfg config.Chain, logger zerolog.Logger) (*Adapter, error) {
	api, err := gsrpc.NewSubstrateAPI(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain node: %v", err)
	}

	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain metadata: %v", err)
	}

	adapter := &Adapter{
		api:        api,
		meta:       meta,
		ss58Prefix: cfg.SS58Prefix,
		logger:     logger.With().Str("component", "chain-adapter").Logger(),
	}

	if cfg.Seed != "" {
		adapter.signer, err = signature.KeyringPairFromSecret(cfg.Seed, cfg.SS58Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to derive signing keypair: %v", err)
		}
	}

	return adapter, nil
}

func (a *Adapter) GetCreatedCollectionCount(ctx context.Context) (uint32, error) {
	key, err := types.CreateStorageKey(a.meta, "Nft", "CreatedCollectionCount")
	if err != nil {
		return 0, err
	}

	var count types.U32
	ok, err := a.api.RPC.State.GetStorageLatest(key, &count)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	return uint32(count), nil
}

func (a *Adapter) GetDetailedCollectionInfo(ctx context.Context, id uint32) (*Collection, error) {
	encodedID, err := codec.Encode(types.NewU32(id))
	if err != nil {
		return nil, err
	}

	key, err := types.CreateStorageKey(a.meta, "Nft", "CollectionById", encodedID)
	if err != nil {
		return nil, err
	}

	var raw onChainCollection
	ok, err := a.api.RPC.State.GetStorageLatest(key, &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	collection := &Collection{
		ID:             strconv.FormatUint(uint64(id), 10),
		Owner:          a.encodeAddress(raw.Owner),
		Mode:           raw.Mode.String(),
		Name:           decodeUTF16(raw.Name),
		Description:    decodeUTF16(raw.Description),
		TokenPrefix:    string(raw.TokenPrefix),
		OffchainSchema: string(raw.OffchainSchema),
		SchemaVersion:  strconv.Itoa(int(raw.SchemaVersion)),
	}

	var zero types.AccountID
	if raw.Sponsor != zero {
		collection.Sponsor = a.encodeAddress(raw.Sponsor)
	}

	return collection, nil
}

func (a *Adapter) GetCollectionTokensCount(ctx context.Context, id uint32) (uint32, error) {
	encodedID, err := codec.Encode(types.NewU32(id))
	if err != nil {
		return 0, err
	}

	key, err := types.CreateStorageKey(a.meta, "Nft", "ItemListIndex", encodedID)
	if err != nil {
		return 0, err
	}

	var count types.U32
	ok, err := a.api.RPC.State.GetStorageLatest(key, &count)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	return uint32(count), nil
}

func (a *Adapter) GetCollectionAdminList(ctx context.Context, id uint32) ([]string, error) {
	encodedID, err := codec.Encode(types.NewU32(id))
	if err != nil {
		return nil, err
	}

	key, err := types.CreateStorageKey(a.meta, "Nft", "AdminList", encodedID)
	if err != nil {
		return nil, err
	}

	var accounts []types.AccountID
	ok, err := a.api.RPC.State.GetStorageLatest(key, &accounts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	admins := make([]string, 0, len(accounts))
	for _, account := range accounts {
		admins = append(admins, a.encodeAddress(account))
	}

	return admins, nil
}

func (a *Adapter) GetTokensOfCollection(ctx context.Context, id uint32, owner string) ([]uint32, error) {
	encodedID, err := codec.Encode(types.NewU32(id))
	if err != nil {
		return nil, err
	}

	account, err := a.decodeAddress(owner)
	if err != nil {
		return nil, err
	}
	encodedOwner, err := codec.Encode(account)
	if err != nil {
		return nil, err
	}

	key, err := types.CreateStorageKey(a.meta, "Nft", "AddressTokens", encodedID, encodedOwner)
	if err != nil {
		return nil, err
	}

	var rawTokens []types.U32
	ok, err := a.api.RPC.State.GetStorageLatest(key, &rawTokens)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	tokens := make([]uint32, 0, len(rawTokens))
	for _, token := range rawTokens {
		tokens = append(tokens, uint32(token))
	}

	return tokens, nil
}

func (a *Adapter) CreateCollection(ctx context.Context, name, description, tokenPrefix string, mode CollectionMode) <-chan TxEvent {
	return a.submit(ctx, "Nft.create_collection",
		encodeUTF16(name), encodeUTF16(description), types.Bytes(tokenPrefix), mode)
}

func (a *Adapter) SetCollectionSponsor(ctx context.Context, id uint32, sponsor string) <-chan TxEvent {
	account, err := a.decodeAddress(sponsor)
	if err != nil {
		return failedStream(err)
	}
	return a.submit(ctx, "Nft.set_collection_sponsor", types.NewU32(id), account)
}

func (a *Adapter) RemoveCollectionSponsor(ctx context.Context, id uint32) <-chan TxEvent {
	return a.submit(ctx, "Nft.remove_collection_sponsor", types.NewU32(id))
}

func (a *Adapter) ConfirmSponsorship(ctx context.Context, id uint32) <-chan TxEvent {
	return a.submit(ctx, "Nft.confirm_sponsorship", types.NewU32(id))
}

func (a *Adapter) SetSchemaVersion(ctx context.Context, id uint32, version string) <-chan TxEvent {
	variant, err := schemaVersionVariant(version)
	if err != nil {
		return failedStream(err)
	}
	return a.submit(ctx, "Nft.set_schema_version", types.NewU32(id), variant)
}

func (a *Adapter) SetOffChainSchema(ctx context.Context, id uint32, schema []byte) <-chan TxEvent {
	return a.submit(ctx, "Nft.set_offchain_schema", types.NewU32(id), types.Bytes(schema))
}

func (a *Adapter) AddCollectionAdmin(ctx context.Context, id uint32, admin string) <-chan TxEvent {
	account, err := a.decodeAddress(admin)
	if err != nil {
		return failedStream(err)
	}
	return a.submit(ctx, "Nft.add_collection_admin", types.NewU32(id), account)
}

func (a *Adapter) RemoveCollectionAdmin(ctx context.Context, id uint32, admin string) <-chan TxEvent {
	account, err := a.decodeAddress(admin)
	if err != nil {
		return failedStream(err)
	}
	return a.submit(ctx, "Nft.remove_collection_admin", types.NewU32(id), account)
}

func (a *Adapter) SaveConstOnChainSchema(ctx context.Context, id uint32, schema []byte) <-chan TxEvent {
	return a.submit(ctx, "Nft.set_const_on_chain_schema", types.NewU32(id), types.Bytes(schema))
}

func (a *Adapter) SaveVariableOnChainSchema(ctx context.Context, id uint32, schema []byte) <-chan TxEvent {
	return a.submit(ctx, "Nft.set_variable_on_chain_schema", types.NewU32(id), types.Bytes(schema))
}

// submit builds, signs and watches one extrinsic, emitting lifecycle events
// on the returned stream. The stream always ends with a terminal event.
func (a *Adapter) submit(ctx context.Context, callName string, args ...interface{}) <-chan TxEvent {
	events := make(chan TxEvent, 8)

	go func() {
		defer close(events)

		call, err := types.NewCall(a.meta, callName, args...)
		if err != nil {
			events <- TxEvent{State: TxFailed, Err: fmt.Errorf("failed to build call %s: %v", callName, err)}
			return
		}

		events <- TxEvent{State: TxPending, Status: "created"}

		a.submitMu.Lock()
		sub, err := a.signAndSubmit(call)
		a.submitMu.Unlock()
		if err != nil {
			a.logger.Error().Err(err).Str("call", callName).Msg("extrinsic submission failed")
			events <- TxEvent{State: TxFailed, Err: err}
			return
		}
		defer sub.Unsubscribe()

		events <- TxEvent{State: TxSubmitted, Status: "broadcast"}

		for {
			select {
			case <-ctx.Done():
				events <- TxEvent{State: TxFailed, Err: ctx.Err()}
				return
			case err := <-sub.Err():
				events <- TxEvent{State: TxFailed, Err: err}
				return
			case status := <-sub.Chan():
				switch {
				case status.IsInBlock:
					events <- TxEvent{State: TxConfirmed, Status: "inBlock", BlockHash: status.AsInBlock.Hex()}
					return
				case status.IsFinalized:
					events <- TxEvent{State: TxConfirmed, Status: "finalized", BlockHash: status.AsFinalized.Hex()}
					return
				case status.IsDropped:
					events <- TxEvent{State: TxFailed, Err: fmt.Errorf("extrinsic dropped")}
					return
				case status.IsInvalid:
					events <- TxEvent{State: TxFailed, Err: fmt.Errorf("extrinsic invalid")}
					return
				case status.IsUsurped:
					events <- TxEvent{State: TxFailed, Err: fmt.Errorf("extrinsic usurped")}
					return
				case status.IsReady:
					events <- TxEvent{State: TxUpdated, Status: "ready"}
				case status.IsBroadcast:
					events <- TxEvent{State: TxUpdated, Status: "broadcast"}
				default:
					events <- TxEvent{State: TxUpdated, Status: "unknown"}
				}
			}
		}
	}()

	return events
}

func (a *Adapter) signAndSubmit(call types.Call) (*author.ExtrinsicStatusSubscription, error) {
	ext := types.NewExtrinsic(call)

	genesisHash, err := a.api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		return nil, err
	}

	rv, err := a.api.RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return nil, err
	}

	key, err := types.CreateStorageKey(a.meta, "System", "Account", a.signer.PublicKey)
	if err != nil {
		return nil, err
	}

	var accountInfo types.AccountInfo
	if _, err := a.api.RPC.State.GetStorageLatest(key, &accountInfo); err != nil {
		return nil, err
	}

	options := types.SignatureOptions{
		BlockHash:          genesisHash,
		Era:                types.ExtrinsicEra{IsMortalEra: false},
		GenesisHash:        genesisHash,
		Nonce:              types.NewUCompactFromUInt(uint64(accountInfo.Nonce)),
		SpecVersion:        rv.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: rv.TransactionVersion,
	}

	if err := ext.Sign(a.signer, options); err != nil {
		return nil, fmt.Errorf("failed to sign extrinsic: %v", err)
	}

	return a.api.RPC.Author.SubmitAndWatchExtrinsic(ext)
}

func (a *Adapter) encodeAddress(account types.AccountID) string {
	return subkey.SS58Encode(account.ToBytes(), a.ss58Prefix)
}

func (a *Adapter) decodeAddress(address string) (types.AccountID, error) {
	_, pub, err := subkey.SS58Decode(address)
	if err != nil {
		return types.AccountID{}, fmt.Errorf("failed to decode address %s: %v", address, err)
	}

	account, err := types.NewAccountID(pub)
	if err != nil {
		return types.AccountID{}, err
	}

	return *account, nil
}

func encodeUTF16(s string) []types.U16 {
	units := utf16.Encode([]rune(s))
	encoded := make([]types.U16, 0, len(units))
	for _, u := range units {
		encoded = append(encoded, types.U16(u))
	}
	return encoded
}

func schemaVersionVariant(version string) (types.U8, error) {
	switch version {
	case "ImageURL", "ImageUrl":
		return types.NewU8(0), nil
	case "Unique":
		return types.NewU8(1), nil
	default:
		return 0, fmt.Errorf("unknown schema version: %s", version)
	}
}

func failedStream(err error) <-chan TxEvent {
	events := make(chan TxEvent, 1)
	events <- TxEvent{State: TxFailed, Err: err}
	close(events)
	return events
}
