package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/unqnft/marketplace-proxy/internal/module/market/chain"
	"github.com/unqnft/marketplace-proxy/utils/config"
)

var (
	ErrCollectionAddingDisabled = fmt.Errorf("collection adding is disabled")
	ErrTokenEditingDisabled     = fmt.Errorf("token editing is disabled")
)

// CollectionService fronts the collection management extrinsics. Each write
// blocks until the transaction reaches a terminal state and reports it.
type CollectionService interface {
	CollectionCount(ctx context.Context) (uint32, error)
	TokensCount(ctx context.Context, id uint32) (uint32, error)
	AdminList(ctx context.Context, id uint32) ([]string, error)
	TokensOf(ctx context.Context, id uint32, owner string) ([]uint32, error)

	CreateCollection(ctx context.Context, name, description, tokenPrefix string) (chain.TxEvent, error)
	SetSponsor(ctx context.Context, id uint32, sponsor string) (chain.TxEvent, error)
	RemoveSponsor(ctx context.Context, id uint32) (chain.TxEvent, error)
	ConfirmSponsorship(ctx context.Context, id uint32) (chain.TxEvent, error)
	SetSchemaVersion(ctx context.Context, id uint32, version string) (chain.TxEvent, error)
	SetOffChainSchema(ctx context.Context, id uint32, schema []byte) (chain.TxEvent, error)
	AddAdmin(ctx context.Context, id uint32, admin string) (chain.TxEvent, error)
	RemoveAdmin(ctx context.Context, id uint32, admin string) (chain.TxEvent, error)
	SaveConstSchema(ctx context.Context, id uint32, schema []byte) (chain.TxEvent, error)
	SaveVariableSchema(ctx context.Context, id uint32, schema []byte) (chain.TxEvent, error)
}

type collectionService struct {
	cfg    config.Market
	reader chain.Reader
	writer chain.Writer
	logger zerolog.Logger
}

func NewCollectionService(cfg config.Market, reader chain.Reader, writer chain.Writer, logger zerolog.Logger) CollectionService {
	return &collectionService{
		cfg:    cfg,
		reader: reader,
		writer: writer,
		logger: logger.With().Str("component", "collections").Logger(),
	}
}

// await drives the callbacks adapter and hands back the terminal event.
func (s *collectionService) await(operation string, events <-chan chain.TxEvent) (chain.TxEvent, error) {
	var terminal chain.TxEvent

	chain.WatchTx(events, chain.TxCallbacks{
		OnStart: func() {
			s.logger.Info().Str("operation", operation).Msg("extrinsic submitted")
		},
		OnUpdate: func(ev chain.TxEvent) {
			s.logger.Debug().Str("operation", operation).Str("status", ev.Status).Msg("extrinsic status")
		},
		OnSuccess: func(ev chain.TxEvent) {
			terminal = ev
		},
		OnFailed: func(ev chain.TxEvent) {
			terminal = ev
		},
	})

	if terminal.State == chain.TxFailed {
		s.logger.Error().Err(terminal.Err).Str("operation", operation).Msg("extrinsic failed")
		return terminal, terminal.Err
	}

	return terminal, nil
}

func (s *collectionService) CollectionCount(ctx context.Context) (uint32, error) {
	count, err := s.reader.GetCreatedCollectionCount(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read collection count")
		return 0, nil
	}
	return count, nil
}

func (s *collectionService) TokensCount(ctx context.Context, id uint32) (uint32, error) {
	count, err := s.reader.GetCollectionTokensCount(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Uint32("id", id).Msg("failed to read tokens count")
		return 0, nil
	}
	return count, nil
}

func (s *collectionService) AdminList(ctx context.Context, id uint32) ([]string, error) {
	admins, err := s.reader.GetCollectionAdminList(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Uint32("id", id).Msg("failed to read admin list")
		return nil, nil
	}
	return admins, nil
}

func (s *collectionService) TokensOf(ctx context.Context, id uint32, owner string) ([]uint32, error) {
	tokens, err := s.reader.GetTokensOfCollection(ctx, id, owner)
	if err != nil {
		s.logger.Error().Err(err).Uint32("id", id).Str("owner", owner).Msg("failed to read owner tokens")
		return nil, nil
	}
	return tokens, nil
}

func (s *collectionService) CreateCollection(ctx context.Context, name, description, tokenPrefix string) (chain.TxEvent, error) {
	if !s.cfg.CanAddCollections {
		return chain.TxEvent{}, ErrCollectionAddingDisabled
	}
	mode := chain.CollectionMode{IsNFT: true}
	return s.await("create_collection", s.writer.CreateCollection(ctx, name, description, tokenPrefix, mode))
}

func (s *collectionService) SetSponsor(ctx context.Context, id uint32, sponsor string) (chain.TxEvent, error) {
	return s.await("set_collection_sponsor", s.writer.SetCollectionSponsor(ctx, id, sponsor))
}

func (s *collectionService) RemoveSponsor(ctx context.Context, id uint32) (chain.TxEvent, error) {
	return s.await("remove_collection_sponsor", s.writer.RemoveCollectionSponsor(ctx, id))
}

func (s *collectionService) ConfirmSponsorship(ctx context.Context, id uint32) (chain.TxEvent, error) {
	return s.await("confirm_sponsorship", s.writer.ConfirmSponsorship(ctx, id))
}

func (s *collectionService) SetSchemaVersion(ctx context.Context, id uint32, version string) (chain.TxEvent, error) {
	if !s.cfg.CanEditToken {
		return chain.TxEvent{}, ErrTokenEditingDisabled
	}
	return s.await("set_schema_version", s.writer.SetSchemaVersion(ctx, id, version))
}

func (s *collectionService) SetOffChainSchema(ctx context.Context, id uint32, schema []byte) (chain.TxEvent, error) {
	if !s.cfg.CanEditToken {
		return chain.TxEvent{}, ErrTokenEditingDisabled
	}
	return s.await("set_offchain_schema", s.writer.SetOffChainSchema(ctx, id, schema))
}

func (s *collectionService) AddAdmin(ctx context.Context, id uint32, admin string) (chain.TxEvent, error) {
	return s.await("add_collection_admin", s.writer.AddCollectionAdmin(ctx, id, admin))
}

func (s *collectionService) RemoveAdmin(ctx context.Context, id uint32, admin string) (chain.TxEvent, error) {
	return s.await("remove_collection_admin", s.writer.RemoveCollectionAdmin(ctx, id, admin))
}

func (s *collectionService) SaveConstSchema(ctx context.Context, id uint32, schema []byte) (chain.TxEvent, error) {
	if !s.cfg.CanEditToken {
		return chain.TxEvent{}, ErrTokenEditingDisabled
	}
	return s.await("set_const_on_chain_schema", s.writer.SaveConstOnChainSchema(ctx, id, schema))
}

func (s *collectionService) SaveVariableSchema(ctx context.Context, id uint32, schema []byte) (chain.TxEvent, error) {
	if !s.cfg.CanEditToken {
		return chain.TxEvent{}, ErrTokenEditingDisabled
	}
	return s.await("set_variable_on_chain_schema", s.writer.SaveVariableOnChainSchema(ctx, id, schema))
}
