package indexer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/events"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/indexer"
)

// Compile-time check to ensure Source implements indexer.WatcherSource interface.
var _ indexer.WatcherSource = (*Source)(nil)

const (
	sourceListed     = "listed-token"
	sourceRegistered = "registered-token"
)

// Source lists the configured watchers plus, when enabled, one watcher per token kind for
// every listed or registered token. The token tables are read on every pass, so tokens
// added by the platform or discovered through the token list are picked up without restart.
type Source struct {
	static     []indexer.Watcher
	db         *sql.DB
	tokens     config.TokenSourcesConfig
	startBlock uint64
}

// NewSource expands the configured watchers into one watcher per event kind.
func NewSource(cfg *config.Config, database *sql.DB) (*Source, error) {
	static, err := ExpandWatchers(cfg.Watchers, cfg.Sync.StartBlock)
	if err != nil {
		return nil, err
	}

	return &Source{
		static:     static,
		db:         database,
		tokens:     cfg.TokenSources,
		startBlock: cfg.Sync.StartBlock,
	}, nil
}

// ExpandWatchers turns each configured watcher into one watcher per kind. A watcher without
// kinds follows every kind of its contract type.
func ExpandWatchers(cfgs []config.WatcherConfig, startBlock uint64) ([]indexer.Watcher, error) {
	var out []indexer.Watcher

	for _, wc := range cfgs {
		kinds := events.KindsFor(wc.ContractType)
		if len(wc.Kinds) > 0 {
			kinds = kinds[:0]
			for _, name := range wc.Kinds {
				kind, err := events.ParseKind(name)
				if err != nil {
					return nil, fmt.Errorf("watcher %s: %w", wc.Name, err)
				}
				if kind.ContractType() != wc.ContractType {
					return nil, fmt.Errorf("watcher %s: kind %s belongs to contract type %s, not %s",
						wc.Name, kind, kind.ContractType(), wc.ContractType)
				}
				kinds = append(kinds, kind)
			}
		}

		for _, kind := range kinds {
			out = append(out, indexer.Watcher{
				Name:         wc.Name,
				Address:      common.HexToAddress(wc.Address),
				ContractType: wc.ContractType,
				Kind:         kind.String(),
				StartBlock:   startBlock,
			})
		}
	}

	return dedupe(out), nil
}

// Watchers returns the watchers of one pass.
func (s *Source) Watchers(ctx context.Context) ([]indexer.Watcher, error) {
	out := make([]indexer.Watcher, 0, len(s.static))
	out = append(out, s.static...)

	if s.tokens.ListedTokens {
		tokens, err := s.queryTokens(ctx, `SELECT token_address FROM listed_token ORDER BY token_address`)
		if err != nil {
			return nil, fmt.Errorf("failed to load listed tokens: %w", err)
		}
		out = append(out, s.tokenWatchers(sourceListed, tokens)...)
	}

	if s.tokens.RegisteredTokens {
		tokens, err := s.queryTokens(ctx,
			`SELECT token_address FROM idx_token_list WHERE is_known_template = 1 ORDER BY token_address`)
		if err != nil {
			return nil, fmt.Errorf("failed to load registered tokens: %w", err)
		}
		out = append(out, s.tokenWatchers(sourceRegistered, tokens)...)
	}

	return dedupe(out), nil
}

func (s *Source) tokenWatchers(name string, tokens []common.Address) []indexer.Watcher {
	kinds := events.KindsFor(config.ContractTypeToken)

	out := make([]indexer.Watcher, 0, len(tokens)*len(kinds))
	for _, token := range tokens {
		for _, kind := range kinds {
			out = append(out, indexer.Watcher{
				Name:         name,
				Address:      token,
				ContractType: config.ContractTypeToken,
				Kind:         kind.String(),
				StartBlock:   s.startBlock,
			})
		}
	}

	return out
}

func (s *Source) queryTokens(ctx context.Context, query string) ([]common.Address, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []common.Address
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, err
		}
		if !common.IsHexAddress(address) {
			continue
		}
		tokens = append(tokens, common.HexToAddress(address))
	}

	return tokens, rows.Err()
}

// dedupe keeps the first watcher of every checkpoint key. Two watchers sharing a key would
// race on the same checkpoint.
func dedupe(watchers []indexer.Watcher) []indexer.Watcher {
	seen := make(map[string]struct{}, len(watchers))
	out := watchers[:0]

	for _, w := range watchers {
		if _, ok := seen[w.Key()]; ok {
			continue
		}
		seen[w.Key()] = struct{}{}
		out = append(out, w)
	}

	return out
}
