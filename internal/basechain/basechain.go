// Package basechain aggregates on-chain wallet activity from a Base RPC node.
//
// The service runs against a plain JSON-RPC endpoint with no indexer, so NFT
// holdings and contract interactions are estimated from the transaction count
// rather than enumerated. Recent transfers are recovered by scanning the last
// few blocks and are display data only; they never feed the score.
package basechain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"

	"github.com/ninerlabs/ninerscore/internal/circuitbreaker"
	"github.com/ninerlabs/ninerscore/internal/score"
)

// ErrUnavailable means the chain data provider failed for every wallet or is
// being skipped by the circuit breaker.
var ErrUnavailable = errors.New("basechain: chain data provider unavailable")

// breakerKey identifies the Base RPC endpoint in the shared circuit breaker.
const breakerKey = "base_rpc"

const (
	// MaxRecentTransfers bounds the display-only transfer list.
	MaxRecentTransfers = 10
	// recentBlockScan is how many trailing blocks to scan for transfers.
	recentBlockScan = 5
)

// Transfer is a recent transaction involving one of the user's wallets.
type Transfer struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	ValueEth  string `json:"value"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"` // "send", "receive", or "contract"
}

// Activity is aggregate wallet activity across a set of addresses.
type Activity struct {
	BalanceWei           string     `json:"balance"`
	BalanceEth           float64    `json:"balanceEth"`
	TransactionCount     int        `json:"transactionCount"`
	NFTCount             int        `json:"nftCount"`
	ContractInteractions int        `json:"contractInteractions"`
	RecentTransactions   []Transfer `json:"recentTransactions"`
	PrimaryWallet        string     `json:"primaryWallet,omitempty"`
}

// ChainActivity converts to the score calculator's input type.
func (a *Activity) ChainActivity() score.ChainActivity {
	return score.ChainActivity{
		BalanceEth:           a.BalanceEth,
		TransactionCount:     a.TransactionCount,
		NFTCount:             a.NFTCount,
		ContractInteractions: a.ContractInteractions,
	}
}

// Provider is the chain data source the base-score path depends on.
type Provider interface {
	Activity(ctx context.Context, addresses []string) (*Activity, error)
}

// chainReader is the subset of ethclient.Client the aggregator needs.
type chainReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
}

// Compile-time check that Aggregator implements Provider.
var _ Provider = (*Aggregator)(nil)

// Aggregator reads wallet activity from a Base RPC endpoint.
type Aggregator struct {
	client  chainReader
	signer  types.Signer
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// Option configures the aggregator.
type Option func(*Aggregator)

// WithBreaker sets a shared circuit breaker.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(a *Aggregator) { a.breaker = b }
}

// WithChainReader injects a chain reader (for testing).
func WithChainReader(r chainReader) Option {
	return func(a *Aggregator) { a.client = r }
}

// New dials the RPC endpoint and creates an aggregator.
func New(rpcURL string, chainID int64, logger *slog.Logger, opts ...Option) (*Aggregator, error) {
	a := &Aggregator{
		signer: types.LatestSignerForChainID(big.NewInt(chainID)),
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		client, err := ethclient.Dial(rpcURL)
		if err != nil {
			return nil, fmt.Errorf("dial rpc: %w", err)
		}
		a.client = client
	}
	if a.breaker == nil {
		a.breaker = circuitbreaker.New(5, 30*time.Second)
	}
	return a, nil
}

// Activity aggregates balance and activity across the wallet set. Wallets
// that fail individually are skipped; the call fails only when no wallet
// could be read at all.
func (a *Aggregator) Activity(ctx context.Context, addresses []string) (*Activity, error) {
	if !a.breaker.Allow(breakerKey) {
		return nil, ErrUnavailable
	}

	act := &Activity{}
	totalBalance := new(big.Int)
	succeeded := 0

	for i, addr := range addresses {
		account := common.HexToAddress(addr)

		balance, err := a.client.BalanceAt(ctx, account, nil)
		if err != nil {
			a.logger.Warn("skipping wallet, balance read failed", "wallet", addr, "error", err)
			continue
		}
		nonce, err := a.client.NonceAt(ctx, account, nil)
		if err != nil {
			a.logger.Warn("skipping wallet, nonce read failed", "wallet", addr, "error", err)
			continue
		}

		totalBalance.Add(totalBalance, balance)
		txCount := int(nonce)
		act.TransactionCount += txCount
		// No indexer: estimate holdings from activity volume.
		act.NFTCount += txCount / 10
		act.ContractInteractions += txCount * 7 / 10

		if i == 0 {
			act.PrimaryWallet = addr
		}
		succeeded++
	}

	if succeeded == 0 {
		a.breaker.RecordFailure(breakerKey)
		return nil, ErrUnavailable
	}
	a.breaker.RecordSuccess(breakerKey)

	act.BalanceWei = totalBalance.String()
	act.BalanceEth = weiToEth(totalBalance)

	// Recent transfers are best-effort display data; a failed scan is not
	// an aggregation failure.
	transfers, err := a.recentTransfers(ctx, addresses)
	if err != nil {
		a.logger.Warn("recent transfer scan failed", "error", err)
	} else {
		act.RecentTransactions = transfers
	}

	return act, nil
}

// recentTransfers scans the last few blocks for transactions touching any of
// the given wallets.
func (a *Aggregator) recentTransfers(ctx context.Context, addresses []string) ([]Transfer, error) {
	wallets := make(map[common.Address]bool, len(addresses))
	for _, addr := range addresses {
		wallets[common.HexToAddress(addr)] = true
	}

	head, err := a.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}

	var transfers []Transfer
	for n := head; n > 0 && n > head-recentBlockScan && len(transfers) < MaxRecentTransfers; n-- {
		block, err := a.client.BlockByNumber(ctx, new(big.Int).SetUint64(n))
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", n, err)
		}
		for _, tx := range block.Transactions() {
			from, err := types.Sender(a.signer, tx)
			if err != nil {
				continue
			}
			to := tx.To()
			if !wallets[from] && (to == nil || !wallets[*to]) {
				continue
			}

			t := Transfer{
				Hash:      tx.Hash().Hex(),
				From:      from.Hex(),
				ValueEth:  weiToEthString(tx.Value()),
				Timestamp: int64(block.Time()),
			}
			switch {
			case to == nil || len(tx.Data()) > 0:
				t.Type = "contract"
			case wallets[from]:
				t.Type = "send"
			default:
				t.Type = "receive"
			}
			if to != nil {
				t.To = to.Hex()
			}
			transfers = append(transfers, t)
			if len(transfers) == MaxRecentTransfers {
				break
			}
		}
	}
	return transfers, nil
}

func weiToEth(wei *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return f
}

func weiToEthString(wei *big.Int) string {
	return new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Text('f', 6)
}
