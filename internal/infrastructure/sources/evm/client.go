package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/infrastructure/configloader"
)

// ERC20 ABI minimal part for balanceOf
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

// ZeroAddress represents the EVM zero address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	erc20MethodID   []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		balanceOfMethod, ok := parsedERC20ABI.Methods["balanceOf"]
		if !ok {
			panic("balanceOf method not found in parsed ERC20 ABI")
		}
		erc20MethodID = balanceOfMethod.ID
	})
}

// balanceRequest is one sub-request of a batched balance call.
type balanceRequest struct {
	Native bool
	Wallet string
	Token  entity.Token
}

// balanceResult pairs a sub-request with its outcome.
type balanceResult struct {
	Token   entity.Token
	Balance *big.Int
	Err     error
}

// Client wraps one EVM chain's JSON-RPC endpoint and issues batched
// eth_getBalance / eth_call balanceOf requests. RPC calls go through a
// per-chain token-bucket limiter so one chattering chain cannot saturate its
// provider.
type Client struct {
	ethClient      *ethclient.Client
	network        configloader.EVMNetworkConfig
	limiter        *rate.Limiter
	rpcCallTimeout time.Duration
}

// NewClient dials the network's primary RPC URL, falling back through the
// configured alternates.
func NewClient(network configloader.EVMNetworkConfig, connectionTimeout, rpcCallTimeout time.Duration) (*Client, error) {
	initParsedERC20ABI()

	rps := network.LimiterRPS
	if rps <= 0 {
		rps = 5
	}
	burst := network.LimiterBurst
	if burst <= 0 {
		burst = 2
	}

	rpcURLs := append([]string{network.PrimaryRPCURL}, network.FallbackRPCURLs...)
	var lastErr error
	for _, rpcURL := range rpcURLs {
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		client, err := ethclient.DialContext(ctx, rpcURL)
		cancel()
		if err == nil {
			return &Client{
				ethClient:      client,
				network:        network,
				limiter:        rate.NewLimiter(rate.Limit(rps), burst),
				rpcCallTimeout: rpcCallTimeout,
			}, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", network.Identifier, lastErr)
}

// GetBalances resolves all sub-requests in a single JSON-RPC batch.
// Individual sub-request failures are reported per item, a failed batch as a
// whole error.
func (c *Client) GetBalances(ctx context.Context, requests []balanceRequest) ([]balanceResult, error) {
	if len(requests) == 0 {
		return []balanceResult{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, entity.NewTransientError(c.network.Identifier, "rpc limiter wait cancelled", err)
	}

	batchElems := make([]rpc.BatchElem, len(requests))
	results := make([]balanceResult, len(requests))

	for i, req := range requests {
		results[i] = balanceResult{Token: req.Token}
		if req.Native {
			batchElems[i] = rpc.BatchElem{
				Method: "eth_getBalance",
				Args:   []interface{}{common.HexToAddress(req.Wallet), "latest"},
				Result: new(*hexutil.Big),
			}
			continue
		}

		paddedWallet := common.LeftPadBytes(common.HexToAddress(req.Wallet).Bytes(), 32)
		callData := append(append([]byte(nil), erc20MethodID...), paddedWallet...)
		callArgs := map[string]interface{}{
			"to":   common.HexToAddress(req.Token.Address),
			"data": hexutil.Bytes(callData),
		}
		batchElems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args:   []interface{}{callArgs, "latest"},
			Result: new(hexutil.Bytes),
		}
	}

	rpcCallCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	if err := c.ethClient.Client().BatchCallContext(rpcCallCtx, batchElems); err != nil {
		return nil, entity.NewTransientError(c.network.Identifier, "RPC batch call failed", err)
	}

	for i, elem := range batchElems {
		if elem.Error != nil {
			results[i].Err = entity.NewTransientError(c.network.Identifier,
				fmt.Sprintf("failed to fetch %s balance", requests[i].Token.Symbol), elem.Error)
			continue
		}

		if requests[i].Native {
			result, ok := elem.Result.(**hexutil.Big)
			if !ok || result == nil || *result == nil {
				results[i].Err = entity.NewValidationError(c.network.Identifier,
					fmt.Sprintf("failed to decode native balance for %s", requests[i].Token.Symbol), nil)
				continue
			}
			results[i].Balance = (*big.Int)(*result)
			continue
		}

		raw, ok := elem.Result.(*hexutil.Bytes)
		if !ok || raw == nil {
			results[i].Err = entity.NewValidationError(c.network.Identifier,
				fmt.Sprintf("failed to decode token balance for %s", requests[i].Token.Symbol), nil)
			continue
		}
		if len(*raw) == 0 {
			results[i].Balance = big.NewInt(0)
			continue
		}

		unpacked, err := parsedERC20ABI.Unpack("balanceOf", *raw)
		if err != nil || len(unpacked) == 0 {
			results[i].Err = entity.NewValidationError(c.network.Identifier,
				fmt.Sprintf("failed to unpack balanceOf result for %s", requests[i].Token.Symbol), err)
			continue
		}
		balance, ok := unpacked[0].(*big.Int)
		if !ok {
			results[i].Err = entity.NewValidationError(c.network.Identifier,
				fmt.Sprintf("unexpected balanceOf result type %T for %s", unpacked[0], requests[i].Token.Symbol), nil)
			continue
		}
		results[i].Balance = balance
	}
	return results, nil
}

// Network returns the configuration this client serves.
func (c *Client) Network() configloader.EVMNetworkConfig {
	return c.network
}
