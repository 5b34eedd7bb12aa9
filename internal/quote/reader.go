package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	routerABIJSON = `[{"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}]`
	erc20ABIJSON  = `[{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}]`
)

var (
	routerABI abi.ABI
	erc20ABI  abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		panic("failed to parse router ABI: " + err.Error())
	}
	routerABI = parsed

	parsed, err = abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC-20 ABI: " + err.Error())
	}
	erc20ABI = parsed
}

// Options parameterise the on-chain rate reader.
type Options struct {
	RPCURL        string
	ChainID       int64
	RouterAddress string
	BaseAddress   string
	QuoteAddress  string
	BaseSymbol    string
	Timeout       time.Duration
}

// PairInfo carries resolved token metadata for the monitored pair.
type PairInfo struct {
	BaseSymbol    string
	QuoteSymbol   string
	BaseDecimals  uint8
	QuoteDecimals uint8
}

// Reader quotes the pool rate through a UniswapV2-style router via
// Ethereum RPC.
type Reader struct {
	opts      Options
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
	pair      *PairInfo
	pairMux   sync.Mutex
}

// NewReader builds a new rate reader.
func NewReader(opts Options, logger zerolog.Logger) *Reader {
	return &Reader{opts: opts, logger: logger.With().Str("component", "rate_reader").Logger()}
}

// Verify probes the RPC endpoint, checks the chain identifier against the
// configuration, and resolves pair metadata. Intended for startup so bad
// endpoints or token addresses fail before the loop begins.
func (r *Reader) Verify(ctx context.Context) (PairInfo, error) {
	if err := r.checkOptions(); err != nil {
		return PairInfo{}, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	client, err := r.getClient(ctx)
	if err != nil {
		return PairInfo{}, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return PairInfo{}, fmt.Errorf("query chain id: %w", err)
	}
	if r.opts.ChainID != 0 && chainID.Int64() != r.opts.ChainID {
		return PairInfo{}, fmt.Errorf("rpc serves chain %s, configuration expects %d", chainID, r.opts.ChainID)
	}

	pair, err := r.getPair(ctx, client)
	if err != nil {
		return PairInfo{}, err
	}
	return *pair, nil
}

// FetchRate asks the router how much quote token one whole base token buys.
func (r *Reader) FetchRate(ctx context.Context) (decimal.Decimal, error) {
	if err := r.checkOptions(); err != nil {
		return decimal.Decimal{}, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	client, err := r.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	pair, err := r.getPair(ctx, client)
	if err != nil {
		return decimal.Decimal{}, err
	}

	amountIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(pair.BaseDecimals)), nil)
	path := []common.Address{
		common.HexToAddress(r.opts.BaseAddress),
		common.HexToAddress(r.opts.QuoteAddress),
	}

	payload, err := routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return decimal.Decimal{}, err
	}

	router := common.HexToAddress(r.opts.RouterAddress)
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &router, Data: payload}, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}

	outputs, err := routerABI.Unpack("getAmountsOut", res)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(outputs) != 1 {
		return decimal.Decimal{}, errors.New("unexpected getAmountsOut response")
	}

	amounts, ok := outputs[0].([]*big.Int)
	if !ok {
		return decimal.Decimal{}, errors.New("failed to decode getAmountsOut output")
	}
	if len(amounts) < 2 {
		return decimal.Decimal{}, fmt.Errorf("getAmountsOut returned %d amounts", len(amounts))
	}

	out := amounts[len(amounts)-1]
	if out.Sign() == 0 {
		return decimal.Decimal{}, errors.New("router returned zero output amount")
	}

	return decimal.NewFromBigInt(out, -int32(pair.QuoteDecimals)), nil
}

func (r *Reader) checkOptions() error {
	if r.opts.RPCURL == "" {
		return errors.New("chain rpc url not configured")
	}
	if r.opts.RouterAddress == "" {
		return errors.New("router address not configured")
	}
	if r.opts.BaseAddress == "" || r.opts.QuoteAddress == "" {
		return errors.New("token pair addresses not configured")
	}
	return nil
}

func (r *Reader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *Reader) getClient(ctx context.Context) (*ethclient.Client, error) {
	r.clientMux.Lock()
	defer r.clientMux.Unlock()

	if r.client != nil {
		return r.client, nil
	}

	client, err := ethclient.DialContext(ctx, r.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	r.client = client
	return client, nil
}

func (r *Reader) getPair(ctx context.Context, client *ethclient.Client) (*PairInfo, error) {
	r.pairMux.Lock()
	defer r.pairMux.Unlock()

	if r.pair != nil {
		return r.pair, nil
	}

	baseDecimals, err := r.tokenDecimals(ctx, client, r.opts.BaseAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve base token decimals: %w", err)
	}
	quoteDecimals, err := r.tokenDecimals(ctx, client, r.opts.QuoteAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve quote token decimals: %w", err)
	}

	baseSymbol := r.opts.BaseSymbol
	if baseSymbol == "" {
		baseSymbol, err = r.tokenSymbol(ctx, client, r.opts.BaseAddress)
		if err != nil {
			return nil, fmt.Errorf("resolve base token symbol: %w", err)
		}
	}
	quoteSymbol, err := r.tokenSymbol(ctx, client, r.opts.QuoteAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve quote token symbol: %w", err)
	}

	pair := &PairInfo{
		BaseSymbol:    baseSymbol,
		QuoteSymbol:   quoteSymbol,
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
	}
	r.pair = pair

	r.logger.Debug().
		Str("base", baseSymbol).
		Str("quote", quoteSymbol).
		Uint8("base_decimals", baseDecimals).
		Uint8("quote_decimals", quoteDecimals).
		Msg("resolved pair metadata")

	return pair, nil
}

func (r *Reader) tokenDecimals(ctx context.Context, client *ethclient.Client, tokenAddress string) (uint8, error) {
	output, err := r.callToken(ctx, client, tokenAddress, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := output.(uint8)
	if !ok {
		return 0, errors.New("failed to decode decimals output")
	}
	return decimals, nil
}

func (r *Reader) tokenSymbol(ctx context.Context, client *ethclient.Client, tokenAddress string) (string, error) {
	output, err := r.callToken(ctx, client, tokenAddress, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := output.(string)
	if !ok {
		return "", errors.New("failed to decode symbol output")
	}
	return symbol, nil
}

func (r *Reader) callToken(ctx context.Context, client *ethclient.Client, tokenAddress, method string) (interface{}, error) {
	payload, err := erc20ABI.Pack(method)
	if err != nil {
		return nil, err
	}

	addr := common.HexToAddress(tokenAddress)
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, err
	}

	outputs, err := erc20ABI.Unpack(method, res)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("unexpected %s response", method)
	}
	return outputs[0], nil
}

var _ RateFetcher = (*Reader)(nil)
