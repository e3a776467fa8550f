package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bud42069/Arbeit-Trage/internal/apperror"
	"github.com/bud42069/Arbeit-Trage/internal/circuitbreaker"
)

// swapRouterABI is a minimal Uniswap-V3-Router-shaped ABI - only the single
// entrypoint this connector needs to encode calldata for. Signing and
// broadcast are explicitly out of scope; ExecuteSwap hands the encoded
// calldata to a SwapSubmitter, an opaque "submit swap" capability.
const swapRouterABI = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "tokenIn", "type": "address"},
					{"internalType": "address", "name": "tokenOut", "type": "address"},
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"},
					{"internalType": "address", "name": "recipient", "type": "address"}
				],
				"internalType": "struct ISwapRouter.ExactInputSingleParams",
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "exactInputSingle",
		"outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// SwapParams is the set of inputs ExecuteSwap ABI-encodes.
type SwapParams struct {
	TokenIn          common.Address
	TokenOut         common.Address
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	Recipient        common.Address
}

// SwapSubmitter is the opaque "submit swap" boundary: given ABI-encoded
// calldata and a target contract, submit it however the deployment
// requires. Signing/broadcast details are deliberately not this package's
// concern.
type SwapSubmitter interface {
	Submit(ctx context.Context, to common.Address, calldata []byte) (txSig string, err error)
}

// swapEncoder holds the parsed router ABI.
type swapEncoder struct {
	parsed abi.ABI
}

func newSwapEncoder() (*swapEncoder, error) {
	parsed, err := abi.JSON(strings.NewReader(swapRouterABI))
	if err != nil {
		return nil, fmt.Errorf("parse swap router abi: %w", err)
	}
	return &swapEncoder{parsed: parsed}, nil
}

func (e *swapEncoder) encode(p SwapParams) ([]byte, error) {
	return e.parsed.Pack("exactInputSingle", p)
}

// SimulatedSubmitter is the only concrete SwapSubmitter this package ships:
// it never broadcasts anything, returning a deterministic pseudo-tx-sig for
// observe-only / paper-trading deployments, analogous to the Python
// connector's own execute_swap POC stub. Wrapped in a circuit breaker; the
// only submission it fails is one with empty calldata, and a string of those
// trips the breaker the same way a real submitter's failures would.
type SimulatedSubmitter struct {
	router common.Address
	cb     *circuitbreaker.CircuitBreaker[string]
	seq    int
}

// NewSimulatedSubmitter builds a SimulatedSubmitter targeting router.
func NewSimulatedSubmitter(router common.Address) *SimulatedSubmitter {
	return &SimulatedSubmitter{
		router: router,
		cb:     circuitbreaker.New[string](circuitbreaker.DefaultConfig("dex-simulated-submitter")),
	}
}

// Submit implements SwapSubmitter.
func (s *SimulatedSubmitter) Submit(ctx context.Context, to common.Address, calldata []byte) (string, error) {
	result, err := s.cb.Execute(func() (string, error) {
		if len(calldata) == 0 {
			return "", apperror.New(apperror.CodeSwapSubmitFailed, apperror.WithContext("empty calldata"))
		}
		s.seq++
		return fmt.Sprintf("simulated-0x%x-%d", to, s.seq), nil
	})
	return result, err
}

// ExecuteSwap ABI-encodes p against the router's swap entrypoint and hands
// the calldata to submitter. This is the connector's only live-trading
// write path; every byte of it is auditable via p.
func ExecuteSwap(ctx context.Context, router common.Address, p SwapParams, submitter SwapSubmitter) (string, error) {
	enc, err := newSwapEncoder()
	if err != nil {
		return "", err
	}
	calldata, err := enc.encode(p)
	if err != nil {
		return "", apperror.New(apperror.CodeSwapSubmitFailed, apperror.WithCause(err))
	}
	txSig, err := submitter.Submit(ctx, router, calldata)
	if err != nil {
		return "", apperror.New(apperror.CodeSwapSubmitFailed, apperror.WithCause(err))
	}
	return txSig, nil
}
