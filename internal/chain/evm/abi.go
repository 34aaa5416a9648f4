package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Minimal ABI fragments for the three contracts the keeper touches: the
// vault, Chainlink-style price aggregators, and ERC20 tokens.

const vaultABIJSON = `[
  {
    "name": "getActiveOrders", "type": "function", "stateMutability": "view",
    "inputs": [],
    "outputs": [{
      "name": "orders", "type": "tuple[]", "components": [
        {"name": "id", "type": "uint256"},
        {"name": "owner", "type": "address"},
        {"name": "kind", "type": "uint8"},
        {"name": "state", "type": "uint8"},
        {"name": "trigger", "type": "tuple", "components": [
          {"name": "oracle", "type": "address"},
          {"name": "targetPrice", "type": "uint256"},
          {"name": "deadline", "type": "uint256"}
        ]},
        {"name": "execution", "type": "tuple", "components": [
          {"name": "inputToken", "type": "address"},
          {"name": "outputToken", "type": "address"},
          {"name": "inputAmount", "type": "uint256"},
          {"name": "minOutputAmount", "type": "uint256"},
          {"name": "slippageBps", "type": "uint256"}
        ]},
        {"name": "createdAt", "type": "uint256"}
      ]
    }]
  },
  {
    "name": "getOrder", "type": "function", "stateMutability": "view",
    "inputs": [{"name": "orderId", "type": "uint256"}],
    "outputs": [{
      "name": "order", "type": "tuple", "components": [
        {"name": "id", "type": "uint256"},
        {"name": "owner", "type": "address"},
        {"name": "kind", "type": "uint8"},
        {"name": "state", "type": "uint8"},
        {"name": "trigger", "type": "tuple", "components": [
          {"name": "oracle", "type": "address"},
          {"name": "targetPrice", "type": "uint256"},
          {"name": "deadline", "type": "uint256"}
        ]},
        {"name": "execution", "type": "tuple", "components": [
          {"name": "inputToken", "type": "address"},
          {"name": "outputToken", "type": "address"},
          {"name": "inputAmount", "type": "uint256"},
          {"name": "minOutputAmount", "type": "uint256"},
          {"name": "slippageBps", "type": "uint256"}
        ]},
        {"name": "createdAt", "type": "uint256"}
      ]
    }]
  },
  {
    "name": "executeOrder", "type": "function", "stateMutability": "nonpayable",
    "inputs": [{"name": "orderId", "type": "uint256"}],
    "outputs": []
  }
]`

const aggregatorABIJSON = `[
  {
    "name": "latestRoundData", "type": "function", "stateMutability": "view",
    "inputs": [],
    "outputs": [
      {"name": "roundId", "type": "uint80"},
      {"name": "answer", "type": "int256"},
      {"name": "startedAt", "type": "uint256"},
      {"name": "updatedAt", "type": "uint256"},
      {"name": "answeredInRound", "type": "uint80"}
    ]
  },
  {
    "name": "decimals", "type": "function", "stateMutability": "view",
    "inputs": [], "outputs": [{"name": "", "type": "uint8"}]
  }
]`

const erc20ABIJSON = `[
  {
    "name": "balanceOf", "type": "function", "stateMutability": "view",
    "inputs": [{"name": "account", "type": "address"}],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "name": "decimals", "type": "function", "stateMutability": "view",
    "inputs": [], "outputs": [{"name": "", "type": "uint8"}]
  }
]`

var (
	vaultABI      = mustParseABI(vaultABIJSON)
	aggregatorABI = mustParseABI(aggregatorABIJSON)
	erc20ABI      = mustParseABI(erc20ABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("evm: invalid ABI: " + err.Error())
	}
	return parsed
}

// vaultOrder mirrors the vault's Order struct for ABI decoding.
type vaultOrder struct {
	Id      *big.Int
	Owner   common.Address
	Kind    uint8
	State   uint8
	Trigger struct {
		Oracle      common.Address
		TargetPrice *big.Int
		Deadline    *big.Int
	}
	Execution struct {
		InputToken      common.Address
		OutputToken     common.Address
		InputAmount     *big.Int
		MinOutputAmount *big.Int
		SlippageBps     *big.Int
	}
	CreatedAt *big.Int
}
