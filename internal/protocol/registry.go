// Package protocol knows the supported protocols, chains and stablecoins and
// how to build deposit and withdraw calls for each protocol.
package protocol

import (
	"strings"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

// Config describes a supported protocol.
type Config struct {
	Protocol         yield.Protocol         `json:"protocol"`
	Name             string                 `json:"name"`
	RiskScore        int                    `json:"riskScore"`
	Audited          bool                   `json:"audited"`
	DepositFunction  string                 `json:"depositFunction"`
	WithdrawFunction string                 `json:"withdrawFunction"`
	Contracts        map[yield.Chain]string `json:"contracts"`
}

// Match order matters: the first protocol whose id appears in a project name wins.
var protocolOrder = []yield.Protocol{yield.Aave, yield.Compound, yield.Yearn, yield.Curve, yield.Beefy}

var registry = map[yield.Protocol]Config{
	yield.Aave: {
		Protocol:         yield.Aave,
		Name:             "Aave",
		RiskScore:        2,
		Audited:          true,
		DepositFunction:  "supply",
		WithdrawFunction: "withdraw",
		Contracts: map[yield.Chain]string{
			yield.Ethereum: "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2",
			yield.Polygon:  "0x794a61358D6845594F94dc1DB02A252b5b4814aD",
			yield.Arbitrum: "0x794a61358D6845594F94dc1DB02A252b5b4814aD",
		},
	},
	yield.Compound: {
		Protocol:         yield.Compound,
		Name:             "Compound",
		RiskScore:        3,
		Audited:          true,
		DepositFunction:  "supply",
		WithdrawFunction: "withdraw",
		Contracts: map[yield.Chain]string{
			yield.Ethereum: "0xc3d688B66703497DAA19211EEdff47f25384cdc3",
			yield.Polygon:  "0xF25212E676D1F7F89Cd72fFEe66158f541246445",
			yield.Base:     "0x9c4ec768c28520B50860ea7a15bd7213a9fF58bf",
		},
	},
	yield.Yearn: {
		Protocol:         yield.Yearn,
		Name:             "Yearn",
		RiskScore:        4,
		Audited:          true,
		DepositFunction:  "deposit",
		WithdrawFunction: "withdraw",
		Contracts: map[yield.Chain]string{
			yield.Ethereum: "0xdA816459F1AB5631232FE5e97a05BBBb94970c95",
			yield.Polygon:  "0xBFdD2E9C8C6D1A1D5D87BfAc4cae4907D6dBB0d7",
			yield.Arbitrum: "0x239e14A19DFF93a17339DCC444f74406C17f8E67",
		},
	},
	yield.Curve: {
		Protocol:         yield.Curve,
		Name:             "Curve",
		RiskScore:        3,
		Audited:          true,
		DepositFunction:  "add_liquidity",
		WithdrawFunction: "remove_liquidity",
		Contracts: map[yield.Chain]string{
			yield.Ethereum: "0xbEbc44782C7dB0a1A60Cb6fe97d0b483032FF1C7",
			yield.Polygon:  "0x445FE580eF8d70FF569aB36e80c647af338db351",
			yield.Arbitrum: "0x7f90122BF0700F9E7e1F688fe926940E8839F353",
		},
	},
	yield.Beefy: {
		Protocol:         yield.Beefy,
		Name:             "Beefy",
		RiskScore:        5,
		Audited:          true,
		DepositFunction:  "deposit",
		WithdrawFunction: "withdraw",
		Contracts: map[yield.Chain]string{
			yield.Polygon:  "0x1A83524A07F4e36AcC87faaE3ded1cc95FFE4D33",
			yield.Arbitrum: "0xBfcbF6B01C19e213838EbfF58aA8d2A190eF77f8",
		},
	},
}

// Stablecoin allowlist in match order.
var stablecoins = []yield.Token{yield.USDC, yield.USDT, yield.DAI}

var tokenDecimals = map[yield.Token]int32{
	yield.USDC: 6,
	yield.USDT: 6,
	yield.DAI:  18,
}

var tokenAddresses = map[yield.Token]map[yield.Chain]string{
	yield.USDC: {
		yield.Ethereum: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		yield.Polygon:  "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		yield.Arbitrum: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		yield.Optimism: "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		yield.Base:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	},
	yield.USDT: {
		yield.Ethereum: "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		yield.Polygon:  "0xc2132D05D31c914a87C6611C10748AEb04B58e8F",
		yield.Arbitrum: "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9",
		yield.Optimism: "0x94b008aA00579c1307B0EF2c499aD98a8ce58e58",
		yield.Base:     "0xfde4C96c8593536E31F229EA8f37b2ADa2699bb2",
	},
	yield.DAI: {
		yield.Ethereum: "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		yield.Polygon:  "0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063",
		yield.Arbitrum: "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1",
		yield.Optimism: "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1",
		yield.Base:     "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb",
	},
}

// Lookup returns the configuration of p.
func Lookup(p yield.Protocol) (Config, bool) {
	c, ok := registry[p]
	return c, ok
}

// All returns every supported protocol in match order.
func All() []Config {
	out := make([]Config, 0, len(protocolOrder))
	for _, p := range protocolOrder {
		out = append(out, registry[p])
	}
	return out
}

// ContractAddress returns the deployed contract of p on chain.
func ContractAddress(p yield.Protocol, chain yield.Chain) (string, bool) {
	c, ok := registry[p]
	if !ok {
		return "", false
	}
	addr, ok := c.Contracts[chain]
	return addr, ok
}

// MatchProtocol maps a free-form project name ("aave-v3", "compound-v3") to
// a supported protocol by case-insensitive substring.
func MatchProtocol(project string) (yield.Protocol, bool) {
	lower := strings.ToLower(project)
	for _, p := range protocolOrder {
		if strings.Contains(lower, string(p)) {
			return p, true
		}
	}
	return "", false
}

// MatchStablecoin maps a pool symbol ("USDC.e", "aUSDT") to a supported stablecoin.
func MatchStablecoin(symbol string) (yield.Token, bool) {
	upper := strings.ToUpper(symbol)
	for _, t := range stablecoins {
		if strings.Contains(upper, string(t)) {
			return t, true
		}
	}
	return "", false
}

// Chains returns the supported chains in ascending id order.
func Chains() []yield.Chain {
	return []yield.Chain{yield.Ethereum, yield.Optimism, yield.Polygon, yield.Base, yield.Arbitrum}
}

// Stablecoins returns the supported stablecoins.
func Stablecoins() []yield.Token {
	out := make([]yield.Token, len(stablecoins))
	copy(out, stablecoins)
	return out
}

// TokenAddress returns the ERC-20 address of token on chain.
func TokenAddress(token yield.Token, chain yield.Chain) (string, bool) {
	addr, ok := tokenAddresses[token][chain]
	return addr, ok
}

// Decimals returns the on-chain precision of token (6 when unknown).
func Decimals(token yield.Token) int32 {
	if d, ok := tokenDecimals[token]; ok {
		return d
	}
	return 6
}
