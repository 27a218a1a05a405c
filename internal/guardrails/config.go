// Package guardrails holds the user policy that gates rebalance moves and
// the pure rules that evaluate moves against it.
package guardrails

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/web3-frozen/stable-yield/internal/protocol"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

type RiskTolerance string

const (
	Conservative RiskTolerance = "conservative"
	Moderate     RiskTolerance = "moderate"
	Aggressive   RiskTolerance = "aggressive"
)

// Config is a policy snapshot. MinBreakEvenDays is an upper bound on the
// break-even period despite its name.
type Config struct {
	MaxSlippage                 float64          `json:"maxSlippage" yaml:"max_slippage"`
	GasCeiling                  string           `json:"gasCeiling" yaml:"gas_ceiling"`
	MinAPYDelta                 float64          `json:"minAPYDelta" yaml:"min_apy_delta"`
	MaxSingleProtocolAllocation float64          `json:"maxSingleProtocolAllocation" yaml:"max_single_protocol_allocation"`
	BlacklistedProtocols        []yield.Protocol `json:"blacklistedProtocols" yaml:"blacklisted_protocols"`
	MinBreakEvenDays            int              `json:"minBreakEvenDays" yaml:"min_breakeven_days"`
	RiskTolerance               RiskTolerance    `json:"riskTolerance" yaml:"risk_tolerance"`
}

// DefaultGasCeiling is 0.1 native token in wei.
const DefaultGasCeiling = "100000000000000000"

// Defaults returns the moderate policy.
func Defaults() Config {
	return Config{
		MaxSlippage:                 0.5,
		GasCeiling:                  DefaultGasCeiling,
		MinAPYDelta:                 1.0,
		MaxSingleProtocolAllocation: 40,
		BlacklistedProtocols:        []yield.Protocol{},
		MinBreakEvenDays:            30,
		RiskTolerance:               Moderate,
	}
}

type profile struct {
	maxSlippage   float64
	minAPYDelta   float64
	maxAllocation float64
	breakEvenDays int
}

var presets = map[RiskTolerance]profile{
	Conservative: {maxSlippage: 0.3, minAPYDelta: 2.0, maxAllocation: 25, breakEvenDays: 20},
	Moderate:     {maxSlippage: 0.5, minAPYDelta: 1.0, maxAllocation: 40, breakEvenDays: 30},
	Aggressive:   {maxSlippage: 1.0, minAPYDelta: 0.5, maxAllocation: 60, breakEvenDays: 45},
}

// WithPreset returns a copy of c with the profiled fields of rt applied.
// Unknown presets leave c untouched and return an error.
func (c Config) WithPreset(rt RiskTolerance) (Config, error) {
	p, ok := presets[rt]
	if !ok {
		return c, yield.NewValidationError(fmt.Sprintf("unknown risk tolerance %q", rt), nil)
	}
	c.MaxSlippage = p.maxSlippage
	c.MinAPYDelta = p.minAPYDelta
	c.MaxSingleProtocolAllocation = p.maxAllocation
	c.MinBreakEvenDays = p.breakEvenDays
	c.RiskTolerance = rt
	c.BlacklistedProtocols = c.blacklistCopy()
	return c, nil
}

// Update is a partial edit. Nil fields are left unchanged. A RiskTolerance
// applies its preset before the explicit fields.
type Update struct {
	MaxSlippage                 *float64          `json:"maxSlippage"`
	GasCeiling                  *string           `json:"gasCeiling"`
	MinAPYDelta                 *float64          `json:"minAPYDelta"`
	MaxSingleProtocolAllocation *float64          `json:"maxSingleProtocolAllocation"`
	BlacklistedProtocols        *[]yield.Protocol `json:"blacklistedProtocols"`
	MinBreakEvenDays            *int              `json:"minBreakEvenDays"`
	RiskTolerance               *RiskTolerance    `json:"riskTolerance"`
}

// Apply returns c with u applied, or an error and c unchanged if the result
// would be invalid.
func (c Config) Apply(u Update) (Config, error) {
	next := c
	next.BlacklistedProtocols = c.blacklistCopy()
	var err error
	if u.RiskTolerance != nil {
		if next, err = next.WithPreset(*u.RiskTolerance); err != nil {
			return c, err
		}
	}
	if u.MaxSlippage != nil {
		next.MaxSlippage = *u.MaxSlippage
	}
	if u.GasCeiling != nil {
		next.GasCeiling = *u.GasCeiling
	}
	if u.MinAPYDelta != nil {
		next.MinAPYDelta = *u.MinAPYDelta
	}
	if u.MaxSingleProtocolAllocation != nil {
		next.MaxSingleProtocolAllocation = *u.MaxSingleProtocolAllocation
	}
	if u.BlacklistedProtocols != nil {
		next.BlacklistedProtocols = append([]yield.Protocol{}, (*u.BlacklistedProtocols)...)
	}
	if u.MinBreakEvenDays != nil {
		next.MinBreakEvenDays = *u.MinBreakEvenDays
	}
	if err := next.Validate(); err != nil {
		return c, err
	}
	return next, nil
}

// Validate rejects negative bounds, unparseable gas ceilings, unknown
// protocols and unknown presets.
func (c Config) Validate() error {
	var errs []error
	if c.MaxSlippage < 0 {
		errs = append(errs, errors.New("maxSlippage must not be negative"))
	}
	if c.MinAPYDelta < 0 {
		errs = append(errs, errors.New("minAPYDelta must not be negative"))
	}
	if c.MaxSingleProtocolAllocation < 0 || c.MaxSingleProtocolAllocation > 100 {
		errs = append(errs, errors.New("maxSingleProtocolAllocation must be between 0 and 100"))
	}
	if c.MinBreakEvenDays < 0 {
		errs = append(errs, errors.New("minBreakEvenDays must not be negative"))
	}
	if _, ok := parseWei(c.GasCeiling); !ok {
		errs = append(errs, fmt.Errorf("gasCeiling %q is not a non-negative integer", c.GasCeiling))
	}
	if _, ok := presets[c.RiskTolerance]; !ok {
		errs = append(errs, fmt.Errorf("unknown risk tolerance %q", c.RiskTolerance))
	}
	for _, p := range c.BlacklistedProtocols {
		if _, ok := protocol.Lookup(p); !ok {
			errs = append(errs, fmt.Errorf("unknown protocol %q in blacklist", p))
		}
	}
	if len(errs) > 0 {
		return yield.NewValidationError("invalid guardrails", errors.Join(errs...))
	}
	return nil
}

// IsBlacklisted reports whether p is in the blacklist.
func (c Config) IsBlacklisted(p yield.Protocol) bool {
	for _, b := range c.BlacklistedProtocols {
		if b == p {
			return true
		}
	}
	return false
}

func (c Config) blacklistCopy() []yield.Protocol {
	return append([]yield.Protocol{}, c.BlacklistedProtocols...)
}

// LoadFile reads a YAML policy over the defaults. A missing file yields the
// defaults. When the file names a risk_tolerance, its preset is applied first
// and explicit fields in the file override it.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read guardrails: %w", err)
	}

	var head struct {
		RiskTolerance RiskTolerance `yaml:"risk_tolerance"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return cfg, fmt.Errorf("parse guardrails: %w", err)
	}
	if head.RiskTolerance != "" {
		if cfg, err = cfg.WithPreset(head.RiskTolerance); err != nil {
			return Defaults(), err
		}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Defaults(), fmt.Errorf("parse guardrails: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Defaults(), err
	}
	return cfg, nil
}

func parseWei(s string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}
