package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/core"
	"github.com/hyperledger-labs/lane-relayer/store/redisstore"
)

// GlobalConfig holds settings that apply to the whole process.
type GlobalConfig struct {
	Timeout   string `json:"timeout" yaml:"timeout"`
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
	LogOutput string `json:"log_output" yaml:"log_output"`

	// SubmitRateLimit is the global submission rate shared across lanes,
	// in transactions per second. SubmitRateBurst defaults to 1.
	SubmitRateLimit float64 `json:"submit_rate_limit" yaml:"submit_rate_limit"`
	SubmitRateBurst int     `json:"submit_rate_burst,omitempty" yaml:"submit_rate_burst,omitempty"`

	Store StoreConfig `json:"store" yaml:"store"`
}

// StoreConfig selects the lane-state persistence backend.
type StoreConfig struct {
	// Type is "file" or "redis"
	Type  string            `json:"type" yaml:"type"`
	Redis redisstore.Config `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// ChainProverConfig defines the top level configuration for a chain instance
type ChainProverConfig struct {
	Chain  json.RawMessage `json:"chain" yaml:"chain"`
	Prover json.RawMessage `json:"prover" yaml:"prover"`
}

// LaneConfig defines a relayed lane between two configured chains.
type LaneConfig struct {
	Name    string             `json:"name" yaml:"name"`
	LaneID  core.LaneID        `json:"lane_id" yaml:"lane_id"`
	Src     string             `json:"src" yaml:"src"`
	Dst     string             `json:"dst" yaml:"dst"`
	Engine  core.EngineConfig  `json:"engine" yaml:"engine"`
	Service core.ServiceConfig `json:"service" yaml:"service"`
}

type Config struct {
	Global GlobalConfig        `json:"global" yaml:"global"`
	Chains []ChainProverConfig `json:"chains" yaml:"chains"`
	Lanes  []LaneConfig        `json:"lanes" yaml:"lanes"`

	// path of the loaded config file
	ConfigPath string `json:"-" yaml:"-"`

	// cache of built chains, keyed by chain id
	chains map[string]*core.ProvableChain
}

func DefaultConfig(configPath string) Config {
	return Config{
		Global: GlobalConfig{
			Timeout:         "10s",
			LogLevel:        "info",
			LogFormat:       "json",
			LogOutput:       "stderr",
			SubmitRateLimit: 4,
			Store:           StoreConfig{Type: "file"},
		},
		Chains:     []ChainProverConfig{},
		Lanes:      []LaneConfig{},
		ConfigPath: configPath,
	}
}

func LoadConfig(configPath string) (*Config, error) {
	bz, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(core.ErrConfiguration, "failed to read config file %s: %v", configPath, err)
	}
	var c Config
	if err := json.Unmarshal(bz, &c); err != nil {
		return nil, errors.Wrapf(core.ErrConfiguration, "failed to parse config file %s: %v", configPath, err)
	}
	c.ConfigPath = configPath
	return &c, nil
}

func (c *Config) Save() error {
	bz, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.ConfigPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.ConfigPath, bz, 0o600)
}

func (c *Config) Timeout() (time.Duration, error) {
	if c.Global.Timeout == "" {
		return 10 * time.Second, nil
	}
	to, err := time.ParseDuration(c.Global.Timeout)
	if err != nil {
		return 0, errors.Wrapf(core.ErrConfiguration, "invalid global timeout %q: %v", c.Global.Timeout, err)
	}
	return to, nil
}

// InitChains builds every configured chain/prover pair through the
// registry and caches the results.
func (c *Config) InitChains(registry *Registry, homePath string, debug bool) error {
	to, err := c.Timeout()
	if err != nil {
		return err
	}
	c.chains = map[string]*core.ProvableChain{}
	for _, entry := range c.Chains {
		chainCfg, err := registry.UnmarshalChainConfig(entry.Chain)
		if err != nil {
			return err
		}
		if err := chainCfg.Validate(); err != nil {
			return errors.Wrap(core.ErrConfiguration, err.Error())
		}
		chain, err := chainCfg.Build()
		if err != nil {
			return err
		}
		proverCfg, err := registry.UnmarshalProverConfig(entry.Prover)
		if err != nil {
			return err
		}
		if err := proverCfg.Validate(); err != nil {
			return errors.Wrap(core.ErrConfiguration, err.Error())
		}
		prover, err := proverCfg.Build(chain)
		if err != nil {
			return err
		}
		if _, ok := c.chains[chain.ChainID()]; ok {
			return errors.Wrapf(core.ErrConfiguration, "duplicate chain id %q", chain.ChainID())
		}
		if err := chain.Init(homePath, to, debug); err != nil {
			return err
		}
		c.chains[chain.ChainID()] = core.NewProvableChain(chain, prover)
	}
	return nil
}

func (c *Config) GetChain(chainID string) (*core.ProvableChain, error) {
	chain, ok := c.chains[chainID]
	if !ok {
		return nil, errors.Wrapf(core.ErrConfiguration, "chain id %q not found", chainID)
	}
	return chain, nil
}

// AddChain adds an additional chain to the config
func (c *Config) AddChain(registry *Registry, entry ChainProverConfig) error {
	chainCfg, err := registry.UnmarshalChainConfig(entry.Chain)
	if err != nil {
		return err
	}
	if err := chainCfg.Validate(); err != nil {
		return errors.Wrap(core.ErrConfiguration, err.Error())
	}
	chain, err := chainCfg.Build()
	if err != nil {
		return err
	}
	if c.chains != nil {
		if _, ok := c.chains[chain.ChainID()]; ok {
			return errors.Wrapf(core.ErrConfiguration, "chain with id %q already exists in config", chain.ChainID())
		}
	}
	c.Chains = append(c.Chains, entry)
	return nil
}

// AddLane adds an additional lane to the config
func (c *Config) AddLane(lane LaneConfig) error {
	for _, l := range c.Lanes {
		if l.Name == lane.Name {
			return errors.Wrapf(core.ErrConfiguration, "lane %q already exists in config", lane.Name)
		}
	}
	if lane.Src == lane.Dst {
		return errors.Wrapf(core.ErrConfiguration, "lane %q connects chain %q to itself", lane.Name, lane.Src)
	}
	c.Lanes = append(c.Lanes, lane)
	return nil
}

func (c *Config) GetLane(name string) (*LaneConfig, error) {
	for i := range c.Lanes {
		if c.Lanes[i].Name == name {
			return &c.Lanes[i], nil
		}
	}
	return nil, errors.Wrapf(core.ErrConfiguration, "lane %q not found", name)
}

// ChainsFromLane returns the source and destination chains of the named lane.
func (c *Config) ChainsFromLane(name string) (src, dst *core.ProvableChain, lane *LaneConfig, err error) {
	lane, err = c.GetLane(name)
	if err != nil {
		return nil, nil, nil, err
	}
	if src, err = c.GetChain(lane.Src); err != nil {
		return nil, nil, nil, err
	}
	if dst, err = c.GetChain(lane.Dst); err != nil {
		return nil, nil, nil, err
	}
	return src, dst, lane, nil
}
