package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"github.com/tyler-smith/go-bip39"

	"github.com/GPTx-global/flightsurety/oracle/log"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

const (
	FileName = "config.toml"

	DefaultNetwork  = "localhost"
	DefaultMnemonic = "candy maple cake sugar pudding cream honey rich smooth crumble sweet treat"

	PolicyRandom = "random"
	PolicyFixed  = "fixed"
	PolicyHTTP   = "http"
)

type Config struct {
	Networks map[string]Network `toml:"networks"`
	Key      KeyConfig          `toml:"key"`
	Oracle   OracleConfig       `toml:"oracle"`
	Server   ServerConfig       `toml:"server"`
	Log      LogConfig          `toml:"log"`

	home string
}

// Network is one entry of the per-network table, selected by name.
type Network struct {
	URL         string `toml:"url"`
	WSURL       string `toml:"ws_url"`
	AppAddress  string `toml:"app_address"`
	DataAddress string `toml:"data_address"`
	AppABIPath  string `toml:"app_abi_path"`
	DataABIPath string `toml:"data_abi_path"`
}

type KeyConfig struct {
	Mnemonic string `toml:"mnemonic"`
	Accounts int    `toml:"accounts"`
}

type OracleConfig struct {
	Network      string `toml:"network"`
	FirstAccount int    `toml:"first_account"`
	PoolSize     int    `toml:"pool_size"`
	Concurrency  int    `toml:"concurrency"`
	Workers      int    `toml:"workers"`
	QueueSize    int    `toml:"queue_size"`
	StatusPolicy string `toml:"status_policy"`
	FixedStatus  uint8  `toml:"fixed_status"`
	StatusURL    string `toml:"status_url"`
	StatusPath   string `toml:"status_path"`
	GasLimit     uint64 `toml:"gas_limit"`
}

type ServerConfig struct {
	Listen      string   `toml:"listen"`
	CORSOrigins []string `toml:"cors_origins"`
}

type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// Default returns the configuration written on first start.
func Default() *Config {
	return &Config{
		Networks: map[string]Network{
			DefaultNetwork: {
				URL:        "http://localhost:8545",
				AppAddress: "0x0000000000000000000000000000000000000000",
			},
		},
		Key: KeyConfig{
			Mnemonic: DefaultMnemonic,
			Accounts: 40,
		},
		Oracle: OracleConfig{
			Network:      DefaultNetwork,
			FirstAccount: 11,
			PoolSize:     20,
			Concurrency:  4,
			Workers:      0,
			QueueSize:    1 << 10,
			StatusPolicy: PolicyRandom,
			FixedStatus:  uint8(types.StatusOnTime),
		},
		Server: ServerConfig{
			Listen:      ":3000",
			CORSOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flightsurety"
	}

	return filepath.Join(home, ".flightsurety")
}

// Load reads <home>/config.toml, writing the default file first when it does not exist.
func Load(home string) (*Config, error) {
	if home == "" {
		home = DefaultHome()
	}
	path := filepath.Join(home, FileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefaultConfig(path); err != nil {
			return nil, errorsmod.Wrapf(types.ErrConfig, "failed to create default config: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrConfig, "failed to read config file: %v", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.home = home

	log.Debugf("Loaded config from %s", path)

	return cfg, nil
}

// Parse decodes TOML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Networks = nil

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errorsmod.Wrapf(types.ErrConfig, "failed to parse TOML: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func createDefaultConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal TOML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return errorsmod.Wrap(types.ErrConfig, "at least one network is required")
	}

	for name, network := range c.Networks {
		if err := network.Validate(); err != nil {
			return errorsmod.Wrapf(err, "network %s", name)
		}
	}

	if _, err := c.Network(c.Oracle.Network); err != nil {
		return err
	}

	if !bip39.IsMnemonicValid(c.Key.Mnemonic) {
		return errorsmod.Wrap(types.ErrConfig, "key mnemonic is invalid")
	}

	if c.Oracle.PoolSize <= 0 {
		return errorsmod.Wrap(types.ErrConfig, "oracle pool size must be positive")
	}

	if c.Oracle.FirstAccount < 0 {
		return errorsmod.Wrap(types.ErrConfig, "oracle first account must not be negative")
	}

	if c.Key.Accounts < c.Oracle.FirstAccount+c.Oracle.PoolSize {
		return errorsmod.Wrapf(types.ErrConfig, "key accounts (%d) must cover the oracle pool (%d..%d)",
			c.Key.Accounts, c.Oracle.FirstAccount, c.Oracle.FirstAccount+c.Oracle.PoolSize-1)
	}

	if c.Oracle.Concurrency <= 0 {
		return errorsmod.Wrap(types.ErrConfig, "oracle concurrency must be positive")
	}

	if c.Oracle.QueueSize <= 0 {
		return errorsmod.Wrap(types.ErrConfig, "oracle queue size must be positive")
	}

	switch c.Oracle.StatusPolicy {
	case PolicyRandom:
	case PolicyFixed:
		if !types.StatusCode(c.Oracle.FixedStatus).Valid() {
			return errorsmod.Wrapf(types.ErrConfig, "invalid fixed status: %d", c.Oracle.FixedStatus)
		}
	case PolicyHTTP:
		if c.Oracle.StatusURL == "" || c.Oracle.StatusPath == "" {
			return errorsmod.Wrap(types.ErrConfig, "http status policy requires status_url and status_path")
		}
	default:
		return errorsmod.Wrapf(types.ErrConfig, "unknown status policy: %s", c.Oracle.StatusPolicy)
	}

	if c.Server.Listen == "" {
		return errorsmod.Wrap(types.ErrConfig, "server listen address is required")
	}

	return nil
}

func (n Network) Validate() error {
	if n.URL == "" {
		return errorsmod.Wrap(types.ErrConfig, "url is required")
	}

	if !common.IsHexAddress(n.AppAddress) {
		return errorsmod.Wrapf(types.ErrConfig, "invalid app address: %q", n.AppAddress)
	}

	if n.DataAddress != "" && !common.IsHexAddress(n.DataAddress) {
		return errorsmod.Wrapf(types.ErrConfig, "invalid data address: %q", n.DataAddress)
	}

	return nil
}

// Network resolves a network entry by name.
func (c *Config) Network(name string) (Network, error) {
	network, ok := c.Networks[name]
	if !ok {
		return Network{}, errorsmod.Wrapf(types.ErrConfig, "missing network entry: %s", name)
	}

	return network, nil
}

// ImportNetworksJSON adds the networks of a dapp config.json, replacing
// entries of the same name.
func (c *Config) ImportNetworksJSON(path string) error {
	networks, err := LoadNetworksJSON(path)
	if err != nil {
		return err
	}

	if c.Networks == nil {
		c.Networks = make(map[string]Network, len(networks))
	}
	for name, network := range networks {
		c.Networks[name] = network
	}
	return nil
}

// Workers returns the configured worker count, defaulting to the number of CPUs.
func (c *Config) Workers() int {
	if c.Oracle.Workers > 0 {
		return c.Oracle.Workers
	}

	return runtime.NumCPU()
}

func (c *Config) Home() string {
	return c.home
}

func (c *Config) Print() {
	network, _ := c.Network(c.Oracle.Network)

	log.Infof("%-15s: %s", "Home", c.home)
	log.Infof("%-15s: %s", "Network", c.Oracle.Network)
	log.Infof("%-15s: %s", "Endpoint", network.URL)
	log.Infof("%-15s: %s", "App Address", network.App().Hex())
	log.Infof("%-15s: %s", "Data Address", network.Data().Hex())
	log.Infof("%-15s: %d", "Pool Size", c.Oracle.PoolSize)
	log.Infof("%-15s: %d", "Concurrency", c.Oracle.Concurrency)
	log.Infof("%-15s: %s", "Status Policy", c.Oracle.StatusPolicy)
	log.Infof("%-15s: %s", "Listen", c.Server.Listen)
}

// WebsocketURL is ws_url when set, otherwise url with its http scheme swapped for ws.
func (n Network) WebsocketURL() string {
	if n.WSURL != "" {
		return n.WSURL
	}

	if strings.HasPrefix(n.URL, "http") {
		return "ws" + strings.TrimPrefix(n.URL, "http")
	}

	return n.URL
}

func (n Network) App() common.Address {
	return common.HexToAddress(n.AppAddress)
}

// Data falls back to the app address when no data address is configured.
func (n Network) Data() common.Address {
	if n.DataAddress == "" {
		return n.App()
	}

	return common.HexToAddress(n.DataAddress)
}

// LoadNetworksJSON imports a dapp config.json of the form
// {"<network>": {"url": "...", "appAddress": "...", "dataAddress": "..."}}.
func LoadNetworksJSON(path string) (map[string]Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrConfig, "failed to read %s: %v", path, err)
	}

	if !gjson.ValidBytes(data) {
		return nil, errorsmod.Wrapf(types.ErrConfig, "invalid json in %s", path)
	}

	networks := make(map[string]Network)
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		networks[key.String()] = Network{
			URL:         value.Get("url").String(),
			WSURL:       value.Get("wsUrl").String(),
			AppAddress:  value.Get("appAddress").String(),
			DataAddress: value.Get("dataAddress").String(),
		}
		return true
	})

	for name, network := range networks {
		if err := network.Validate(); err != nil {
			return nil, errorsmod.Wrapf(err, "network %s", name)
		}
	}

	return networks, nil
}
