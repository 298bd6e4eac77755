package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GPTx-global/flightsurety/dapp"
	"github.com/GPTx-global/flightsurety/oracle/config"
	"github.com/GPTx-global/flightsurety/oracle/log"
)

const (
	flagHome      = "home"
	flagNetwork   = "network"
	flagFormat    = "format"
	flagLogLevel  = "log-level"
	flagTimestamp = "timestamp"
	flagValue     = "value"
	flagCaller    = "caller"

	flagNetworksJSON = "networks-json"

	envPrefix = "FLIGHTSURETY"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// contractFactory opens the dapp contract for a command. Tests swap it out.
type contractFactory func(ctx context.Context, cfg *config.Config, network string) (*dapp.Contract, error)

func NewRootCmd() *cobra.Command {
	return newRootCmd(dapp.NewContract)
}

func newRootCmd(open contractFactory) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "dapp",
		Short:         "FlightSurety passenger and airline actions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return v.BindPFlags(cmd.Flags())
		},
	}

	rootCmd.PersistentFlags().String(flagHome, config.DefaultHome(), "directory holding config.toml")
	rootCmd.PersistentFlags().String(flagNetwork, "", "network entry to use (overrides oracle.network)")
	rootCmd.PersistentFlags().String(flagFormat, dapp.FormatText, "output format: text or json")
	rootCmd.PersistentFlags().String(flagLogLevel, "", "log level (overrides log.level)")
	rootCmd.PersistentFlags().String(flagNetworksJSON, "", "dapp config.json whose networks are added to the config")
	rootCmd.PersistentFlags().Int64(flagTimestamp, 0, "flight timestamp in unix seconds (default now)")

	a := &actions{v: v, open: open}
	rootCmd.AddCommand(
		a.operationalCmd(),
		a.fetchStatusCmd(),
		a.buyCmd(),
		a.statusUpdateCmd(),
		a.registerAirlineCmd(),
		a.airlineRegisteredCmd(),
		a.setOperationalCmd(),
		a.authoriseCmd(),
		a.fundCmd(),
	)

	return rootCmd
}

type actions struct {
	v    *viper.Viper
	open contractFactory
}

// run opens the contract, performs fn and displays its results. Failed rows
// are displayed like the others and then returned as the command error.
func (a *actions) run(cmd *cobra.Command, title, description string, fn func(ctx context.Context, c *dapp.Contract) []dapp.Result) error {
	cfg, err := config.Load(a.v.GetString(flagHome))
	if err != nil {
		return err
	}
	if level := a.v.GetString(flagLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if path := a.v.GetString(flagNetworksJSON); path != "" {
		if err := cfg.ImportNetworksJSON(path); err != nil {
			return err
		}
	}
	log.InitLogger(cfg.Log.Level, cfg.Log.JSON)

	network := cfg.Oracle.Network
	if name := a.v.GetString(flagNetwork); name != "" {
		network = name
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := a.open(ctx, cfg, network)
	if err != nil {
		return err
	}
	defer c.Close()

	if ts := a.v.GetInt64(flagTimestamp); ts > 0 {
		c.WithClock(func() time.Time { return time.Unix(ts, 0) })
	}

	results := fn(ctx, c)
	if err := dapp.Display(cmd.OutOrStdout(), a.v.GetString(flagFormat), title, description, results); err != nil {
		return err
	}
	return dapp.Err(results)
}

func (a *actions) operationalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operational",
		Short: "Check if the contract is operational",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "Operational Status", "Check if contract is operational", func(ctx context.Context, c *dapp.Contract) []dapp.Result {
				operational, err := c.IsOperational(ctx)
				dataOperational, dataErr := c.IsDataOperational(ctx)
				return []dapp.Result{
					{Label: "Operational Status", Error: err, Value: operational},
					{Label: "Data Operational Status", Error: dataErr, Value: dataOperational},
				}
			})
		},
	}
}

func (a *actions) fetchStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-status <flight>",
		Short: "Trigger oracles for a flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "Oracles", "Trigger oracles", func(ctx context.Context, c *dapp.Contract) []dapp.Result {
				payload, err := c.FetchFlightStatus(ctx, args[0])
				return []dapp.Result{{Label: "Fetch Flight Status", Error: err, Value: payload}}
			})
		},
	}
}

func (a *actions) buyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy <flight>",
		Short: "Buy insurance for a flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := etherValue(a.v.Get(flagValue))
			if err != nil {
				return err
			}
			return a.run(cmd, "Buy", "Buy Insurance", func(ctx context.Context, c *dapp.Contract) []dapp.Result {
				payload, err := c.BuyInsurance(ctx, args[0], value)
				return []dapp.Result{{Label: "Buy insurance", Error: err, Value: payload}}
			})
		},
	}
	cmd.Flags().String(flagValue, "0", "premium in ether")
	return cmd
}

func (a *actions) statusUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status-update <flight>",
		Short: "Send a flight update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "Oracles", "flight update", func(ctx context.Context, c *dapp.Contract) []dapp.Result {
				payload, err := c.FlightStatusUpdate(ctx, args[0])
				return []dapp.Result{{Label: "Flight update", Error: err, Value: payload}}
			})
		},
	}
}

func (a *actions) registerAirlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register-airline <address> <name>",
		Short: "Register an airline, sponsored by the first airline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			airline, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			return a.run(cmd, "Airlines", "Register airline", func(ctx context.Context, c *dapp.Contract) []dapp.Result {
				err := c.RegisterAirline(ctx, airline, args[1])
				return []dapp.Result{{Label: "Register airline", Error: err, Value: airline.Hex()}}
			})
		},
	}
}

func (a *actions) airlineRegisteredCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "airline-registered [address]",
		Short: "Check whether an airline is registered (default every dapp airline)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var only *common.Address
			if len(args) == 1 {
				airline, err := parseAddress(args[0])
				if err != nil {
					return err
				}
				only = &airline
			}

			return a.run(cmd, "Airlines", "Registration status", func(ctx context.Context, c *dapp.Contract) []dapp.Result {
				airlines := c.Airlines()
				if only != nil {
					airlines = []common.Address{*only}
				}

				results := make([]dapp.Result, 0, len(airlines))
				for _, airline := range airlines {
					registered, err := c.IsAirlineRegistered(ctx, airline)
					results = append(results, dapp.Result{Label: airline.Hex(), Error: err, Value: registered})
				}
				return results
			})
		},
	}
}

func (a *actions) setOperationalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-operational <true|false>",
		Short: "Set the operating status of the data contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := cast.ToBoolE(args[0])
			if err != nil {
				return fmt.Errorf("invalid operating status %q: %w", args[0], err)
			}
			return a.run(cmd, "Operational Status", "Set operating status", func(ctx context.Context, c *dapp.Contract) []dapp.Result {
				err := c.SetOperatingStatus(ctx, mode)
				return []dapp.Result{{Label: "Operational Status", Error: err, Value: mode}}
			})
		},
	}
}

func (a *actions) authoriseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorise",
		Short: "Authorise a caller of the data contract (default the app contract)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var caller common.Address
			if raw := a.v.GetString(flagCaller); raw != "" {
				var err error
				if caller, err = parseAddress(raw); err != nil {
					return err
				}
			}
			return a.run(cmd, "Data contract", "Authorise caller", func(ctx context.Context, c *dapp.Contract) []dapp.Result {
				err := c.Authorise(ctx, caller)
				return []dapp.Result{{Label: "Authorise", Error: err, Value: err == nil}}
			})
		},
	}
	cmd.Flags().String(flagCaller, "", "address to authorise")
	return cmd
}

func (a *actions) fundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund <ether>",
		Short: "Fund the data contract from the first airline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := etherValue(args[0])
			if err != nil {
				return err
			}
			return a.run(cmd, "Data contract", "Fund", func(ctx context.Context, c *dapp.Contract) []dapp.Result {
				err := c.Fund(ctx, value)
				return []dapp.Result{{Label: "Fund", Error: err, Value: value.String() + " wei"}}
			})
		},
	}
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

// etherValue converts a decimal ether amount to wei.
func etherValue(raw any) (*big.Int, error) {
	s := strings.TrimSpace(cast.ToString(raw))
	if s == "" {
		return new(big.Int), nil
	}

	ether, ok := new(big.Rat).SetString(s)
	if !ok || ether.Sign() < 0 {
		return nil, fmt.Errorf("invalid ether amount: %q", s)
	}

	wei := ether.Mul(ether, new(big.Rat).SetInt(big.NewInt(params.Ether)))
	return new(big.Int).Quo(wei.Num(), wei.Denom()), nil
}
