package client

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/tidwall/gjson"
)

// Contract names the two FlightSurety contracts.
type Contract string

const (
	AppContract  Contract = "app"
	DataContract Contract = "data"
)

// app contract methods and events
const (
	MethodRequireIsOperational = "requireIsOperational"
	MethodFetchFlightStatus    = "fetchFlightStatus"
	MethodRegisterOracle       = "registerOracle"
	MethodGetMyIndexes         = "getMyIndexes"
	MethodRegistrationFee      = "REGISTRATION_FEE"
	MethodSubmitOracleResponse = "submitOracleResponse"
	MethodRegisterAirline      = "registerAirline"

	EventOracleRequest = "OracleRequest"
)

// data contract methods
const (
	MethodIsOperational       = "isOperational"
	MethodSetOperatingStatus  = "setOperatingStatus"
	MethodAuthoriseContract   = "authoriseContract"
	MethodFund                = "fund"
	MethodBuyInsurance        = "buyInsurance"
	MethodIsAirlineRegistered = "isAirlineRegistered"
)

const FlightSuretyAppABI = `[
  {"type":"function","name":"requireIsOperational","stateMutability":"view","inputs":[],"outputs":[]},
  {"type":"function","name":"fetchFlightStatus","stateMutability":"nonpayable","inputs":[
    {"name":"airline","type":"address"},{"name":"flight","type":"string"},{"name":"timestamp","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"registerOracle","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"getMyIndexes","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8[3]"}]},
  {"type":"function","name":"REGISTRATION_FEE","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"submitOracleResponse","stateMutability":"nonpayable","inputs":[
    {"name":"index","type":"uint8"},{"name":"airline","type":"address"},{"name":"flight","type":"string"},
    {"name":"timestamp","type":"uint256"},{"name":"statusCode","type":"uint8"}],"outputs":[]},
  {"type":"function","name":"registerAirline","stateMutability":"nonpayable","inputs":[
    {"name":"airline","type":"address"},{"name":"name","type":"string"}],"outputs":[]},
  {"type":"event","name":"OracleRequest","anonymous":false,"inputs":[
    {"name":"airline","type":"address","indexed":false},{"name":"flight","type":"string","indexed":false},
    {"name":"flightTimestamp","type":"uint256","indexed":false},{"name":"index","type":"uint8","indexed":false}]}
]`

const FlightSuretyDataABI = `[
  {"type":"function","name":"isOperational","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"setOperatingStatus","stateMutability":"nonpayable","inputs":[{"name":"mode","type":"bool"}],"outputs":[]},
  {"type":"function","name":"authoriseContract","stateMutability":"nonpayable","inputs":[{"name":"contractAddress","type":"address"}],"outputs":[]},
  {"type":"function","name":"fund","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"buyInsurance","stateMutability":"payable","inputs":[
    {"name":"airline","type":"address"},{"name":"flight","type":"string"},{"name":"timestamp","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"isAirlineRegistered","stateMutability":"view","inputs":[{"name":"airline","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

// LoadABI parses the ABI at path, which may be either a bare ABI array or a
// truffle build artifact carrying it under "abi". An empty path yields fallback.
func LoadABI(path, fallback string) (abi.ABI, error) {
	raw := fallback

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to read abi %s: %w", path, err)
		}

		if artifact := gjson.GetBytes(data, "abi"); artifact.IsArray() {
			raw = artifact.Raw
		} else {
			raw = string(data)
		}
	}

	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse abi: %w", err)
	}

	return parsed, nil
}
