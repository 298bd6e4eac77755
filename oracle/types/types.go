package types

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// IndexCount is the number of indexes the contract assigns to every oracle.
const IndexCount = 3

// Oracle is a registered account together with the indexes the contract gave it.
type Oracle struct {
	Account common.Address
	Indexes [IndexCount]uint8
}

func (o Oracle) Has(index uint8) bool {
	return slices.Contains(o.Indexes[:], index)
}

func (o Oracle) String() string {
	return fmt.Sprintf("%s%v", o.Account.Hex(), o.Indexes)
}

// FlightStatusRequest is a decoded OracleRequest event.
type FlightStatusRequest struct {
	Airline   common.Address
	Flight    string
	Timestamp *big.Int
	Index     uint8

	TxHash      common.Hash
	LogIndex    uint
	BlockNumber uint64
}

// Key is keccak256(index, airline, flight, timestamp) in packed encoding,
// matching the key the contract files responses under.
func (r FlightStatusRequest) Key() common.Hash {
	ts := r.Timestamp
	if ts == nil {
		ts = new(big.Int)
	}

	return crypto.Keccak256Hash(
		[]byte{r.Index},
		r.Airline.Bytes(),
		[]byte(r.Flight),
		math.U256Bytes(new(big.Int).Set(ts)),
	)
}

// ID identifies the log that carried the request. A redelivered log keeps its
// ID, a later request for the same flight and index gets a new one.
func (r FlightStatusRequest) ID() string {
	return fmt.Sprintf("%s/%d", r.TxHash.Hex(), r.LogIndex)
}

func (r FlightStatusRequest) String() string {
	return fmt.Sprintf("index=%d airline=%s flight=%s timestamp=%s", r.Index, r.Airline.Hex(), r.Flight, r.Timestamp)
}

// OracleResponse is what a single matching oracle submits for a request.
type OracleResponse struct {
	Account   common.Address
	Index     uint8
	Airline   common.Address
	Flight    string
	Timestamp *big.Int
	Status    StatusCode

	RequestKey    common.Hash
	CorrelationID string
}

func NewOracleResponse(account common.Address, req FlightStatusRequest, status StatusCode) OracleResponse {
	return OracleResponse{
		Account:    account,
		Index:      req.Index,
		Airline:    req.Airline,
		Flight:     req.Flight,
		Timestamp:  req.Timestamp,
		Status:     status,
		RequestKey: req.Key(),
	}
}

// InsurancePurchase is the payload the dapp builds before sending buyInsurance
// or fetchFlightStatus.
type InsurancePurchase struct {
	Airline   common.Address
	Flight    string
	Timestamp int64
}

func (p InsurancePurchase) String() string {
	return fmt.Sprintf("%s %d", p.Flight, p.Timestamp)
}
