package types

import (
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
)

const Codespace = "flightsurety"

// errors
var (
	ErrRPC               = errorsmod.Register(Codespace, 2, "rpc failure")
	ErrRevert            = errorsmod.Register(Codespace, 3, "transaction reverted")
	ErrConfig            = errorsmod.Register(Codespace, 4, "invalid configuration")
	ErrAlreadySubscribed = errorsmod.Register(Codespace, 5, "already subscribed")
	ErrUnknownAccount    = errorsmod.Register(Codespace, 6, "no signing key for account")
	ErrDuplicateRequest  = errorsmod.Register(Codespace, 7, "duplicate oracle request")
	ErrUnknownContract   = errorsmod.Register(Codespace, 8, "unknown contract")
)

var revertMarkers = []string{
	"execution reverted",
	"revert",
	"invalid opcode",
	"out of gas",
	"insufficient funds",
}

// ClassifyRPCError wraps a raw node error as ErrRevert when the node reports
// that the contract rejected the call, otherwise as ErrRPC. err stays in the
// chain, so errors.Is still matches causes such as context.Canceled.
func ClassifyRPCError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errorsmod.IsOf(err, ErrRPC, ErrRevert) {
		return errorsmod.Wrapf(err, format, args...)
	}

	class := ErrRPC
	msg := strings.ToLower(err.Error())
	for _, marker := range revertMarkers {
		if strings.Contains(msg, marker) {
			class = ErrRevert
			break
		}
	}

	return errorsmod.Wrapf(fmt.Errorf("%w: %w", class, err), format, args...)
}

func IsRevert(err error) bool {
	return errorsmod.IsOf(err, ErrRevert)
}
