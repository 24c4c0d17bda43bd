package staking

import (
	"github.com/ethereum/go-ethereum/common"

	"stakeledger/core/events"
)

// Decision records why an operation was allowed to proceed: either the
// caller is the administrator, or the authority signed the exact message.
type Decision struct {
	administrator bool
	digest        common.Hash
}

func administratorDecision() Decision { return Decision{administrator: true} }

func signedDecision(digest common.Hash) Decision { return Decision{digest: digest} }

func (d Decision) Administrator() bool { return d.administrator }

// Digest is the honoured authorization digest, zero on the administrator path.
func (d Decision) Digest() common.Hash { return d.digest }

// Via is the label attached to emitted events.
func (d Decision) Via() string {
	if d.administrator {
		return events.ViaAdministrator
	}
	return events.ViaSigned
}
