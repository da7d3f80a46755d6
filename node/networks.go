package node

import (
	"fmt"

	"weft.dev/node/consensus"
	"weft.dev/node/crypto"
)

// Network bundles everything chain-specific the core consumes: work
// thresholds, the epoch registry, and the genesis block. It is injected
// rather than read from a process global so tests can run several networks
// side by side.
type Network struct {
	Name           string
	WorkThresholds consensus.WorkThresholds
	Epochs         *consensus.Epochs
	Genesis        *consensus.Block
	GenesisAccount consensus.Account
	TotalSupply    consensus.Amount
}

// devSeed is the well-known development seed. Anyone can spend dev funds;
// that is the point.
var devSeed = [32]byte{0xde, 0xad, 0xbe, 0xef}

func epochLink(tag string) consensus.Link {
	var link consensus.Link
	copy(link[:], tag)
	return link
}

// DevNetwork builds the development network: low work floors and a genesis
// open block generated from the dev seed at startup.
func DevNetwork() (*Network, crypto.PrivateKey, error) {
	provider := crypto.Ed25519Provider{}
	priv, account := crypto.KeyFromSeed(devSeed)

	epochs := consensus.NewEpochs()
	if err := epochs.Add(consensus.Epoch1, account, epochLink("epoch v1 block")); err != nil {
		return nil, nil, err
	}
	if err := epochs.Add(consensus.Epoch2, account, epochLink("epoch v2 block")); err != nil {
		return nil, nil, err
	}

	thresholds := consensus.DevWorkThresholds
	genesis := &consensus.Block{
		Type:           consensus.BlockTypeOpen,
		Source:         consensus.Hash(account),
		Representative: account,
		Account:        account,
	}
	hash := genesis.Hash()
	genesis.Signature = provider.Sign(priv, hash[:])
	genesis.Work = consensus.GenerateWork(genesis.Root(), thresholds.Epoch1)

	n := &Network{
		Name:           "dev",
		WorkThresholds: thresholds,
		Epochs:         epochs,
		Genesis:        genesis,
		GenesisAccount: account,
		TotalSupply:    consensus.MaxAmount(),
	}
	return n, priv, nil
}

// NetworkFromName resolves the configured network. Live and beta carry
// their published thresholds; their genesis constants ship with the
// distribution profiles, so only dev is constructible here.
func NetworkFromName(name string) (*Network, error) {
	switch name {
	case "dev":
		n, _, err := DevNetwork()
		return n, err
	default:
		return nil, fmt.Errorf("unknown or unbundled network %q", name)
	}
}
