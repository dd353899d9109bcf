package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"sort"
	"sync"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mindhaven/mpcnet/types"
	"golang.org/x/xerrors"
)

// shareBook keeps the shares this CLI obtained, by request id, so
// later operations can refer to them by name.
type shareBook struct {
	sync.Mutex
	shares map[string]types.Share
}

func newShareBook() *shareBook {
	return &shareBook{shares: map[string]types.Share{}}
}

func (b *shareBook) put(reqID string, s types.Share) {
	b.Lock()
	defer b.Unlock()
	b.shares[reqID] = s
}

func (b *shareBook) get(reqID string) (types.Share, error) {
	b.Lock()
	defer b.Unlock()
	s, ok := b.shares[reqID]
	if !ok {
		return types.Share{}, xerrors.Errorf("no share named %q", reqID)
	}
	return s, nil
}

func (b *shareBook) names() []string {
	b.Lock()
	defer b.Unlock()
	names := make([]string, 0, len(b.shares))
	for name := range b.shares {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func askString(msg string) (string, error) {
	var out string
	err := survey.AskOne(&survey.Input{Message: msg}, &out)
	return out, err
}

func (n *node) askShare(msg string) (string, types.Share, error) {
	names := n.shares.names()
	if len(names) == 0 {
		return "", types.Share{}, xerrors.New("no shares yet, share a value first")
	}
	var name string
	err := survey.AskOne(&survey.Select{Message: msg, Options: names}, &name)
	if err != nil {
		return "", types.Share{}, err
	}
	s, err := n.shares.get(name)
	return name, s, err
}

// -----------------------------------------------------------------------------
// CMD Actions

func shareValue(n *node) error {
	reqID, err := askString("Name of the value (same on every party):")
	if err != nil {
		return err
	}

	ownerStr, err := askString("Owner party id:")
	if err != nil {
		return err
	}
	var owner int
	if _, err := fmt.Sscanf(ownerStr, "%d", &owner); err != nil {
		return xerrors.Errorf("bad party id %q", ownerStr)
	}

	var value *big.Int
	if owner == n.mpc.SelfID() {
		raw, err := askString("Your secret value:")
		if err != nil {
			return err
		}
		var ok bool
		value, ok = new(big.Int).SetString(raw, 10)
		if !ok {
			return xerrors.Errorf("bad value %q", raw)
		}
	}

	share, err := n.mpc.Share(context.Background(), reqID, owner, value)
	if err != nil {
		return err
	}
	n.shares.put(reqID, share)

	fmt.Printf("got our share of %q\n", reqID)
	return nil
}

func reconstructValue(n *node) error {
	name, share, err := n.askShare("Reconstruct which value ?")
	if err != nil {
		return err
	}

	result, err := n.mpc.Reconstruct(context.Background(), "open|"+name, share)
	if err != nil {
		return err
	}

	fmt.Printf("%s = %s (proof %x)\n", name, result.Value, result.Proof)
	return nil
}

func multiplyShares(n *node) error {
	_, x, err := n.askShare("Left operand ?")
	if err != nil {
		return err
	}
	_, y, err := n.askShare("Right operand ?")
	if err != nil {
		return err
	}
	reqID, err := askString("Name of the product:")
	if err != nil {
		return err
	}

	z, err := n.mpc.Multiply(context.Background(), reqID, x, y)
	if err != nil {
		return err
	}
	n.shares.put(reqID, z)

	fmt.Printf("got our share of %q\n", reqID)
	return nil
}

func compareShares(n *node) error {
	_, x, err := n.askShare("Left operand ?")
	if err != nil {
		return err
	}
	_, y, err := n.askShare("Right operand ?")
	if err != nil {
		return err
	}
	reqID, err := askString("Name of the comparison:")
	if err != nil {
		return err
	}

	ind, err := n.mpc.Compare(context.Background(), reqID, x, y)
	if err != nil {
		return err
	}
	n.shares.put(reqID, ind)

	fmt.Printf("got our share of %q (1 means left > right)\n", reqID)
	return nil
}

func showSession(n *node) error {
	fmt.Printf("party %d of %d, session %s\n",
		n.mpc.SelfID(), n.conf.NumParties, n.mpc.SessionID())
	for _, name := range n.shares.names() {
		fmt.Println("  share:", name)
	}
	return nil
}

func exitNode(n *node) error {
	fmt.Println("bye 👋")
	err := n.mpc.Disconnect()
	if err != nil {
		printError(err)
	}
	os.Exit(0)
	return nil
}
