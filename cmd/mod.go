package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mindhaven/mpcnet/httpserver"
	"github.com/mindhaven/mpcnet/party"
	"github.com/mindhaven/mpcnet/party/impl"
	"github.com/mindhaven/mpcnet/storage"
	"github.com/mindhaven/mpcnet/transport/tcp"
)

// node bundles the running party with the CLI state: the shares
// obtained so far, by request id.
type node struct {
	mpc    party.MPC
	conf   Config
	shares *shareBook
}

var actionOpts = []string{
	"🌱 Share a value",
	"🔍 Reconstruct",
	"✖️  Multiply",
	"⚖️  Compare",
	"📋 Show session",
	"🍃 Exit",
}

var actions = map[string]func(*node) error{
	actionOpts[0]: shareValue,
	actionOpts[1]: reconstructValue,
	actionOpts[2]: multiplyShares,
	actionOpts[3]: compareShares,
	actionOpts[4]: showSession,
	actionOpts[5]: exitNode,
}

// StartCMD loads the session file, connects the party and, unless
// running as daemon, drives the interactive prompt.
func StartCMD(configPath, keyHex string, daemon bool) {
	conf, err := LoadConfig(configPath)
	if err != nil {
		printError(err)
		return
	}

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		printError(fmt.Errorf("bad private key: %v", err))
		return
	}

	modulus, err := conf.FieldModulus()
	if err != nil {
		printError(err)
		return
	}

	// find our roster entry to know which address to bind
	pubkey := fmt.Sprintf("%x", crypto.CompressPubkey(&key.PublicKey))
	bind := ""
	for _, info := range conf.Roster {
		if info.PublicKey == pubkey {
			bind = info.Address()
		}
	}
	if bind == "" {
		printError(fmt.Errorf("our key is not in the roster"))
		return
	}

	socket, err := tcp.NewTCP().CreateSocket(bind)
	if err != nil {
		printError(err)
		return
	}

	results := storage.NewInMemoryLog()

	mpc := impl.NewParty(party.Configuration{
		NumParties:             conf.NumParties,
		Threshold:              conf.Threshold,
		FieldModulus:           modulus,
		CompareBitLength:       conf.CompareBitLength,
		PreprocessingBatchSize: conf.BatchSize,
		PrivateKey:             key,
		Socket:                 socket,
		MessageRegistry:        party.NewRegistry(),
		ResultLog:              results,
		HeartbeatInterval:      2 * time.Second,
		HandshakeTimeout:       30 * time.Second,
		OpTimeout:              30 * time.Second,
	})

	n := node{mpc: mpc, conf: conf, shares: newShareBook()}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		_ = exitNode(&n)
		os.Exit(1)
	}()

	if err := mpc.Initialize(); err != nil {
		printError(err)
		return
	}

	fmt.Printf("waiting for the other %d parties...\n", conf.NumParties-1)
	if err := mpc.Connect(context.Background(), conf.Roster); err != nil {
		printError(err)
		return
	}
	fmt.Printf("connected as party %d, session %s\n", mpc.SelfID(), mpc.SessionID())

	if conf.StatusAddr != "" {
		go func() {
			err := httpserver.NewServer(mpc, results).ListenAndServe(conf.StatusAddr)
			if err != nil {
				printError(err)
			}
		}()
	}

	if daemon {
		select {}
	}

	performActions(&n)
}

func performActions(n *node) {
	prompt := &survey.Select{
		Message: "What do you want to do ?",
		Options: actionOpts,
	}

	var action string
	for {
		err := survey.AskOne(prompt, &action)
		if err != nil {
			printError(err)
			return
		}

		method := actions[action]
		err = method(n)
		if err != nil {
			printError(err)
		}
	}
}

func printError(err error) {
	fmt.Println("⚠️ ", err)
}
