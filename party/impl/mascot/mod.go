package mascot

import (
	"math/big"

	"github.com/mindhaven/mpcnet/field"
	"github.com/mindhaven/mpcnet/party"
	"github.com/mindhaven/mpcnet/party/impl/message"
	"github.com/mindhaven/mpcnet/party/impl/preprocessing"
	"github.com/mindhaven/mpcnet/types"
)

// sequencer is the party that reserves preprocessing indexes for an
// operation and announces them, so all parties consume the same
// material. It is also the designated party for public-constant
// corrections.
const sequencer = 0

// Engine implements the MASCOT-style online phase: authenticated
// additive shares, Beaver multiplication and bitwise comparison,
// driven by the preprocessing pools.
type Engine struct {
	conf    *party.Configuration
	message *message.MessageModule
	prep    *preprocessing.Preprocessing
	field   *field.Field

	store *shareStore
}

// NewEngine creates the engine and registers its message handlers.
func NewEngine(conf *party.Configuration, messageModule *message.MessageModule,
	prep *preprocessing.Preprocessing, f *field.Field) *Engine {

	e := Engine{
		conf:    conf,
		message: messageModule,
		prep:    prep,
		field:   f,
		store:   newShareStore(),
	}

	// message registry callbacks
	e.conf.MessageRegistry.RegisterMessageCallback(types.ShareMessage{}, e.ProcessShareMsg)
	e.conf.MessageRegistry.RegisterMessageCallback(types.ReconstructMessage{}, e.ProcessReconstructMsg)
	e.conf.MessageRegistry.RegisterMessageCallback(types.MultiplyMessage{}, e.ProcessMultiplyMsg)
	e.conf.MessageRegistry.RegisterMessageCallback(types.CompareMessage{}, e.ProcessCompareMsg)

	return &e
}

// shareOpen is the collector payload of an input-sharing broadcast.
type shareOpen struct {
	index   int
	epsilon *big.Int
}

// mulOpen is the collector payload of a Beaver opening.
type mulOpen struct {
	index int
	d     *big.Int
	e     *big.Int
}

// cmpOpen is the collector payload of a comparison opening.
type cmpOpen struct {
	start int
	c     *big.Int
}
