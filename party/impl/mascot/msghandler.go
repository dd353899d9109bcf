package mascot

import (
	"fmt"

	"github.com/mindhaven/mpcnet/transport"
	"github.com/mindhaven/mpcnet/types"
	"golang.org/x/xerrors"
)

// ProcessShareMsg delivers an owner's input-sharing broadcast.
func (e *Engine) ProcessShareMsg(msg types.Message, pkt transport.Packet) error {
	shareMsg, ok := msg.(*types.ShareMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	key := "share|" + shareMsg.ReqID
	if pkt.Header.Source != shareMsg.Owner {
		return types.NewError(types.ProtocolError,
			"share %s: party %d opened on behalf of owner %d",
			shareMsg.ReqID, pkt.Header.Source, shareMsg.Owner)
	}

	epsilon, err := e.field.Decode(shareMsg.Epsilon)
	if err != nil {
		err = types.WrapError(types.CryptoError, err,
			"share %s: malformed epsilon from party %d", shareMsg.ReqID, pkt.Header.Source)
		e.message.DeliverErr(key, err)
		return err
	}

	e.message.Deliver(key, pkt.Header.Source,
		shareOpen{index: shareMsg.Index, epsilon: epsilon})
	return nil
}

// ProcessReconstructMsg delivers one party's opening contribution.
func (e *Engine) ProcessReconstructMsg(msg types.Message, pkt transport.Packet) error {
	recMsg, ok := msg.(*types.ReconstructMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	if recMsg.Stage != types.StageValue && recMsg.Stage != types.StageMac {
		return types.NewError(types.ProtocolError,
			"reconstruct %s: unknown stage %q", recMsg.ReqID, recMsg.Stage)
	}
	key := fmt.Sprintf("reconstruct|%s|%s", recMsg.ReqID, recMsg.Stage)

	value, err := e.field.Decode(recMsg.Value)
	if err != nil {
		err = types.WrapError(types.CryptoError, err,
			"reconstruct %s: malformed opening from party %d", recMsg.ReqID, pkt.Header.Source)
		e.message.DeliverErr(key, err)
		return err
	}

	e.message.Deliver(key, pkt.Header.Source, value)
	return nil
}

// ProcessMultiplyMsg delivers one party's Beaver opening.
func (e *Engine) ProcessMultiplyMsg(msg types.Message, pkt transport.Packet) error {
	mulMsg, ok := msg.(*types.MultiplyMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	key := "multiply|" + mulMsg.ReqID

	d, err := e.field.Decode(mulMsg.D)
	if err != nil {
		err = types.WrapError(types.CryptoError, err,
			"multiply %s: malformed opening from party %d", mulMsg.ReqID, pkt.Header.Source)
		e.message.DeliverErr(key, err)
		return err
	}
	ev, err := e.field.Decode(mulMsg.E)
	if err != nil {
		err = types.WrapError(types.CryptoError, err,
			"multiply %s: malformed opening from party %d", mulMsg.ReqID, pkt.Header.Source)
		e.message.DeliverErr(key, err)
		return err
	}

	e.message.Deliver(key, pkt.Header.Source,
		mulOpen{index: mulMsg.Index, d: d, e: ev})
	return nil
}

// ProcessCompareMsg delivers one party's masked-difference opening.
func (e *Engine) ProcessCompareMsg(msg types.Message, pkt transport.Packet) error {
	cmpMsg, ok := msg.(*types.CompareMessage)
	if !ok {
		return xerrors.Errorf("wrong type: %T", msg)
	}

	key := "compare|" + cmpMsg.ReqID

	c, err := e.field.Decode(cmpMsg.C)
	if err != nil {
		err = types.WrapError(types.CryptoError, err,
			"compare %s: malformed opening from party %d", cmpMsg.ReqID, pkt.Header.Source)
		e.message.DeliverErr(key, err)
		return err
	}

	e.message.Deliver(key, pkt.Header.Source, cmpOpen{start: cmpMsg.Start, c: c})
	return nil
}
