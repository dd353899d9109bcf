package mascot

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mindhaven/mpcnet/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// Share turns owner's private value into an authenticated share held
// by every party. The owner consumes one of its input masks (r, [r]),
// broadcasts epsilon = value - r, and each party locally corrects its
// mask share. Non-owners pass a nil value.
func (e *Engine) Share(ctx context.Context, reqID string, owner int,
	value *big.Int) (types.Share, error) {

	if err := e.message.Failed(); err != nil {
		return types.Share{}, err
	}

	alpha, err := e.prep.MacKeyShare()
	if err != nil {
		return types.Share{}, err
	}

	self := e.message.Self()
	key := "share|" + reqID

	var mask types.Mask
	if self == owner {
		if value == nil {
			return types.Share{}, types.NewError(types.ProtocolError,
				"share %s: owner %d must supply a value", reqID, owner)
		}
		if !e.field.Contains(value) {
			return types.Share{}, types.NewError(types.ProtocolError,
				"share %s: value out of field range", reqID)
		}

		var idx int
		idx, mask, err = e.prep.ReserveMask(ctx, owner)
		if err != nil {
			return types.Share{}, err
		}

		epsilon := e.field.Sub(value, mask.Clear)
		e.message.Deliver(key, self, shareOpen{index: idx, epsilon: epsilon})
		err = e.message.Broadcast(types.ShareMessage{
			ReqID:   reqID,
			Owner:   owner,
			Index:   idx,
			Epsilon: e.field.Encode(epsilon),
		})
		if err != nil {
			return types.Share{}, xerrors.Errorf("failed to open share %s: %v", reqID, err)
		}
	}

	opened, err := e.message.AwaitFrom(ctx, key, owner, e.conf.OpTimeout)
	if err != nil {
		return types.Share{}, err
	}
	e.message.Release(key)
	open := opened.(shareOpen)

	if self != owner {
		mask, err = e.prep.MaskAt(ctx, owner, open.index)
		if err != nil {
			return types.Share{}, err
		}
	}

	// value_i = r_i + epsilon for the designated party, r_i otherwise;
	// mac_i = mac(r)_i + alpha_i * epsilon for everyone.
	v := mask.Share.Value
	if self == sequencer {
		v = e.field.Add(v, open.epsilon)
	}
	share := types.Share{
		Value: v,
		Mac:   e.field.Add(mask.Share.Mac, e.field.Mul(alpha, open.epsilon)),
		Owner: self,
	}

	e.store.put(reqID, share)
	return share, nil
}

// Reconstruct opens a shared value to every party and verifies its MAC
// before accepting it. A failed check aborts the whole session: the
// opened value has leaked, so nothing later can be trusted.
func (e *Engine) Reconstruct(ctx context.Context, reqID string,
	share types.Share) (types.Result, error) {

	if err := e.message.Failed(); err != nil {
		return types.Result{}, err
	}

	alpha, err := e.prep.MacKeyShare()
	if err != nil {
		return types.Result{}, err
	}

	self := e.message.Self()
	n := e.message.N()

	// Stage 1: open the value shares.
	valueKey := fmt.Sprintf("reconstruct|%s|%s", reqID, types.StageValue)
	e.message.Deliver(valueKey, self, share.Value)
	err = e.message.Broadcast(types.ReconstructMessage{
		ReqID: reqID,
		Stage: types.StageValue,
		Value: e.field.Encode(share.Value),
	})
	if err != nil {
		return types.Result{}, xerrors.Errorf("failed to open value %s: %v", reqID, err)
	}

	values, err := e.message.Await(ctx, valueKey, n, e.conf.OpTimeout)
	if err != nil {
		return types.Result{}, err
	}
	opened := big.NewInt(0)
	for _, v := range values {
		opened = e.field.Add(opened, v.(*big.Int))
	}

	// Stage 2: MAC check on the opened value. Each party reveals
	// sigma_i = mac_i - alpha_i * x, which sums to zero iff the MACs
	// authenticate x. The key share alpha_i itself stays hidden.
	sigma := e.field.Sub(share.Mac, e.field.Mul(alpha, opened))

	macKey := fmt.Sprintf("reconstruct|%s|%s", reqID, types.StageMac)
	e.message.Deliver(macKey, self, sigma)
	err = e.message.Broadcast(types.ReconstructMessage{
		ReqID: reqID,
		Stage: types.StageMac,
		Value: e.field.Encode(sigma),
	})
	if err != nil {
		return types.Result{}, xerrors.Errorf("failed to open mac check %s: %v", reqID, err)
	}

	sigmas, err := e.message.Await(ctx, macKey, n, e.conf.OpTimeout)
	if err != nil {
		return types.Result{}, err
	}
	check := big.NewInt(0)
	for _, v := range sigmas {
		check = e.field.Add(check, v.(*big.Int))
	}

	if check.Sign() != 0 {
		err := types.NewError(types.InvalidShare,
			"mac check failed for %s: tampered or corrupted share", reqID)
		e.message.Abort(err, true)
		return types.Result{}, err
	}

	result := types.Result{
		Value: opened,
		Proof: e.transcriptProof(reqID, opened, sigmas),
	}
	if e.conf.ResultLog != nil {
		if err := e.conf.ResultLog.Record(reqID, result); err != nil {
			log.Warn().Msgf("party %d: %v", self, err)
		}
	}
	return result, nil
}

// transcriptProof digests the opening transcript so callers can bind a
// reconstructed value to the session that produced it.
func (e *Engine) transcriptProof(reqID string, opened *big.Int,
	sigmas map[int]interface{}) []byte {

	parties := make([]int, 0, len(sigmas))
	for id := range sigmas {
		parties = append(parties, id)
	}
	sort.Ints(parties)

	data := []byte(e.message.Session() + "|" + reqID)
	data = append(data, e.field.Encode(opened)...)
	for _, id := range parties {
		data = append(data, e.field.Encode(sigmas[id].(*big.Int))...)
	}
	return crypto.Keccak256(data)
}
