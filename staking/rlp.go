// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vechain/thor-relayer/thor"
)

var (
	_ rlp.Encoder = (*Diff)(nil)
	_ rlp.Decoder = (*Diff)(nil)
)

type share struct {
	Validator thor.Address
	Amount    uint64
}

// delegationRLP keeps nil and empty delegations apart.
type delegationRLP struct {
	Present bool
	Shares  []share
}

func newDelegationRLP(d Delegation) delegationRLP {
	if d == nil {
		return delegationRLP{}
	}
	shares := make([]share, 0, len(d))
	for _, addr := range SortedAddresses(d) {
		shares = append(shares, share{addr, d[addr]})
	}
	return delegationRLP{Present: true, Shares: shares}
}

func (d *delegationRLP) delegation() (Delegation, error) {
	if !d.Present {
		if len(d.Shares) > 0 {
			return nil, errors.New("shares of absent delegation")
		}
		return nil, nil
	}
	del := make(Delegation, len(d.Shares))
	for _, s := range d.Shares {
		if _, ok := del[s.Validator]; ok {
			return nil, errors.Errorf("duplicated validator %v in delegation", s.Validator)
		}
		del[s.Validator] = s.Amount
	}
	return del, nil
}

// EncodeDelegation encodes a delegation, nil included.
func EncodeDelegation(d Delegation) ([]byte, error) {
	return rlp.EncodeToBytes(newDelegationRLP(d))
}

// DecodeDelegation decodes a delegation encoded by EncodeDelegation.
func DecodeDelegation(data []byte) (Delegation, error) {
	var d delegationRLP
	if err := rlp.DecodeBytes(data, &d); err != nil {
		return nil, err
	}
	return d.delegation()
}

type validatorDiffRLP struct {
	Validator thor.Address
	Diff      ValidatorDiff
}

type delegatorRLP struct {
	Delegator  thor.Address
	Delegation delegationRLP
}

type diffRLP struct {
	Height      uint64
	Validators  []validatorDiffRLP
	Delegations []delegatorRLP
}

// EncodeRLP implements rlp.Encoder. Entries are written in address order.
func (d *Diff) EncodeRLP(w io.Writer) error {
	enc := diffRLP{
		Height:      d.Height,
		Validators:  make([]validatorDiffRLP, 0, len(d.Validators)),
		Delegations: make([]delegatorRLP, 0, len(d.Delegations)),
	}
	for _, addr := range SortedAddresses(d.Validators) {
		enc.Validators = append(enc.Validators, validatorDiffRLP{addr, d.Validators[addr]})
	}
	for _, addr := range SortedAddresses(d.Delegations) {
		enc.Delegations = append(enc.Delegations, delegatorRLP{addr, newDelegationRLP(d.Delegations[addr])})
	}
	return rlp.Encode(w, &enc)
}

// DecodeRLP implements rlp.Decoder.
func (d *Diff) DecodeRLP(s *rlp.Stream) error {
	var dec diffRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}

	diff := NewDiff(dec.Height)
	for _, v := range dec.Validators {
		diff.Validators[v.Validator] = v.Diff
	}
	for _, del := range dec.Delegations {
		delegation, err := del.Delegation.delegation()
		if err != nil {
			return err
		}
		diff.Delegations[del.Delegator] = delegation
	}
	*d = *diff
	return nil
}
