// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validators

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/thor-relayer/api/utils"
	"github.com/vechain/thor-relayer/staking"
	"github.com/vechain/thor-relayer/validators"
)

// Engine is the part of the validator set the API serves.
type Engine interface {
	Current() validators.Snapshot
	Peek(ctx context.Context, height uint64) (staking.Set, error)
	Get(ctx context.Context, height uint64) (staking.Set, error)
}

type Validators struct {
	engine Engine
}

func New(engine Engine) *Validators {
	return &Validators{engine: engine}
}

func convertError(err error) error {
	switch {
	case errors.Is(err, validators.ErrUnfinalizedHeight), errors.Is(err, validators.ErrBackwardAdvance):
		return utils.Conflict(err)
	case errors.Is(err, validators.ErrInconsistentRange):
		return utils.HTTPError(err, http.StatusInternalServerError)
	}
	return err
}

func (v *Validators) handleGetValidators(w http.ResponseWriter, req *http.Request) error {
	query := req.URL.Query().Get("height")
	if query == "" {
		snap := v.engine.Current()
		return utils.WriteJSON(w, convertSet(snap.Height, snap.Validators))
	}

	height, err := utils.ParseHeight(query)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "height"))
	}
	set, err := v.engine.Peek(req.Context(), height)
	if err != nil {
		return convertError(err)
	}
	return utils.WriteJSON(w, convertSet(height, set))
}

func (v *Validators) handleRewind(w http.ResponseWriter, req *http.Request) error {
	var body RewindRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if body.Height == nil {
		return utils.BadRequest(errors.New("body: height required"))
	}

	set, err := v.engine.Get(req.Context(), *body.Height)
	if err != nil {
		return convertError(err)
	}
	return utils.WriteJSON(w, convertSet(*body.Height, set))
}

func (v *Validators) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("validators_get_set").
		HandlerFunc(utils.WrapHandlerFunc(v.handleGetValidators))
	sub.Path("/rewind").
		Methods(http.MethodPost).
		Name("validators_post_rewind").
		HandlerFunc(utils.WrapHandlerFunc(v.handleRewind))
}
