// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package diffs

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/thor-relayer/api/utils"
	"github.com/vechain/thor-relayer/stakedb"
	"github.com/vechain/thor-relayer/staking"
)

// Store is the ingestion side of the relayer store.
type Store interface {
	Head(ctx context.Context) (uint64, error)
	InsertStakingDiffs(ctx context.Context, head uint64, diffs []*staking.Diff) error
	StakingDiff(ctx context.Context, height uint64) (*staking.Diff, error)
}

type Diffs struct {
	store  Store
	notify func()
}

// New creates the diffs API. notify is called after every accepted insertion.
func New(store Store, notify func()) *Diffs {
	return &Diffs{
		store:  store,
		notify: notify,
	}
}

func (d *Diffs) handleInsertDiffs(w http.ResponseWriter, req *http.Request) error {
	var body InsertRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if body.Head == nil {
		return utils.BadRequest(errors.New("body: head required"))
	}

	diffs := make([]*staking.Diff, 0, len(body.Diffs))
	for _, diff := range body.Diffs {
		if diff == nil {
			return utils.BadRequest(errors.New("body: null diff"))
		}
		if diff.Height > *body.Head {
			return utils.BadRequest(errors.Errorf("body: diff at %d above head %d", diff.Height, *body.Head))
		}
		converted, err := diff.toStaking()
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "body"))
		}
		diffs = append(diffs, converted)
	}

	if err := d.store.InsertStakingDiffs(req.Context(), *body.Head, diffs); err != nil {
		if errors.Is(err, stakedb.ErrNonIncreasingHeight) {
			return utils.Conflict(err)
		}
		return err
	}
	if d.notify != nil {
		d.notify()
	}
	return utils.WriteJSON(w, &Head{Head: *body.Head})
}

func (d *Diffs) handleGetHead(w http.ResponseWriter, req *http.Request) error {
	head, err := d.store.Head(req.Context())
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Head{Head: head})
}

func (d *Diffs) handleGetDiff(w http.ResponseWriter, req *http.Request) error {
	height, err := utils.ParseHeight(mux.Vars(req)["height"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "height"))
	}
	diff, err := d.store.StakingDiff(req.Context(), height)
	if err != nil {
		if errors.Is(err, stakedb.ErrNotFound) {
			return utils.NotFound(errors.Errorf("no diff at %d", height))
		}
		return err
	}
	return utils.WriteJSON(w, convertDiff(diff))
}

func (d *Diffs) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodPost).
		Name("diffs_post_diffs").
		HandlerFunc(utils.WrapHandlerFunc(d.handleInsertDiffs))
	sub.Path("/head").
		Methods(http.MethodGet).
		Name("diffs_get_head").
		HandlerFunc(utils.WrapHandlerFunc(d.handleGetHead))
	sub.Path("/{height}").
		Methods(http.MethodGet).
		Name("diffs_get_diff").
		HandlerFunc(utils.WrapHandlerFunc(d.handleGetDiff))
}
