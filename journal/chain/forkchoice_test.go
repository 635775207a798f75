// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/completer"
	"github.com/ava-labs/journal/journal/journaltest"
	"github.com/ava-labs/journal/journal/network"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/logging"
)

// TestForkChoiceIsDeterministic delivers the same tree of blocks in random
// orders through a completer and checks that every node ends on the same
// head.
func TestForkChoiceIsDeterministic(t *testing.T) {
	genesisBatch := journaltest.PutBatch(t, secp256k1.TestKeys()[0], "genesis", "fork choice")
	builder := journaltest.NewEnvWithGenesis(t, genesisBatch)

	var (
		long   = builder.Chain(t, builder.Genesis, 4)
		branch = builder.Chain(t, long[0], 3)
		short  = builder.Chain(t, builder.Genesis, 2)
		twig   = builder.Chain(t, branch[1], 1)
		blocks []*block.Block
	)
	for _, chain := range [][]*block.Block{long, branch, short, twig} {
		blocks = append(blocks, chain...)
	}

	// The tips at height 4 have equal weight, so the lowest ID wins.
	expected := long[3]
	for _, tip := range []*block.Block{branch[2], twig[0]} {
		if tip.ID().Compare(expected.ID()) < 0 {
			expected = tip
		}
	}

	properties := gopter.NewProperties(nil)
	properties.Property("head is independent of delivery order", prop.ForAll(
		func(keys []uint64) string {
			order := make([]int, len(blocks))
			for i := range order {
				order[i] = i
			}
			sort.SliceStable(order, func(i, j int) bool {
				return keys[order[i]] < keys[order[j]]
			})

			env := journaltest.NewEnvWithGenesis(t, genesisBatch)
			c := newTestChain(t, env)
			comp, err := completer.New(
				completer.Config{},
				network.NoOp{},
				env.Cache,
				env.Store,
				logging.NoLog{},
				prometheus.NewRegistry(),
			)
			if err != nil {
				return err.Error()
			}
			var queueErr error
			comp.SetOnBlockReceived(func(blk *block.Block) {
				if err := c.QueueBlock(blk); err != nil && queueErr == nil {
					queueErr = err
				}
			})

			for _, i := range order {
				if err := comp.SubmitBlock(context.Background(), blocks[i]); err != nil {
					return err.Error()
				}
				c.drain(t)
			}
			if queueErr != nil {
				return queueErr.Error()
			}
			if head := c.ChainHead(); head.ID() != expected.ID() {
				return fmt.Sprintf("order %v: expected head %s, got %s at height %d", order, expected.ID(), head.ID(), head.Height)
			}
			if root := env.Manager.CommittedRoot(); root != expected.StateRoot {
				return fmt.Sprintf("order %v: expected state %s, got %s", order, expected.StateRoot, root)
			}
			return ""
		},
		gen.SliceOfN(len(blocks), gen.UInt64()),
	))
	properties.TestingRun(t)
}
