// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

var epoch = time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)

// offsetTime maps a generated offset to a timestamp; negative means absent.
func offsetTime(hours int) *time.Time {
	if hours < 0 {
		return nil
	}
	t := epoch.Add(time.Duration(hours) * time.Hour)
	return &t
}

func duplicatesFrom(offsets []int) []types.LocalRecord {
	dups := make([]types.LocalRecord, len(offsets))
	for i, off := range offsets {
		dups[i] = types.LocalRecord{
			StoreID:    fmt.Sprintf("L%d", i),
			Identifier: "X",
			Name:       fmt.Sprintf("dataset-%d", i),
			Modified:   offsetTime(off),
		}
	}
	return dups
}

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	return parameters
}

func resolveWith(dups []types.LocalRecord, modified *time.Time, identifier string) types.Verdict {
	r := NewResolver(&fakeFinder{dups: dups}, fixedPriorities{}, nil)
	v, err := r.Resolve(context.Background(), types.IncomingRecord{
		Identifier: identifier, SourceID: "S", Modified: modified,
	})
	if err != nil {
		panic(err)
	}
	return v
}

func TestResolveProperties(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())
	offsets := gen.SliceOf(gen.IntRange(-1, 12))
	incoming := gen.IntRange(-1, 12)

	properties.Property("records without an identifier are always accepted untouched", prop.ForAll(
		func(locals []int, in int) bool {
			v := resolveWith(duplicatesFrom(locals), offsetTime(in), "")
			return v.Accept && len(v.Retire) == 0
		},
		offsets, incoming,
	))

	properties.Property("accept retires every duplicate, reject keeps exactly one", prop.ForAll(
		func(locals []int, in int) bool {
			dups := duplicatesFrom(locals)
			v := resolveWith(dups, offsetTime(in), "X")
			if len(dups) == 0 {
				return v.Accept && len(v.Retire) == 0
			}
			if v.Accept {
				return len(v.Retire) == len(dups)
			}
			return len(v.Retire) == len(dups)-1
		},
		offsets, incoming,
	))

	properties.Property("a strictly newer incoming record wins", prop.ForAll(
		func(locals []int, in int) bool {
			newest := -1
			for _, off := range locals {
				if off > newest {
					newest = off
				}
			}
			// Strictly after every local timestamp.
			v := resolveWith(duplicatesFrom(locals), offsetTime(newest+1+in%3), "X")
			return v.Accept
		},
		offsets, gen.IntRange(0, 12),
	))

	properties.Property("a timestamp tie or older incoming record loses to the freshest local", prop.ForAll(
		func(locals []int, back int) bool {
			newest, at := -1, -1
			for i, off := range locals {
				if off > newest {
					newest, at = off, i
				}
			}
			if newest < 0 {
				return true
			}
			in := newest - back
			v := resolveWith(duplicatesFrom(locals), offsetTime(in), "X")
			if v.Accept || v.Outcome != types.OutcomeRejectedStale {
				return false
			}
			for _, r := range v.Retire {
				if r.StoreID == fmt.Sprintf("L%d", at) {
					return false
				}
			}
			return true
		},
		offsets, gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
