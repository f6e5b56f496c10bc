// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/optimamodel/atomica/expr"
	"github.com/optimamodel/atomica/parset"
)

// evalAggregation resolves one §4.8 population-aggregation builtin for
// the parameter instance living in thisPop. TGT_POP_* aggregates the
// values of par_name across every population that interacts INTO
// thisPop (the interaction's to-population); SRC_POP_* aggregates
// across every population thisPop interacts OUT TO (its own weight row
// used as the "from" side), matching the spec's note that SRC_POP_* is
// the same computation over the transposed interaction matrix.
//
// The interaction matrix is stored as a sparse map keyed by
// (interaction, fromPop, toPop) rather than a dense array (§4.4), so
// the transpose is realised simply by swapping which side of the key
// holds thisPop, instead of materialising a transposed matrix.
func (m *Model) evalAggregation(agg expr.Aggregation, thisPop string, ti int) (float64, error) {
	var total, wsum float64
	for _, other := range m.PopOrder {
		var key parset.InteractionKey
		switch agg.Kind {
		case expr.SrcPopAvg, expr.SrcPopSum:
			key = parset.InteractionKey{Interaction: agg.InteractionName, FromPop: thisPop, ToPop: other}
		default:
			key = parset.InteractionKey{Interaction: agg.InteractionName, FromPop: other, ToPop: thisPop}
		}
		vals, ok := m.interactionVals[key]
		if !ok {
			continue
		}
		w := vals[ti]
		if agg.WeightVarName != "" {
			wv, err := m.lookupValue(other, agg.WeightVarName, ti)
			if err != nil {
				return 0, err
			}
			w *= wv
		}
		v, err := m.lookupValue(other, agg.ParName, ti)
		if err != nil {
			return 0, err
		}
		total += w * v
		wsum += w
	}
	switch agg.Kind {
	case expr.SrcPopAvg, expr.TgtPopAvg:
		if wsum == 0 {
			return 0, nil
		}
		return total / wsum, nil
	default: // SrcPopSum, TgtPopSum
		return total, nil
	}
}
