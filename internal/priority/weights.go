// Package priority ranks canonical business records for outreach.
package priority

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orgmatch/internal/config"
	"github.com/sells-group/orgmatch/internal/model"
)

// ErrInvalidWeights is returned when priority weights cannot be normalized.
var ErrInvalidWeights = eris.New("priority: invalid weights")

// weightTolerance is how far the weight sum may drift from 1 before the
// weights are rescaled.
const weightTolerance = 0.001

// WeightSum returns the sum of all component weights.
func WeightSum(w config.PriorityWeights) float64 {
	return w.Revenue + w.Procurement + w.Partnership + w.DataQuality +
		w.Geographic + w.Industry + w.Indigenous + w.Relationship
}

// Components lists the component names in a fixed order.
var Components = []string{
	model.ComponentRevenue,
	model.ComponentProcurement,
	model.ComponentPartnership,
	model.ComponentDataQuality,
	model.ComponentGeographic,
	model.ComponentIndustry,
	model.ComponentIndigenous,
	model.ComponentRelationship,
}

// weightMap keys weights by component name.
func weightMap(w config.PriorityWeights) map[string]float64 {
	return map[string]float64{
		model.ComponentRevenue:      w.Revenue,
		model.ComponentProcurement:  w.Procurement,
		model.ComponentPartnership:  w.Partnership,
		model.ComponentDataQuality:  w.DataQuality,
		model.ComponentGeographic:   w.Geographic,
		model.ComponentIndustry:     w.Industry,
		model.ComponentIndigenous:   w.Indigenous,
		model.ComponentRelationship: w.Relationship,
	}
}

// NormalizeWeights validates w and rescales it to sum to 1. Negative or NaN
// weights, or a non-positive sum, wrap ErrInvalidWeights.
func NormalizeWeights(w config.PriorityWeights) (config.PriorityWeights, error) {
	var errs []string
	for name, v := range weightMap(w) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, name+" is not a finite number")
		} else if v < 0 {
			errs = append(errs, name+" must be >= 0")
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return w, eris.Wrapf(ErrInvalidWeights, "%s", strings.Join(errs, "; "))
	}

	sum := WeightSum(w)
	if sum <= 0 {
		return w, eris.Wrap(ErrInvalidWeights, "weights sum to zero")
	}
	if math.Abs(sum-1) <= weightTolerance {
		return w, nil
	}

	zap.L().Warn("priority: weights do not sum to 1, normalizing", zap.Float64("sum", sum))
	return config.PriorityWeights{
		Revenue:      w.Revenue / sum,
		Procurement:  w.Procurement / sum,
		Partnership:  w.Partnership / sum,
		DataQuality:  w.DataQuality / sum,
		Geographic:   w.Geographic / sum,
		Industry:     w.Industry / sum,
		Indigenous:   w.Indigenous / sum,
		Relationship: w.Relationship / sum,
	}, nil
}
