package partitions

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/notargets/meshdecomp/structured"
)

// PartitionBuilder decomposes a set of structured zones over a number of
// processors by recursive bisection followed by greedy assignment
type PartitionBuilder struct {
	logger  *zap.Logger
	verbose bool
	rank    int
}

type Option func(*PartitionBuilder)

// WithLogger sets the logger; the default discards everything
func WithLogger(l *zap.Logger) Option {
	return func(pb *PartitionBuilder) {
		if l != nil {
			pb.logger = l
		}
	}
}

// WithVerbose enables the per-split trace on rank 0
func WithVerbose(v bool) Option {
	return func(pb *PartitionBuilder) { pb.verbose = v }
}

// WithRank sets the rank of the calling process
func WithRank(rank int) Option {
	return func(pb *PartitionBuilder) { pb.rank = rank }
}

func NewPartitionBuilder(opts ...Option) *PartitionBuilder {
	pb := &PartitionBuilder{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(pb)
	}
	return pb
}

// Result is a finished decomposition
type Result struct {
	Arena  *structured.Arena
	Layout *PartitionLayout
	Stats  PartitionStats

	Processors  int
	LoadBalance float64
	TotalWork   int64
	AvgWork     float64

	// Leaves that could not be split further although over target
	Infeasible []int
}

// Decompose is a convenience wrapper around NewPartitionBuilder and
// BuildPartitions
func Decompose(in *Input, opts ...Option) (*Result, error) {
	return NewPartitionBuilder(opts...).BuildPartitions(in)
}

// BuildPartitions runs the full decomposition: validate, split until every
// leaf is within the load balance threshold and there are at least as many
// leaves as processors, assign leaves to processors, repair connectivity
// into split donors and tag every edge with its processors
func (pb *PartitionBuilder) BuildPartitions(in *Input) (*Result, error) {
	arena, err := pb.buildArena(in)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, z := range arena.Leaves() {
		total += z.Work()
	}
	res := &Result{
		Arena:       arena,
		Processors:  in.Processors,
		LoadBalance: in.LoadBalance,
		TotalWork:   total,
		AvgWork:     float64(total) / float64(in.Processors),
	}
	pb.logger.Info("decomposing zones",
		zap.Int("zones", len(in.Zones)),
		zap.Int("processors", in.Processors),
		zap.Int64("work", total),
		zap.Float64("average", res.AvgWork),
		zap.Float64("load_balance", in.LoadBalance))

	if total == 0 {
		res.Layout = newPartitionLayout(in.Processors, arena.Len())
		res.Stats = res.Layout.PartitionStatistics(nil)
		return res, nil
	}

	if err := pb.splitZones(res); err != nil {
		return nil, err
	}

	res.Layout = pb.assign(arena, in.Processors, res.threshold())
	if err := res.Layout.ValidateLayout(arena); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	arena.ResolveSplitDonors()
	if err := tagProcessors(arena); err != nil {
		return nil, err
	}

	res.Stats = res.Layout.PartitionStatistics(res.Connectivity())
	pb.logger.Info("decomposition complete",
		zap.Int("leaves", len(arena.Leaves())),
		zap.Int("infeasible", len(res.Infeasible)),
		zap.Int64("min_work", res.Stats.MinWork),
		zap.Int64("max_work", res.Stats.MaxWork),
		zap.Float64("imbalance", res.Stats.Imbalance))
	return res, nil
}

// threshold is the largest work a leaf may carry without further splitting
func (r *Result) threshold() float64 { return (1 + r.LoadBalance) * r.AvgWork }

// splitZones first splits over-target leaves, most over-target first, then
// keeps splitting the largest leaf until there is one per processor. A leaf
// that cannot be cut at the requested target is bisected instead; only a
// leaf that cannot be bisected either is left alone for the rest of the run.
func (pb *PartitionBuilder) splitZones(res *Result) error {
	arena := res.Arena
	infeasible := make(map[int]bool)
	split := func(z *structured.Zone, target float64) (bool, error) {
		half := float64(z.Work()) / 2
		for _, t := range []float64{target, half} {
			_, _, err := arena.Split(z.ID, t, pb.rank, pb.verbose)
			switch {
			case err == nil:
				return true, nil
			case !errors.Is(err, structured.ErrSplitInfeasible):
				return false, err
			case t == half:
				infeasible[z.ID] = true
				return false, nil
			}
			pb.logger.Debug("split at target infeasible, bisecting",
				append(zapZone(z), zap.Float64("target", t), zap.Error(err))...)
		}
		return false, nil
	}

	limit := res.threshold()
	for {
		z := pickLeaf(arena, infeasible, func(z *structured.Zone) bool {
			return float64(z.Work()) > limit
		})
		if z == nil {
			break
		}
		ok, err := split(z, res.AvgWork)
		if err != nil {
			return err
		}
		if !ok {
			pb.logger.Warn("zone exceeds the load balance threshold but cannot be split",
				append(zapZone(z), zap.Float64("threshold", limit))...)
			res.Infeasible = append(res.Infeasible, z.ID)
		}
	}

	for len(arena.Leaves()) < res.Processors {
		z := pickLeaf(arena, infeasible, func(*structured.Zone) bool { return true })
		if z == nil {
			pb.logger.Warn("fewer zones than processors; some processors will be empty",
				zap.Int("leaves", len(arena.Leaves())),
				zap.Int("processors", res.Processors))
			break
		}
		// a leaf already below average is halved
		if _, err := split(z, min(res.AvgWork, float64(z.Work())/2)); err != nil {
			return err
		}
	}
	return nil
}

// pickLeaf returns the active, splittable leaf with the most work among
// those accepted by want; ties go to the lower id
func pickLeaf(arena *structured.Arena, infeasible map[int]bool, want func(*structured.Zone) bool) *structured.Zone {
	var best *structured.Zone
	for _, z := range arena.Leaves() {
		if infeasible[z.ID] || !want(z) {
			continue
		}
		if best == nil || z.Work() > best.Work() {
			best = z
		}
	}
	return best
}

// assign distributes leaves largest first. A leaf goes to the least loaded
// processor that already holds a piece of the same adam if that keeps it
// within threshold, otherwise to the least loaded processor. Ties go to the
// lower processor index.
func (pb *PartitionBuilder) assign(arena *structured.Arena, processors int, threshold float64) *PartitionLayout {
	layout := newPartitionLayout(processors, arena.Len())
	leaves := arena.Leaves()
	sort.SliceStable(leaves, func(a, b int) bool {
		if leaves[a].Work() != leaves[b].Work() {
			return leaves[a].Work() > leaves[b].Work()
		}
		return leaves[a].ID < leaves[b].ID
	})

	for _, z := range leaves {
		target := -1
		for p := range layout.Partitions {
			part := &layout.Partitions[p]
			if !part.Adams[z.Adam] || float64(part.Work+z.Work()) > threshold {
				continue
			}
			if target < 0 || part.Work < layout.Partitions[target].Work {
				target = p
			}
		}
		if target < 0 {
			target = 0
			for p := range layout.Partitions {
				if layout.Partitions[p].Work < layout.Partitions[target].Work {
					target = p
				}
			}
		}
		layout.assign(z, target)
		pb.logger.Debug("assigned zone", append(zapZone(z), zap.Int("processor", target))...)
	}
	return layout
}

// tagProcessors validates every surviving edge and records the processors
// on both ends
func tagProcessors(arena *structured.Arena) error {
	for _, z := range arena.Leaves() {
		for i := range z.Connectivity {
			zgc := &z.Connectivity[i]
			donor := arena.Zone(zgc.DonorZone)
			if !donor.IsActive() {
				return fmt.Errorf("%w: %s: donor %q is not a leaf after repair",
					structured.ErrInconsistentConnectivity, zgc.Label(), donor.Name)
			}
			if err := zgc.Validate(); err != nil {
				return err
			}
			zgc.OwnerProcessor = z.Processor
			zgc.DonorProcessor = donor.Processor
		}
	}
	return nil
}

// Connectivity returns every edge of every leaf, in leaf order
func (r *Result) Connectivity() []structured.ZoneConnectivity {
	var out []structured.ZoneConnectivity
	for _, z := range r.Arena.Leaves() {
		out = append(out, z.Connectivity...)
	}
	return out
}

// ProcessorZones returns the leaves assigned to one processor, by id
func (r *Result) ProcessorZones(proc int) []*structured.Zone {
	var out []*structured.Zone
	for _, z := range r.Arena.Leaves() {
		if z.Processor == proc {
			out = append(out, z)
		}
	}
	return out
}

func zapZone(z *structured.Zone) []zap.Field {
	return []zap.Field{
		zap.String("zone", z.Name),
		zap.Int("id", z.ID),
		zap.Stringer("extents", z.Ordinal),
		zap.Int64("work", z.Work()),
	}
}

func zapConnection(cs ConnectionSpec) []zap.Field {
	return []zap.Field{
		zap.String("connection", cs.Name),
		zap.String("owner", cs.Owner),
		zap.String("donor", cs.Donor),
	}
}
