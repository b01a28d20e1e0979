package partitions

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/notargets/meshdecomp/structured"
)

// Row is one line of the decomposition report: a leaf zone, where it came
// from and where it went
type Row struct {
	Processor int    `yaml:"processor"`
	Zone      int    `yaml:"zone"`
	Name      string `yaml:"name"`
	Adam      int    `yaml:"adam"`
	AdamName  string `yaml:"adam_name"`
	Extents   [3]int `yaml:"extents,flow"`
	Offset    [3]int `yaml:"offset,flow"` // 1-based first cell inside the adam
	Work      int64  `yaml:"work"`
}

// Rows lists every leaf ordered by processor, then zone id
func (r *Result) Rows() []Row {
	leaves := r.Arena.Leaves()
	rows := make([]Row, 0, len(leaves))
	for _, z := range leaves {
		adam := r.Arena.Zone(z.Adam)
		rows = append(rows, Row{
			Processor: z.Processor,
			Zone:      z.ID,
			Name:      z.Name,
			Adam:      adam.ID,
			AdamName:  adam.Name,
			Extents:   z.Ordinal,
			Offset:    z.Offset.Add(structured.IJK{1, 1, 1}),
			Work:      z.Work(),
		})
	}
	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].Processor != rows[b].Processor {
			return rows[a].Processor < rows[b].Processor
		}
		return rows[a].Zone < rows[b].Zone
	})
	return rows
}

// WriteReport prints the per-processor table followed by the balance summary
func (r *Result) WriteReport(w io.Writer) error {
	pw := &printer{w: w}
	pw.printf("Decomposition for %d processors; total work %d, average %.1f, load balance %.2f\n",
		r.Processors, r.TotalWork, r.AvgWork, r.LoadBalance)
	pw.printf("%6s %6s %-24s %-16s %6s %6s %6s %6s %6s %6s %10s\n",
		"proc", "zone", "name", "adam", "ni", "nj", "nk", "i0", "j0", "k0", "work")
	for _, row := range r.Rows() {
		pw.printf("%6d %6d %-24s %-16s %6d %6d %6d %6d %6d %6d %10d\n",
			row.Processor, row.Zone, row.Name, row.AdamName,
			row.Extents[0], row.Extents[1], row.Extents[2],
			row.Offset[0], row.Offset[1], row.Offset[2], row.Work)
	}
	if r.Layout != nil {
		pw.printf("\n%6s %10s %8s %10s %10s %9s\n", "proc", "work", "zones", "local", "remote", "neighbors")
		for p, part := range r.Layout.Partitions {
			m := r.Stats.Metrics[p]
			pw.printf("%6d %10d %8d %10d %10d %9d\n",
				p, part.Work, part.NumZones, m.LocalCommVolume, m.RemoteCommVolume, m.NumNeighbors)
		}
	}
	pw.printf("%s\n", r.Stats.String())
	for _, id := range r.Infeasible {
		pw.printf("warning: %s exceeds the load balance threshold\n", r.Arena.Zone(id).String())
	}
	return pw.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// yamlConnection is the serialized form of one leaf edge
type yamlConnection struct {
	Name           string `yaml:"name"`
	Owner          string `yaml:"owner"`
	Donor          string `yaml:"donor"`
	OwnerProcessor int    `yaml:"owner_processor"`
	DonorProcessor int    `yaml:"donor_processor"`
	Transform      [3]int `yaml:"transform,flow"`
	OwnerRangeBeg  [3]int `yaml:"owner_range_beg,flow"`
	OwnerRangeEnd  [3]int `yaml:"owner_range_end,flow"`
	DonorRangeBeg  [3]int `yaml:"donor_range_beg,flow"`
	DonorRangeEnd  [3]int `yaml:"donor_range_end,flow"`
	Active         bool   `yaml:"active"`
	FromDecomp     bool   `yaml:"from_decomp,omitempty"`
	Retained       bool   `yaml:"retained,omitempty"`
}

type yamlReport struct {
	Processors   int              `yaml:"processors"`
	LoadBalance  float64          `yaml:"load_balance"`
	TotalWork    int64            `yaml:"total_work"`
	AverageWork  float64          `yaml:"average_work"`
	Imbalance    float64          `yaml:"imbalance"`
	Zones        []Row            `yaml:"zones"`
	Connectivity []yamlConnection `yaml:"connectivity"`
}

// WriteYAML writes the decomposition as a YAML document; ranges are in the
// owning leaf's local node indices
func (r *Result) WriteYAML(w io.Writer) error {
	doc := yamlReport{
		Processors:  r.Processors,
		LoadBalance: r.LoadBalance,
		TotalWork:   r.TotalWork,
		AverageWork: r.AvgWork,
		Imbalance:   r.Stats.Imbalance,
		Zones:       r.Rows(),
	}
	for _, zgc := range r.Connectivity() {
		if zgc.IsZeroRange() {
			zgc.OwnerOffset, zgc.DonorOffset = structured.IJK{}, structured.IJK{}
		}
		doc.Connectivity = append(doc.Connectivity, yamlConnection{
			Name:           zgc.Name,
			Owner:          r.Arena.Zone(zgc.OwnerZone).Name,
			Donor:          zgc.DonorName,
			OwnerProcessor: zgc.OwnerProcessor,
			DonorProcessor: zgc.DonorProcessor,
			Transform:      zgc.Transform,
			OwnerRangeBeg:  zgc.OwnerLocalBeg(),
			OwnerRangeEnd:  zgc.OwnerLocalEnd(),
			DonorRangeBeg:  zgc.DonorLocalBeg(),
			DonorRangeEnd:  zgc.DonorLocalEnd(),
			Active:         zgc.Active,
			FromDecomp:     zgc.FromDecomp,
			Retained:       zgc.Retained,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encoding decomposition: %w", err)
	}
	return enc.Close()
}
