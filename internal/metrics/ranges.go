package metrics

import (
	"fmt"
	"time"
)

// TimeRange is a selectable chart lookback. Step is the poll interval and the
// API resolution in seconds; WindowSize caps the number of retained points.
type TimeRange struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Minutes    int    `json:"minutes"`
	Step       int    `json:"step"`
	WindowSize int    `json:"window_size"`
}

// Lookback returns the range length.
func (r TimeRange) Lookback() time.Duration {
	return time.Duration(r.Minutes) * time.Minute
}

// Interval returns the poll interval.
func (r TimeRange) Interval() time.Duration {
	return time.Duration(r.Step) * time.Second
}

var timeRanges = []TimeRange{
	{Key: "5m", Label: "Past 5 minutes", Minutes: 5, Step: 5, WindowSize: 60},
	{Key: "30m", Label: "Past 30 minutes", Minutes: 30, Step: 10, WindowSize: 180},
	{Key: "1h", Label: "Past 1 hour", Minutes: 60, Step: 20, WindowSize: 180},
	{Key: "4h", Label: "Past 4 hours", Minutes: 240, Step: 60, WindowSize: 240},
	{Key: "1d", Label: "Past 1 day", Minutes: 1440, Step: 300, WindowSize: 288},
	{Key: "10d", Label: "Past 10 days", Minutes: 14400, Step: 3600, WindowSize: 240},
	{Key: "30d", Label: "Past 30 days", Minutes: 43200, Step: 10800, WindowSize: 240},
}

// Ranges returns the selectable time ranges, shortest first.
func Ranges() []TimeRange {
	out := make([]TimeRange, len(timeRanges))
	copy(out, timeRanges)
	return out
}

// LookupRange finds a time range by key ("5m", "1h", ...).
func LookupRange(key string) (TimeRange, bool) {
	for _, r := range timeRanges {
		if r.Key == key {
			return r, true
		}
	}
	return TimeRange{}, false
}

// Category is a resource metric family exposed by the metrics API.
type Category string

const (
	CategoryCPU     Category = "cpu"
	CategoryDisk    Category = "disk"
	CategoryNetwork Category = "network"
)

// SubMetric selects which disk or network series are charted.
type SubMetric string

const (
	SubMetricIOPS      SubMetric = "iops"
	SubMetricPPS       SubMetric = "pps"
	SubMetricBandwidth SubMetric = "bandwidth"
)

// Units reported by the metrics API.
const (
	UnitPercent = "%"
	UnitIOPS    = "iop/s"
	UnitBytes   = "bytes/s"
	UnitPackets = "packets/s"
)

// Series maps an API time series key onto a chart field.
type Series struct {
	Field string `json:"field"`
	Key   string `json:"key"`
	Name  string `json:"name"`
}

// Descriptor describes what is charted for one category and sub-metric.
type Descriptor struct {
	Label     string   `json:"label"`
	Unit      string   `json:"unit"`
	UnitLabel string   `json:"unit_label"`
	Series    []Series `json:"series"`
}

// Describe returns the chart descriptor for a category and sub-metric. The
// sub-metric is ignored for CPU.
func Describe(category Category, sub SubMetric) (Descriptor, error) {
	switch category {
	case CategoryCPU:
		return Descriptor{
			Label:     "CPU Usage (%)",
			Unit:      UnitPercent,
			UnitLabel: UnitPercent,
			Series:    []Series{{Field: "usage", Key: "cpu", Name: "CPU Usage"}},
		}, nil
	case CategoryDisk:
		switch sub {
		case SubMetricIOPS:
			return pair("IOPS", UnitIOPS, "read", "disk.0.iops.read", "Read IOPS", "write", "disk.0.iops.write", "Write IOPS"), nil
		case SubMetricBandwidth:
			return pair("Bandwidth", UnitBytes, "read", "disk.0.bandwidth.read", "Read Bandwidth", "write", "disk.0.bandwidth.write", "Write Bandwidth"), nil
		}
		return Descriptor{}, fmt.Errorf("unknown disk metric %q", sub)
	case CategoryNetwork:
		switch sub {
		case SubMetricPPS:
			return pair("Packets per Second", UnitPackets, "in", "network.0.pps.in", "Packets In", "out", "network.0.pps.out", "Packets Out"), nil
		case SubMetricBandwidth:
			return pair("Bandwidth", UnitBytes, "in", "network.0.bandwidth.in", "Bandwidth In", "out", "network.0.bandwidth.out", "Bandwidth Out"), nil
		}
		return Descriptor{}, fmt.Errorf("unknown network metric %q", sub)
	}
	return Descriptor{}, fmt.Errorf("unknown metric category %q", category)
}

func pair(label, unit, f1, k1, n1, f2, k2, n2 string) Descriptor {
	return Descriptor{
		Label:     label,
		Unit:      unit,
		UnitLabel: UnitLabel(unit),
		Series: []Series{
			{Field: f1, Key: k1, Name: n1},
			{Field: f2, Key: k2, Name: n2},
		},
	}
}

// Selection is what the user is currently looking at.
type Selection struct {
	Range    string    `json:"range"`
	Category Category  `json:"category"`
	Disk     SubMetric `json:"disk"`
	Network  SubMetric `json:"network"`
}

// DefaultSelection matches the panel's initial view.
func DefaultSelection() Selection {
	return Selection{
		Range:    "30m",
		Category: CategoryCPU,
		Disk:     SubMetricIOPS,
		Network:  SubMetricBandwidth,
	}
}

// SubMetric returns the sub-metric of the selected category.
func (s Selection) SubMetric() SubMetric {
	switch s.Category {
	case CategoryDisk:
		return s.Disk
	case CategoryNetwork:
		return s.Network
	}
	return ""
}

// Validate checks every field, not only the active category's.
func (s Selection) Validate() error {
	if _, ok := LookupRange(s.Range); !ok {
		return fmt.Errorf("unknown time range %q", s.Range)
	}
	if _, err := Describe(CategoryDisk, s.Disk); err != nil {
		return err
	}
	if _, err := Describe(CategoryNetwork, s.Network); err != nil {
		return err
	}
	_, err := Describe(s.Category, s.SubMetric())
	return err
}
