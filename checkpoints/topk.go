package checkpoints

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestName is the file listing the retained checkpoint set, one
// "metric: path" line per record, best first.
const ManifestName = "topk_map.txt"

// Record pairs a validation metric with the checkpoint blob it scored.
type Record struct {
	Metric float64
	Path   string
}

// TopK maintains the best-scoring checkpoints in sorted order, evicting and
// deleting the worst once the retention limit is exceeded. A limit of -1
// disables eviction. The manifest in dir is rewritten in full after every
// mutation so it always reflects the exact retained set.
type TopK struct {
	dir       string
	limit     int
	minBetter bool
	records   []Record
	remove    func(path string) error
}

// NewTopK creates a retention manager writing its manifest into dir.
// minBetter selects the metric direction: true means lower is better.
func NewTopK(dir string, limit int, minBetter bool) *TopK {
	return &TopK{
		dir:       dir,
		limit:     limit,
		minBetter: minBetter,
		remove:    os.Remove,
	}
}

func (tk *TopK) better(a, b float64) bool {
	if tk.minBetter {
		return a < b
	}
	return a > b
}

// Insert places a new checkpoint record at the first position where its
// metric is strictly better than the incumbent, so ties land after existing
// equal entries. It then evicts from the worst end until the limit holds,
// deleting evicted blobs, and rewrites the manifest.
func (tk *TopK) Insert(metric float64, path string) error {
	pos := len(tk.records)
	for i, rec := range tk.records {
		if tk.better(metric, rec.Metric) {
			pos = i
			break
		}
	}
	tk.records = append(tk.records, Record{})
	copy(tk.records[pos+1:], tk.records[pos:])
	tk.records[pos] = Record{Metric: metric, Path: path}

	if tk.limit >= 0 {
		for len(tk.records) > tk.limit {
			worst := tk.records[len(tk.records)-1]
			if err := tk.remove(worst.Path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete evicted checkpoint %s: %v", worst.Path, err)
			}
			tk.records = tk.records[:len(tk.records)-1]
		}
	}

	return tk.writeManifest()
}

// Records returns a copy of the retained set, best first.
func (tk *TopK) Records() []Record {
	out := make([]Record, len(tk.records))
	copy(out, tk.records)
	return out
}

// Len returns the number of retained checkpoints.
func (tk *TopK) Len() int {
	return len(tk.records)
}

// Best returns the best retained record, or false when nothing is retained.
func (tk *TopK) Best() (Record, bool) {
	if len(tk.records) == 0 {
		return Record{}, false
	}
	return tk.records[0], true
}

// writeManifest rewrites the manifest atomically: the content is staged in
// a temp file and renamed over the old manifest, so a crash mid-write never
// leaves a partially overwritten file behind.
func (tk *TopK) writeManifest() error {
	var sb strings.Builder
	for _, rec := range tk.records {
		fmt.Fprintf(&sb, "%g: %s\n", rec.Metric, rec.Path)
	}

	tmp, err := os.CreateTemp(tk.dir, ManifestName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to stage checkpoint manifest: %v", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint manifest: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint manifest: %v", err)
	}
	if err := os.Rename(tmpName, filepath.Join(tk.dir, ManifestName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace checkpoint manifest: %v", err)
	}
	return nil
}
