package consensus

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/meristem-data/cellclust/internal/fsutil"
)

const iterFilePrefix = "iter_"

// IterationArtifact is the persisted record of one subsample iteration.
// Replaying the artifacts of a run through PairCounts.Record reproduces the
// co-cluster matrix exactly, which is what makes runs resumable.
type IterationArtifact struct {
	Iteration  int            `json:"iteration"`
	Sampled    []string       `json:"sampled"`
	Assignment map[string]int `json:"assignment"`
}

func iterFileName(iteration int) string {
	return fmt.Sprintf("%s%06d.json", iterFilePrefix, iteration)
}

// SaveIteration writes the artifact for one iteration under dir.
func SaveIteration(fsys fsutil.FileSystem, dir string, art IterationArtifact) error {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir %s: %w", dir, err)
	}
	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("marshal iteration %d: %w", art.Iteration, err)
	}
	name := dir + "/" + iterFileName(art.Iteration)
	if err := fsys.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// LoadIterations scans dir for iteration artifacts and returns them ordered
// by iteration number. A malformed artifact is an error: silently skipping
// one would bias the resumed co-cluster counts.
func LoadIterations(fsys fsutil.FileSystem, dir string) ([]IterationArtifact, error) {
	names, err := fsys.ListDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan run dir %s: %w", dir, err)
	}

	var arts []IterationArtifact
	for _, name := range names {
		if !strings.HasPrefix(name, iterFilePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := fsys.ReadFile(dir + "/" + name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var art IterationArtifact
		if err := json.Unmarshal(data, &art); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		arts = append(arts, art)
	}
	sort.Slice(arts, func(i, j int) bool { return arts[i].Iteration < arts[j].Iteration })
	return arts, nil
}
