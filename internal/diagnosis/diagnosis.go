// Package diagnosis turns a predicted class into the result shown to users.
package diagnosis

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/Brownie44l1/plantcare-api/internal/labels"
)

const (
	StatusHealthy = "Your plant appears healthy!"
	StatusDisease = "Disease detected!"
)

var (
	healthyAdvice = []string{"Continue with regular care and maintenance."}
	diseaseAdvice = []string{
		"Remove affected leaves",
		"Improve air circulation",
		"Consider appropriate fungicide/treatment",
	}
)

// topN is how many ranked classes a diagnosis carries.
const topN = 3

type ClassScore struct {
	Index int     `json:"index"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

type Diagnosis struct {
	ID         string       `json:"id"`
	Index      int          `json:"index"`
	Label      string       `json:"label"`
	PlantType  string       `json:"plant_type"`
	Condition  string       `json:"condition"`
	Healthy    bool         `json:"healthy"`
	Status     string       `json:"status"`
	Advice     []string     `json:"advice"`
	Confidence float32      `json:"confidence"`
	Top        []ClassScore `json:"top,omitempty"`
}

// New builds a diagnosis for the class at index. scores may be nil.
func New(table labels.Table, index int, scores []float32) (*Diagnosis, error) {
	label, err := table.Lookup(index)
	if err != nil {
		return nil, err
	}
	plant, _, err := label.Split()
	if err != nil {
		return nil, err
	}

	d := &Diagnosis{
		ID:        uuid.NewString(),
		Index:     index,
		Label:     label.String(),
		PlantType: plant,
		Condition: label.Condition(),
		Healthy:   label.IsHealthy(),
	}
	if d.Healthy {
		d.Status = StatusHealthy
		d.Advice = append([]string(nil), healthyAdvice...)
	} else {
		d.Status = StatusDisease
		d.Advice = append([]string(nil), diseaseAdvice...)
	}
	if index < len(scores) && finite(scores[index]) {
		d.Confidence = scores[index]
	}
	d.Top = rank(table, scores, topN)
	return d, nil
}

// rank returns the n highest finite scores; equal scores keep index order.
func rank(table labels.Table, scores []float32, n int) []ClassScore {
	if len(scores) == 0 {
		return nil
	}
	all := make([]ClassScore, 0, len(scores))
	for i, s := range scores {
		l, err := table.Lookup(i)
		if err != nil {
			break
		}
		if !finite(s) {
			continue
		}
		all = append(all, ClassScore{Index: i, Label: l.String(), Score: s})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func finite(f float32) bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
