package service

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Job names, used as metric labels and lock names.
const (
	JobMissedWorkouts  = "missed-workouts"
	JobWeeklyPenalties = "weekly-penalties"
)

// JobReport summarises one batch run. Err aggregates the per-item failures;
// a run with failures still processed every other item.
type JobReport struct {
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Err        error     `json:"-"`
}

// ErrorText is the aggregated failure text, empty when every item succeeded.
func (r JobReport) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r JobReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r JobReport) Fields() logrus.Fields {
	return logrus.Fields{
		"job":       r.Job,
		"processed": r.Processed,
		"failed":    r.Failed,
		"duration":  r.Duration().String(),
	}
}
