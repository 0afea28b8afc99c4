package cleansing

import (
	"fmt"

	"github.com/Ramsey-B/fern/pkg/models"
)

// State is the lifecycle state of a running job. Only the Service moves a job
// between states: Processing to Completed, or Processing to Failed.
type State interface {
	Status() models.JobStatus
}

type Processing struct {
	Processed int
	Total     int
}

type Completed struct {
	Summary models.SummaryReport
}

type Failed struct {
	Reason string
}

func (Processing) Status() models.JobStatus { return models.JobStatusProcessing }
func (Completed) Status() models.JobStatus  { return models.JobStatusCompleted }
func (Failed) Status() models.JobStatus     { return models.JobStatusFailed }

type run struct {
	job   *models.CleansingJob
	state State
}

func newRun(job *models.CleansingJob) *run {
	return &run{
		job:   job,
		state: Processing{Processed: 0, Total: job.TotalRecords},
	}
}

func (r *run) processing() (Processing, error) {
	p, ok := r.state.(Processing)
	if !ok {
		return Processing{}, fmt.Errorf("job %s is %s, not processing", r.job.ID, r.state.Status())
	}
	return p, nil
}

// advance records one more processed source record
func (r *run) advance() (int, error) {
	p, err := r.processing()
	if err != nil {
		return 0, err
	}
	if p.Processed >= p.Total {
		return 0, fmt.Errorf("job %s already processed %d of %d records", r.job.ID, p.Processed, p.Total)
	}
	p.Processed++
	r.state = p
	r.job.ProcessedRecords = p.Processed
	return p.Processed, nil
}

func (r *run) complete(summary models.SummaryReport) error {
	if _, err := r.processing(); err != nil {
		return err
	}
	r.state = Completed{Summary: summary}
	r.job.Status = models.JobStatusCompleted
	return nil
}

func (r *run) fail(reason string) {
	if _, err := r.processing(); err != nil {
		return
	}
	r.state = Failed{Reason: reason}
	r.job.Status = models.JobStatusFailed
	r.job.Error = &reason
}
