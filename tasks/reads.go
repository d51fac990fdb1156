package tasks

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch"

	"nanocall.com/ffd/redis"
)

const ReadsDB redis.DB = 2

type TaskStatus string

const (
	TaskStatusProcessing       TaskStatus = "processing"
	TaskStatusSubmitted        TaskStatus = "submitted"
	TaskStatusStarted          TaskStatus = "started"
	TaskStatusFailed           TaskStatus = "failed"
	TaskStatusCompletedSuccess TaskStatus = "completed - success"
	TaskStatusCompletedFailure TaskStatus = "completed - failure"
	TaskStatusCanceled         TaskStatus = "canceled"
)

func (s TaskStatus) Complete() bool {
	return s == TaskStatusCompletedSuccess || s == TaskStatusCompletedFailure || s == TaskStatusCanceled
}

func (s TaskStatus) Submitted() bool {
	return s == TaskStatusSubmitted || s == TaskStatusStarted || s == TaskStatusProcessing
}

// ReadTask is the per-read work unit: where its weight matrix lives and how
// far the basecall worker has taken it.
type ReadTask struct {
	RunID         string           `json:"run_id"`
	JobID         string           `json:"job_id"`
	MatrixFileKey string           `json:"matrix_file_key"`
	TaskStatuses  ReadTaskStatuses `json:"task_statuses"`
}

type ReadTaskStatuses struct {
	Basecall ReadTaskInfo `json:"basecall"`
}

type ReadTaskInfo struct {
	ResultsFileKey string     `json:"results_file_key"`
	StartedAt      *string    `json:"started_at"`
	CompletedAt    *string    `json:"completed_at"`
	Attempts       int        `json:"attempts"`
	Status         TaskStatus `json:"status"`
	ErrorMessages  []string   `json:"error_messages"`
}

type ReadTasks struct {
	client redis.Client
}

func (tasks ReadTasks) Get(redisKey string) (*ReadTask, error) {
	buf, err := tasks.client.GetDocument(redisKey)
	if err != nil {
		return nil, err
	}
	var task ReadTask
	if err := json.Unmarshal(buf, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update runs a read-modify-write cycle under the document lock. The typed
// fields are written back as a JSON merge patch so fields owned by other
// services survive.
func (tasks ReadTasks) Update(redisKey string, updateFunc func(task *ReadTask)) (err error) {
	releaseLock, err := tasks.client.Lock(redisKey)
	if err != nil {
		return err
	}
	defer func() {
		if rlErr := releaseLock(); err == nil {
			err = rlErr
		}
	}()
	current, err := tasks.client.GetDocument(redisKey)
	if err != nil {
		return err
	}
	var task ReadTask
	if err = json.Unmarshal(current, &task); err != nil {
		return err
	}
	updateFunc(&task)
	patch, err := json.Marshal(&task)
	if err != nil {
		return err
	}
	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return err
	}
	return tasks.client.SaveDocument(redisKey, merged)
}
