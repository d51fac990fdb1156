package tasks

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch"

	"nanocall.com/ffd/redis"
)

const RunsDB redis.DB = 0

// RunTask tracks a sequencing run: which workers failed it and on which
// reads.
type RunTask struct {
	FailedTasks []string            `json:"failed_tasks"`
	FailedReads map[string][]string `json:"failed_reads"`
}

type RunTaskCached struct {
	RunInfo     map[string]interface{} `json:"run_info"`
	FailedTasks []string               `json:"failed_tasks"`
	JobID       string                 `json:"job_id"`
	WorkType    string                 `json:"work_type"`
}

type RunTasks struct {
	client redis.Client
}

func (tasks RunTasks) Get(redisKey string) (*RunTask, error) {
	buf, err := tasks.client.GetDocument(redisKey)
	if err != nil {
		return nil, err
	}
	var task RunTask
	if err := json.Unmarshal(buf, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (tasks RunTasks) GetCached(redisKey string) (*RunTaskCached, error) {
	buf, err := tasks.client.GetDocument(cachedPropertiesKey(redisKey))
	if err != nil {
		return nil, err
	}
	var task RunTaskCached
	if err := json.Unmarshal(buf, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update patches the run document and mirrors the shared fields onto the
// cached-properties document other services read without locking.
func (tasks RunTasks) Update(redisKey string, updateFunc func(task *RunTask)) (err error) {
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
	var task RunTask
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
	if err = tasks.client.SaveDocument(redisKey, merged); err != nil {
		return err
	}
	_, err = tasks.client.PatchDocument(cachedPropertiesKey(redisKey), patch)
	return err
}
