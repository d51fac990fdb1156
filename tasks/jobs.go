package tasks

import (
	"encoding/json"

	"nanocall.com/ffd/redis"
)

const JobsDB redis.DB = 1

type JobTask struct {
	UserCanceled      bool `json:"user_canceled"`
	StopRunsOnFailure bool `json:"stop_runs_on_failure"`
}

type JobTasks struct {
	client redis.Client
}

func (tasks JobTasks) GetCached(redisKey string) (*JobTask, error) {
	buf, err := tasks.client.GetDocument(cachedPropertiesKey(redisKey))
	if err != nil {
		return nil, err
	}
	var task JobTask
	if err := json.Unmarshal(buf, &task); err != nil {
		return nil, err
	}
	return &task, nil
}
