package tasks

import (
	"fmt"

	"nanocall.com/ffd/redis"
)

type Client struct {
	Runs  RunTasks
	Reads ReadTasks
	Jobs  JobTasks
}

// NewClient is the preferred way of working with task documents.
func NewClient() (Client, error) {
	runsRedisClient, err := redis.NewClient(RunsDB)
	if err != nil {
		return Client{}, err
	}
	jobsRedisClient, err := redis.NewClient(JobsDB)
	if err != nil {
		return Client{}, err
	}
	readsRedisClient, err := redis.NewClient(ReadsDB)
	if err != nil {
		return Client{}, err
	}
	return Client{
		Runs:  RunTasks{client: runsRedisClient},
		Jobs:  JobTasks{client: jobsRedisClient},
		Reads: ReadTasks{client: readsRedisClient},
	}, nil
}

func (client *Client) Close() {
	_ = client.Reads.client.Close()
	_ = client.Runs.client.Close()
	_ = client.Jobs.client.Close()
}

func cachedPropertiesKey(redisKey string) string {
	return fmt.Sprintf("%s-cached-properties", redisKey)
}
