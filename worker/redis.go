package worker

import (
	"fmt"

	"nanocall.com/ffd/tasks"
)

type redisTransactions interface {
	getReadTask(redisKey string) (*tasks.ReadTask, error)
	getJobTask(task *Task) (*tasks.JobTask, error)
	getRunTask(task *Task) (*tasks.RunTaskCached, error)
	onTaskStarted(task *Task) error
	onTaskCancelled(task *Task, errorMessages ...string) error
	onTaskExceededRetries(task *Task, maxRetries int) error
	onTaskFailedWithError(task *Task, err error) error
	onTaskComplete(task *Task) error
	close()
}

type redisClientWrapper struct {
	tasksClient *tasks.Client
}

func (wrapper *redisClientWrapper) close() {
	wrapper.tasksClient.Close()
}

func (wrapper *redisClientWrapper) onTaskStarted(task *Task) error {
	return wrapper.tasksClient.Reads.Update(task.redisKey, func(task *tasks.ReadTask) {
		task.TaskStatuses.Basecall.Status = tasks.TaskStatusStarted
		task.TaskStatuses.Basecall.Attempts += 1
		task.TaskStatuses.Basecall.StartedAt = getFormattedNow()
		task.TaskStatuses.Basecall.CompletedAt = nil
	})
}

func (wrapper *redisClientWrapper) onTaskCancelled(task *Task, errorMessages ...string) error {
	return wrapper.tasksClient.Reads.Update(task.redisKey, func(readTask *tasks.ReadTask) {
		readTask.TaskStatuses.Basecall.Status = tasks.TaskStatusCanceled
		readTask.TaskStatuses.Basecall.StartedAt = getFormattedNow()
		readTask.TaskStatuses.Basecall.CompletedAt = getFormattedNow()
		readTask.TaskStatuses.Basecall.Attempts += 1
		readTask.TaskStatuses.Basecall.ErrorMessages = append(
			readTask.TaskStatuses.Basecall.ErrorMessages,
			errorMessages...,
		)
	})
}

func (wrapper *redisClientWrapper) onTaskExceededRetries(task *Task, maxRetries int) error {
	err := wrapper.tasksClient.Runs.Update(task.readTask.RunID, func(runTask *tasks.RunTask) {
		runTask.FailedTasks = append(runTask.FailedTasks, "basecall")
		if runTask.FailedReads == nil {
			runTask.FailedReads = make(map[string][]string)
		}
		runTask.FailedReads[task.redisKey] = append(runTask.FailedReads[task.redisKey], "basecall")
	})
	if err != nil {
		return err
	}
	return wrapper.tasksClient.Reads.Update(task.redisKey, func(readTask *tasks.ReadTask) {
		readTask.TaskStatuses.Basecall.Status = tasks.TaskStatusCompletedFailure
		readTask.TaskStatuses.Basecall.StartedAt = getFormattedNow()
		readTask.TaskStatuses.Basecall.CompletedAt = getFormattedNow()
		readTask.TaskStatuses.Basecall.Attempts += 1
		readTask.TaskStatuses.Basecall.ErrorMessages = append(
			readTask.TaskStatuses.Basecall.ErrorMessages,
			fmt.Sprintf(
				"Task has exceeded retries. (Attempts: %d, max retries: %d )",
				readTask.TaskStatuses.Basecall.Attempts,
				maxRetries,
			),
		)
	})
}

func (wrapper *redisClientWrapper) onTaskFailedWithError(task *Task, err error) error {
	return wrapper.tasksClient.Reads.Update(task.redisKey, func(readTask *tasks.ReadTask) {
		readTask.TaskStatuses.Basecall.Status = tasks.TaskStatusFailed
		readTask.TaskStatuses.Basecall.CompletedAt = getFormattedNow()
		readTask.TaskStatuses.Basecall.ErrorMessages = append(readTask.TaskStatuses.Basecall.ErrorMessages, err.Error())
	})
}

func (wrapper *redisClientWrapper) onTaskComplete(task *Task) error {
	return wrapper.tasksClient.Reads.Update(task.redisKey, func(readTask *tasks.ReadTask) {
		if !readTask.TaskStatuses.Basecall.Status.Complete() {
			readTask.TaskStatuses.Basecall.Status = tasks.TaskStatusCompletedSuccess
		}
		readTask.TaskStatuses.Basecall.CompletedAt = getFormattedNow()
		readTask.TaskStatuses.Basecall.ResultsFileKey = getResultsFileKey(task)
	})
}

func (wrapper *redisClientWrapper) getReadTask(redisKey string) (*tasks.ReadTask, error) {
	return wrapper.tasksClient.Reads.Get(redisKey)
}

func (wrapper *redisClientWrapper) getJobTask(task *Task) (*tasks.JobTask, error) {
	return wrapper.tasksClient.Jobs.GetCached(task.readTask.JobID)
}

func (wrapper *redisClientWrapper) getRunTask(task *Task) (*tasks.RunTaskCached, error) {
	return wrapper.tasksClient.Runs.GetCached(task.readTask.RunID)
}
