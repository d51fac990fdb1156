package rmq

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"nanocall.com/ffd/logger"
)

type Config struct {
	Host                    string `envconfig:"FF_COMN_RMQ_HOST" required:"true"`
	Port                    string `envconfig:"FF_COMN_RMQ_PORT" required:"true"`
	Username                string `envconfig:"FF_COMN_RMQ_USERNAME" required:"true"`
	Password                string `envconfig:"FF_COMN_RMQ_PASSWORD" required:"true"`
	Exchange                string `envconfig:"FF_COMN_RMQ_DEFAULT_EXCHANGE" default:"nanocall-default-exchange"`
	MaxParallelRequestCount int    `envconfig:"FF_MQ_MAX_PARALLEL_REQUESTS" default:"5"`
	BasecallTaskQueue       string `envconfig:"FF_COMN_BASECALL_TASK_QUEUE" required:"true"`
	SequencerTaskQueue      string `envconfig:"FF_COMN_SEQUENCER_TASK_QUEUE" required:"true"`
}

// Client consumes read tasks from the basecall queue and reports completed
// work to the sequencer queue. Consumption and publishing use separate
// connections so a blocked publisher cannot stall deliveries.
type Client struct {
	Deliveries     <-chan amqp.Delivery
	ReqChanErrors  <-chan *amqp.Error
	RespChanErrors <-chan *amqp.Error
	config         Config
	reqConn        *amqp.Connection
	respConn       *amqp.Connection
	respChannel    *amqp.Channel
	ffLogger       *zerolog.Logger
}

func NewClient() (*Client, error) {
	ffLogger := logger.NewLogger("RMQ client")
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		ffLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}

	url := fmt.Sprintf("amqp://%s:%s@%s:%s", config.Username, config.Password, config.Host, config.Port)
	respConn, respChannel, err := setup(url)
	if err != nil {
		return nil, fmt.Errorf("failed connection: %s", err)
	}
	reqConn, reqChannel, err := setup(url)
	if err != nil {
		return nil, fmt.Errorf("failed connection: %s", err)
	}

	q, err := reqChannel.QueueDeclarePassive(
		config.BasecallTaskQueue, // name
		true,                     // durable
		false,                    // delete when unused
		false,                    // exclusive
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return nil, err
	}
	if err := reqChannel.QueueBind(
		config.BasecallTaskQueue,
		config.BasecallTaskQueue,
		config.Exchange,
		false,
		nil); err != nil {
		return nil, err
	}
	if err := reqChannel.Qos(config.MaxParallelRequestCount, 0, false); err != nil {
		return nil, fmt.Errorf("qos: %s", err)
	}

	deliveries, err := reqChannel.Consume(
		q.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume deliveries: %s", err)
	}

	return &Client{
		Deliveries:     deliveries,
		ReqChanErrors:  reqChannel.NotifyClose(make(chan *amqp.Error)),
		RespChanErrors: respChannel.NotifyClose(make(chan *amqp.Error)),
		config:         config,
		reqConn:        reqConn,
		respConn:       respConn,
		respChannel:    respChannel,
		ffLogger:       &ffLogger,
	}, nil
}

func (c *Client) SendMessageToSequencer(msg amqp.Publishing) error {
	return c.respChannel.Publish(
		c.config.Exchange,
		c.config.SequencerTaskQueue,
		false,
		false,
		msg)
}

func (c *Client) Close() {
	_ = c.reqConn.Close()
	_ = c.respConn.Close()
}

func setup(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	return conn, ch, nil
}
