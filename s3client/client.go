package s3client

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"nanocall.com/ffd/logger"
)

// Client moves read weight matrices and basecall results between the worker
// and the run bucket. Sessions are refreshed in place when a call fails.
type Client struct {
	mu         sync.Mutex
	sess       *session.Session
	bucketName string
	region     string
	env        EnvironmentConfig
}

type EnvironmentConfig struct {
	BucketName  string `envconfig:"FF_COMN_STORAGE_CONTAINER_NAME" required:"true"`
	DeployEnv   string `envconfig:"FF_ENV" required:"true"`
	Region      string `envconfig:"FF_COMN_AWS_REGION_NAME" required:"true"`
	AwsEndpoint string `envconfig:"FF_COMN_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"FF_COMN_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"FF_COMN_AWS_ACCESS_KEY" default:""`
}

var clientLogger = logger.NewLogger("S3Client")
var sdkLogger = logger.NewLogger("S3-SDK")

func New() (*Client, error) {
	var env EnvironmentConfig
	if err := envconfig.Process("", &env); err != nil {
		clientLogger.Err(err).Msg("Failed to get proper variables from environment")
		return nil, err
	}
	client := Client{
		bucketName: env.BucketName,
		region:     env.Region,
		env:        env,
	}
	if err := client.refreshSession(); err != nil {
		return nil, err
	}
	return &client, nil
}

func (client *Client) Upload(data []byte, key string) error {
	params := &s3manager.UploadInput{
		Bucket: &client.bucketName,
		Key:    &key,
		Body:   bytes.NewReader(data),
	}
	_, err := client.upload(client.session(), params)
	if err == nil {
		return nil
	}
	clientLogger.Err(err).Str("key", key).Msg("Upload failed, refreshing S3 session")
	if err = client.refreshSession(); err != nil {
		return err
	}
	params.Body = bytes.NewReader(data)
	_, err = client.upload(client.session(), params)
	return err
}

func (client *Client) Download(key string) ([]byte, error) {
	params := &s3.GetObjectInput{
		Bucket: &client.bucketName,
		Key:    &key,
	}
	res, err := client.download(client.session(), params)
	if err == nil {
		return res, nil
	}
	clientLogger.Err(err).Str("key", key).Msg("Download failed, refreshing S3 session")
	if err = client.refreshSession(); err != nil {
		return nil, err
	}
	return client.download(client.session(), params)
}

func (client *Client) Close() {}

func (client *Client) session() *session.Session {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.sess
}

func (client *Client) upload(sess *session.Session, params *s3manager.UploadInput) (*s3manager.UploadOutput, error) {
	sdkLog := sdkLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()

	uploader := s3manager.NewUploader(sess.Copy(&aws.Config{Logger: getLogger(sdkLog)}))
	return uploader.Upload(params)
}

func (client *Client) download(sess *session.Session, params *s3.GetObjectInput) ([]byte, error) {
	ffLogger := clientLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()
	sdkLog := sdkLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()

	downloader := s3manager.NewDownloader(sess.Copy(&aws.Config{Logger: getLogger(sdkLog)}))
	buf := aws.NewWriteAtBuffer([]byte{})
	size, err := downloader.Download(buf, params)
	if err != nil {
		ffLogger.Error().Err(err).Msg("Failed to download file")
		return nil, err
	}
	ffLogger.Debug().Msgf("Downloaded %v bytes", size)
	return buf.Bytes(), nil
}

func (client *Client) createEC2Config() *aws.Config {
	return &aws.Config{
		Region:     aws.String(client.region),
		MaxRetries: aws.Int(4),
		LogLevel:   aws.LogLevel(aws.LogDebug),
	}
}

func (client *Client) createEnvConfig() (*aws.Config, error) {
	creds := credentials.NewStaticCredentials(
		client.env.AccessKeyID,
		client.env.AccessKey,
		"")
	if _, err := creds.Get(); err != nil {
		clientLogger.Error().Err(err).Msg("Error with credentials from environment")
		return nil, err
	}
	cfg := aws.NewConfig().
		WithRegion(client.region).
		WithMaxRetries(4).
		WithCredentials(creds).
		WithLogLevel(aws.LogDebug)

	if client.env.DeployEnv == "dev" && len(client.env.AwsEndpoint) > 0 {
		cfg = cfg.WithEndpoint(client.env.AwsEndpoint).
			WithS3ForcePathStyle(true)
	}
	return cfg, nil
}

// refreshSession tries instance credentials first, then explicit env
// credentials, verifying each with a caller-identity call.
func (client *Client) refreshSession() error {
	client.mu.Lock()
	defer client.mu.Unlock()

	sess, err := session.NewSession(client.createEC2Config())
	if err == nil {
		if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err == nil {
			client.sess = sess
			clientLogger.Info().Msg("S3 session initialized using EC2")
			return nil
		}
	}
	clientLogger.Info().Msg("Could not initialize S3 session using EC2, trying env credentials")

	cfg, err := client.createEnvConfig()
	if err != nil {
		client.sess = nil
		return err
	}
	sess, err = session.NewSession(cfg)
	if err != nil {
		client.sess = nil
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return err
	}
	if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err != nil {
		client.sess = nil
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return errors.New("could not initialize S3 session")
	}
	client.sess = sess
	clientLogger.Info().Msg("S3 session initialized using env credentials")
	return nil
}

type s3Logger struct {
	ffLogger zerolog.Logger
}

func getLogger(ffLogger zerolog.Logger) *s3Logger {
	return &s3Logger{ffLogger}
}

func (logger *s3Logger) Log(v ...interface{}) {
	//nolint
	logger.ffLogger.Debug().Msg(fmt.Sprint(v))
}
