package constants

import "time"

const (
	ServiceName = "ingest-service"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	MQTTKeepAlive            = 60 * time.Second
	MQTTPingTimeout          = 10 * time.Second
	MQTTConnectRetryInterval = 5 * time.Second
	MQTTSubscribeTimeout     = 5 * time.Second
	MQTTDisconnectQuiesce    = 250 // milliseconds
)

const (
	ShutdownTimeout = 5 * time.Second
	StorageTimeout  = 5 * time.Second
)

const (
	DefaultRecordChannel = "mqtt_data"
	DefaultLogChannel    = "connection_log"
	DefaultRecentSize    = 200
)

const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// MaxLoggedPayload bounds the raw payload echoed into error logs.
const MaxLoggedPayload = 1024

const (
	BusMQTT  = "mqtt"
	BusKafka = "kafka"
)

const (
	DriverPQ  = "postgres"
	DriverPgx = "pgx"
)

const (
	ModeDigitalIO          = "digital_io"
	ModeSplitIOEnvironment = "split_io_environment"
	ModeTagValue           = "tag_value"
	ModeRegisterReport     = "register_report"
	ModeAuto               = "auto"
)

const (
	DeviceFromFamily    = "family"
	DeviceFromTopic     = "topic"
	DeviceFromTopicLast = "topic_last"
)

const (
	KindDigitalIO     = "digital_io"
	KindMerged        = "merged"
	KindTagValue      = "tag_value"
	KindRegister      = "register"
	KindConnectionLog = "connection_log"
)
