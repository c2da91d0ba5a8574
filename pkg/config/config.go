package config

import "time"

// Server defaults
const (
	DefaultPort        = "8090"
	DefaultMaxMemoryMB = 48
	DefaultDataDir     = "./data/homegraph"
)

// Widget defaults: 24-hour window at 4 points/hour matches the default
// sparkline width of the dashboard cards.
const (
	DefaultWindowHours   = 24
	DefaultPointsPerHour = 4
)

// Refresh and maintenance intervals
const (
	RefreshInterval   = 1 * time.Minute
	RetentionWindow   = 90 * 24 * time.Hour
	RetentionInterval = 12 * time.Hour
	BadgerGCInterval  = 10 * time.Minute
)

// Request timeouts and limits
const (
	IngestTimeout      = 5 * time.Second
	QueryTimeout       = 10 * time.Second
	StatsTimeout       = 5 * time.Second
	MaxEventsPerBatch  = 1000
	MaxWindowHours     = 24 * 90
	MaxPointsPerHour   = 360 // one point per 10s, denser makes no chart sense
	FetchTimeout       = 10 * time.Second
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)

// MQTT configuration
const (
	MQTTConnectTimeout = 10 * time.Second
	MQTTDefaultPrefix  = "homegraph"
	MQTTQoS            = 1
)
