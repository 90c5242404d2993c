package config

import "time"

const defaultPort = 8080

const defaultLogLevel = "info"

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "tracking",
}

var defaultKafka = Kafka{
	GroupID:        "shipment-tracker",
	LocationsTopic: "carrier-locations",
	EventsTopic:    "shipment-events",
}

var defaultRedis = Redis{
	TTL: 10 * time.Second,
}

var defaultTracking = Tracking{
	FixFreshness:           15 * time.Minute,
	ClockSkew:              2 * time.Minute,
	WaypointDistanceMeters: 50,
	WaypointInterval:       5 * time.Minute,
	PollInterval:           30 * time.Second,
	OperationTimeout:       3 * time.Second,
}

var defaultDistributor = Distributor{
	Buffer: 64,
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       2,
	Burst:      10,
	TTL:        10 * time.Minute,
	MaxBuckets: 100000,
}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultKafka returns the default Kafka settings. Brokers are empty, so Kafka is off.
func DefaultKafka() Kafka {
	return defaultKafka
}

// DefaultRedis returns the default cache settings. Addr is empty, so the cache is off.
func DefaultRedis() Redis {
	return defaultRedis
}

// DefaultTracking returns the default tracking settings.
func DefaultTracking() Tracking {
	return defaultTracking
}

// DefaultDistributor returns the default distributor settings.
func DefaultDistributor() Distributor {
	return defaultDistributor
}

// DefaultRateLimit returns the default ingest rate limit settings.
func DefaultRateLimit() RateLimit {
	return defaultRateLimit
}
