package cfg

import "time"

type Cfg struct {
	// Storage configuration
	DBDriver string
	DBPath   string
	DBDSN    string

	// Source and pipeline configuration
	SourcesDir   string
	PipelineFile string

	// HTTP configuration
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Scheduler configuration
	WorkerCount        int
	SchedulerInterval  int
	ProcessingSchedule string
	DedupSchedule      string
	BatchSize          int
	TaskTimeout        time.Duration

	// Redis seen-set (optional)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SeenTTL       time.Duration

	// Result publishing (optional)
	KafkaBrokers []string
	KafkaTopic   string
	S3Bucket     string
	S3Region     string
	S3Prefix     string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Cfg) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Cfg) S3Enabled() bool {
	return c.S3Bucket != ""
}
