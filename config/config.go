package config

type Config struct {
	RedisConfig           RedisConfig
	HttpPort              int
	Queue                 QueueConfig
	Intent                IntentConfig
	Classifier            ClassifierConfig
	AmqpUrl               string
	ExecutionCacheMinutes int
}

type RedisConfig struct {
	Addrs     []string
	Namespace string
}

type QueueConfig struct {
	TickIntervalSeconds  int
	MessageDelaySeconds  int
	MaxPerMinute         int
	BusinessHoursEnabled bool
	BusinessHoursStart   string
	BusinessHoursEnd     string
	SettingsCacheSeconds int
}

type IntentConfig struct {
	MinCoverageTight float64
	MinCoverageLoose float64
	FuzzyDistance    float64
	FuzzyMinCoverage float64
	FuzzyMinCombined float64
	FuzzyWeight      float64
	CoverageWeight   float64
	StrictMode       bool
}

type ClassifierConfig struct {
	Endpoint        string
	ApiKey          string
	TimeoutSeconds  float64
	MinConfidence   float64
	CooldownMinutes int
}

func Default() Config {
	return Config{
		HttpPort: 8080,
		RedisConfig: RedisConfig{
			Addrs:     []string{"localhost:6379"},
			Namespace: "zapflow",
		},
		Queue: QueueConfig{
			TickIntervalSeconds:  1,
			MessageDelaySeconds:  3,
			MaxPerMinute:         20,
			SettingsCacheSeconds: 30,
		},
		Intent:                DefaultIntent(),
		Classifier:            DefaultClassifier(),
		ExecutionCacheMinutes: 120,
	}
}

func DefaultIntent() IntentConfig {
	return IntentConfig{
		MinCoverageTight: 0.55,
		MinCoverageLoose: 0.65,
		FuzzyDistance:    0.34,
		FuzzyMinCoverage: 0.45,
		FuzzyMinCombined: 0.58,
		FuzzyWeight:      0.72,
		CoverageWeight:   0.28,
	}
}

func DefaultClassifier() ClassifierConfig {
	return ClassifierConfig{
		TimeoutSeconds:  4.5,
		MinConfidence:   0.7,
		CooldownMinutes: 10,
	}
}
