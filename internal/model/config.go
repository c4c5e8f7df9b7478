package model

// Config holds every knob and reference table the pipeline consumes.
// Keyword vocabularies and the frontier-lab table are injected here rather
// than living as package globals, so tests can substitute their own tables.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`

	Topics []TopicRule  `yaml:"topics" mapstructure:"topics"`
	Labs   []LabProfile `yaml:"labs" mapstructure:"labs"`
}

// DatabaseConfig describes the SQLite store location.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PipelineConfig bounds per-pass work and holds the matching thresholds.
type PipelineConfig struct {
	DedupBatchSize int `yaml:"dedupBatchSize" mapstructure:"dedupBatchSize"`
	TagBatchSize   int `yaml:"tagBatchSize" mapstructure:"tagBatchSize"`
	ScoreBatchSize int `yaml:"scoreBatchSize" mapstructure:"scoreBatchSize"`
	WriteBatchSize int `yaml:"writeBatchSize" mapstructure:"writeBatchSize"`
	BriefingSize   int `yaml:"briefingSize" mapstructure:"briefingSize"`

	// SimilarityThreshold is the minimum sequence-similarity ratio for an
	// item to join an anchor's cluster.
	SimilarityThreshold float64 `yaml:"similarityThreshold" mapstructure:"similarityThreshold"`

	// KeywordThreshold is the distinct-hit minimum for generic topics;
	// the medicine topic uses its own lower threshold.
	KeywordThreshold         int `yaml:"keywordThreshold" mapstructure:"keywordThreshold"`
	MedicineKeywordThreshold int `yaml:"medicineKeywordThreshold" mapstructure:"medicineKeywordThreshold"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// LLMConfig configures the optional narrative-polish provider. Disabled
// unless Provider is set; polish output never affects scoring.
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"apiKey" mapstructure:"apiKey"`
	BaseURL           string  `yaml:"baseUrl" mapstructure:"baseUrl"`
	TimeoutSeconds    int     `yaml:"timeoutSeconds" mapstructure:"timeoutSeconds"`
	MaxTokens         int     `yaml:"maxTokens" mapstructure:"maxTokens"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" mapstructure:"requestsPerSecond"`
}

// TopicRule is one entry of the fixed topic-keyword vocabulary.
type TopicRule struct {
	Name     string   `yaml:"name" mapstructure:"name"`
	Slug     string   `yaml:"slug" mapstructure:"slug"`
	Keywords []string `yaml:"keywords" mapstructure:"keywords"`
}

// LabProfile describes a frontier lab: how to recognize it and which
// default topics its stories carry.
type LabProfile struct {
	Name          string   `yaml:"name" mapstructure:"name"`
	Domains       []string `yaml:"domains" mapstructure:"domains"`
	DefaultTopics []string `yaml:"defaultTopics" mapstructure:"defaultTopics"`
	SafetyFocused bool     `yaml:"safetyFocused" mapstructure:"safetyFocused"`
}

// Topic slugs with pipeline-level meaning.
const (
	TopicGeneralAI = "general-ai"
	TopicMedicine  = "medicine-healthcare-ai"
	TopicPolicy    = "ai-policy-governance"
	TopicHumanAI   = "human-centered-ai"
)

// DefaultConfig returns the built-in reference tables and batch limits.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: ""},
		Pipeline: PipelineConfig{
			DedupBatchSize:           200,
			TagBatchSize:             100,
			ScoreBatchSize:           100,
			WriteBatchSize:           100,
			BriefingSize:             10,
			SimilarityThreshold:      0.6,
			KeywordThreshold:         2,
			MedicineKeywordThreshold: 1,
		},
		Logging: LoggingConfig{Level: "info"},
		LLM: LLMConfig{
			TimeoutSeconds:    30,
			MaxTokens:         500,
			RequestsPerSecond: 1,
		},
		Topics: []TopicRule{
			{
				Name: "Robotics", Slug: "robotics",
				Keywords: []string{"robot", "robotics", "autonomous robot", "drone", "manipulation", "grasping"},
			},
			{
				Name: "Medicine & Healthcare AI", Slug: TopicMedicine,
				Keywords: []string{"medical", "healthcare", "clinical", "diagnosis", "drug", "treatment", "patient"},
			},
			{
				Name: "Automotive & Autonomous Systems", Slug: "automotive-autonomous",
				Keywords: []string{"autonomous vehicle", "self-driving", "car", "automotive", "autopilot", "tesla"},
			},
			{
				Name: "Human-Centered AI", Slug: TopicHumanAI,
				Keywords: []string{"human", "interaction", "ui", "ux", "accessibility", "fairness", "bias", "ethics"},
			},
			{
				Name: "AI Policy & Governance", Slug: TopicPolicy,
				Keywords: []string{"policy", "regulation", "governance", "law", "government", "compliance", "ethics"},
			},
			{
				Name: "General AI", Slug: TopicGeneralAI,
				Keywords: []string{"language model", "llm", "neural network", "deep learning", "machine learning", "ai", "transformer"},
			},
		},
		Labs: []LabProfile{
			{
				Name:          "Anthropic",
				Domains:       []string{"anthropic.com"},
				DefaultTopics: []string{TopicGeneralAI, TopicPolicy, TopicHumanAI},
				SafetyFocused: true,
			},
			{
				Name:          "OpenAI",
				Domains:       []string{"openai.com"},
				DefaultTopics: []string{TopicGeneralAI},
			},
			{
				Name:          "DeepMind",
				Domains:       []string{"deepmind.google", "deepmind.com"},
				DefaultTopics: []string{TopicGeneralAI},
			},
			{
				Name:          "Meta AI",
				Domains:       []string{"ai.meta.com"},
				DefaultTopics: []string{TopicGeneralAI},
			},
		},
	}
}

// LabByName looks a lab profile up by its exact name.
func (c Config) LabByName(name string) (LabProfile, bool) {
	for _, lab := range c.Labs {
		if lab.Name == name {
			return lab, true
		}
	}
	return LabProfile{}, false
}

// TopicRuleBySlug returns the vocabulary entry for a slug.
func (c Config) TopicRuleBySlug(slug string) (TopicRule, bool) {
	for _, t := range c.Topics {
		if t.Slug == slug {
			return t, true
		}
	}
	return TopicRule{}, false
}
