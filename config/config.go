package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Notifier modes selectable at construction time. Exactly one channel
// backs the dispatcher for a given process.
const (
	NotifierDesktop = "desktop"
	NotifierPush    = "push"
	NotifierWeb     = "web"
)

// Config holds every recognized option for the leave-request monitor.
type Config struct {
	// Keywords a sent message's subject must contain (case-insensitive)
	// to count as a leave request.
	Keywords []string `mapstructure:"keywords"`

	// CheckIntervalHours is the wall-clock interval between scan cycles
	// in continuous mode.
	CheckIntervalHours int `mapstructure:"check_interval_hours"`

	// ReplyTimeoutHours is the grace period before an unanswered leave
	// request is considered overdue.
	ReplyTimeoutHours int `mapstructure:"reply_timeout_hours"`

	// ScheduleHours is the background scan period used in serve mode.
	ScheduleHours int `mapstructure:"schedule_hours"`

	// Notifier selects the channel backing the dispatcher: desktop, push or web.
	Notifier string `mapstructure:"notifier"`

	// MaxResults caps how many sent messages one scan examines.
	MaxResults int64 `mapstructure:"max_results"`

	// WebHistorySize bounds the ring of recent records the web channel
	// keeps for reconnecting clients.
	WebHistorySize int `mapstructure:"web_history_size"`

	CredentialsFile         string `mapstructure:"credentials_file"`
	TokenFile               string `mapstructure:"token_file"`
	FirebaseCredentialsFile string `mapstructure:"firebase_credentials_file"`

	// ListenAddr is the bind address for the HTTP surface in serve mode.
	ListenAddr string `mapstructure:"listen_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("keywords", []string{"leave request", "leave application", "vacation request", "leave"})
	v.SetDefault("check_interval_hours", 24)
	v.SetDefault("reply_timeout_hours", 1)
	v.SetDefault("schedule_hours", 12)
	v.SetDefault("notifier", NotifierDesktop)
	v.SetDefault("max_results", 50)
	v.SetDefault("web_history_size", 10)
	v.SetDefault("credentials_file", "credentials.json")
	v.SetDefault("token_file", "token.json")
	v.SetDefault("firebase_credentials_file", "firebase-credentials.json")
	v.SetDefault("listen_addr", ":8080")
}

// Load reads configuration from the given YAML file, falling back to
// defaults when the file does not exist. Every key can also be set through
// the environment with a LEAVEWATCH_ prefix (e.g. LEAVEWATCH_NOTIFIER).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("LEAVEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
		// Missing file is fine, defaults and env apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Notifier {
	case NotifierDesktop, NotifierPush, NotifierWeb:
	default:
		return fmt.Errorf("unknown notifier mode %q", c.Notifier)
	}
	if len(c.Keywords) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}
	if c.ReplyTimeoutHours < 0 || c.CheckIntervalHours <= 0 || c.ScheduleHours <= 0 {
		return fmt.Errorf("intervals must be positive (check=%d, timeout=%d, schedule=%d)",
			c.CheckIntervalHours, c.ReplyTimeoutHours, c.ScheduleHours)
	}
	return nil
}
