package models

// Config holds server, storage and engine settings. Values come from config.json
// and may be overridden by environment variables.
type Config struct {
	Port           string   `json:"port"`
	PublicURL      string   `json:"public_url"`
	AllowedOrigins []string `json:"allowed_origins"`
	ImageDir       string   `json:"image_dir"`
	CatalogFile    string   `json:"catalog_file"`
	Debug          bool     `json:"debug"`

	DBHost     string `json:"db_host"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
	DBSSLMode  string `json:"db_sslmode"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	SessionSecret         string `json:"session_secret"`
	SessionTTLHours       int    `json:"session_ttl_hours"`
	MaxPlayers            int    `json:"max_players"`
	MinPlayers            int    `json:"min_players"`
	GracePeriodSeconds    int    `json:"grace_period_seconds"`
	ConnIdleMinutes       int    `json:"conn_idle_minutes"`
	ConnIdleWarnMinutes   int    `json:"conn_idle_warn_minutes"`
	RoomIdleMinutes       int    `json:"room_idle_minutes"`
	ReaperSchedule        string `json:"reaper_schedule"`
	ResetReadyOnEveryVote bool   `json:"reset_ready_on_every_vote"`
	EventsPerSecond       int    `json:"events_per_second"`
	EventBurst            int    `json:"event_burst"`
	HistoryRetentionDays  int    `json:"history_retention_days"`
}

// DatabaseEnabled reports whether Postgres settings were provided.
func (c Config) DatabaseEnabled() bool {
	return c.DBHost != "" && c.DBName != ""
}

// RedisEnabled reports whether a Redis address was provided.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}
