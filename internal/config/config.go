package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Oracles  OraclesConfig
	Forecast ForecastConfig
	Journal  JournalConfig
	Facility FacilityConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type OraclesConfig struct {
	RiskURL       string
	AllocationURL string
	ForecastURL   string
	Timeout       time.Duration
}

type ForecastConfig struct {
	RefreshInterval time.Duration
	HorizonHours    int
	WindowHours     int
}

type JournalConfig struct {
	DSN string
}

type FacilityConfig struct {
	Name         string
	TotalBeds    int
	ICUBeds      int
	Ventilators  int
	OxygenSupply float64
	StaffCount   int
	RosterPath   string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 64),
		},
		Oracles: OraclesConfig{
			RiskURL:       getEnv("RISK_ORACLE_URL", "http://localhost:8001/predict"),
			AllocationURL: getEnv("ALLOCATION_ORACLE_URL", "http://localhost:8002/allocate"),
			ForecastURL:   getEnv("FORECAST_ORACLE_URL", "http://localhost:8003/forecast"),
			Timeout:       getEnvDuration("ORACLE_TIMEOUT", 5*time.Second),
		},
		Forecast: ForecastConfig{
			RefreshInterval: getEnvDuration("FORECAST_REFRESH_INTERVAL", 5*time.Minute),
			HorizonHours:    getEnvInt("FORECAST_HORIZON_HOURS", 24),
			WindowHours:     getEnvInt("FORECAST_WINDOW_HOURS", 6),
		},
		Journal: JournalConfig{
			DSN: getEnv("JOURNAL_DSN", ":memory:"),
		},
		Facility: FacilityConfig{
			Name:         getEnv("FACILITY_NAME", "General Triage Center"),
			TotalBeds:    getEnvInt("FACILITY_TOTAL_BEDS", 120),
			ICUBeds:      getEnvInt("FACILITY_ICU_BEDS", 12),
			Ventilators:  getEnvInt("FACILITY_VENTILATORS", 8),
			OxygenSupply: getEnvFloat("FACILITY_OXYGEN_SUPPLY", 600),
			StaffCount:   getEnvInt("FACILITY_STAFF_COUNT", 40),
			RosterPath:   getEnv("HOSPITAL_ROSTER_PATH", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Forecast.RefreshInterval < time.Minute {
		return fmt.Errorf("forecast refresh interval must be at least 1 minute")
	}
	if c.Forecast.HorizonHours < 1 {
		return fmt.Errorf("forecast horizon must be at least 1 hour")
	}
	if c.Forecast.WindowHours < 1 || c.Forecast.WindowHours > c.Forecast.HorizonHours {
		return fmt.Errorf("forecast window must be between 1 and the horizon, got %d", c.Forecast.WindowHours)
	}

	if c.Oracles.Timeout <= 0 {
		return fmt.Errorf("oracle timeout must be positive")
	}

	return nil
}

// BuildFacility assembles the facility model, loading the hospital roster
// from ROSTER_PATH when set and falling back to a single-hospital default
// otherwise.
func (c *Config) BuildFacility() (models.Facility, error) {
	f := models.Facility{
		Name:         c.Facility.Name,
		TotalBeds:    c.Facility.TotalBeds,
		ICUBeds:      c.Facility.ICUBeds,
		Ventilators:  c.Facility.Ventilators,
		OxygenSupply: c.Facility.OxygenSupply,
		StaffCount:   c.Facility.StaffCount,
	}

	if c.Facility.RosterPath == "" {
		f.Hospitals = defaultRoster()
		return f, nil
	}

	data, err := os.ReadFile(c.Facility.RosterPath)
	if err != nil {
		return models.Facility{}, fmt.Errorf("error reading hospital roster: %w", err)
	}
	var roster []models.Hospital
	if err := json.Unmarshal(data, &roster); err != nil {
		return models.Facility{}, fmt.Errorf("error parsing hospital roster: %w", err)
	}
	if len(roster) == 0 {
		return models.Facility{}, fmt.Errorf("hospital roster %s is empty", c.Facility.RosterPath)
	}
	for _, h := range roster {
		if h.ID == "" {
			return models.Facility{}, fmt.Errorf("hospital roster entry %q missing id", h.Name)
		}
	}

	f.Hospitals = roster
	return f, nil
}

func defaultRoster() []models.Hospital {
	return []models.Hospital{
		{ID: "general-1", Name: "General Hospital", Latitude: 12.9716, Longitude: 77.5946, Capacity: 80},
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
