package core

import (
	"fmt"
	"strings"
	"time"
)

type DeliveryConfig struct {
	Retries      int `koanf:"retries" mapstructure:"retries"`
	RetryDelayMS int `koanf:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	TimeoutMS    int `koanf:"timeout_ms" mapstructure:"timeout_ms"`
}

func (c DeliveryConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

func (c DeliveryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type CalendarConfig struct {
	DefaultCategory  string `koanf:"default_category" mapstructure:"default_category"`
	PollIntervalMS   int    `koanf:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	ReadTimeoutMS    int    `koanf:"read_timeout_ms" mapstructure:"read_timeout_ms"`
	UTCOffsetMinutes int    `koanf:"utc_offset_minutes" mapstructure:"utc_offset_minutes"`
}

func (c CalendarConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c CalendarConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

func (c CalendarConfig) Location() *time.Location {
	return AgendaLocation(c.UTCOffsetMinutes)
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Delivery    DeliveryConfig `koanf:"delivery" mapstructure:"delivery"`
	Calendar    CalendarConfig `koanf:"calendar" mapstructure:"calendar"`
	// Endpoints seeds overrides from configuration. Values saved through the
	// override store shadow these.
	Endpoints map[string]string `koanf:"endpoints" mapstructure:"endpoints"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "backoffice",
		Delivery: DeliveryConfig{
			Retries:      3,
			RetryDelayMS: 1000,
			TimeoutMS:    10000,
		},
		Calendar: CalendarConfig{
			DefaultCategory:  string(DefaultCategory),
			PollIntervalMS:   30000,
			ReadTimeoutMS:    10000,
			UTCOffsetMinutes: DefaultUTCOffsetMinutes,
		},
		Endpoints: map[string]string{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Delivery.Retries < 1 {
		return fmt.Errorf("core: delivery.retries must be at least 1")
	}
	if c.Delivery.RetryDelayMS < 0 {
		return fmt.Errorf("core: delivery.retry_delay_ms must not be negative")
	}
	if c.Delivery.TimeoutMS <= 0 {
		return fmt.Errorf("core: delivery.timeout_ms must be positive")
	}
	if c.Calendar.PollIntervalMS <= 0 {
		return fmt.Errorf("core: calendar.poll_interval_ms must be positive")
	}
	if c.Calendar.ReadTimeoutMS <= 0 {
		return fmt.Errorf("core: calendar.read_timeout_ms must be positive")
	}
	if c.Calendar.UTCOffsetMinutes < -14*60 || c.Calendar.UTCOffsetMinutes > 14*60 {
		return fmt.Errorf("core: calendar.utc_offset_minutes is invalid")
	}
	if category := strings.TrimSpace(c.Calendar.DefaultCategory); category != "" && !Category(category).Valid() {
		return fmt.Errorf("core: calendar.default_category %q is invalid", category)
	}
	for key, value := range c.Endpoints {
		if !KnownKey(OperationKey(strings.TrimSpace(key))) {
			return fmt.Errorf("core: unknown endpoint key %q in configuration", key)
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		if err := ValidateEndpointURL(value); err != nil {
			return fmt.Errorf("core: endpoint %q: %w", key, err)
		}
	}
	return nil
}

func (c Config) Category() Category {
	category := Category(strings.TrimSpace(c.Calendar.DefaultCategory))
	if !category.Valid() {
		return DefaultCategory
	}
	return category
}
