package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/banshee-data/cubenav/internal/actuator"
	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/navigator"
	"github.com/banshee-data/cubenav/internal/search"
	"github.com/banshee-data/cubenav/internal/serialmux"
)

// DefaultConfigPath is the path to the canonical robot defaults file.
const DefaultConfigPath = "config/robot.defaults.json"

// DefaultProfile is the calibration used when the file names none.
const DefaultProfile = "stepper-2017"

// profiles are the measured calibrations of each robot build. Angles in
// radians.
var profiles = map[string]geometry.Calibration{
	"stepper-2017": {CubeHalfWidth: 0.1225, CameraHorizontalOffset: 0.19, CameraAngularOffset: -0.053},
	"dc-2016":      {CubeHalfWidth: 0.1225, CameraHorizontalOffset: 0.16, CameraAngularOffset: 0},
	"bench":        {CubeHalfWidth: 0.1225, CameraHorizontalOffset: 0, CameraAngularOffset: 0},
}

// Profiles returns the names of the built-in calibration profiles, sorted.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile looks up a built-in calibration by name.
func Profile(name string) (geometry.Calibration, error) {
	cal, ok := profiles[name]
	if !ok {
		return geometry.Calibration{}, fmt.Errorf("unknown calibration profile %q (known: %s)",
			name, strings.Join(Profiles(), ", "))
	}
	return cal, nil
}

// RobotConfig is the start-up configuration of one robot. Every field is
// optional; the Get* methods supply the default for anything unset.
type RobotConfig struct {
	// Run
	Route       *string `json:"route,omitempty" toml:"route"`
	Zone        *int    `json:"zone,omitempty" toml:"zone"`
	ZoneFromDIP *bool   `json:"zone_from_dip,omitempty" toml:"zone_from_dip"`
	JournalPath *string `json:"journal_path,omitempty" toml:"journal_path"`

	// Calibration: a named profile, optionally overridden field by field.
	Profile     *string               `json:"profile,omitempty" toml:"profile"`
	Calibration *CalibrationOverrides `json:"calibration,omitempty" toml:"calibration"`

	// Actuator link
	SerialPort      *string                `json:"serial_port,omitempty" toml:"serial_port"`
	Serial          *serialmux.PortOptions `json:"serial,omitempty" toml:"serial"`
	FailureSentinel *string                `json:"failure_sentinel,omitempty" toml:"failure_sentinel"`
	AckTimeout      *string                `json:"ack_timeout,omitempty" toml:"ack_timeout"`             // duration string like "500ms"
	TimeoutPerMetre *string                `json:"timeout_per_metre,omitempty" toml:"timeout_per_metre"` // duration string like "4s"

	// Search
	SettleDelay  *string `json:"settle_delay,omitempty" toml:"settle_delay"`
	StepPause    *string `json:"step_pause,omitempty" toml:"step_pause"`
	SeeAttempts  *int    `json:"see_attempts,omitempty" toml:"see_attempts"`
	LookAttempts *int    `json:"look_attempts,omitempty" toml:"look_attempts"`

	// Approach
	CheckAt           *float64 `json:"check_at,omitempty" toml:"check_at"`
	MaxSafeDistance   *float64 `json:"max_safe_distance,omitempty" toml:"max_safe_distance"`
	AngleToleranceDeg *float64 `json:"angle_tolerance_deg,omitempty" toml:"angle_tolerance_deg"`
	RetryBackoff      *string  `json:"retry_backoff,omitempty" toml:"retry_backoff"`
	HomeDistance      *float64 `json:"home_distance,omitempty" toml:"home_distance"`
}

// CalibrationOverrides replaces individual values of the chosen profile.
type CalibrationOverrides struct {
	CubeHalfWidth          *float64 `json:"cube_half_width,omitempty" toml:"cube_half_width"`
	CameraHorizontalOffset *float64 `json:"camera_horizontal_offset,omitempty" toml:"camera_horizontal_offset"`
	CameraAngularOffset    *float64 `json:"camera_angular_offset,omitempty" toml:"camera_angular_offset"`
}

// EmptyRobotConfig returns a RobotConfig with all fields set to nil.
func EmptyRobotConfig() *RobotConfig {
	return &RobotConfig{}
}

// LoadRobotConfig loads a RobotConfig from a .json or .toml file. Fields the
// file omits keep their defaults, so partial configs are safe.
func LoadRobotConfig(path string) (*RobotConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".toml" {
		return nil, fmt.Errorf("config file must have .json or .toml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRobotConfig()
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching up from the current directory. Panics if the file cannot be
// loaded, intended for test setup.
func MustLoadDefaultConfig() *RobotConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadRobotConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *RobotConfig) Validate() error {
	if c.Zone != nil && (*c.Zone < 0 || *c.Zone > 3) {
		return fmt.Errorf("zone must be between 0 and 3, got %d", *c.Zone)
	}

	if _, err := c.GetCalibration(); err != nil {
		return err
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}

	if c.FailureSentinel != nil && len(*c.FailureSentinel) != 1 {
		return fmt.Errorf("failure_sentinel must be a single character, got %q", *c.FailureSentinel)
	}

	durations := []struct {
		name  string
		value *string
	}{
		{"ack_timeout", c.AckTimeout},
		{"timeout_per_metre", c.TimeoutPerMetre},
		{"settle_delay", c.SettleDelay},
		{"step_pause", c.StepPause},
		{"retry_backoff", c.RetryBackoff},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %s", d.name, v)
		}
	}

	if c.SeeAttempts != nil && *c.SeeAttempts < 1 {
		return fmt.Errorf("see_attempts must be at least 1, got %d", *c.SeeAttempts)
	}
	if c.LookAttempts != nil && *c.LookAttempts < 1 {
		return fmt.Errorf("look_attempts must be at least 1, got %d", *c.LookAttempts)
	}

	if c.CheckAt != nil && *c.CheckAt < 0 {
		return fmt.Errorf("check_at must be non-negative, got %f", *c.CheckAt)
	}
	if c.MaxSafeDistance != nil && *c.MaxSafeDistance <= 0 {
		return fmt.Errorf("max_safe_distance must be positive, got %f", *c.MaxSafeDistance)
	}
	// turns go out in whole degrees, so anything tighter than half a degree
	// can never be reached
	if c.AngleToleranceDeg != nil && (*c.AngleToleranceDeg < 0.5 || *c.AngleToleranceDeg >= 90) {
		return fmt.Errorf("angle_tolerance_deg must be in [0.5, 90), got %f", *c.AngleToleranceDeg)
	}
	if c.HomeDistance != nil && *c.HomeDistance < 0 {
		return fmt.Errorf("home_distance must be non-negative, got %f", *c.HomeDistance)
	}

	return nil
}

// GetRoute returns the route name or the default.
func (c *RobotConfig) GetRoute() string {
	if c.Route == nil || *c.Route == "" {
		return "b c a"
	}
	return *c.Route
}

// GetZone returns the starting zone or the default.
func (c *RobotConfig) GetZone() int {
	if c.Zone == nil {
		return 0
	}
	return *c.Zone
}

// GetZoneFromDIP reports whether the zone is read from the DIP switch.
func (c *RobotConfig) GetZoneFromDIP() bool {
	if c.ZoneFromDIP == nil {
		return false
	}
	return *c.ZoneFromDIP
}

// GetJournalPath returns the journal database path or the default.
func (c *RobotConfig) GetJournalPath() string {
	if c.JournalPath == nil || *c.JournalPath == "" {
		return "cubenav.db"
	}
	return *c.JournalPath
}

// GetProfile returns the calibration profile name or the default.
func (c *RobotConfig) GetProfile() string {
	if c.Profile == nil || *c.Profile == "" {
		return DefaultProfile
	}
	return *c.Profile
}

// GetCalibration resolves the profile and applies any overrides.
func (c *RobotConfig) GetCalibration() (geometry.Calibration, error) {
	cal, err := Profile(c.GetProfile())
	if err != nil {
		return cal, err
	}
	if o := c.Calibration; o != nil {
		if o.CubeHalfWidth != nil {
			cal.CubeHalfWidth = *o.CubeHalfWidth
		}
		if o.CameraHorizontalOffset != nil {
			cal.CameraHorizontalOffset = *o.CameraHorizontalOffset
		}
		if o.CameraAngularOffset != nil {
			cal.CameraAngularOffset = *o.CameraAngularOffset
		}
	}
	if err := cal.Validate(); err != nil {
		return cal, fmt.Errorf("calibration: %w", err)
	}
	return cal, nil
}

// GetSerialPort returns the serial device path or the default.
func (c *RobotConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyACM0"
	}
	return *c.SerialPort
}

// GetSerial returns the serial options, normalized.
func (c *RobotConfig) GetSerial() serialmux.PortOptions {
	var opts serialmux.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	n, err := opts.Normalize()
	if err != nil {
		return serialmux.PortOptions{BaudRate: serialmux.DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}
	}
	return n
}

// GetProtocol returns the actuator protocol with any overrides applied.
func (c *RobotConfig) GetProtocol() actuator.Protocol {
	p := actuator.DefaultProtocol()
	if c.FailureSentinel != nil && len(*c.FailureSentinel) == 1 {
		p.FailureSentinel = (*c.FailureSentinel)[0]
	}
	p.AckTimeout = duration(c.AckTimeout, p.AckTimeout)
	p.TimeoutPerMetre = duration(c.TimeoutPerMetre, p.TimeoutPerMetre)
	return p
}

// GetSearch returns the search tuning with any overrides applied.
func (c *RobotConfig) GetSearch() search.Config {
	s := search.DefaultConfig()
	s.SettleDelay = duration(c.SettleDelay, s.SettleDelay)
	s.StepPause = duration(c.StepPause, s.StepPause)
	if c.SeeAttempts != nil {
		s.SeeAttempts = *c.SeeAttempts
	}
	if c.LookAttempts != nil {
		s.LookAttempts = *c.LookAttempts
	}
	return s
}

// GetNavigator returns the navigator tuning with any overrides applied. The
// zone is left for the caller, which may read it from the DIP switch.
func (c *RobotConfig) GetNavigator() navigator.Config {
	n := navigator.DefaultConfig()
	n.Zone = c.GetZone()
	n.RetryBackoff = duration(c.RetryBackoff, n.RetryBackoff)
	if c.SeeAttempts != nil {
		n.SeeAttempts = *c.SeeAttempts
	}
	if c.CheckAt != nil {
		n.Approach.CheckAt = *c.CheckAt
	}
	if c.MaxSafeDistance != nil {
		n.Approach.MaxSafeDistance = *c.MaxSafeDistance
	}
	if c.AngleToleranceDeg != nil {
		n.Approach.AngleTolerance = geometry.Radians(*c.AngleToleranceDeg)
	}
	if c.HomeDistance != nil {
		n.HomeDistance = *c.HomeDistance
	}
	return n
}

// duration parses s, falling back to def when unset or invalid.
func duration(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
