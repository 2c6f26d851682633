// Package config loads, validates and persists the device
// configuration. The file is YAML; absent values fall back to the
// defaults in DefaultConfig, so a minimal file only needs to name the
// body part the device is worn on.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sharkee.net/gohaptics/haptic"
)

type DeviceConfig struct {
	Name string `yaml:"Name"`
}

type MappingConfig struct {
	UseGamma      bool    `yaml:"UseGamma"`
	Gamma         float64 `yaml:"Gamma"`
	Invert        bool    `yaml:"Invert"`
	Threshold     float64 `yaml:"Threshold"`
	TieBreakUpper bool    `yaml:"TieBreakUpper"`
}

// ZoneConfig describes one intensity band: the effect ramp played
// inside it, the gain range the band sweeps, and an optional rich
// sequence for the band's top end.
type ZoneConfig struct {
	Name       string                `yaml:"Name"`
	UpperBound float64               `yaml:"UpperBound"`
	Effects    []uint8               `yaml:"Effects,flow"`
	MinGain    uint8                 `yaml:"MinGain"`
	MaxGain    uint8                 `yaml:"MaxGain"`
	Sequence   []haptic.WaveformStep `yaml:"Sequence,omitempty"`
}

type DriveConfig struct {
	Profile           string        `yaml:"Profile"`
	RealtimeThreshold float64       `yaml:"RealtimeThreshold"`
	RealtimeTimeout   time.Duration `yaml:"RealtimeTimeout"`
	TickInterval      time.Duration `yaml:"TickInterval"`
}

type NightCapConfig struct {
	Enabled   bool    `yaml:"Enabled"`
	Latitude  float64 `yaml:"Latitude"`
	Longitude float64 `yaml:"Longitude"`
	Scale     float64 `yaml:"Scale"`
}

type OSCConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Listen  string `yaml:"Listen"`
	Address string `yaml:"Address"`
}

type MQTTConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Broker  string `yaml:"Broker"`
	Topic   string `yaml:"Topic"`
}

type AnnounceConfig struct {
	Enabled bool `yaml:"Enabled"`
}

type AudioConfig struct {
	Enabled         bool          `yaml:"Enabled"`
	Device          string        `yaml:"Device"`
	SampleRate      float64       `yaml:"SampleRate"`
	FramesPerBuffer int           `yaml:"FramesPerBuffer"`
	UpdateFreq      time.Duration `yaml:"UpdateFreq"`
	MinDB           float64       `yaml:"MinDB"`
	MaxDB           float64       `yaml:"MaxDB"`
}

type TransportConfig struct {
	OSC      OSCConfig      `yaml:"OSC"`
	MQTT     MQTTConfig     `yaml:"MQTT"`
	Announce AnnounceConfig `yaml:"Announce"`
	Audio    AudioConfig    `yaml:"Audio"`
}

type DRV2605Config struct {
	Bus        string `yaml:"Bus"`
	Address    uint16 `yaml:"Address"`
	LRA        bool   `yaml:"LRA"`
	Library    uint8  `yaml:"Library"`
	EnableGPIO int    `yaml:"EnableGPIO"`
}

type FirmataConfig struct {
	Port string `yaml:"Port"`
	Baud int    `yaml:"Baud"`
	Pin  uint8  `yaml:"Pin"`
}

type HardwareConfig struct {
	Adapter     string        `yaml:"Adapter"`
	DRV2605     DRV2605Config `yaml:"DRV2605"`
	Firmata     FirmataConfig `yaml:"Firmata"`
	TriggerGPIO int           `yaml:"TriggerGPIO"` // test button input, -1 disables
}

type WebConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Listen  string `yaml:"Listen"`
}

type LogSinkConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

type LoggingConfig struct {
	TUI LogSinkConfig `yaml:"TUI"`
	HW  LogSinkConfig `yaml:"HW"`
}

type Config struct {
	Device    DeviceConfig    `yaml:"Device"`
	Mapping   MappingConfig   `yaml:"Mapping"`
	Zones     []ZoneConfig    `yaml:"Zones"`
	Drive     DriveConfig     `yaml:"Drive"`
	NightCap  NightCapConfig  `yaml:"NightCap"`
	Transport TransportConfig `yaml:"Transport"`
	Hardware  HardwareConfig  `yaml:"Hardware"`
	Web       WebConfig       `yaml:"Web"`
	Logging   LoggingConfig   `yaml:"Logging"`
}

// DefaultConfig returns the configuration the device ships with: a
// chest-worn unit listening for OSC on :8000 with the stock three-band
// zone table.
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{Name: "Chest"},
		Mapping: MappingConfig{
			UseGamma:  true,
			Gamma:     2.2,
			Threshold: 0.05,
		},
		Zones: DefaultZones(),
		Drive: DriveConfig{
			Profile:           "blended",
			RealtimeThreshold: 0.66,
			RealtimeTimeout:   500 * time.Millisecond,
			TickInterval:      20 * time.Millisecond,
		},
		NightCap: NightCapConfig{Scale: 0.5},
		Transport: TransportConfig{
			OSC: OSCConfig{
				Enabled: true,
				Listen:  ":8000",
				Address: "/sharkeehaptics/set_intensity",
			},
			MQTT: MQTTConfig{Broker: "tcp://localhost:1883"},
			Audio: AudioConfig{
				Device:          "default",
				SampleRate:      44100,
				FramesPerBuffer: 1024,
				UpdateFreq:      50 * time.Millisecond,
				MinDB:           -60,
				MaxDB:           -10,
			},
		},
		Hardware: HardwareConfig{
			Adapter:     "drv2605",
			DRV2605:     DRV2605Config{Bus: "", Address: 0x5A, Library: 1, EnableGPIO: -1},
			Firmata:     FirmataConfig{Port: "/dev/ttyUSB0", Baud: 57600, Pin: 9},
			TriggerGPIO: -1,
		},
		Web: WebConfig{Listen: ":8080"},
		Logging: LoggingConfig{
			TUI: LogSinkConfig{Level: "INFO", Format: "text"},
			HW:  LogSinkConfig{Level: "INFO", Format: "json", File: "/var/log/gohaptics.log"},
		},
	}
}

// DefaultZones is the stock texture table: soft bumps for light
// contact, a buzz ramp for sustained force, and strong clicks topped
// by a layered impact sequence.
func DefaultZones() []ZoneConfig {
	return []ZoneConfig{
		{Name: "Pet", UpperBound: 0.33, Effects: []uint8{9, 8, 7}, MinGain: 30, MaxGain: 90},
		{Name: "Force", UpperBound: 0.66, Effects: []uint8{51, 50, 49, 48, 47}, MinGain: 60, MaxGain: 140},
		{Name: "Impact", UpperBound: 1.0, Effects: []uint8{3, 2, 1}, MinGain: 90, MaxGain: 200,
			Sequence: []haptic.WaveformStep{{Effect: 1}, {Effect: 10, Pause: true}, {Effect: 14}}},
	}
}

// ReadConfig loads the configuration file at cfile, fills absent
// values with defaults and validates the result.
func ReadConfig(cfile string) (*Config, error) {
	data, err := os.ReadFile(cfile)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", cfile, err)
	}
	conf := DefaultConfig()
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", cfile, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return conf, nil
}

// Validate checks the semantic constraints the YAML schema cannot
// express. It is called after every read and before every write-back,
// so a config that fails here never reaches the engine or the disk.
func (conf *Config) Validate() error {
	if conf.Device.Name == "" {
		return fmt.Errorf("Device.Name must not be empty")
	}
	if conf.Mapping.Gamma < 0.5 || conf.Mapping.Gamma > 6.0 {
		return fmt.Errorf("Mapping.Gamma must be between 0.5 and 6.0, got %v", conf.Mapping.Gamma)
	}
	if conf.Mapping.Threshold < 0 || conf.Mapping.Threshold > 0.5 {
		return fmt.Errorf("Mapping.Threshold must be between 0 and 0.5, got %v", conf.Mapping.Threshold)
	}
	if err := conf.validateZones(); err != nil {
		return err
	}
	if _, ok := haptic.ParseProfile(conf.Drive.Profile); !ok {
		return fmt.Errorf("Drive.Profile must be one of library, realtime or blended, got %q", conf.Drive.Profile)
	}
	if conf.Drive.RealtimeThreshold <= 0 || conf.Drive.RealtimeThreshold > 1 {
		return fmt.Errorf("Drive.RealtimeThreshold must be between 0 and 1, got %v", conf.Drive.RealtimeThreshold)
	}
	if conf.Drive.RealtimeTimeout <= 0 {
		return fmt.Errorf("Drive.RealtimeTimeout must be positive")
	}
	if conf.Drive.TickInterval <= 0 {
		return fmt.Errorf("Drive.TickInterval must be positive")
	}
	if conf.Drive.TickInterval >= conf.Drive.RealtimeTimeout {
		return fmt.Errorf("Drive.TickInterval must be shorter than Drive.RealtimeTimeout")
	}
	if conf.NightCap.Scale < 0 || conf.NightCap.Scale > 1 {
		return fmt.Errorf("NightCap.Scale must be between 0 and 1, got %v", conf.NightCap.Scale)
	}
	if conf.NightCap.Latitude < -90 || conf.NightCap.Latitude > 90 {
		return fmt.Errorf("NightCap.Latitude must be between -90 and 90")
	}
	if conf.NightCap.Longitude < -180 || conf.NightCap.Longitude > 180 {
		return fmt.Errorf("NightCap.Longitude must be between -180 and 180")
	}
	if err := conf.validateTransport(); err != nil {
		return err
	}
	switch conf.Hardware.Adapter {
	case "drv2605":
		if conf.Hardware.DRV2605.Address < 0x08 || conf.Hardware.DRV2605.Address > 0x77 {
			return fmt.Errorf("Hardware.DRV2605.Address must be between 0x08 and 0x77")
		}
		if conf.Hardware.DRV2605.Library < 1 || conf.Hardware.DRV2605.Library > 6 {
			return fmt.Errorf("Hardware.DRV2605.Library must be between 1 and 6")
		}
	case "firmata":
		if conf.Hardware.Firmata.Port == "" {
			return fmt.Errorf("Hardware.Firmata.Port must not be empty")
		}
		if conf.Hardware.Firmata.Baud <= 0 {
			return fmt.Errorf("Hardware.Firmata.Baud must be positive")
		}
	default:
		return fmt.Errorf("Hardware.Adapter must be one of drv2605 or firmata, got %q", conf.Hardware.Adapter)
	}
	if conf.Web.Enabled && conf.Web.Listen == "" {
		return fmt.Errorf("Web.Listen must not be empty")
	}
	return nil
}

func (conf *Config) validateZones() error {
	if len(conf.Zones) == 0 {
		return fmt.Errorf("at least one zone must be configured")
	}
	prev := 0.0
	for i, z := range conf.Zones {
		if z.Name == "" {
			return fmt.Errorf("Zones[%d].Name must not be empty", i)
		}
		if z.UpperBound <= prev {
			return fmt.Errorf("Zones[%d].UpperBound must be strictly ascending", i)
		}
		prev = z.UpperBound
		if len(z.Effects) == 0 {
			return fmt.Errorf("Zones[%d] must define at least one effect", i)
		}
		for _, e := range z.Effects {
			if e < 1 || haptic.EffectID(e) > haptic.MaxEffectID {
				return fmt.Errorf("Zones[%d].Effects values must be between 1 and %d", i, haptic.MaxEffectID)
			}
		}
		if z.MinGain > z.MaxGain {
			return fmt.Errorf("Zones[%d].MinGain must not be larger than MaxGain", i)
		}
		if len(z.Sequence) > 8 {
			return fmt.Errorf("Zones[%d].Sequence must not exceed 8 steps", i)
		}
		for _, st := range z.Sequence {
			if st.Pause && st.Effect > 127 {
				return fmt.Errorf("Zones[%d].Sequence pause steps must be between 0 and 127", i)
			}
			if !st.Pause && st.Effect > haptic.MaxEffectID {
				return fmt.Errorf("Zones[%d].Sequence effects must be between 1 and %d", i, haptic.MaxEffectID)
			}
		}
	}
	if conf.Zones[len(conf.Zones)-1].UpperBound != 1.0 {
		return fmt.Errorf("the last zone's UpperBound must be 1.0")
	}
	return nil
}

func (conf *Config) validateTransport() error {
	tr := &conf.Transport
	if !tr.OSC.Enabled && !tr.MQTT.Enabled && !tr.Audio.Enabled {
		return fmt.Errorf("at least one intensity source must be enabled")
	}
	if tr.OSC.Enabled {
		if tr.OSC.Listen == "" {
			return fmt.Errorf("Transport.OSC.Listen must not be empty")
		}
		if !strings.HasPrefix(tr.OSC.Address, "/") {
			return fmt.Errorf("Transport.OSC.Address must start with /")
		}
	}
	if tr.MQTT.Enabled && tr.MQTT.Broker == "" {
		return fmt.Errorf("Transport.MQTT.Broker must not be empty")
	}
	if tr.Audio.Enabled {
		if tr.Audio.SampleRate <= 0 {
			return fmt.Errorf("Transport.Audio.SampleRate must be positive")
		}
		if tr.Audio.FramesPerBuffer <= 0 {
			return fmt.Errorf("Transport.Audio.FramesPerBuffer must be positive")
		}
		if tr.Audio.UpdateFreq <= 0 {
			return fmt.Errorf("Transport.Audio.UpdateFreq must be positive")
		}
		if tr.Audio.MinDB >= tr.Audio.MaxDB {
			return fmt.Errorf("Transport.Audio.MinDB must be less than MaxDB")
		}
	}
	return nil
}

// HapticZones converts the configured zone table into the engine's
// zone type.
func (conf *Config) HapticZones() []haptic.Zone {
	zones := make([]haptic.Zone, 0, len(conf.Zones))
	for _, zc := range conf.Zones {
		effects := make([]haptic.EffectID, 0, len(zc.Effects))
		for _, e := range zc.Effects {
			effects = append(effects, haptic.EffectID(e))
		}
		zones = append(zones, haptic.Zone{
			Name:       zc.Name,
			UpperBound: zc.UpperBound,
			Effects:    effects,
			MinGain:    zc.MinGain,
			MaxGain:    zc.MaxGain,
			Sequence:   zc.Sequence,
		})
	}
	return zones
}

// MQTTTopic returns the configured topic, or one derived from the
// device name when the config leaves it empty.
func (conf *Config) MQTTTopic() string {
	if conf.Transport.MQTT.Topic != "" {
		return conf.Transport.MQTT.Topic
	}
	return "sharkee/" + strings.ToLower(conf.Device.Name) + "/intensity"
}
