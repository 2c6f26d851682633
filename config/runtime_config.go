package config

// RuntimeConfig defines the subset of the configuration that can be
// safely modified at runtime through the web UI. It excludes the
// hardware, transport and logging settings, which need a restart.
type RuntimeConfig struct {
	Mapping  MappingConfig  `yaml:"Mapping" json:"Mapping"`
	Zones    []ZoneConfig   `yaml:"Zones" json:"Zones"`
	Drive    DriveConfig    `yaml:"Drive" json:"Drive"`
	NightCap NightCapConfig `yaml:"NightCap" json:"NightCap"`
}
