package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of cellulard's YAML configuration file -
// one device, one APN, and the optional GPIO lines spec.md §6 describes.
type Config struct {
	Device struct {
		Port string `yaml:"port"`
		Baud int    `yaml:"baud"`
	} `yaml:"device"`

	APN struct {
		Name     string `yaml:"name"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"apn"`

	GPIO struct {
		Chip      string `yaml:"chip"`
		HasPower  bool   `yaml:"has_power"`
		PowerLine int    `yaml:"power_line"`
		HasReset  bool   `yaml:"has_reset"`
		ResetLine int    `yaml:"reset_line"`
	} `yaml:"gpio"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Device.Port = "/dev/ttyUSB0"
	cfg.Device.Baud = 115200
	cfg.GPIO.Chip = "/dev/gpiochip0"
	return cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
