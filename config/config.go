package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gbalink/link"
	"gbalink/multiboot"
)

const fileName = "config.json"

// Duration is a time.Duration stored as text ("50ms") in the configuration file.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type LinkConfiguration struct {
	Driver  string       `json:"driver"`
	Device  string       `json:"device"`
	Voltage link.Voltage `json:"voltage"`
}

type TransferConfiguration struct {
	Timeout           Duration `json:"timeout"`
	HandshakeAttempts int      `json:"handshakeAttempts"`
	HandshakeDelay    Duration `json:"handshakeDelay"`
	HeaderRetries     int      `json:"headerRetries"`
	KeyAttempts       int      `json:"keyAttempts"`
	PayloadRetries    int      `json:"payloadRetries"`
	FinalizeAttempts  int      `json:"finalizeAttempts"`
	HardwareAlignment bool     `json:"hardwareAlignment"`

	// Attempts is the number of whole sessions tried before giving up.
	Attempts int `json:"attempts"`
}

type ServerConfiguration struct {
	Listen string `json:"listen"`
}

type Configuration struct {
	Link     LinkConfiguration     `json:"link"`
	Transfer TransferConfiguration `json:"transfer"`
	Server   ServerConfiguration   `json:"server"`
}

func Default() Configuration {
	mb := multiboot.DefaultConfig()
	return Configuration{
		Link: LinkConfiguration{
			Driver:  "serial",
			Voltage: mb.Voltage,
		},
		Transfer: TransferConfiguration{
			Timeout:           Duration(mb.Timeout),
			HandshakeAttempts: mb.HandshakeAttempts,
			HandshakeDelay:    Duration(mb.HandshakeDelay),
			HeaderRetries:     mb.HeaderRetries,
			KeyAttempts:       mb.KeyAttempts,
			PayloadRetries:    mb.PayloadRetries,
			FinalizeAttempts:  mb.FinalizeAttempts,
			HardwareAlignment: true,
			Attempts:          3,
		},
		Server: ServerConfiguration{
			Listen: ":27638",
		},
	}
}

// Dir is the directory holding the configuration file. GBALINK_CONFIG_DIR
// overrides the per-user default.
func Dir() (string, error) {
	if dir := os.Getenv("GBALINK_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gbalink"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads the configuration file over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load() (c Configuration, err error) {
	c = Default()

	path, err := Path()
	if err != nil {
		log.Printf("config: could not find configuration directory: %v\n", err)
	} else if err = c.LoadFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return
	}

	err = c.ApplyEnv(os.Getenv)
	return
}

// LoadFile merges the JSON file at path into c; fields absent from the file keep their values.
func (c *Configuration) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: could not json unmarshal configuration file '%s': %w", path, err)
	}
	log.Printf("config: loaded '%s'\n", path)
	return nil
}

func (c *Configuration) SaveFile(path string) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: could not json marshal configuration: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: could not make directories along the path '%s': %w", path, err)
	}
	if err = os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("config: could not write configuration file '%s': %w", path, err)
	}

	log.Printf("config: saved configuration to file '%s'\n", path)
	return nil
}

func (c *Configuration) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// ApplyEnv overrides fields from GBALINK_* variables read through getenv.
func (c *Configuration) ApplyEnv(getenv func(string) string) (err error) {
	c.Link.Driver = orElse(getenv("GBALINK_DRIVER"), c.Link.Driver)
	c.Link.Device = orElse(getenv("GBALINK_DEVICE"), c.Link.Device)
	c.Server.Listen = orElse(getenv("GBALINK_LISTEN"), c.Server.Listen)

	if v := getenv("GBALINK_VOLTAGE"); v != "" {
		if c.Link.Voltage, err = link.ParseVoltage(v); err != nil {
			return fmt.Errorf("config: GBALINK_VOLTAGE: %w", err)
		}
	}
	if v := getenv("GBALINK_TIMEOUT"); v != "" {
		if err = c.Transfer.Timeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: GBALINK_TIMEOUT: %w", err)
		}
	}
	if v := getenv("GBALINK_ATTEMPTS"); v != "" {
		if c.Transfer.Attempts, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("config: GBALINK_ATTEMPTS: %w", err)
		}
	}
	return nil
}

func orElse(a, b string) string {
	if a == "" {
		return b
	}
	return a
}

// Options converts the transfer and link settings to session options.
func (c *Configuration) Options() []multiboot.Option {
	t := c.Transfer
	return []multiboot.Option{
		multiboot.WithTimeout(time.Duration(t.Timeout)),
		multiboot.WithHandshakeAttempts(t.HandshakeAttempts, time.Duration(t.HandshakeDelay)),
		multiboot.WithHeaderRetries(t.HeaderRetries),
		multiboot.WithKeyAttempts(t.KeyAttempts),
		multiboot.WithPayloadRetries(t.PayloadRetries),
		multiboot.WithFinalizeAttempts(t.FinalizeAttempts),
		multiboot.WithHardwareAlignment(t.HardwareAlignment),
		multiboot.WithVoltage(c.Link.Voltage),
	}
}
