package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/yaml"
)

const (
	// ConfigFileEnvKey points at an optional YAML or JSON file overlaying the environment.
	ConfigFileEnvKey = "CONFIG_FILE"

	vcenterHostAlias = "VCENTER_HOST"
)

type Config struct {
	VCenter VCenter `json:"vcenter" validate:"-"`
	AWX     AWX     `json:"awx" validate:"-"`
	NetBox  NetBox  `json:"netbox" validate:"-"`

	VerifySSL   bool     `envconfig:"VERIFY_SSL" default:"false" json:"verifySSL"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info" json:"logLevel" validate:"oneof=debug info warn error"`
	LogFormat   string   `envconfig:"LOG_FORMAT" default:"console" json:"logFormat" validate:"omitempty,oneof=console json"`
	HTTPTimeout Duration `envconfig:"HTTP_TIMEOUT" default:"60s" json:"httpTimeout"`
}

// VCenter holds the connection to the virtualization management plane.
type VCenter struct {
	Host           string `envconfig:"VMWARE_HOST" json:"host" validate:"required"`
	User           string `envconfig:"VMWARE_USER" json:"user" validate:"required"`
	Password       string `envconfig:"VMWARE_PASSWORD" json:"password" validate:"required"`
	Port           int    `envconfig:"VMWARE_PORT" default:"443" json:"port" validate:"min=1,max=65535"`
	Datacenter     string `envconfig:"DATACENTER_NAME" default:"ATI-SLC-HCI" json:"datacenter" validate:"required"`
	ValidateCerts  bool   `envconfig:"VMWARE_VALIDATE_CERTS" default:"false" json:"validateCerts"`
	BatchSize      int    `envconfig:"VMWARE_BATCH_SIZE" default:"50" json:"batchSize" validate:"min=1"`
	TemplatePrefix string `envconfig:"VMWARE_TEMPLATE_PREFIX" default:"template" json:"templatePrefix"`
	TagGroups      bool   `envconfig:"VMWARE_TAG_GROUPS" default:"true" json:"tagGroups"`
}

type AWX struct {
	URL         string `envconfig:"AWX_URL" json:"url" validate:"required,url"`
	Token       string `envconfig:"AWX_TOKEN" json:"token" validate:"required"`
	InventoryID int    `envconfig:"AWX_INVENTORY_ID" default:"1" json:"inventoryID" validate:"min=1"`
}

type NetBox struct {
	URL                string `envconfig:"NETBOX_URL" json:"url" validate:"required,url"`
	Token              string `envconfig:"NETBOX_TOKEN" json:"token" validate:"required"`
	DefaultSite        string `envconfig:"DEFAULT_SITE" default:"ATI-SLC-HCI" json:"defaultSite"`
	DefaultTenant      string `envconfig:"DEFAULT_TENANT" default:"ATI" json:"defaultTenant"`
	DefaultClusterType string `envconfig:"DEFAULT_CLUSTER_TYPE" default:"VMware vSphere" json:"defaultClusterType" validate:"required"`
	DefaultRole        string `envconfig:"DEFAULT_ROLE" default:"server" json:"defaultRole"`
	DefaultCluster     string `envconfig:"DEFAULT_CLUSTER" default:"Default Cluster" json:"defaultCluster" validate:"required"`
	Workers            int    `envconfig:"NETBOX_WORKERS" default:"4" json:"workers" validate:"min=1"`
}

// Duration accepts Go duration strings ("45s") from both the environment and config files.
type Duration struct {
	time.Duration
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	v, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// plain numbers are seconds
		var secs float64
		if nerr := json.Unmarshal(data, &secs); nerr != nil {
			return fmt.Errorf("invalid duration %s", string(data))
		}
		d.Duration = time.Duration(secs * float64(time.Second))
		return nil
	}
	return d.Decode(s)
}

// New reads the configuration from the environment. A .env file in the
// working directory is loaded first; variables already set win over it.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	c := new(Config)
	if err := envconfig.Process("", c); err != nil {
		return nil, err
	}
	if c.VCenter.Host == "" {
		c.VCenter.Host = os.Getenv(vcenterHostAlias)
	}

	if file := os.Getenv(ConfigFileEnvKey); file != "" {
		if err := c.Overlay(file); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Overlay applies the keys present in filename on top of c.
func (c *Config) Overlay(filename string) error {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(contents, c); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// VCenterURL is the SDK endpoint of the configured vCenter.
func (c *Config) VCenterURL() string {
	host := c.VCenter.Host
	if !strings.HasPrefix(host, "https://") && !strings.HasPrefix(host, "http://") {
		host = "https://" + host
	}
	host = strings.TrimSuffix(host, "/")
	if c.VCenter.Port != 0 && c.VCenter.Port != 443 && !hasPort(host) {
		host = fmt.Sprintf("%s:%d", host, c.VCenter.Port)
	}
	return host + "/sdk"
}

func hasPort(u string) bool {
	rest := u[strings.Index(u, "://")+3:]
	return strings.LastIndex(rest, ":") > strings.LastIndex(rest, "]")
}

// ValidateInventory checks what the inventory commands need.
func (c *Config) ValidateInventory() error {
	return aggregate(validateStruct(c), validateStruct(c.VCenter))
}

// ValidateSync checks what the sync command needs. The automation controller
// is not contacted when reconciling from a file.
func (c *Config) ValidateSync(fromFile bool) error {
	errs := [][]error{validateStruct(c), validateStruct(c.NetBox)}
	if !fromFile {
		errs = append(errs, validateStruct(c.AWX))
	}
	return aggregate(errs...)
}

// ValidateAWX checks what commands reading the automation controller need.
func (c *Config) ValidateAWX() error {
	return aggregate(validateStruct(c), validateStruct(c.AWX))
}

func aggregate(groups ...[]error) error {
	validationErrors := make([]error, 0)
	for _, g := range groups {
		validationErrors = append(validationErrors, g...)
	}
	if len(validationErrors) > 0 {
		return fmt.Errorf("invalid configuration: %v", utilerrors.NewAggregate(validationErrors).Error())
	}
	return nil
}

var validate = validator.New()

func validateStruct(s any) []error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []error{err}
	}

	out := make([]error, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		out = append(out, fmt.Errorf("%s: failed %q validation", fe.Namespace(), fe.Tag()))
	}
	return out
}
