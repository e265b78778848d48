package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"gopkg.in/yaml.v3"
)

type BacktestEngineV1Config struct {
	InitialCapital    float64                    `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting cash of the run,default=1000000,exclusiveMinimum=0" validate:"gt=0"`
	CommissionRate    float64                    `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate,description=Commission as a fraction of trade amount. Only charged when cost_model is applied,default=0.0003,minimum=0" validate:"gte=0,lt=1"`
	MinimumCommission float64                    `yaml:"minimum_commission" json:"minimum_commission" jsonschema:"title=Minimum Commission,description=Floor of the commission per trade when cost_model is applied,default=0,minimum=0" validate:"gte=0"`
	Slippage          float64                    `yaml:"slippage" json:"slippage" jsonschema:"title=Slippage,description=Recorded with the result. Not applied to fills,default=0.001,minimum=0" validate:"gte=0,lt=1"`
	MaxPosition       float64                    `yaml:"max_position" json:"max_position" jsonschema:"title=Max Position,description=Advisory cap of one position as a fraction of equity,default=0.3,exclusiveMinimum=0,maximum=1" validate:"gt=0,lte=1"`
	CostModel         commission_fee.CostModel   `yaml:"cost_model" json:"cost_model" jsonschema:"title=Cost Model,description=Whether commission is charged on trades" validate:"oneof=ignored applied"`
	StartTime         optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional first day of the backtest period"`
	EndTime           optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional last day of the backtest period"`
	EngineVersion     string                     `yaml:"engine_version,omitempty" json:"engine_version,omitempty" jsonschema:"title=Engine Version,description=Engine version the config was written for. Must share major and minor with the running engine"`
}

// UnmarshalYAML keeps the default of every key the document leaves out.
func (c *BacktestEngineV1Config) UnmarshalYAML(value *yaml.Node) error {
	type Config struct {
		InitialCapital    *float64                  `yaml:"initial_capital"`
		CommissionRate    *float64                  `yaml:"commission_rate"`
		MinimumCommission *float64                  `yaml:"minimum_commission"`
		Slippage          *float64                  `yaml:"slippage"`
		MaxPosition       *float64                  `yaml:"max_position"`
		CostModel         *commission_fee.CostModel `yaml:"cost_model"`
		StartTime         *string                   `yaml:"start_time"`
		EndTime           *string                   `yaml:"end_time"`
		EngineVersion     string                    `yaml:"engine_version"`
	}

	var raw Config
	if err := value.Decode(&raw); err != nil {
		return err
	}

	config := EmptyConfig()

	setIfPresent(&config.InitialCapital, raw.InitialCapital)
	setIfPresent(&config.CommissionRate, raw.CommissionRate)
	setIfPresent(&config.MinimumCommission, raw.MinimumCommission)
	setIfPresent(&config.Slippage, raw.Slippage)
	setIfPresent(&config.MaxPosition, raw.MaxPosition)
	setIfPresent(&config.CostModel, raw.CostModel)

	config.EngineVersion = raw.EngineVersion

	var err error

	if config.StartTime, err = parseDate(raw.StartTime); err != nil {
		return fmt.Errorf("start_time: %w", err)
	}

	if config.EndTime, err = parseDate(raw.EndTime); err != nil {
		return fmt.Errorf("end_time: %w", err)
	}

	*c = config

	return nil
}

func setIfPresent[T any](dst *T, value *T) {
	if value != nil {
		*dst = *value
	}
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", time.DateOnly, "20060102"}

func parseDate(value *string) (optional.Option[time.Time], error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return optional.None[time.Time](), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(*value)); err == nil {
			return optional.Some(t), nil
		}
	}

	return optional.None[time.Time](), fmt.Errorf("cannot parse %q as a date", *value)
}

// ParseConfig reads a YAML or JSON engine config and validates it.
func ParseConfig(content string) (BacktestEngineV1Config, error) {
	config := EmptyConfig()

	if strings.TrimSpace(content) != "" {
		if err := yaml.Unmarshal([]byte(content), &config); err != nil {
			return BacktestEngineV1Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse engine config", err)
		}
	}

	if err := config.Validate(); err != nil {
		return BacktestEngineV1Config{}, err
	}

	return config, nil
}

// Validate checks value ranges, the period and engine version compatibility.
func (c BacktestEngineV1Config) Validate() error {
	if !c.CostModel.Valid() {
		return errors.Newf(errors.ErrCodeUnsupportedCostModel, "unsupported cost model %q", c.CostModel)
	}

	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid engine config", err)
	}

	if start, err := c.StartTime.Take(); err == nil {
		if end, err := c.EndTime.Take(); err == nil && end.Before(start) {
			return errors.Newf(errors.ErrCodeInvalidPeriod, "end_time %s is before start_time %s",
				end.Format(time.DateOnly), start.Format(time.DateOnly))
		}
	}

	if c.EngineVersion != "" {
		if err := version.CheckVersionCompatibility(version.GetVersion(), c.EngineVersion); err != nil {
			return errors.Wrap(errors.ErrCodeVersionMismatch, "engine config targets another engine", err)
		}
	}

	return nil
}

// Settings is the part of the config recorded in a result.
func (c BacktestEngineV1Config) Settings() types.RunSettings {
	return types.RunSettings{
		InitialCapital:    c.InitialCapital,
		CommissionRate:    c.CommissionRate,
		MinimumCommission: c.MinimumCommission,
		Slippage:          c.Slippage,
		MaxPosition:       c.MaxPosition,
		CostModel:         string(c.CostModel),
	}
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date",
				}
			}

			if t == reflect.TypeOf(commission_fee.CostModel("")) {
				return &jsonschema.Schema{
					Type:    "string",
					Enum:    commission_fee.AllCostModels,
					Default: string(commission_fee.CostModelIgnored),
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// SampleYAML renders the default config as a YAML document.
func SampleYAML() (string, error) {
	config := EmptyConfig()

	sample := map[string]any{
		"initial_capital":    config.InitialCapital,
		"commission_rate":    config.CommissionRate,
		"minimum_commission": config.MinimumCommission,
		"slippage":           config.Slippage,
		"max_position":       config.MaxPosition,
		"cost_model":         string(config.CostModel),
	}

	out, err := yaml.Marshal(sample)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

func TestConfig(startTime time.Time, endTime time.Time, costModel commission_fee.CostModel) BacktestEngineV1Config {
	config := EmptyConfig()
	config.InitialCapital = 10000
	config.CostModel = costModel
	config.StartTime = optional.Some(startTime)
	config.EndTime = optional.Some(endTime)

	return config
}

// EmptyConfig returns a BacktestEngineV1Config with default values
func EmptyConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCapital:    1_000_000,
		CommissionRate:    0.0003,
		MinimumCommission: 0,
		Slippage:          0.001,
		MaxPosition:       0.3,
		CostModel:         commission_fee.CostModelIgnored,
		StartTime:         optional.None[time.Time](),
		EndTime:           optional.None[time.Time](),
	}
}
