package presets

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MS-092/DS-RM-FP/internal/models"
)

// Catalog is the local list of experiment presets, used when the backend offers none.
type Catalog struct {
	presets []models.Preset
	logger  *slog.Logger
}

// Entry is a single preset as written in the YAML file.
type Entry struct {
	Name               string `yaml:"name"`
	Strategy           string `yaml:"strategy"`
	Description        string `yaml:"description"`
	CheckpointInterval int    `yaml:"checkpoint_interval"`
	ReplicationFactor  int    `yaml:"replication_factor"`
	DataItems          int    `yaml:"data_items"`
}

// File is the YAML root structure.
type File struct {
	Presets []Entry `yaml:"presets"`
}

// Load reads presets from path. A missing file or empty path yields the built-in catalog.
func Load(path string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return Builtin(logger), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("preset file not found, using built-in presets", slog.String("path", path))
			return Builtin(logger), nil
		}
		return nil, err
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	presets := make([]models.Preset, 0, len(file.Presets))
	for _, entry := range file.Presets {
		strategy, err := models.ParseStrategy(entry.Strategy)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", entry.Name, err)
		}
		presets = append(presets, models.Preset{
			Name:                      entry.Name,
			Description:               entry.Description,
			Strategy:                  strategy,
			CheckpointIntervalSeconds: entry.CheckpointInterval,
			ReplicationFactor:         entry.ReplicationFactor,
			WorkloadSize:              entry.DataItems,
		})
	}
	return &Catalog{presets: presets, logger: logger}, nil
}

// Builtin returns the research study's default presets.
func Builtin(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{logger: logger, presets: []models.Preset{
		{Name: "Baseline Control", Strategy: models.StrategyBaseline, WorkloadSize: 100, Description: "No fault tolerance, measures the worst case"},
		{Name: "Checkpointing 15s", Strategy: models.StrategyCheckpointing, CheckpointIntervalSeconds: 15, WorkloadSize: 100, Description: "Frequent checkpoints"},
		{Name: "Checkpointing 30s", Strategy: models.StrategyCheckpointing, CheckpointIntervalSeconds: 30, WorkloadSize: 100, Description: "Standard checkpoint interval"},
		{Name: "Checkpointing 60s", Strategy: models.StrategyCheckpointing, CheckpointIntervalSeconds: 60, WorkloadSize: 100, Description: "Infrequent checkpoints"},
		{Name: "Replication Factor 2", Strategy: models.StrategyReplication, ReplicationFactor: 2, WorkloadSize: 100, Description: "Minimal replication"},
		{Name: "Replication Factor 3", Strategy: models.StrategyReplication, ReplicationFactor: 3, WorkloadSize: 100, Description: "Standard replication"},
		{Name: "Replication Factor 5", Strategy: models.StrategyReplication, ReplicationFactor: 5, WorkloadSize: 100, Description: "High replication"},
		{Name: "Hybrid Standard", Strategy: models.StrategyHybrid, CheckpointIntervalSeconds: 30, ReplicationFactor: 3, WorkloadSize: 100, Description: "Checkpointing combined with replication"},
	}}
}

// All returns a copy of every preset.
func (c *Catalog) All() []models.Preset {
	if c == nil {
		return nil
	}
	return append([]models.Preset(nil), c.presets...)
}

// Lookup finds a preset by case-insensitive name in presets.
func Lookup(presets []models.Preset, name string) (models.Preset, bool) {
	name = strings.TrimSpace(name)
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return models.Preset{}, false
}

// ApplyTo copies p onto draft. Fields the preset leaves unset keep the draft's value.
func ApplyTo(draft models.ConfigurationDraft, p models.Preset) models.ConfigurationDraft {
	draft.Strategy = p.Strategy
	if p.CheckpointIntervalSeconds > 0 {
		draft.CheckpointIntervalSeconds = p.CheckpointIntervalSeconds
	}
	if p.ReplicationFactor > 0 {
		draft.ReplicationFactor = p.ReplicationFactor
	}
	if p.WorkloadSize > 0 {
		draft.WorkloadSize = p.WorkloadSize
	}
	return draft
}
