package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"afterschool-toast/internal/models"
)

// SettingsUpdate is the settings form. A threshold of 0 means "not provided".
type SettingsUpdate struct {
	SiteName              string `json:"siteName" validate:"max=80"`
	WarnThresholdEnabled  bool   `json:"warnThresholdEnabled"`
	WarnThreshold         int    `json:"warnThreshold" validate:"gte=0,lte=100"`
	MaxThresholdEnabled   bool   `json:"maxThresholdEnabled"`
	MaxThreshold          int    `json:"maxThreshold" validate:"gte=0,lte=100"`
	NotifyThresholdPassed bool   `json:"notifyThresholdPassed"`
}

// Settings returns the site settings
func (s *RosterService) Settings(ctx context.Context) (models.Settings, error) {
	return s.store.Settings.Read(ctx)
}

// UpdateSettings saves the settings. A blank site name and disabled or missing
// thresholds fall back to their defaults. The warning/maximum order is checked
// again on the values that will be stored.
func (s *RosterService) UpdateSettings(ctx context.Context, upd SettingsUpdate) (models.Settings, error) {
	if err := validateStruct(upd); err != nil {
		return models.Settings{}, err
	}

	next := models.Settings{
		SiteName:              strings.TrimSpace(upd.SiteName),
		WarnThreshold:         upd.WarnThreshold,
		MaxThreshold:          upd.MaxThreshold,
		WarnThresholdEnabled:  upd.WarnThresholdEnabled,
		MaxThresholdEnabled:   upd.MaxThresholdEnabled,
		NotifyThresholdPassed: upd.NotifyThresholdPassed,
	}
	if next.SiteName == "" {
		next.SiteName = models.DefaultSiteName
	}
	if !next.WarnThresholdEnabled || next.WarnThreshold <= 0 {
		next.WarnThreshold = models.DefaultWarnThreshold
	}
	if !next.MaxThresholdEnabled || next.MaxThreshold <= 0 {
		next.MaxThreshold = models.DefaultMaxThreshold
	}
	if err := validateStruct(SettingsUpdate{
		SiteName:             next.SiteName,
		WarnThresholdEnabled: next.WarnThresholdEnabled,
		WarnThreshold:        next.WarnThreshold,
		MaxThresholdEnabled:  next.MaxThresholdEnabled,
		MaxThreshold:         next.MaxThreshold,
	}); err != nil {
		return models.Settings{}, err
	}

	if err := s.store.Settings.Update(ctx, func(models.Settings) (models.Settings, error) {
		return next, nil
	}); err != nil {
		return models.Settings{}, err
	}
	s.logger.Info("settings updated",
		zap.String("site", next.SiteName),
		zap.Int("warn", next.WarnThreshold),
		zap.Int("max", next.MaxThreshold),
		zap.Bool("notify", next.NotifyThresholdPassed))
	return next, nil
}
