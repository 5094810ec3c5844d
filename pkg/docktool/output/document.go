package output

import (
	"math"
	"time"

	"github.com/jamesainslie/docktool/pkg/docktool/usage"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Disk       diskDoc       `json:"disk" yaml:"disk"`
	Cache      *cacheDoc     `json:"cache,omitempty" yaml:"cache,omitempty"`
	Thresholds thresholdsDoc `json:"thresholds" yaml:"thresholds"`
	Level      string        `json:"level" yaml:"level"`
	CheckedAt  time.Time     `json:"checked_at" yaml:"checked_at"`
	Warnings   []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type diskDoc struct {
	Device       string  `json:"device" yaml:"device"`
	TotalGB      float64 `json:"total_gb" yaml:"total_gb"`
	UsedGB       float64 `json:"used_gb" yaml:"used_gb"`
	FreeGB       float64 `json:"free_gb" yaml:"free_gb"`
	UsedFraction float64 `json:"used_fraction" yaml:"used_fraction"`
	TotalHuman   string  `json:"total_human" yaml:"total_human"`
	UsedHuman    string  `json:"used_human" yaml:"used_human"`
}

type cacheDoc struct {
	TotalUsedGB   float64          `json:"total_used_gb" yaml:"total_used_gb"`
	ReclaimableGB float64          `json:"reclaimable_gb" yaml:"reclaimable_gb"`
	Categories    []usage.Category `json:"categories,omitempty" yaml:"categories,omitempty"`
}

type thresholdsDoc struct {
	Warning   float64 `json:"warning" yaml:"warning"`
	Emergency float64 `json:"emergency" yaml:"emergency"`
}

func buildDocument(r *Result) document {
	doc := document{
		Disk: diskDoc{
			Device:       r.Disk.Device,
			TotalGB:      round(float64(r.Disk.TotalGB), 3),
			UsedGB:       round(float64(r.Disk.UsedGB), 3),
			FreeGB:       round(float64(r.Disk.FreeGB()), 3),
			UsedFraction: round(r.Disk.UsedFraction(), 4),
			TotalHuman:   r.Disk.TotalGB.String(),
			UsedHuman:    r.Disk.UsedGB.String(),
		},
		Thresholds: thresholdsDoc{
			Warning:   r.Thresholds.Warning,
			Emergency: r.Thresholds.Emergency,
		},
		Level:     r.Level.String(),
		CheckedAt: r.CheckedAt,
		Warnings:  r.Warnings,
	}
	if r.Cache != nil {
		doc.Cache = &cacheDoc{
			TotalUsedGB:   round(float64(r.Cache.TotalUsedGB), 3),
			ReclaimableGB: round(float64(r.Cache.ReclaimableGB), 3),
			Categories:    r.Cache.Categories,
		}
	}
	return doc
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
