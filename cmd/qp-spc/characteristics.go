package main

import (
	"fmt"
	"os"

	"qp-spc/internal/models"

	"gopkg.in/yaml.v3"
)

type characteristicsFile struct {
	Characteristics []models.Characteristic `yaml:"characteristics"`
}

// loadCharacteristics 读取内存后端使用的控制计划特性
func loadCharacteristics(path string) ([]models.Characteristic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read characteristics file: %w", err)
	}

	var file characteristicsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse characteristics file %s: %w", path, err)
	}

	for i, c := range file.Characteristics {
		if c.PlanNumber == "" || c.ProcessNumber == "" || c.ItemNumber == "" {
			return nil, fmt.Errorf("characteristic #%d: plan_number, process_number and item_number are required", i+1)
		}
		if !c.CharType.Valid() {
			return nil, fmt.Errorf("characteristic #%d: unknown char_type %q", i+1, c.CharType)
		}
	}
	return file.Characteristics, nil
}
