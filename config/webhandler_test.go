package config

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func getValidRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
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
	}
}

func TestConfigHandler_SetValidation(t *testing.T) {
	// 1. Setup temporary environment
	tempDir, err := os.MkdirTemp("", "gohaptics-webtest")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configFile := filepath.Join(tempDir, "config.yml")

	// Create a valid initial configuration
	initialConfig := DefaultConfig()
	data, _ := yaml.Marshal(initialConfig)
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		t.Fatalf("Failed to write initial config: %v", err)
	}

	// 2. Define Test Cases
	tests := []struct {
		name         string
		payload      RuntimeConfig
		wantStatus   int
		wantErrorMsg string
		shouldModify bool
	}{
		{
			name: "Valid Update",
			payload: func() RuntimeConfig {
				c := getValidRuntimeConfig()
				c.Mapping.Gamma = 3.0
				c.Drive.RealtimeTimeout = 800 * time.Millisecond
				return c
			}(),
			wantStatus:   http.StatusOK,
			shouldModify: true,
		},
		{
			name: "Invalid Gamma (>6)",
			payload: func() RuntimeConfig {
				c := getValidRuntimeConfig()
				c.Mapping.Gamma = 9.5
				return c
			}(),
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "must be between 0.5 and 6.0",
			shouldModify: false,
		},
		{
			name: "Invalid Threshold",
			payload: func() RuntimeConfig {
				c := getValidRuntimeConfig()
				c.Mapping.Threshold = 0.7
				return c
			}(),
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "must be between 0 and 0.5",
			shouldModify: false,
		},
		{
			name: "Effect Beyond Library",
			payload: func() RuntimeConfig {
				c := getValidRuntimeConfig()
				c.Zones[0].Effects = []uint8{200}
				return c
			}(),
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "must be between 1 and 123",
			shouldModify: false,
		},
		{
			name: "Tick Slower Than Timeout",
			payload: func() RuntimeConfig {
				c := getValidRuntimeConfig()
				c.Drive.TickInterval = 600 * time.Millisecond
				return c
			}(),
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "must be shorter than Drive.RealtimeTimeout",
			shouldModify: false,
		},
		{
			name: "NightCap Scale Too Large",
			payload: func() RuntimeConfig {
				c := getValidRuntimeConfig()
				c.NightCap.Scale = 1.5
				return c
			}(),
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "must be between 0 and 1",
			shouldModify: false,
		},
	}

	// 3. Run Tests
	handler := ConfigHandler(configFile)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Serialize payload to JSON
			body, _ := json.Marshal(tt.payload)
			req := httptest.NewRequest("POST", "/api/config", bytes.NewBuffer(body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			// Assert Status
			assert.Equal(t, tt.wantStatus, w.Code)

			// Assert Error Message
			if tt.wantErrorMsg != "" {
				assert.Contains(t, w.Body.String(), tt.wantErrorMsg)
			}

			// Assert File State
			currentConfig, err := ReadConfig(configFile)
			assert.NoError(t, err)

			if !tt.shouldModify {
				// Verify critical fields haven't changed to invalid values
				if strings.Contains(tt.name, "Gamma") {
					assert.NotEqual(t, tt.payload.Mapping.Gamma, currentConfig.Mapping.Gamma, "File should not be updated with invalid gamma")
				}
			} else {
				// For valid update, check if it stuck
				assert.Equal(t, tt.payload.Mapping.Gamma, currentConfig.Mapping.Gamma)
				assert.Equal(t, tt.payload.Drive.RealtimeTimeout, currentConfig.Drive.RealtimeTimeout)
			}
		})
	}
}

func TestConfigHandler_Get(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "gohaptics-webtest")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configFile := filepath.Join(tempDir, "config.yml")
	data, _ := yaml.Marshal(DefaultConfig())
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		t.Fatalf("Failed to write initial config: %v", err)
	}

	handler := ConfigHandler(configFile)
	req := httptest.NewRequest("GET", "/api/config", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var rc RuntimeConfig
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &rc), "response should decode into RuntimeConfig")
	assert.Equal(t, 2.2, rc.Mapping.Gamma, "the runtime view should expose the mapping settings")
	assert.Len(t, rc.Zones, 3, "the runtime view should expose the zone table")
	assert.Equal(t, "blended", rc.Drive.Profile, "the runtime view should expose the drive settings")
}
