package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/models"
)

// seedCatalog is the curated set of common device problems loaded on first start.
var seedCatalog = []models.ProblemRecord{
	// Television
	{
		ProblemText:    "TV screen is black but power light is on",
		ProblemType:    "display",
		DeviceCategory: "television",
		ErrorCodes:     []string{"BLACK_SCREEN", "NO_DISPLAY"},
		Symptoms:       "black screen, power light on, no picture",
		SolutionSteps: []string{
			"Check if TV is in standby mode - press power button",
			"Try different input sources (HDMI, AV, etc.)",
			"Reset TV to factory settings",
			"Check backlight settings",
			"If problem persists, contact technician",
		},
		ConfidenceScore: 0.95,
		SuccessRate:     0.88,
	},
	{
		ProblemText:    "TV has no sound",
		ProblemType:    "audio",
		DeviceCategory: "television",
		ErrorCodes:     []string{"NO_AUDIO", "MUTED"},
		Symptoms:       "no sound, audio not working, silent",
		SolutionSteps: []string{
			"Check if TV is muted - press mute button",
			"Increase volume using remote or TV buttons",
			"Check audio output settings",
			"Try different audio sources",
			"Check external speakers if connected",
			"Reset audio settings to default",
		},
		ConfidenceScore: 0.92,
		SuccessRate:     0.85,
	},
	{
		ProblemText:    "TV remote not working",
		ProblemType:    "remote",
		DeviceCategory: "television",
		ErrorCodes:     []string{"REMOTE_DEAD", "NO_RESPONSE"},
		Symptoms:       "remote not responding, buttons not working",
		SolutionSteps: []string{
			"Replace remote batteries with new ones",
			"Clean remote buttons with alcohol wipe",
			"Check if remote is paired with TV",
			"Try using TV buttons directly",
			"Reset remote by removing batteries for 5 minutes",
			"Purchase new remote if problem persists",
		},
		ConfidenceScore: 0.90,
		SuccessRate:     0.82,
	},
	{
		ProblemText:    "TV WiFi connection issues",
		ProblemType:    "network",
		DeviceCategory: "television",
		ErrorCodes:     []string{"WIFI_ERROR", "CONNECTION_FAILED"},
		Symptoms:       "cannot connect to WiFi, network error",
		SolutionSteps: []string{
			"Check WiFi password is correct",
			"Restart TV and router",
			"Move TV closer to router",
			"Check router settings and frequency",
			"Try connecting to mobile hotspot",
			"Update TV firmware if available",
		},
		ConfidenceScore: 0.88,
		SuccessRate:     0.80,
	},
	{
		ProblemText:    "TV screen has lines or artifacts",
		ProblemType:    "display",
		DeviceCategory: "television",
		ErrorCodes:     []string{"DISPLAY_LINES", "ARTIFACTS"},
		Symptoms:       "horizontal/vertical lines, screen artifacts",
		SolutionSteps: []string{
			"Check HDMI cable connections",
			"Try different HDMI ports",
			"Update TV firmware",
			"Reset picture settings",
			"Check for physical damage",
			"Contact technician for hardware repair",
		},
		ConfidenceScore: 0.85,
		SuccessRate:     0.75,
	},

	// Smartphone
	{
		ProblemText:    "Phone battery drains quickly",
		ProblemType:    "battery",
		DeviceCategory: "smartphone",
		ErrorCodes:     []string{"BATTERY_DRAIN", "FAST_DRAIN"},
		Symptoms:       "battery dies fast, quick drain, poor battery life",
		SolutionSteps: []string{
			"Check battery usage in settings",
			"Close background apps",
			"Reduce screen brightness",
			"Turn off location services when not needed",
			"Disable unnecessary notifications",
			"Check for battery-draining apps",
			"Replace battery if old",
		},
		ConfidenceScore: 0.93,
		SuccessRate:     0.87,
	},
	{
		ProblemText:    "Phone won't charge",
		ProblemType:    "charging",
		DeviceCategory: "smartphone",
		ErrorCodes:     []string{"CHARGING_ERROR", "NO_CHARGE"},
		Symptoms:       "not charging, charging slowly, charging error",
		SolutionSteps: []string{
			"Try different charging cable",
			"Clean charging port with compressed air",
			"Try different power adapter",
			"Restart phone",
			"Check for debris in charging port",
			"Try wireless charging if available",
			"Contact technician for port repair",
		},
		ConfidenceScore: 0.91,
		SuccessRate:     0.84,
	},
	{
		ProblemText:    "Phone screen is cracked",
		ProblemType:    "physical",
		DeviceCategory: "smartphone",
		ErrorCodes:     []string{"CRACKED_SCREEN", "DAMAGED"},
		Symptoms:       "cracked screen, broken display, physical damage",
		SolutionSteps: []string{
			"Stop using phone to prevent further damage",
			"Backup important data",
			"Contact manufacturer for repair",
			"Visit authorized service center",
			"Consider screen replacement",
			"Use protective case for future",
		},
		ConfidenceScore: 0.98,
		SuccessRate:     0.95,
	},
	{
		ProblemText:    "Phone is slow and laggy",
		ProblemType:    "performance",
		DeviceCategory: "smartphone",
		ErrorCodes:     []string{"SLOW_PERFORMANCE", "LAG"},
		Symptoms:       "slow performance, lag, freezing, unresponsive",
		SolutionSteps: []string{
			"Restart phone",
			"Clear app cache and data",
			"Uninstall unused apps",
			"Update phone software",
			"Free up storage space",
			"Reset to factory settings if needed",
		},
		ConfidenceScore: 0.89,
		SuccessRate:     0.83,
	},

	// Smartwatch
	{
		ProblemText:    "Smartwatch not syncing with phone",
		ProblemType:    "sync",
		DeviceCategory: "smartwatch",
		ErrorCodes:     []string{"SYNC_ERROR", "PAIRING_FAILED"},
		Symptoms:       "not syncing, pairing issues, connection lost",
		SolutionSteps: []string{
			"Restart both watch and phone",
			"Forget device and re-pair",
			"Check Bluetooth is enabled",
			"Update watch and phone apps",
			"Reset watch to factory settings",
			"Check compatibility requirements",
		},
		ConfidenceScore: 0.87,
		SuccessRate:     0.81,
	},
	{
		ProblemText:    "Smartwatch heart rate not working",
		ProblemType:    "sensor",
		DeviceCategory: "smartwatch",
		ErrorCodes:     []string{"HEART_RATE_ERROR", "SENSOR_ISSUE"},
		Symptoms:       "heart rate not reading, sensor not working",
		SolutionSteps: []string{
			"Clean sensor area with alcohol wipe",
			"Ensure watch fits properly on wrist",
			"Check sensor permissions in app",
			"Restart watch",
			"Update watch firmware",
			"Contact manufacturer if problem persists",
		},
		ConfidenceScore: 0.86,
		SuccessRate:     0.79,
	},

	// IoT
	{
		ProblemText:    "Smart bulb not connecting to WiFi",
		ProblemType:    "network",
		DeviceCategory: "iot",
		ErrorCodes:     []string{"WIFI_CONNECTION_FAILED", "PAIRING_ERROR"},
		Symptoms:       "cannot connect to WiFi, pairing failed",
		SolutionSteps: []string{
			"Ensure bulb is in pairing mode",
			"Check WiFi password is correct",
			"Use 2.4GHz WiFi network",
			"Move bulb closer to router",
			"Reset bulb to factory settings",
			"Try different WiFi network",
		},
		ConfidenceScore: 0.84,
		SuccessRate:     0.77,
	},
	{
		ProblemText:    "Smart speaker not responding to voice",
		ProblemType:    "voice",
		DeviceCategory: "iot",
		ErrorCodes:     []string{"VOICE_NOT_RECOGNIZED", "MICROPHONE_ERROR"},
		Symptoms:       "not responding to voice, microphone not working",
		SolutionSteps: []string{
			"Check microphone is not muted",
			"Clean microphone area",
			"Restart speaker",
			"Check voice assistant settings",
			"Update speaker firmware",
			"Try different voice commands",
		},
		ConfidenceScore: 0.83,
		SuccessRate:     0.76,
	},
}

// SeedCatalog returns a copy of the built-in catalog.
func SeedCatalog() []models.ProblemRecord {
	out := make([]models.ProblemRecord, len(seedCatalog))
	copy(out, seedCatalog)
	return out
}

// Seed inserts the built-in catalog, skipping records whose fingerprint already exists.
// Learned state on existing records is never overwritten. Returns the number inserted.
func (s *SQLiteStorage) Seed(ctx context.Context) (int, error) {
	inserted := 0
	for _, rec := range seedCatalog {
		_, ok, err := s.InsertIfAbsent(ctx, rec)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed %q: %w", rec.ProblemText, err)
		}
		if ok {
			inserted++
		}
	}

	s.logger.Info("seeded knowledge store",
		zap.Int("inserted", inserted),
		zap.Int("catalog", len(seedCatalog)),
	)
	return inserted, nil
}
