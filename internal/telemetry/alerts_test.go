package telemetry

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const alertsPath = "../../deploy/prometheus/alerts.yml"

// TestAlertsFileValid verifies the Prometheus alerts configuration is valid YAML.
func TestAlertsFileValid(t *testing.T) {
	data, err := os.ReadFile(alertsPath)
	if err != nil {
		t.Skipf("Skipping test: alerts file not found at %s", alertsPath)
		return
	}

	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		t.Fatalf("Invalid YAML in alerts.yml: %v", err)
	}

	groups, ok := config["groups"]
	if !ok {
		t.Fatal("alerts.yml missing 'groups' key")
	}
	groupsList, ok := groups.([]any)
	if !ok || len(groupsList) == 0 {
		t.Fatal("alerts.yml 'groups' is empty or invalid")
	}
}

// TestCriticalAlertsPresent verifies critical alerts are defined.
func TestCriticalAlertsPresent(t *testing.T) {
	data, err := os.ReadFile(alertsPath)
	if err != nil {
		t.Skipf("Skipping test: alerts file not found at %s", alertsPath)
		return
	}

	content := string(data)
	criticalAlerts := []string{
		"DashboardDown",
		"HighAPIErrorRate",
		"GenerationServiceDown",
		"CatalogBuildFailures",
		"DatabaseDown",
	}
	for _, alert := range criticalAlerts {
		if !strings.Contains(content, alert) {
			t.Errorf("alerts.yml missing alert %q", alert)
		}
	}
}
