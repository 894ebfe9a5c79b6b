package dashboard

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
)

var testOpts = Options{StatusTable: "sounder_status", AlertTable: "sounder_alerts"}

func TestRenderMissingEnv(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "")
	dir := t.TempDir()
	if _, err := Render(dir, testOpts); err == nil {
		t.Fatalf("expected error for missing env var")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("partial dashboard left behind: %v", entries)
	}
}

func TestRenderSuccess(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "uid1")

	path, err := Render(t.TempDir(), testOpts)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	if !strings.HasSuffix(path, "sounder-dashboard.json") {
		t.Fatalf("unexpected path %s", path)
	}
	var dash struct {
		Title  string `json:"title"`
		Panels []struct {
			Title      string `json:"title"`
			Datasource struct {
				UID string `json:"uid"`
			} `json:"datasource"`
			Targets []struct {
				RawSQL string `json:"rawSql"`
			} `json:"targets"`
		} `json:"panels"`
	}
	if err := json.Unmarshal(b, &dash); err != nil {
		t.Fatalf("dashboard is not valid JSON: %v", err)
	}
	if dash.Title != "Sounder device" || len(dash.Panels) == 0 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}
	for _, p := range dash.Panels {
		if p.Datasource.UID != "uid1" {
			t.Fatalf("panel %s uid = %q", p.Title, p.Datasource.UID)
		}
	}
	if !strings.Contains(dash.Panels[0].Targets[0].RawSQL, "FROM sounder_status") {
		t.Fatalf("status table not rendered: %s", dash.Panels[0].Targets[0].RawSQL)
	}
}

func TestWriteRequiresTables(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "uid1")
	var sb strings.Builder
	if err := Write(&sb, Options{StatusTable: "s"}); err == nil {
		t.Fatalf("expected error without alert table")
	}
}
