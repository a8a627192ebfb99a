package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "orders.csv",
		"order_id,city,status,failure_reason\n"+
			"1,Mumbai,Failed,Address not found\n"+
			"2,Pune,Delivered,\n")
	writeCSV(t, dir, "clients.csv",
		"client_id,client_name\n"+
			"10,Acme Retail\n")

	rt, err := NewLoader(dir, zap.NewNop()).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if rt.Orders.Len() != 2 {
		t.Errorf("Expected 2 orders, got %d", rt.Orders.Len())
	}
	if rt.Orders.Rows[0]["failure_reason"] != "Address not found" {
		t.Errorf("Unexpected first order row: %v", rt.Orders.Rows[0])
	}
	if rt.Clients.Len() != 1 {
		t.Errorf("Expected 1 client, got %d", rt.Clients.Len())
	}

	// Tables without a CSV file stay present and empty.
	if !rt.Drivers.Empty() {
		t.Errorf("Expected empty drivers table, got %d rows", rt.Drivers.Len())
	}
	if rt.Source != dir {
		t.Errorf("Expected source %q, got %q", dir, rt.Source)
	}
}

func TestLoaderLoad_MissingDirectory(t *testing.T) {
	rt, err := NewLoader(filepath.Join(t.TempDir(), "nope"), zap.NewNop()).Load()
	if err == nil {
		t.Fatal("Expected error for missing dataset directory")
	}
	if rt == nil {
		t.Fatal("Expected an empty snapshot alongside the error")
	}
	for _, name := range TableNames {
		if n := rt.TableByName(name).Len(); n != 0 {
			t.Errorf("Expected empty %s, got %d rows", name, n)
		}
	}
}

func TestLoaderLoad_ShortRecordsArePadded(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "fleet_logs.csv",
		"fleet_log_id,order_id,gps_delay_notes\n"+
			"1,100\n")

	rt, err := NewLoader(dir, zap.NewNop()).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if rt.FleetLogs.Len() != 1 {
		t.Fatalf("Expected 1 fleet log, got %d", rt.FleetLogs.Len())
	}
	row := rt.FleetLogs.Rows[0]
	if row["gps_delay_notes"] != "" {
		t.Errorf("Expected padded empty value, got %q", row["gps_delay_notes"])
	}
	if row["order_id"] != "100" {
		t.Errorf("Expected order_id 100, got %q", row["order_id"])
	}
}

func TestLoaderLoad_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "feedback.csv", "")

	rt, err := NewLoader(dir, zap.NewNop()).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !rt.Feedback.Empty() {
		t.Errorf("Expected empty feedback table, got %d rows", rt.Feedback.Len())
	}
}
