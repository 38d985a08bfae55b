package storage

import (
	"os"
	"path/filepath"
	"testing"
)

// Helper function to create a temporary test database
func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test_tapsync.sqlite3")

	// Point the registry at the test database
	oldPath := os.Getenv("TAPSYNC_DB_PATH")
	os.Setenv("TAPSYNC_DB_PATH", dbPath)
	t.Cleanup(func() {
		if oldPath == "" {
			os.Unsetenv("TAPSYNC_DB_PATH")
		} else {
			os.Setenv("TAPSYNC_DB_PATH", oldPath)
		}
	})

	client, err := NewDBClient()
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client, dbPath
}

func TestNewDBClient(t *testing.T) {
	client, dbPath := setupTestDB(t)

	if client == nil {
		t.Fatal("Expected non-nil DB client")
	}
	if client.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if client.db == nil {
		t.Fatal("Expected non-nil sql.DB handle")
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

func TestNewDBClientWithNestedPath(t *testing.T) {
	tmpDir := t.TempDir()
	customPath := filepath.Join(tmpDir, "subdir", "custom.db")

	client, err := NewDBClientWithPath(customPath)
	if err != nil {
		t.Fatalf("Failed to create DB with nested path: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(customPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", customPath)
	}
}

func TestRegisterParticipant(t *testing.T) {
	client, _ := setupTestDB(t)

	sessionID, err := client.RegisterParticipant("123456789", "simple-stimulus1-rightear")
	if err != nil {
		t.Fatalf("Failed to register participant: %v", err)
	}
	if sessionID == "" {
		t.Error("Expected non-empty session ID")
	}

	var p Participant
	if err := client.DB.First(&p, "id = ?", "123456789").Error; err != nil {
		t.Fatalf("Failed to retrieve registered participant: %v", err)
	}
	if p.Allocation != "simple-stimulus1-rightear" {
		t.Errorf("Expected allocation 'simple-stimulus1-rightear', got '%s'", p.Allocation)
	}
	if p.SessionID != sessionID {
		t.Errorf("Stored session ID %s does not match returned %s", p.SessionID, sessionID)
	}
}

func TestRegisterParticipantIdempotent(t *testing.T) {
	client, _ := setupTestDB(t)

	session1, err := client.RegisterParticipant("987654321", "complex-stimulus2-leftear")
	if err != nil {
		t.Fatalf("Failed to register participant first time: %v", err)
	}

	// a second registration must return the original session and keep
	// the original allocation
	session2, err := client.RegisterParticipant("987654321", "simple-stimulus1-rightear")
	if err != nil {
		t.Fatalf("Failed to register participant second time: %v", err)
	}
	if session1 != session2 {
		t.Errorf("Expected same session ID, got %s and %s", session1, session2)
	}

	var count int64
	client.DB.Model(&Participant{}).Where("id = ?", "987654321").Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 participant row, found %d", count)
	}

	var p Participant
	client.DB.First(&p, "id = ?", "987654321")
	if p.Allocation != "complex-stimulus2-leftear" {
		t.Errorf("Allocation was mutated on re-registration: %s", p.Allocation)
	}
}

func TestRecordAndListTrials(t *testing.T) {
	client, _ := setupTestDB(t)

	if _, err := client.RegisterParticipant("111111111", "simple-stimulus1-rightear"); err != nil {
		t.Fatalf("Failed to register participant: %v", err)
	}

	// insert out of order across stimuli
	runs := []TrialRun{
		{ParticipantID: "111111111", StimulusNumber: 2, TrialNumber: 1},
		{ParticipantID: "111111111", StimulusNumber: 1, TrialNumber: 2},
		{ParticipantID: "111111111", StimulusNumber: 1, TrialNumber: 1, Failed: true, FailureReason: "too few taps"},
	}
	for _, run := range runs {
		if err := client.RecordTrial(run); err != nil {
			t.Fatalf("Failed to record trial: %v", err)
		}
	}

	listed, err := client.ListTrials("111111111")
	if err != nil {
		t.Fatalf("Failed to list trials: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("Expected 3 trial runs, got %d", len(listed))
	}

	want := [][2]int{{1, 1}, {1, 2}, {2, 1}}
	for i, w := range want {
		if listed[i].StimulusNumber != w[0] || listed[i].TrialNumber != w[1] {
			t.Errorf("run %d = (stimulus %d, trial %d), want (%d, %d)",
				i, listed[i].StimulusNumber, listed[i].TrialNumber, w[0], w[1])
		}
	}
	if !listed[0].Failed || listed[0].FailureReason != "too few taps" {
		t.Errorf("failure flag lost: %+v", listed[0])
	}
}

func TestListTrialsScopedToParticipant(t *testing.T) {
	client, _ := setupTestDB(t)

	client.RecordTrial(TrialRun{ParticipantID: "111111111", StimulusNumber: 1, TrialNumber: 1})
	client.RecordTrial(TrialRun{ParticipantID: "222222222", StimulusNumber: 1, TrialNumber: 1})

	listed, err := client.ListTrials("111111111")
	if err != nil {
		t.Fatalf("Failed to list trials: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("Expected 1 trial run for participant, got %d", len(listed))
	}
}

func TestListTrialsEmpty(t *testing.T) {
	client, _ := setupTestDB(t)

	listed, err := client.ListTrials("000000000")
	if err != nil {
		t.Fatalf("Expected no error for unknown participant, got: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("Expected 0 trial runs, got %d", len(listed))
	}
}

func TestRetriedTrialKeepsBothRows(t *testing.T) {
	client, _ := setupTestDB(t)

	// a failed attempt and its retry share the (stimulus, trial) key
	client.RecordTrial(TrialRun{ParticipantID: "333333333", StimulusNumber: 1, TrialNumber: 4, Failed: true})
	client.RecordTrial(TrialRun{ParticipantID: "333333333", StimulusNumber: 1, TrialNumber: 4})

	listed, err := client.ListTrials("333333333")
	if err != nil {
		t.Fatalf("Failed to list trials: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("Expected 2 rows for a retried trial, got %d", len(listed))
	}
	if !listed[0].Failed || listed[1].Failed {
		t.Error("insertion order of retried trial not preserved")
	}
}

func TestClose(t *testing.T) {
	tmpDir := t.TempDir()
	client, err := NewDBClientWithPath(filepath.Join(tmpDir, "close_test.sqlite3"))
	if err != nil {
		t.Fatalf("Failed to create DB client: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Failed to close DB connection: %v", err)
	}

	// Closing again should be safe (nil check)
	if err := client.Close(); err != nil {
		t.Errorf("Second close should not error: %v", err)
	}
}

func TestNilClientMethods(t *testing.T) {
	var client *DBClient

	if _, err := client.RegisterParticipant("123456789", "simple-stimulus1-rightear"); err == nil {
		t.Error("Expected error for nil client in RegisterParticipant")
	}
	if err := client.RecordTrial(TrialRun{}); err == nil {
		t.Error("Expected error for nil client in RecordTrial")
	}
	if _, err := client.ListTrials("123456789"); err == nil {
		t.Error("Expected error for nil client in ListTrials")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close on nil client should return nil, got: %v", err)
	}
}

func TestConcurrentRegistration(t *testing.T) {
	client, _ := setupTestDB(t)

	done := make(chan bool, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := client.RegisterParticipant("555555555", "simple-stimulus1-rightear")
			if err != nil {
				t.Errorf("Failed to register participant concurrently: %v", err)
			}
			done <- true
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	var count int64
	client.DB.Model(&Participant{}).Where("id = ?", "555555555").Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 participant after concurrent registration, found %d", count)
	}
}
