package datawrapper

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDate_JSON(t *testing.T) {
	d := NewDate(time.Date(2024, 3, 9, 15, 4, 5, 0, time.Local))

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"2024-03-09"` {
		t.Errorf("Expected \"2024-03-09\", got %s", data)
	}

	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(d.Time) {
		t.Errorf("Expected %v, got %v", d, back)
	}
}

func TestDate_Zero(t *testing.T) {
	data, err := json.Marshal(Date{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "null" {
		t.Errorf("Expected null, got %s", data)
	}

	var d Date
	if err := json.Unmarshal([]byte("null"), &d); err != nil || !d.IsZero() {
		t.Errorf("Expected a zero date from null, got %v (%v)", d, err)
	}

	v, err := Date{}.Value()
	if err != nil || v != nil {
		t.Errorf("Expected a nil driver value, got %v", v)
	}
}

func TestDate_CustomFormat(t *testing.T) {
	t.Setenv("DATE_FORMAT", "02/01/2006")

	d := NewDate(time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
	if d.String() != "09/03/2024" {
		t.Errorf("Expected 09/03/2024, got %s", d.String())
	}

	var back Date
	if err := json.Unmarshal([]byte(`"10/03/2024"`), &back); err != nil {
		t.Fatal(err)
	}
	if back.Day() != 10 || back.Month() != time.March {
		t.Errorf("Expected 10 March, got %v", back)
	}

	// the database representation does not follow the display format
	v, _ := d.Value()
	if v != "2024-03-09" {
		t.Errorf("Expected ISO date for the driver, got %v", v)
	}
}

func TestDate_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want string
	}{
		{"time", time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC), "2024-03-09"},
		{"bytes", []byte("2024-03-09"), "2024-03-09"},
		{"string", "2024-03-09", "2024-03-09"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			if err := d.Scan(tt.src); err != nil {
				t.Fatalf("Scan() error: %v", err)
			}
			if d.String() != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, d.String())
			}
		})
	}

	var d Date
	if err := d.Scan(42); err == nil {
		t.Error("Expected an error for an int source")
	}
}

func TestDateTime(t *testing.T) {
	ts := DateTime{time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC)}

	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"2024-03-09T15:04:05Z"` {
		t.Errorf("Expected RFC3339, got %s", data)
	}

	var back DateTime
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(ts.Time) {
		t.Errorf("Expected %v, got %v", ts, back)
	}

	var scanned DateTime
	if err := scanned.Scan("2024-03-09 15:04:05.123456+00"); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if scanned.Nanosecond() != 123456000 {
		t.Errorf("Expected microseconds to be kept, got %d", scanned.Nanosecond())
	}

	t.Setenv("DATETIME_FORMAT", time.DateTime)
	if ts.String() != "2024-03-09 15:04:05" {
		t.Errorf("Expected custom layout, got %s", ts.String())
	}
}
