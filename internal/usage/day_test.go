package usage

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	tests := []struct {
		input   string
		want    Day
		wantErr bool
	}{
		{"2024/03/09", Day{2024, time.March, 9}, false},
		{"2024-03-09", Day{2024, time.March, 9}, false},
		{"2024/12/31", Day{2024, time.December, 31}, false},
		{"2024/02/30", Day{}, true},
		{"03/09/2024", Day{}, true},
		{"", Day{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDay(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDay(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDay(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDayStringRoundTrip(t *testing.T) {
	days := []Day{
		{2024, time.January, 1},
		{1999, time.December, 31},
		{2030, time.July, 4},
	}
	for _, d := range days {
		parsed, err := ParseDay(d.String())
		if err != nil {
			t.Fatalf("ParseDay(%q): %v", d.String(), err)
		}
		if parsed != d {
			t.Errorf("round trip of %v gave %v", d, parsed)
		}
	}

	if got := (Day{2024, time.March, 9}).String(); got != "2024/03/09" {
		t.Errorf("String() = %q, want 2024/03/09", got)
	}
}

func TestDayOfUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	instant := time.Date(2024, time.March, 9, 20, 0, 0, 0, time.UTC)

	if got := DayOf(instant); got != (Day{2024, time.March, 9}) {
		t.Errorf("DayOf UTC = %v", got)
	}
	if got := DayOf(instant.In(tokyo)); got != (Day{2024, time.March, 10}) {
		t.Errorf("DayOf JST = %v", got)
	}
}

func TestDayBefore(t *testing.T) {
	a := Day{2024, time.March, 9}
	if !a.Before(Day{2024, time.March, 10}) || !a.Before(Day{2024, time.April, 1}) || !a.Before(Day{2025, time.January, 1}) {
		t.Error("expected a to be before later days")
	}
	if a.Before(a) || a.Before(Day{2024, time.March, 8}) {
		t.Error("expected a not to be before itself or an earlier day")
	}
}

func TestDayJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Day{"day": {2024, time.March, 9}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"day":"2024/03/09"}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var decoded struct{ Day Day }
	if err := json.Unmarshal([]byte(`{"Day":"2024-03-09"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Day != (Day{2024, time.March, 9}) {
		t.Errorf("unexpected day: %v", decoded.Day)
	}
}
