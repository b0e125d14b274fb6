package config

import "testing"

func TestBatchSize(t *testing.T) {
	cases := []struct {
		value string
		want  int
	}{
		{"", DefaultBatchSize},
		{"250", 250},
		{"1", 1},
		{"abc", DefaultBatchSize},
		{"10.5", DefaultBatchSize},
		{"0", DefaultBatchSize},
		{"-5", DefaultBatchSize},
	}
	for _, tc := range cases {
		cfg := WorkerConfig{SMSRateLimit: tc.value}
		if got := cfg.BatchSize(); got != tc.want {
			t.Errorf("BatchSize(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}
}
