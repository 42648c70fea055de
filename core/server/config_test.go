package server_test

import (
	"testing"
	"time"

	"crm-sync/core/server"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		port    string
		wantErr bool
	}{
		{"Default", "8080", false},
		{"Lowest", "1", false},
		{"Zero", "0", true},
		{"TooHigh", "70000", true},
		{"NotANumber", "http", true},
		{"Empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := server.Config{Port: tt.port}.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	c := server.Config{Port: "9000", ReadTimeoutSeconds: 5, WriteTimeoutSeconds: 60}
	assert.Equal(t, ":9000", c.Addr())
	assert.Equal(t, 5*time.Second, c.ReadTimeout())
	assert.Equal(t, time.Minute, c.WriteTimeout())
}
