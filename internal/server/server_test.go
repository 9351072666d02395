// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noldarim/idexec/internal/config"
)

func TestNew_WriteTimeout(t *testing.T) {
	tests := []struct {
		name       string
		configured time.Duration
		want       time.Duration
	}{
		{name: "from config", configured: 4*time.Minute + 15*time.Second, want: 4*time.Minute + 15*time.Second},
		{name: "unset", configured: 0, want: defaultWriteTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(&config.ServerConfig{Host: "127.0.0.1", Port: 8090, WriteTimeout: tt.configured}, &mockDirectory{}, &mockIdentity{})
			assert.Equal(t, tt.want, srv.httpServer.WriteTimeout)
			assert.Equal(t, "127.0.0.1:8090", srv.httpServer.Addr)
		})
	}
}
