// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package lookup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/idexec/internal/config"
	"github.com/noldarim/idexec/internal/identity"
	"github.com/noldarim/idexec/internal/processor"
	"github.com/noldarim/idexec/test/testutil"
)

func newTestStore(t *testing.T, cfg config.IdentityConfig, runner processor.Runner) *Store {
	t.Helper()
	store, err := NewStore(cfg, testutil.Domain, runner)
	require.NoError(t, err)
	return store
}

func TestFind_RendersRequest(t *testing.T) {
	runner := testutil.NewMockRunner()
	store := newTestStore(t, testutil.IdentityConfig("resolve", "json", "{medium}", "{address}"), runner)

	runner.On("Run", mock.Anything, processor.Command{
		Path:  "resolve",
		Args:  []string{"email", "bob@example.org"},
		Stdin: []byte(`{"medium":"email","address":"bob@example.org"}`),
	}).Return(&processor.Result{Stdout: `{"lookup":{"id":{"type":"localpart","value":"bob"}}}`}, nil).Once()

	got, err := store.Find(context.Background(), "email", "bob@example.org")
	require.NoError(t, err)
	assert.Equal(t, &Mapping{Medium: "email", Address: "bob@example.org", MXID: "@bob:example.org"}, got)
	runner.AssertExpectations(t)
}

func TestFind_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		result  *processor.Result
		runErr  error
		want    *Mapping
		wantErr error
	}{
		{
			name:   "json mxid",
			output: "json",
			result: &processor.Result{Stdout: `{"lookup":{"medium":"email","address":"bob@example.org","id":{"type":"mxid","value":"@Bob:example.org"}}}`},
			want:   &Mapping{Medium: "email", Address: "bob@example.org", MXID: "@bob:example.org"},
		},
		{
			name:   "plain localpart",
			output: "plain",
			result: &processor.Result{Stdout: "localpart\nbob\n"},
			want:   &Mapping{Medium: "email", Address: "bob@example.org", MXID: "@bob:example.org"},
		},
		{
			name:   "plain mxid with blank lines",
			output: "plain",
			result: &processor.Result{Stdout: "\nmxid\r\n\n@bob:example.org\n"},
			want:   &Mapping{Medium: "email", Address: "bob@example.org", MXID: "@bob:example.org"},
		},
		{
			name:   "json without lookup is not found",
			output: "json",
			result: &processor.Result{Stdout: `{}`},
		},
		{
			name:   "blank output is not found",
			output: "plain",
			result: &processor.Result{Stdout: "\n"},
		},
		{
			name:   "process failure is not found",
			output: "json",
			runErr: processor.ErrProcessFailed,
		},
		{
			name:   "plain with one line is not found",
			output: "plain",
			result: &processor.Result{Stdout: "localpart\n"},
		},
		{
			name:   "unknown id type is not found",
			output: "json",
			result: &processor.Result{Stdout: `{"lookup":{"id":{"type":"uuid","value":"1234"}}}`},
		},
		{
			name:    "mxid without sigil fails",
			output:  "json",
			result:  &processor.Result{Stdout: `{"lookup":{"id":{"type":"mxid","value":"bob"}}}`},
			wantErr: identity.ErrInvalidUserID,
		},
		{
			name:    "invalid localpart fails",
			output:  "plain",
			result:  &processor.Result{Stdout: "localpart\nbob smith\n"},
			wantErr: identity.ErrInvalidUserID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := testutil.NewMockRunner()
			runner.On("Run", mock.Anything, mock.Anything).Return(tt.result, tt.runErr).Once()

			store := newTestStore(t, testutil.IdentityConfig("resolve", tt.output), runner)
			got, err := store.Find(context.Background(), "email", "bob@example.org")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFind_DisabledOrUnconfigured(t *testing.T) {
	runner := testutil.NewMockRunner()

	disabled := testutil.IdentityConfig("resolve", "json")
	disabled.Enabled = false
	store := newTestStore(t, disabled, runner)
	assert.False(t, store.IsEnabled())
	got, err := store.Find(context.Background(), "email", "bob@example.org")
	require.NoError(t, err)
	assert.Nil(t, got)

	store = newTestStore(t, testutil.IdentityConfig("", "json"), runner)
	got, err = store.Find(context.Background(), "email", "bob@example.org")
	require.NoError(t, err)
	assert.Nil(t, got)

	testutil.AssertNotRun(t, runner)
}

func TestFind_RealProcess(t *testing.T) {
	testutil.RequireShell(t)

	cfg := testutil.IdentityConfig("sh", "plain", "-c", `echo localpart; echo "$1" | cut -d@ -f1`, "lookup", "{address}")
	store := newTestStore(t, cfg, processor.NewExecRunner())

	got, err := store.Find(context.Background(), "email", "alice@example.org")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "@alice:example.org", got.MXID)
}
