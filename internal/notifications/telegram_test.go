package notifications

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSendAlert(t *testing.T) {
	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("tok", "42")
	n.baseURL = srv.URL

	require.NoError(t, n.SendAlert(LevelSuccess, "Opened ETH long"))
	assert.Equal(t, "/bottok/sendMessage", gotPath)
	assert.Equal(t, "42", gotChat)
	assert.Contains(t, gotText, "✅")
	assert.Contains(t, gotText, "Opened ETH long")
}

func TestTelegramSendAlertStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("bad", "42")
	n.baseURL = srv.URL
	assert.ErrorContains(t, n.SendAlert(LevelError, "boom"), "401")
}

func TestLevelEmoji(t *testing.T) {
	assert.Equal(t, "⚠️", levelEmoji(LevelWarning))
	assert.Equal(t, "🚨", levelEmoji(LevelError))
	assert.Equal(t, "ℹ️", levelEmoji("anything"))
	assert.NoError(t, Nop{}.SendAlert(LevelInfo, "x"))
}
