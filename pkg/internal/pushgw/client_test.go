package pushgw

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

func testCredentials(t *testing.T, tokenURI string) Credentials {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return Credentials{
		ProjectID:   "syncup-test",
		ClientEmail: "push@syncup-test.iam",
		PrivateKey:  string(block),
		TokenURI:    tokenURI,
	}
}

func TestSendPostsTopicEnvelope(t *testing.T) {
	var exchanges atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.PostForm.Get("grant_type"))
		require.NotEmpty(t, r.PostForm.Get("assertion"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-1","expires_in":3600,"token_type":"Bearer"}`)
	}))
	defer tokenServer.Close()

	bodies := make(chan []byte, 2)
	sendServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		bodies <- raw
		_, _ = io.WriteString(w, `{"name":"projects/syncup-test/messages/1"}`)
	}))
	defer sendServer.Close()

	client, err := NewClient(testCredentials(t, tokenServer.URL), Config{Endpoint: sendServer.URL})
	require.NoError(t, err)

	data := map[string]string{"channelId": "c1", "senderName": "Bob"}
	require.NoError(t, client.Send(context.Background(), TopicFor("c1"), data))
	require.NoError(t, client.Send(context.Background(), TopicFor("c1"), data))
	require.Equal(t, int32(1), exchanges.Load())

	var sent struct {
		Message struct {
			Topic   string            `json:"topic"`
			Data    map[string]string `json:"data"`
			Android struct {
				Priority string `json:"priority"`
			} `json:"android"`
		} `json:"message"`
	}
	require.NoError(t, jsoniter.Unmarshal(<-bodies, &sent))
	require.Equal(t, "group_c1", sent.Message.Topic)
	require.Equal(t, data, sent.Message.Data)
	require.Equal(t, "high", sent.Message.Android.Priority)
}

func TestSendReportsRejection(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"access_token":"tok","expires_in":3600}`)
	}))
	defer tokenServer.Close()
	sendServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer sendServer.Close()

	client, err := NewClient(testCredentials(t, tokenServer.URL), Config{Endpoint: sendServer.URL})
	require.NoError(t, err)
	require.Error(t, client.Send(context.Background(), "group_c1", nil))
}

func TestNewClientNeedsProject(t *testing.T) {
	creds := testCredentials(t, "http://127.0.0.1:1")
	creds.ProjectID = ""
	_, err := NewClient(creds, Config{})
	require.Error(t, err)
}

func TestTopics(t *testing.T) {
	topics := NewTopics()
	topics.Join(TopicFor("b"))
	topics.Join(TopicFor("a"))
	topics.Join(TopicFor("a"))
	require.Equal(t, []string{"group_a", "group_b"}, topics.List())

	topics.Leave("group_a")
	require.False(t, topics.Joined("group_a"))

	id, ok := ChannelOf("group_b")
	require.True(t, ok)
	require.Equal(t, "b", id)
}
