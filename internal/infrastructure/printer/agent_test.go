package printer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startHub(t *testing.T, config *AgentHubConfig) (*AgentHub, *httptest.Server) {
	t.Helper()
	config.Logger = zaptest.NewLogger(t)
	hub := NewAgentHub(config)
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, server
}

func dialAgent(t *testing.T, server *httptest.Server, key, apiKey string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if apiKey != "" {
		header.Set("X-Api-Key", apiKey)
	}
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(AgentMessage{Type: MessageTypeRegister, AgentKey: key}))
	var ack AgentMessage
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, MessageTypeRegistered, ack.Type)
	return conn
}

func sendAsync(hub *AgentHub, doc *printing.Document, dest string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- hub.Send(context.Background(), doc, dest) }()
	return done
}

func readPrintDocument(t *testing.T, conn *websocket.Conn) AgentMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg AgentMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == MessageTypePrintDocument {
			return msg
		}
	}
}

func TestAgentHub_PrintedOnce(t *testing.T) {
	hub, server := startHub(t, &AgentHubConfig{APIKey: "secret"})
	conn := dialAgent(t, server, "front-desk", "secret")
	assert.Equal(t, []string{"front-desk"}, hub.Connected())

	doc := testDocument()
	done := sendAsync(hub, doc, "agent://front-desk")

	msg := readPrintDocument(t, conn)
	assert.Equal(t, doc.JobID.String(), msg.JobID)
	assert.Equal(t, doc.Data, msg.Document)
	assert.Equal(t, printing.ContentTypePDF, msg.ContentType)

	reply := AgentMessage{Type: MessageTypePrinted, AgentKey: "front-desk", JobID: msg.JobID}
	require.NoError(t, conn.WriteJSON(reply))
	require.NoError(t, conn.WriteJSON(reply))
	require.NoError(t, conn.WriteJSON(AgentMessage{Type: MessageTypePrintFailed, JobID: msg.JobID, Error: "late"}))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not complete")
	}
}

func TestAgentHub_PrintFailed(t *testing.T) {
	hub, server := startHub(t, &AgentHubConfig{})
	conn := dialAgent(t, server, "kitchen", "")

	done := sendAsync(hub, testDocument(), "agent://kitchen")
	msg := readPrintDocument(t, conn)
	require.NoError(t, conn.WriteJSON(AgentMessage{Type: MessageTypePrintFailed, JobID: msg.JobID, Error: "out of labels"}))

	err := <-done
	assert.ErrorIs(t, err, printing.ErrPrinterUnavailable)
	assert.Contains(t, err.Error(), "out of labels")
}

func TestAgentHub_DisconnectFailsPending(t *testing.T) {
	hub, server := startHub(t, &AgentHubConfig{})
	conn := dialAgent(t, server, "kitchen", "")

	done := sendAsync(hub, testDocument(), "agent://kitchen")
	readPrintDocument(t, conn)
	conn.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, printing.ErrPrinterUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("pending send was not failed on disconnect")
	}
}

func TestAgentHub_ReplyTimeout(t *testing.T) {
	hub, server := startHub(t, &AgentHubConfig{ReplyTimeout: 100 * time.Millisecond})
	conn := dialAgent(t, server, "kitchen", "")

	done := sendAsync(hub, testDocument(), "agent://kitchen")
	readPrintDocument(t, conn)

	err := <-done
	assert.ErrorIs(t, err, printing.ErrPrinterUnavailable)
	assert.Contains(t, err.Error(), "did not confirm")
}

func TestAgentHub_UnknownAgentAndBadKey(t *testing.T) {
	hub, server := startHub(t, &AgentHubConfig{APIKey: "secret"})

	err := hub.Send(context.Background(), testDocument(), "agent://nobody")
	assert.ErrorIs(t, err, printing.ErrPrinterUnavailable)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Api-Key": []string{"wrong"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAgentHub_AnswersPing(t *testing.T) {
	_, server := startHub(t, &AgentHubConfig{})
	conn := dialAgent(t, server, "kitchen", "")

	require.NoError(t, conn.WriteJSON(AgentMessage{Type: MessageTypePing, AgentKey: "kitchen"}))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg AgentMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypePong, msg.Type)
}
