package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestGenericStreamProviderOpenAndResults(t *testing.T) {
	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse auth form: %v", err)
		}
		if r.FormValue("client_id") != "id-1" || r.FormValue("client_secret") != "secret-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(authResponse{
			AccessToken: "tok-abc",
			ExpireAt:    time.Now().Add(time.Hour).Unix(),
		})
	}))
	defer authServer.Close()

	var gotAuth string
	streamServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		kind, data, err := conn.Read(r.Context())
		if err != nil || kind != websocket.MessageBinary || len(data) != 3 {
			return
		}

		conn.Write(r.Context(), websocket.MessageText, []byte(`{"seq":1,"final":false,"alternatives":[{"text":"hel","confidence":0.4}]}`))
		conn.Write(r.Context(), websocket.MessageText, []byte(`{"seq":2,"final":true,"alternatives":[{"text":"hello","confidence":0.9}]}`))

		_, _, _ = conn.Read(r.Context()) // expect the EOS sentinel before close
	}))
	defer streamServer.Close()

	streamURL := "ws" + strings.TrimPrefix(streamServer.URL, "http")
	p := NewGenericStreamProvider(authServer.URL, streamURL, "id-1", "secret-1")

	stream, err := p.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if gotAuth != "Bearer tok-abc" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}

	if err := stream.SendAudio([]byte{1, 2, 3}); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	var got []struct {
		final bool
		text  string
	}
	for i := 0; i < 2; i++ {
		select {
		case r := <-stream.Results():
			got = append(got, struct {
				final bool
				text  string
			}{r.Final, r.Text})
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for STT result")
		}
	}

	if got[0].final || got[0].text != "hel" {
		t.Errorf("unexpected first result: %+v", got[0])
	}
	if !got[1].final || got[1].text != "hello" {
		t.Errorf("unexpected second result: %+v", got[1])
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestGenericStreamProviderTokenCached(t *testing.T) {
	calls := 0
	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(authResponse{
			AccessToken: "tok",
			ExpireAt:    time.Now().Add(time.Hour).Unix(),
		})
	}))
	defer authServer.Close()

	p := NewGenericStreamProvider(authServer.URL, "ws://unused", "id", "secret")
	if _, err := p.ensureToken(context.Background()); err != nil {
		t.Fatalf("ensureToken: %v", err)
	}
	if _, err := p.ensureToken(context.Background()); err != nil {
		t.Fatalf("ensureToken (cached): %v", err)
	}
	if calls != 1 {
		t.Errorf("expected token to be cached across calls, got %d auth calls", calls)
	}
}
